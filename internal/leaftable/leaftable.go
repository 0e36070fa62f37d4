// Package leaftable implements the leaf table and its synonym (overflow)
// table (spec C3): the bit-packed per-slot directory a submodel uses to map
// a predicted slot index to the chain of leaves that may hold a key.
package leaftable

import (
	"sync"
	"sync/atomic"

	"github.com/nmxmxh/rolex/internal/arena"
	"github.com/nmxmxh/rolex/internal/leaf"
)

// DefaultSynMax is SYN_MAX from spec.md §3: the fixed capacity of the
// synonym table, shared across all slots of one submodel.
const DefaultSynMax = 128

// LeafTable is one submodel's directory: one primary Entry per predicted
// slot, plus a shared SynonymTable of overflow entries. Each slot has an
// independent mutex (spec.md §5's "parallel vector of spin locks"); Go's
// sync.Mutex already spins briefly before parking, so it stands in directly
// for the userspace spinlock the original described, without a hand-rolled
// busy-wait loop.
type LeafTable struct {
	entries []Entry
	locks   []*sync.Mutex

	synMu   sync.Mutex // guards synonym entry writes below index synUsed
	synonym []Entry
	synUsed atomic.Uint64
	synMax  int
}

// New builds an empty leaf table for a submodel with nSlots predicted
// positions. synMax <= 0 selects DefaultSynMax.
func New(nSlots int, synMax int) *LeafTable {
	if synMax <= 0 {
		synMax = DefaultSynMax
	}
	t := &LeafTable{
		entries: make([]Entry, 0, nSlots),
		locks:   make([]*sync.Mutex, 0, nSlots),
		synonym: make([]Entry, synMax),
		synMax:  synMax,
	}
	t.synUsed.Store(1) // index 0 is reserved (spec.md §3: doubles as the next-free counter)
	return t
}

// NumSlots returns the number of primary entries trained so far.
func (t *LeafTable) NumSlots() int { return len(t.entries) }

// SynMax returns the synonym table's fixed capacity.
func (t *LeafTable) SynMax() int { return t.synMax }

// TrainAppend appends a fresh primary entry pointing at leafNum, with no
// overflow chain. Used only while building a submodel (spec C4's Train).
func (t *LeafTable) TrainAppend(leafNum uint64) int {
	t.entries = append(t.entries, MakeEntry(leafNum, 0, 0))
	t.locks = append(t.locks, &sync.Mutex{})
	return len(t.entries) - 1
}

// Entry returns the raw primary entry at slot i, for serialization.
func (t *LeafTable) Entry(i int) Entry { return t.entries[i] }

// SynonymEntry returns the raw synonym entry at index i, for serialization.
// Index 0 reports the next-free counter in its LeafNum field, matching the
// wire contract in spec.md §4.5.
func (t *LeafTable) SynonymEntry(i int) Entry {
	if i == 0 {
		return MakeEntry(t.synUsed.Load(), 0, 0)
	}
	return t.synonym[i]
}

// SynUsed returns the number of synonym slots allocated so far (including
// the reserved index 0).
func (t *LeafTable) SynUsed() uint64 { return t.synUsed.Load() }

// LoadEntries restores a leaf table's raw state from decoded wire entries,
// used by modelarena.Decode (spec C5). entries is the primary table;
// synonym[0].LeafNum() is the next-free counter.
func LoadEntries(entries []Entry, synonym []Entry, synMax int) *LeafTable {
	if synMax <= 0 {
		synMax = len(synonym)
	}
	t := &LeafTable{
		entries: entries,
		locks:   make([]*sync.Mutex, len(entries)),
		synonym: synonym,
		synMax:  synMax,
	}
	for i := range t.locks {
		t.locks[i] = &sync.Mutex{}
	}
	if len(synonym) > 0 {
		t.synUsed.Store(synonym[0].LeafNum())
	} else {
		t.synUsed.Store(1)
	}
	return t
}

func (t *LeafTable) synAlloc() (uint64, bool) {
	idx := t.synUsed.Add(1) - 1
	if idx >= uint64(t.synMax) {
		return 0, false
	}
	return idx, true
}

// chain returns the indices of slotIdx's overflow chain in forward
// (head-to-tail) order, which is ascending key order: a split links the new
// leaf, holding the upper half of the split leaf's keys, directly after it.
func (t *LeafTable) chain(slotIdx int) []uint64 {
	var out []uint64
	head := t.entries[slotIdx].SynonymHead()
	for head != 0 {
		out = append(out, uint64(head))
		head = t.synonym[head].SynonymHead()
	}
	return out
}

// cursor identifies one leaf in a slot's chain: synIdx == 0 means the
// primary leaf, otherwise it indexes into the synonym table.
type cursor struct {
	synIdx uint64
	leaf   *leaf.Leaf
}

// locate walks slotIdx's chain tail-to-head, then falls back to the
// primary, returning the first leaf that accepts k (spec.md §4.3: "leaves
// in the chain partition key ranges in decreasing order from tail to head
// to primary").
func (t *LeafTable) locate(a arena.Source, slotIdx int, k uint64) cursor {
	fwd := t.chain(slotIdx)
	for i := len(fwd) - 1; i >= 0; i-- {
		idx := fwd[i]
		l := a.Get(t.synonym[idx].LeafNum())
		if l.Accepts(k) {
			return cursor{synIdx: idx, leaf: l}
		}
	}
	return cursor{synIdx: 0, leaf: a.Get(t.entries[slotIdx].LeafNum())}
}

// locateSlot implements spec.md §4.3's slot-window gating: scan primaries
// hi downto lo+1 for the first whose first key is <= k, falling back to lo.
func (t *LeafTable) locateSlot(a arena.Source, lo, hi int, k uint64) int {
	for i := hi; i > lo; i-- {
		if a.Get(t.entries[i].LeafNum()).Accepts(k) {
			return i
		}
	}
	return lo
}

// Search looks up k within the slot window [lo, hi].
func (t *LeafTable) Search(a arena.Source, lo, hi int, k uint64) (uint64, bool) {
	slot := t.locateSlot(a, lo, hi, k)
	cur := t.locate(a, slot, k)
	return cur.leaf.Search(k)
}

// Update replaces the value for an existing key within [lo, hi].
func (t *LeafTable) Update(a arena.Source, lo, hi int, k, v uint64) error {
	slot := t.locateSlot(a, lo, hi, k)
	mu := t.locks[slot]
	mu.Lock()
	defer mu.Unlock()
	cur := t.locate(a, slot, k)
	if !cur.leaf.Update(k, v) {
		return ErrNotFound
	}
	return nil
}

// Remove deletes k within [lo, hi]. A synonym leaf left empty by the removal
// is unlinked from the slot's chain; the primary leaf is never unlinked, and
// no leaf is freed back to the arena (spec.md §4.2).
func (t *LeafTable) Remove(a arena.Source, lo, hi int, k uint64) error {
	slot := t.locateSlot(a, lo, hi, k)
	mu := t.locks[slot]
	mu.Lock()
	defer mu.Unlock()
	cur := t.locate(a, slot, k)
	if !cur.leaf.Remove(k) {
		return ErrNotFound
	}
	if cur.synIdx != 0 && cur.leaf.IsEmpty() {
		next := t.synonym[cur.synIdx].SynonymHead()
		t.synMu.Lock()
		if uint64(t.entries[slot].SynonymHead()) == cur.synIdx {
			t.entries[slot] = t.entries[slot].WithSynonymHead(next)
		} else {
			for _, idx := range t.chain(slot) {
				if uint64(t.synonym[idx].SynonymHead()) == cur.synIdx {
					t.synonym[idx] = t.synonym[idx].WithSynonymHead(next)
					break
				}
			}
		}
		t.synMu.Unlock()
	}
	return nil
}

// Range collects up to n key/value pairs with key >= k, starting in [lo,
// hi]'s slot and continuing into subsequent slots until n pairs are
// collected or the table is exhausted.
func (t *LeafTable) Range(a arena.Source, lo, hi int, k uint64, n int) []leaf.KV {
	slot := t.locateSlot(a, lo, hi, k)
	var out []leaf.KV
	startKey := k
	for slot < len(t.entries) && len(out) < n {
		l := a.Get(t.entries[slot].LeafNum())
		l.Range(startKey, n, &out)

		fwd := t.chain(slot)
		for i := 0; i < len(fwd) && len(out) < n; i++ {
			sl := a.Get(t.synonym[fwd[i]].LeafNum())
			sl.Range(startKey, n, &out)
		}
		slot++
		startKey = 0
	}
	return out
}

// Insert adds (k, v) within [lo, hi], splitting the owning leaf into a
// freshly-allocated one if it is full. Returns ErrDuplicate if k is already
// present, or ErrSynonymExhausted if a split is required but the synonym
// table has no free slots (spec.md §7 — a non-fatal retraining signal).
func (t *LeafTable) Insert(a *arena.LeafArena, lo, hi int, k, v uint64) error {
	slot := t.locateSlot(a, lo, hi, k)
	mu := t.locks[slot]
	mu.Lock()
	defer mu.Unlock()

	cur := t.locate(a, slot, k)
	if cur.leaf.Contains(k) {
		return ErrDuplicate
	}
	if !cur.leaf.IsFull() {
		cur.leaf.InsertNotFull(k, v)
		return nil
	}
	return t.split(a, slot, cur, k, v)
}

// split carves the upper half of cur's entries into a new leaf and links it
// into slot's chain, then routes (k, v) to whichever of the two now accepts
// it.
func (t *LeafTable) split(a *arena.LeafArena, slot int, cur cursor, k, v uint64) error {
	newIdx, ok := t.synAlloc()
	if !ok {
		return ErrSynonymExhausted
	}
	newLeaf, newLeafNum, err := a.FetchNewLeaf()
	if err != nil {
		return err
	}

	n := cur.leaf.Cap()
	half := n / 2
	for i := half; i < n; i++ {
		if cur.leaf.Keys[i] == leaf.Invalid {
			break
		}
		newLeaf.InsertNotFull(cur.leaf.Keys[i], cur.leaf.Vals[i])
		cur.leaf.Keys[i] = leaf.Invalid
		cur.leaf.Vals[i] = leaf.Invalid
	}

	t.synMu.Lock()
	if cur.synIdx == 0 {
		oldHead := t.entries[slot].SynonymHead()
		t.synonym[newIdx] = MakeEntry(newLeafNum, oldHead, 0)
		t.entries[slot] = t.entries[slot].WithSynonymHead(uint8(newIdx))
	} else {
		oldNext := t.synonym[cur.synIdx].SynonymHead()
		t.synonym[newIdx] = MakeEntry(newLeafNum, oldNext, 0)
		t.synonym[cur.synIdx] = t.synonym[cur.synIdx].WithSynonymHead(uint8(newIdx))
	}
	t.synMu.Unlock()

	if newLeaf.Accepts(k) {
		newLeaf.InsertNotFull(k, v)
	} else {
		cur.leaf.InsertNotFull(k, v)
	}
	return nil
}
