// Package leaf implements the fixed-capacity sorted (key, value) bucket that
// backs every position in a submodel's leaf table (spec C1). A Leaf never
// reallocates: it is sized once by the arena that owns it and mutated in
// place under the caller's slot lock.
package leaf

import (
	"encoding/binary"
	"math"
)

// Invalid marks an empty slot. Keys compare as unsigned 64-bit integers, and
// the maximum representable value is reserved as the sentinel.
const Invalid uint64 = math.MaxUint64

// Leaf is a fixed-capacity, sorted array of (key, value) pairs. The occupied
// slots always form the prefix [0, occ); the remainder holds Invalid.
//
// Callers of any mutator (InsertNotFull/Update/Remove) must hold the
// lock of the table slot that owns this leaf; readers (Search/Range/Accepts)
// take no lock, per the concurrency model in spec.md §5.
type Leaf struct {
	Keys []uint64
	Vals []uint64
}

// New allocates a leaf with capacity n, all slots marked Invalid.
func New(n int) *Leaf {
	l := &Leaf{
		Keys: make([]uint64, n),
		Vals: make([]uint64, n),
	}
	for i := range l.Keys {
		l.Keys[i] = Invalid
	}
	return l
}

// Cap returns the leaf's fixed capacity N.
func (l *Leaf) Cap() int { return len(l.Keys) }

// occupied returns the number of occupied slots by scanning for the first
// Invalid key. Leaves are small (N~64) so a linear scan is cheap and
// branch-predictable, matching the original's design intent.
func (l *Leaf) occupied() int {
	for i, k := range l.Keys {
		if k == Invalid {
			return i
		}
	}
	return len(l.Keys)
}

// IsFull reports whether every slot is occupied.
func (l *Leaf) IsFull() bool {
	return len(l.Keys) > 0 && l.Keys[len(l.Keys)-1] != Invalid
}

// IsEmpty reports whether the leaf holds no keys.
func (l *Leaf) IsEmpty() bool {
	return len(l.Keys) == 0 || l.Keys[0] == Invalid
}

// LastKey returns the greatest occupied key. Only meaningful when !IsEmpty().
func (l *Leaf) LastKey() uint64 {
	occ := l.occupied()
	if occ == 0 {
		return Invalid
	}
	return l.Keys[occ-1]
}

// Accepts reports whether this leaf may hold k, i.e. k is not smaller than
// the leaf's smallest key. An empty leaf accepts nothing.
func (l *Leaf) Accepts(k uint64) bool {
	if l.IsEmpty() {
		return false
	}
	return k >= l.Keys[0]
}

// Search returns the value for k and true if present.
func (l *Leaf) Search(k uint64) (uint64, bool) {
	if l.IsEmpty() || k < l.Keys[0] {
		return 0, false
	}
	for i, kk := range l.Keys {
		if kk == Invalid {
			break
		}
		if kk == k {
			return l.Vals[i], true
		}
	}
	return 0, false
}

// Contains reports whether k is present, without returning the value.
func (l *Leaf) Contains(k uint64) bool {
	_, ok := l.Search(k)
	return ok
}

// Update overwrites the value for an existing key k, returning true iff k
// was present.
func (l *Leaf) Update(k, v uint64) bool {
	if l.IsEmpty() || k < l.Keys[0] {
		return false
	}
	for i, kk := range l.Keys {
		if kk == Invalid {
			break
		}
		if kk == k {
			l.Vals[i] = v
			return true
		}
	}
	return false
}

// InsertNotFull inserts (k, v) keeping Keys sorted. Precondition: the leaf
// is not full and k is not already present (duplicate keys are a no-op that
// returns 0, the caller must check via Contains first if that distinction
// matters). Returns the index the pair was written at.
func (l *Leaf) InsertNotFull(k, v uint64) int {
	n := len(l.Keys)
	i := 0
	for ; i < n; i++ {
		if l.Keys[i] == k {
			return 0
		}
		if l.Keys[i] > k {
			break
		}
	}
	j := i
	for j < n && l.Keys[j] != Invalid {
		j++
	}
	if j >= n {
		return n
	}
	copy(l.Keys[i+1:j+1], l.Keys[i:j])
	copy(l.Vals[i+1:j+1], l.Vals[i:j])
	l.Keys[i] = k
	l.Vals[i] = v
	return i
}

// Remove deletes k if present, shifting later entries left and clearing the
// vacated tail slot. Returns true iff k was present.
func (l *Leaf) Remove(k uint64) bool {
	n := len(l.Keys)
	for i := 0; i < n; i++ {
		if l.Keys[i] == Invalid {
			return false
		}
		if l.Keys[i] == k {
			copy(l.Keys[i:], l.Keys[i+1:])
			copy(l.Vals[i:], l.Vals[i+1:])
			l.Keys[n-1] = Invalid
			return true
		}
	}
	return false
}

// Range appends (key, val) pairs with key >= k, in order, to out, stopping
// once len(out) == n or the occupied prefix is exhausted.
func (l *Leaf) Range(k uint64, n int, out *[]KV) {
	for i := 0; i < len(l.Keys) && len(*out) < n; i++ {
		if l.Keys[i] == Invalid {
			break
		}
		if l.Keys[i] >= k {
			*out = append(*out, KV{Key: l.Keys[i], Val: l.Vals[i]})
		}
	}
}

// KV is a single key-value pair, used by Range results.
type KV struct {
	Key uint64
	Val uint64
}

// ByteSize returns the wire size of a leaf with capacity n: n keys followed
// by n vals, 8 bytes each. This is sizeof(Leaf) in spec.md's arena layout
// arithmetic (offset of leaf i is 16 + i*ByteSize(N)).
func ByteSize(n int) int { return 16 * n }

// Encode writes the leaf's wire representation (keys, then vals, both
// little-endian) into dst, which must be at least ByteSize(Cap()) bytes.
func (l *Leaf) Encode(dst []byte) {
	n := len(l.Keys)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(dst[i*8:], l.Keys[i])
	}
	base := n * 8
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(dst[base+i*8:], l.Vals[i])
	}
}

// Decode populates a leaf of capacity n from its wire representation.
func Decode(src []byte, n int) *Leaf {
	l := &Leaf{Keys: make([]uint64, n), Vals: make([]uint64, n)}
	for i := 0; i < n; i++ {
		l.Keys[i] = binary.LittleEndian.Uint64(src[i*8:])
	}
	base := n * 8
	for i := 0; i < n; i++ {
		l.Vals[i] = binary.LittleEndian.Uint64(src[base+i*8:])
	}
	return l
}
