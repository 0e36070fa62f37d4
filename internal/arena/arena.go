// Package arena implements the leaf arena (spec C2): a bump-allocated,
// index-addressable pool of leaves shared between the memory node and any
// compute node that mirrors it. The arena is append-only for the life of the
// process — leaves are never freed, only unlinked from their leaf table.
package arena

import (
	"sync"

	"github.com/nmxmxh/rolex/internal/leaf"
)

// Source is the read side of a leaf arena: anything that can resolve a
// leaf_num to a leaf. A local *LeafArena and a compute node's remote-backed
// Learned Cache (C7) both implement it, so the leaf table and submodel
// packages can run their read paths against either without caring which.
type Source interface {
	Get(i uint64) *leaf.Leaf
}

// LeafArena is a contiguous, capacity-bounded pool of leaves. Slot i is
// addressed by its 48-bit leaf_num. The first 16 bytes of the spec's wire
// layout ({used: u64, capacity: u64}) are tracked here as plain fields
// rather than bytes, since only the memory node ever allocates leaves; the
// byte header only matters when a leaf is read remotely (see HeaderSize and
// LeafOffset).
type LeafArena struct {
	mu       sync.Mutex
	used     uint64
	capacity uint64
	leafCap  int
	leaves   []*leaf.Leaf
}

// HeaderSize is the size in bytes of the arena's {used, capacity} header
// that prefixes the leaf region on the wire (spec.md §4.2).
const HeaderSize = 16

// New constructs a leaf arena with room for exactly capacity leaves, each of
// fixed key/value capacity leafCap (N in spec.md).
func New(capacity uint64, leafCap int) *LeafArena {
	a := &LeafArena{
		capacity: capacity,
		leafCap:  leafCap,
		leaves:   make([]*leaf.Leaf, capacity),
	}
	for i := range a.leaves {
		a.leaves[i] = leaf.New(leafCap)
	}
	return a
}

// LeafCap returns N, the per-leaf key/value capacity.
func (a *LeafArena) LeafCap() int { return a.leafCap }

// Capacity returns the arena's total leaf capacity.
func (a *LeafArena) Capacity() uint64 {
	return a.capacity
}

// Used returns the number of leaves allocated so far.
func (a *LeafArena) Used() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

// LeafByteSize is sizeof(Leaf) on the wire: this module's arithmetic for
// locating leaf i in a remote arena is HeaderSize + i*LeafByteSize().
func (a *LeafArena) LeafByteSize() int {
	return leaf.ByteSize(a.leafCap)
}

// LeafOffset returns the byte offset of leaf num within the arena's region,
// matching spec.md §4.2/§4.7: 16 + num*sizeof(Leaf).
func (a *LeafArena) LeafOffset(num uint64) uint64 {
	return HeaderSize + num*uint64(a.LeafByteSize())
}

// FetchNewLeaf atomically bumps the used counter and returns the freshly
// allocated leaf along with its leaf_num. Fails with ErrLeafArenaFull if the
// arena is exhausted.
func (a *LeafArena) FetchNewLeaf() (*leaf.Leaf, uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.used == a.capacity {
		return nil, 0, ErrLeafArenaFull
	}
	i := a.used
	a.used++
	return a.leaves[i], i, nil
}

// Get returns the leaf at index i. It is unchecked in hot paths per
// spec.md §4.2 — callers must ensure i < Used() (every leaf_num stored in a
// leaf table entry satisfies that invariant by construction).
func (a *LeafArena) Get(i uint64) *leaf.Leaf {
	return a.leaves[i]
}

// ReadLeafBytes encodes leaf num into its wire representation. This is the
// read path a remote-memory client would issue as a one-sided RDMA read of
// HeaderSize+num*LeafByteSize()..+LeafByteSize(); here it is exposed as a
// plain accessor so the RPC surface (C8) and the learned cache (C7) can
// fetch leaf bytes without reaching into arena internals.
func (a *LeafArena) ReadLeafBytes(num uint64) []byte {
	buf := make([]byte, a.LeafByteSize())
	a.Get(num).Encode(buf)
	return buf
}
