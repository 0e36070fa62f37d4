// Package cache implements the compute node's Learned Cache (spec C7): a
// local mirror of the memory node's trained upper index (submodels + leaf
// tables), backed by leaves fetched on demand over RPC and memoized so a
// repeated lookup doesn't cross the network twice.
package cache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nmxmxh/rolex/internal/leaf"
	"github.com/nmxmxh/rolex/internal/modelarena"
	"github.com/nmxmxh/rolex/internal/rlog"
	"github.com/nmxmxh/rolex/internal/rpc"
	"github.com/nmxmxh/rolex/internal/submodel"
)

// RemoteSource implements arena.Source by fetching leaf bytes from a memory
// node over RPC the first time they're needed, then serving repeat reads
// from a local map. Per the arena package's contract, Get is unchecked: a
// network failure here is treated as fatal (it would be a DecodeError-class
// condition on the memory node side too), since the interface gives Get no
// way to report an error to its caller.
type RemoteSource struct {
	client  *rpc.Client
	leafCap int
	log     *rlog.Logger

	mu     sync.RWMutex
	leaves map[uint64]*leaf.Leaf
}

// NewRemoteSource wraps client as a leaf source for submodels whose leaves
// have capacity leafCap.
func NewRemoteSource(client *rpc.Client, leafCap int) *RemoteSource {
	return &RemoteSource{
		client:  client,
		leafCap: leafCap,
		log:     rlog.Default("learned-cache"),
		leaves:  make(map[uint64]*leaf.Leaf),
	}
}

// Get resolves leaf_num i, fetching it over RPC on first access.
func (r *RemoteSource) Get(i uint64) *leaf.Leaf {
	r.mu.RLock()
	l, ok := r.leaves[i]
	r.mu.RUnlock()
	if ok {
		return l
	}

	buf, err := r.client.FetchLeaf(i)
	if err != nil {
		r.log.Fatal("remote leaf fetch failed", rlog.Uint64("leaf_num", i), rlog.Err(err))
	}
	l = leaf.Decode(buf, r.leafCap)

	r.mu.Lock()
	r.leaves[i] = l
	r.mu.Unlock()
	return l
}

// Invalidate drops i from the local mirror, forcing the next Get to refetch
// it.
func (r *RemoteSource) Invalidate(i uint64) {
	r.mu.Lock()
	delete(r.leaves, i)
	r.mu.Unlock()
}

// InvalidateAll drops every cached leaf.
func (r *RemoteSource) InvalidateAll() {
	r.mu.Lock()
	r.leaves = make(map[uint64]*leaf.Leaf)
	r.mu.Unlock()
}

// Cache is a compute node's read-only mirror of the upper index. Writes
// never happen locally; a compute node issues PUT/UPDATE/DELETE over RPC
// and lets Refresh pull the resulting model arena once the memory node
// retrains.
type Cache struct {
	remote *RemoteSource
	mu     sync.RWMutex
	models []*submodel.Submodel
}

// Load builds a Cache from a model arena buffer (as produced by
// engine.Engine.Serialize) and an RPC client used to fetch leaf bytes
// lazily.
func Load(client *rpc.Client, buf []byte, p modelarena.Params) (*Cache, error) {
	models, err := modelarena.Decode(buf, p)
	if err != nil {
		return nil, fmt.Errorf("cache: decode model arena: %w", err)
	}
	return &Cache{
		remote: NewRemoteSource(client, p.LeafCap),
		models: models,
	}, nil
}

// Refresh replaces the mirrored submodels with a freshly fetched model
// arena buffer and drops every memoized leaf, since a retrain may have
// moved keys between leaves.
func (c *Cache) Refresh(buf []byte, p modelarena.Params) error {
	models, err := modelarena.Decode(buf, p)
	if err != nil {
		return fmt.Errorf("cache: decode model arena: %w", err)
	}
	c.mu.Lock()
	c.models = models
	c.mu.Unlock()
	c.remote.InvalidateAll()
	return nil
}

// modelForKey mirrors engine.Engine.modelForKey: the first submodel whose
// LastKey is >= k, clamped to the last submodel for keys above the global
// maximum.
func (c *Cache) modelForKey(k uint64) int {
	idx := sort.Search(len(c.models), func(i int) bool { return c.models[i].LastKey >= k })
	if idx == len(c.models) {
		idx = len(c.models) - 1
	}
	return idx
}

// Search resolves k entirely locally: the upper index routes to a
// submodel, which predicts a slot window, which is searched against leaves
// fetched (and memoized) through RemoteSource.
func (c *Cache) Search(k uint64) (uint64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.models) == 0 {
		return 0, false, ErrNotLoaded
	}
	v, ok := c.models[c.modelForKey(k)].Search(c.remote, k)
	return v, ok, nil
}

// Scan collects up to n pairs with key >= k, same continuation logic as
// engine.Engine.Scan.
func (c *Cache) Scan(k uint64, n int) []leaf.KV {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.models) == 0 {
		return nil
	}
	mi := c.modelForKey(k)
	out := c.models[mi].Range(c.remote, k, n)
	for mi++; len(out) < n && mi < len(c.models); mi++ {
		out = append(out, c.models[mi].Range(c.remote, 0, n-len(out))...)
	}
	return out
}
