// Package engine implements the Rolex Engine (spec C6): the orchestrator
// that trains the upper index from a key set, routes every operation to the
// right submodel, and serializes/restores the whole index for a compute
// node's Learned Cache (C7).
package engine

import (
	"fmt"
	"sort"

	"github.com/nmxmxh/rolex/internal/arena"
	"github.com/nmxmxh/rolex/internal/config"
	"github.com/nmxmxh/rolex/internal/leaf"
	"github.com/nmxmxh/rolex/internal/leaftable"
	"github.com/nmxmxh/rolex/internal/modelarena"
	"github.com/nmxmxh/rolex/internal/plr"
	"github.com/nmxmxh/rolex/internal/rlog"
	"github.com/nmxmxh/rolex/internal/submodel"
)

// Engine owns one leaf arena and the trained submodels that address it. A
// memory node holds the only writable Engine; a compute node's Learned
// Cache (internal/cache) mirrors the submodels from a model arena buffer
// and reads leaf bytes fetched remotely, without an Engine of its own.
type Engine struct {
	cfg    config.Config
	arena  *arena.LeafArena
	models []*submodel.Submodel
	log    *rlog.Logger
}

// New constructs an untrained engine with a fresh leaf arena sized per cfg.
func New(cfg config.Config) *Engine {
	return &Engine{
		cfg:   cfg,
		arena: arena.New(cfg.LeafArenaCapacity, cfg.LeafCapacity),
		log:   rlog.Default("engine"),
	}
}

// Arena exposes the backing leaf arena, e.g. for C8's remote leaf-byte
// reads or C7's cache priming.
func (e *Engine) Arena() *arena.LeafArena { return e.arena }

// Config returns the engine's dimensions.
func (e *Engine) Config() config.Config { return e.cfg }

// Train builds the upper index from a sorted, duplicate-free, equal-length
// (keys, vals) pair. Use BuildFromUnsorted if the input isn't already
// prepared this way.
func (e *Engine) Train(keys, vals []uint64) error {
	if len(keys) != len(vals) {
		return fmt.Errorf("%w: %d keys vs %d values", ErrTrainingInvariant, len(keys), len(vals))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i] <= keys[i-1] {
			return fmt.Errorf("%w: keys not strictly increasing at index %d", ErrTrainingInvariant, i)
		}
	}
	if len(keys) == 0 {
		e.models = nil
		return nil
	}

	segments := plr.Train(keys, e.cfg.Epsilon)
	models := make([]*submodel.Submodel, 0, len(segments))

	pos := 0
	for _, seg := range segments {
		segKeys := keys[pos : pos+seg.Count]
		segVals := vals[pos : pos+seg.Count]

		nSlots := (seg.Count + e.cfg.LeafCapacity - 1) / e.cfg.LeafCapacity
		if nSlots == 0 {
			nSlots = 1
		}
		table := leaftable.New(0, e.cfg.SynMax)
		for s := 0; s < nSlots; s++ {
			_, num, err := e.arena.FetchNewLeaf()
			if err != nil {
				return err
			}
			table.TrainAppend(num)

			lo := s * e.cfg.LeafCapacity
			hi := lo + e.cfg.LeafCapacity
			if hi > len(segKeys) {
				hi = len(segKeys)
			}
			l := e.arena.Get(num)
			for i := lo; i < hi; i++ {
				l.InsertNotFull(segKeys[i], segVals[i])
			}
		}

		models = append(models, submodel.New(segKeys[len(segKeys)-1], seg.Slope, seg.Intercept, uint64(seg.Count), e.cfg.Epsilon, e.cfg.LeafCapacity, table))
		pos += seg.Count
	}

	e.models = models
	return nil
}

// BuildFromUnsorted sorts and deduplicates (keys, vals) by key, keeping the
// first occurrence of each duplicate key, then calls Train.
func (e *Engine) BuildFromUnsorted(keys, vals []uint64) error {
	if len(keys) != len(vals) {
		return fmt.Errorf("%w: %d keys vs %d values", ErrTrainingInvariant, len(keys), len(vals))
	}
	type pair struct {
		k, v uint64
	}
	pairs := make([]pair, len(keys))
	for i := range keys {
		pairs[i] = pair{keys[i], vals[i]}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })

	sortedKeys := make([]uint64, 0, len(pairs))
	sortedVals := make([]uint64, 0, len(pairs))
	for i, p := range pairs {
		if i > 0 && p.k == pairs[i-1].k {
			continue
		}
		sortedKeys = append(sortedKeys, p.k)
		sortedVals = append(sortedVals, p.v)
	}
	return e.Train(sortedKeys, sortedVals)
}

// modelForKey returns the index of the submodel responsible for k: the
// first model whose LastKey is >= k (clamped to the last model for keys
// above the global maximum), matching spec.md's model_for_key.
func (e *Engine) modelForKey(k uint64) int {
	idx := sort.Search(len(e.models), func(i int) bool { return e.models[i].LastKey >= k })
	if idx == len(e.models) {
		idx = len(e.models) - 1
	}
	return idx
}

// Search looks up k.
func (e *Engine) Search(k uint64) (uint64, bool, error) {
	if len(e.models) == 0 {
		return 0, false, ErrEmptyEngine
	}
	v, ok := e.models[e.modelForKey(k)].Search(e.arena, k)
	return v, ok, nil
}

// Insert adds a new (k, v).
func (e *Engine) Insert(k, v uint64) error {
	if len(e.models) == 0 {
		return ErrEmptyEngine
	}
	return e.models[e.modelForKey(k)].Insert(e.arena, k, v)
}

// Update replaces the value for an existing key.
func (e *Engine) Update(k, v uint64) error {
	if len(e.models) == 0 {
		return ErrEmptyEngine
	}
	return e.models[e.modelForKey(k)].Update(e.arena, k, v)
}

// Remove deletes k.
func (e *Engine) Remove(k uint64) error {
	if len(e.models) == 0 {
		return ErrEmptyEngine
	}
	return e.models[e.modelForKey(k)].Remove(e.arena, k)
}

// Scan collects up to n pairs with key >= k, continuing into subsequent
// submodels if the starting one runs dry.
func (e *Engine) Scan(k uint64, n int) ([]leaf.KV, error) {
	if len(e.models) == 0 {
		return nil, ErrEmptyEngine
	}
	mi := e.modelForKey(k)
	out := e.models[mi].Range(e.arena, k, n)
	for mi++; len(out) < n && mi < len(e.models); mi++ {
		out = append(out, e.models[mi].Range(e.arena, 0, n-len(out))...)
	}
	return out, nil
}

// Serialize writes the full upper index (all submodels) into the spec.md
// §4.5 model arena wire format.
func (e *Engine) Serialize() ([]byte, error) {
	return modelarena.Encode(e.models)
}

// Deserialize replaces the engine's upper index with one decoded from buf.
// The leaf arena is untouched: the caller is responsible for making sure it
// (or a remote mirror reached through C8) holds the leaves these models'
// leaf tables reference.
func (e *Engine) Deserialize(buf []byte) error {
	models, err := modelarena.Decode(buf, modelarena.Params{
		LeafCap: e.cfg.LeafCapacity,
		SynMax:  e.cfg.SynMax,
		Epsilon: e.cfg.Epsilon,
	})
	if err != nil {
		return err
	}
	e.models = models
	return nil
}

// Stats summarizes the engine's current state for observability and
// retraining decisions.
type Stats struct {
	NumSubmodels         int
	LeafArenaUsed         uint64
	LeafArenaCapacity     uint64
	MaxSynonymChainDepth  int
	SynonymChainHistogram map[int]int
}

// Stats computes a snapshot of the engine's utilization.
func (e *Engine) Stats() Stats {
	hist := map[int]int{}
	maxDepth := 0
	for _, m := range e.models {
		for s := 0; s < m.Table.NumSlots(); s++ {
			depth := chainDepth(m.Table, s)
			hist[depth]++
			if depth > maxDepth {
				maxDepth = depth
			}
		}
	}
	return Stats{
		NumSubmodels:          len(e.models),
		LeafArenaUsed:         e.arena.Used(),
		LeafArenaCapacity:     e.arena.Capacity(),
		MaxSynonymChainDepth:  maxDepth,
		SynonymChainHistogram: hist,
	}
}

func chainDepth(t *leaftable.LeafTable, slot int) int {
	depth := 0
	head := t.Entry(slot).SynonymHead()
	for head != 0 {
		depth++
		head = t.SynonymEntry(int(head)).SynonymHead()
	}
	return depth
}

// degradedChainThreshold flags a slot as degraded once its overflow chain
// is more than half of SynMax deep — the split path is close enough to
// ErrSynonymExhausted that a retrain should be scheduled.
const degradedChainThreshold = 0.5

// Degraded reports whether any submodel is close enough to synonym
// exhaustion that a retraining pass should be triggered.
func (e *Engine) Degraded() bool {
	return len(e.DegradedSubmodels()) > 0
}

// DegradedSubmodels returns the indices of submodels whose deepest overflow
// chain exceeds degradedChainThreshold of SynMax.
func (e *Engine) DegradedSubmodels() []int {
	var out []int
	for i, m := range e.models {
		limit := int(float64(m.Table.SynMax()) * degradedChainThreshold)
		for s := 0; s < m.Table.NumSlots(); s++ {
			if chainDepth(m.Table, s) > limit {
				out = append(out, i)
				break
			}
		}
	}
	return out
}
