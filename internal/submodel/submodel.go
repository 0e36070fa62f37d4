// Package submodel implements one trained piece of the upper index (spec
// C4): a linear model over a contiguous key range, plus the leaf table (C3)
// that range's keys live in. A submodel turns a key into a narrow window of
// leaf-table slots, then lets the leaf table do the exact lookup/mutation.
package submodel

import (
	"github.com/nmxmxh/rolex/internal/arena"
	"github.com/nmxmxh/rolex/internal/leaf"
	"github.com/nmxmxh/rolex/internal/leaftable"
)

// Submodel is slope/intercept/capacity plus the leaf table they address.
// Capacity is measured in keys (the number of keys the training segment
// covered), not leaf-table slots — converting a key-position window into a
// slot window is window()'s job, dividing by LeafCap (N).
type Submodel struct {
	LastKey   uint64 // largest key this submodel is responsible for (model_for_key's routing key)
	Slope     float64
	Intercept float64
	Capacity  uint64
	Epsilon   float64
	LeafCap   int
	Table     *leaftable.LeafTable
}

// New builds a submodel from its trained linear parameters and an already
// populated leaf table. lastKey is the largest key assigned to this
// submodel's training segment, used as its upper-index routing key.
func New(lastKey uint64, slope, intercept float64, capacity uint64, eps float64, leafCap int, table *leaftable.LeafTable) *Submodel {
	return &Submodel{
		LastKey:   lastKey,
		Slope:     slope,
		Intercept: intercept,
		Capacity:  capacity,
		Epsilon:   eps,
		LeafCap:   leafCap,
		Table:     table,
	}
}

// Predict returns the raw (unclamped) key-position estimate for k.
func (s *Submodel) Predict(k uint64) float64 {
	return s.Slope*float64(k) + s.Intercept
}

// window computes the slot-index search window [lo, hi] for key k, per
// spec.md §4.4: clamp the model's eps-wide position window to
// [0, capacity-1] in key-position space, then convert to leaf-table slot
// indices by dividing by N (the leaf's key capacity), clamped to the
// table's slot range.
func (s *Submodel) window(k uint64) (int, int) {
	pos := s.Predict(k)
	size := float64(s.Capacity)

	lo := pos - s.Epsilon
	if pos <= s.Epsilon {
		lo = 0
	}
	hi := pos + s.Epsilon + 2
	if hi >= size {
		hi = size - 1
	}
	if lo > hi {
		lo = hi
	}

	n := float64(s.LeafCap)
	loSlot := int(lo / n)
	hiSlot := int(hi / n)
	if loSlot < 0 {
		loSlot = 0
	}
	maxSlot := s.Table.NumSlots() - 1
	if maxSlot < 0 {
		maxSlot = 0
	}
	if hiSlot > maxSlot {
		hiSlot = maxSlot
	}
	if loSlot > maxSlot {
		loSlot = maxSlot
	}
	if hiSlot < loSlot {
		hiSlot = loSlot
	}
	return loSlot, hiSlot
}

// Search looks up k. a may be a local leaf arena or a remote-backed source
// such as a compute node's Learned Cache (C7).
func (s *Submodel) Search(a arena.Source, k uint64) (uint64, bool) {
	lo, hi := s.window(k)
	return s.Table.Search(a, lo, hi, k)
}

// Update replaces the value for an existing key.
func (s *Submodel) Update(a arena.Source, k, v uint64) error {
	lo, hi := s.window(k)
	return s.Table.Update(a, lo, hi, k, v)
}

// Insert adds a new (k, v). Unlike the other operations this requires a
// writable leaf arena, since a full leaf may need to split into a freshly
// allocated one.
func (s *Submodel) Insert(a *arena.LeafArena, k, v uint64) error {
	lo, hi := s.window(k)
	return s.Table.Insert(a, lo, hi, k, v)
}

// Remove deletes k.
func (s *Submodel) Remove(a arena.Source, k uint64) error {
	lo, hi := s.window(k)
	return s.Table.Remove(a, lo, hi, k)
}

// Range collects up to n pairs with key >= k.
func (s *Submodel) Range(a arena.Source, k uint64, n int) []leaf.KV {
	lo, hi := s.window(k)
	return s.Table.Range(a, lo, hi, k, n)
}
