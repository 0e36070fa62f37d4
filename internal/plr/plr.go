// Package plr builds piecewise-linear approximations of a sorted key set
// (spec C4): for each segment it returns a slope/intercept pair such that,
// for every key in the segment, |slope*key+intercept - localPosition| <=
// epsilon, where localPosition is the key's 0-based offset within its own
// segment (position counters reset at each segment boundary — a submodel
// only ever predicts into its own leaf table, never a global array index).
//
// This is the greedy "shrinking cone" algorithm for piecewise-linear
// approximation under an L-infinity error bound (as used by FITing-Tree):
// each new point either narrows the feasible slope interval for the current
// segment, or — if it would leave the interval empty — starts a new
// segment. It is not the optimal (convex-hull) construction, so it may emit
// more segments than strictly necessary.
package plr

import "math"

// Segment is one piece of the trained piecewise-linear model.
type Segment struct {
	Slope     float64
	Intercept float64
	// Count is the number of keys covered by this segment.
	Count int
}

// Predict returns the segment's raw (unclamped) position estimate for key.
func (s Segment) Predict(key uint64) float64 {
	return s.Slope*float64(key) + s.Intercept
}

// Train partitions keys (assumed sorted ascending, duplicate-free) into
// segments such that every key's predicted local position is within eps-1
// (and so within eps) of its true local position. Each segment is grown
// greedily from its first key, whose predicted position is fixed at 0; the
// resulting segment count is not guaranteed to be the minimum possible.
func Train(keys []uint64, eps float64) []Segment {
	var segs []Segment
	i := 0
	for i < len(keys) {
		seg, consumed := fitSegment(keys, i, eps)
		segs = append(segs, seg)
		i += consumed
	}
	return segs
}

func fitSegment(keys []uint64, start int, eps float64) (Segment, int) {
	x0 := float64(keys[start])

	if start+1 == len(keys) {
		return Segment{Slope: 0, Intercept: 0, Count: 1}, 1
	}

	slopeMin := math.Inf(-1)
	slopeMax := math.Inf(1)
	count := 1

	for k := start + 1; k < len(keys); k++ {
		xi := float64(keys[k])
		if xi == x0 {
			count++
			continue
		}
		yi := float64(count)
		lo := (yi - (eps - 1)) / (xi - x0)
		hi := (yi + (eps - 1)) / (xi - x0)
		if lo > slopeMax || hi < slopeMin {
			break
		}
		if lo > slopeMin {
			slopeMin = lo
		}
		if hi < slopeMax {
			slopeMax = hi
		}
		count++
	}

	slope := midSlope(slopeMin, slopeMax)
	intercept := 0 - slope*x0
	return Segment{Slope: slope, Intercept: intercept, Count: count}, count
}

func midSlope(lo, hi float64) float64 {
	switch {
	case math.IsInf(lo, -1) && math.IsInf(hi, 1):
		return 0
	case math.IsInf(lo, -1):
		return hi
	case math.IsInf(hi, 1):
		return lo
	default:
		return (lo + hi) / 2
	}
}
