package plr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrain_SingleSegmentExactFit(t *testing.T) {
	keys := []uint64{10, 20, 30, 40}
	segs := Train(keys, 2)
	require.Len(t, segs, 1)
	assert.InDelta(t, 0.1, segs[0].Slope, 1e-9)
	assert.InDelta(t, -1, segs[0].Intercept, 1e-9)
	assert.Equal(t, 4, segs[0].Count)
}

func TestTrain_RespectsErrorBound(t *testing.T) {
	keys := []uint64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512}
	eps := 4.0
	segs := Train(keys, eps)

	pos := 0
	si := 0
	consumed := 0
	for i, k := range keys {
		if consumed == segs[si].Count {
			si++
			consumed = 0
			pos = i
		}
		got := segs[si].Predict(k)
		want := float64(i - pos)
		assert.LessOrEqual(t, math.Abs(got-want), eps+1e-9, "key %d segment %d", k, si)
		consumed++
	}
}

func TestTrain_SingleKey(t *testing.T) {
	segs := Train([]uint64{42}, 2)
	require.Len(t, segs, 1)
	assert.Equal(t, 1, segs[0].Count)
}

func TestTrain_EmptyInput(t *testing.T) {
	assert.Empty(t, Train(nil, 2))
}

func TestTrain_DuplicateKeysShareSegment(t *testing.T) {
	keys := []uint64{5, 5, 5, 10}
	segs := Train(keys, 2)
	require.NotEmpty(t, segs)
	total := 0
	for _, s := range segs {
		total += s.Count
	}
	assert.Equal(t, len(keys), total)
}
