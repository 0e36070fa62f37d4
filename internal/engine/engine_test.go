package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/rolex/internal/config"
	"github.com/nmxmxh/rolex/internal/leaftable"
)

func newTestEngine(t *testing.T, leafCap int, eps float64) *Engine {
	t.Helper()
	cfg := config.New(
		config.WithLeafCapacity(leafCap),
		config.WithEpsilon(eps),
		config.WithLeafArenaCapacity(1024),
	)
	return New(cfg)
}

func TestTrain_RejectsMismatchedLengths(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	err := e.Train([]uint64{1, 2}, []uint64{1})
	assert.ErrorIs(t, err, ErrTrainingInvariant)
}

func TestTrain_RejectsUnsortedKeys(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	err := e.Train([]uint64{2, 1}, []uint64{1, 1})
	assert.ErrorIs(t, err, ErrTrainingInvariant)
}

func TestSearch_BeforeTrain(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	_, _, err := e.Search(1)
	assert.ErrorIs(t, err, ErrEmptyEngine)
}

func TestEndToEnd_SearchInsertUpdateRemoveScan(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	keys := []uint64{10, 20, 30, 40, 50, 60, 70, 80}
	vals := make([]uint64, len(keys))
	for i, k := range keys {
		vals[i] = k * 100
	}
	require.NoError(t, e.Train(keys, vals))

	for i, k := range keys {
		v, ok, err := e.Search(k)
		require.NoError(t, err)
		require.True(t, ok, "key %d", k)
		assert.Equal(t, vals[i], v)
	}

	_, ok, err := e.Search(15)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, e.Insert(15, 1500))
	v, ok, err := e.Search(15)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1500), v)

	assert.ErrorIs(t, e.Insert(15, 9999), leaftable.ErrDuplicate)

	require.NoError(t, e.Update(15, 1501))
	v, _, _ = e.Search(15)
	assert.Equal(t, uint64(1501), v)

	require.NoError(t, e.Remove(15))
	_, ok, _ = e.Search(15)
	assert.False(t, ok)

	out, err := e.Scan(25, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []uint64{30, 40, 50}, []uint64{out[0].Key, out[1].Key, out[2].Key})
}

func TestBuildFromUnsorted(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	keys := []uint64{40, 10, 30, 20, 10}
	vals := []uint64{4, 1, 3, 2, 999}
	require.NoError(t, e.BuildFromUnsorted(keys, vals))

	v, ok, err := e.Search(10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	keys := []uint64{10, 20, 30, 40, 110, 120, 130}
	vals := make([]uint64, len(keys))
	for i, k := range keys {
		vals[i] = k
	}
	require.NoError(t, e.Train(keys, vals))

	buf, err := e.Serialize()
	require.NoError(t, err)

	e2 := newTestEngine(t, 4, 2)
	e2.arena = e.arena // a compute node mirrors the same leaf bytes
	require.NoError(t, e2.Deserialize(buf))

	for _, k := range keys {
		v, ok, err := e2.Search(k)
		require.NoError(t, err)
		require.True(t, ok, "key %d", k)
		assert.Equal(t, k, v)
	}
}

func TestModelForKey_RoutesGapKeyToNextSubmodel(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	keys := []uint64{10, 20, 30, 40, 110, 120, 130}
	vals := make([]uint64, len(keys))
	for i, k := range keys {
		vals[i] = k
	}
	require.NoError(t, e.Train(keys, vals))
	require.Len(t, e.models, 2, "training must split at the 41-109 gap for this case to be meaningful")

	// 70 falls in the gap between the two submodels' trained ranges. Per
	// spec.md's model_for_key (first model whose routing key is >= k), it
	// must route to submodel 1 (LastKey=130), not submodel 0 (LastKey=40).
	assert.Equal(t, 1, e.modelForKey(70))

	require.NoError(t, e.Insert(70, 700))
	v, ok, err := e.Search(70)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(700), v)
}

func TestStatsAndDegraded(t *testing.T) {
	e := newTestEngine(t, 2, 2)
	var keys, vals []uint64
	for i := uint64(1); i <= 40; i++ {
		keys = append(keys, i*10)
		vals = append(vals, i)
	}
	require.NoError(t, e.Train(keys, vals))

	stats := e.Stats()
	assert.Greater(t, stats.NumSubmodels, 0)
	assert.Greater(t, stats.LeafArenaUsed, uint64(0))

	_ = e.Degraded()
	_ = e.DegradedSubmodels()
}
