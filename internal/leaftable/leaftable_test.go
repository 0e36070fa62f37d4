package leaftable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/rolex/internal/arena"
)

func newFixture(t *testing.T, nSlots, leafCap int) (*arena.LeafArena, *LeafTable) {
	t.Helper()
	a := arena.New(uint64(nSlots+32), leafCap)
	tbl := New(0, 32)
	for i := 0; i < nSlots; i++ {
		_, num, err := a.FetchNewLeaf()
		require.NoError(t, err)
		tbl.TrainAppend(num)
	}
	return a, tbl
}

func TestInsertSearchUpdateRemove(t *testing.T) {
	a, tbl := newFixture(t, 2, 4)

	require.NoError(t, tbl.Insert(a, 0, 1, 10, 100))
	require.NoError(t, tbl.Insert(a, 0, 1, 20, 200))

	v, ok := tbl.Search(a, 0, 1, 10)
	require.True(t, ok)
	assert.Equal(t, uint64(100), v)

	assert.ErrorIs(t, tbl.Insert(a, 0, 1, 10, 999), ErrDuplicate)

	require.NoError(t, tbl.Update(a, 0, 1, 20, 222))
	v, _ = tbl.Search(a, 0, 1, 20)
	assert.Equal(t, uint64(222), v)

	assert.ErrorIs(t, tbl.Update(a, 0, 1, 999, 1), ErrNotFound)

	require.NoError(t, tbl.Remove(a, 0, 1, 10))
	_, ok = tbl.Search(a, 0, 1, 10)
	assert.False(t, ok)
	assert.ErrorIs(t, tbl.Remove(a, 0, 1, 10), ErrNotFound)
}

func TestInsertTriggersSplit(t *testing.T) {
	a, tbl := newFixture(t, 1, 4)

	keys := []uint64{10, 20, 30, 40, 50, 60}
	for _, k := range keys {
		require.NoError(t, tbl.Insert(a, 0, 0, k, k*10))
	}

	for _, k := range keys {
		v, ok := tbl.Search(a, 0, 0, k)
		require.True(t, ok, "key %d", k)
		assert.Equal(t, k*10, v)
	}

	assert.NotEqual(t, uint8(0), tbl.Entry(0).SynonymHead())
}

func TestInsertMultipleSplitsChainCorrectly(t *testing.T) {
	a, tbl := newFixture(t, 1, 2)

	var keys []uint64
	for k := uint64(1); k <= 20; k++ {
		keys = append(keys, k*10)
	}
	for _, k := range keys {
		require.NoError(t, tbl.Insert(a, 0, 0, k, k))
	}
	for _, k := range keys {
		v, ok := tbl.Search(a, 0, 0, k)
		require.True(t, ok, "key %d", k)
		assert.Equal(t, k, v)
	}
}

func TestSynonymExhaustion(t *testing.T) {
	a := arena.New(256, 2)
	tbl := New(0, 1) // synMax=1 leaves zero usable synonym slots beyond the reserved counter
	_, num, err := a.FetchNewLeaf()
	require.NoError(t, err)
	tbl.TrainAppend(num)

	require.NoError(t, tbl.Insert(a, 0, 0, 10, 1))
	require.NoError(t, tbl.Insert(a, 0, 0, 20, 2))
	err = tbl.Insert(a, 0, 0, 30, 3)
	assert.ErrorIs(t, err, ErrSynonymExhausted)
}

func TestRangeAcrossSlots(t *testing.T) {
	a, tbl := newFixture(t, 2, 4)
	for _, k := range []uint64{10, 20, 30, 40} {
		require.NoError(t, tbl.Insert(a, 0, 1, k, k))
	}
	for _, k := range []uint64{50, 60} {
		require.NoError(t, tbl.Insert(a, 1, 1, k, k))
	}

	out := tbl.Range(a, 0, 1, 25, 10)
	var gotKeys []uint64
	for _, kv := range out {
		gotKeys = append(gotKeys, kv.Key)
	}
	assert.Equal(t, []uint64{30, 40, 50, 60}, gotKeys)
}
