package submodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/rolex/internal/arena"
	"github.com/nmxmxh/rolex/internal/leaftable"
)

func buildFixture(t *testing.T, keys []uint64, leafCap int) (*arena.LeafArena, *Submodel) {
	t.Helper()
	a := arena.New(64, leafCap)
	tbl := leaftable.New(0, 0)

	nSlots := (len(keys) + leafCap - 1) / leafCap
	if nSlots == 0 {
		nSlots = 1
	}
	for i := 0; i < nSlots; i++ {
		_, num, err := a.FetchNewLeaf()
		require.NoError(t, err)
		tbl.TrainAppend(num)
	}

	// slope=0.1, intercept=-1 matches keys 10,20,...,40 (local position = (k-10)/10)
	sm := New(keys[len(keys)-1], 0.1, -1, uint64(len(keys)), 2, leafCap, tbl)
	for _, k := range keys {
		require.NoError(t, sm.Insert(a, k, k*100))
	}
	return a, sm
}

func TestSubmodel_SearchHitsAndMisses(t *testing.T) {
	keys := []uint64{10, 20, 30, 40}
	a, sm := buildFixture(t, keys, 4)

	for _, k := range keys {
		v, ok := sm.Search(a, k)
		require.True(t, ok, "key %d", k)
		assert.Equal(t, k*100, v)
	}

	_, ok := sm.Search(a, 25)
	assert.False(t, ok)
}

func TestSubmodel_UpdateRemove(t *testing.T) {
	keys := []uint64{10, 20, 30, 40}
	a, sm := buildFixture(t, keys, 4)

	require.NoError(t, sm.Update(a, 20, 999))
	v, _ := sm.Search(a, 20)
	assert.Equal(t, uint64(999), v)

	require.NoError(t, sm.Remove(a, 20))
	_, ok := sm.Search(a, 20)
	assert.False(t, ok)
}

func TestSubmodel_Range(t *testing.T) {
	keys := []uint64{10, 20, 30, 40}
	a, sm := buildFixture(t, keys, 4)

	out := sm.Range(a, 15, 2)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(20), out[0].Key)
	assert.Equal(t, uint64(30), out[1].Key)
}
