package modelarena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/rolex/internal/arena"
	"github.com/nmxmxh/rolex/internal/leaftable"
	"github.com/nmxmxh/rolex/internal/submodel"
)

func buildSubmodel(t *testing.T, a *arena.LeafArena, keys []uint64, leafCap int) *submodel.Submodel {
	t.Helper()
	tbl := leaftable.New(0, 4)
	nSlots := (len(keys) + leafCap - 1) / leafCap
	for i := 0; i < nSlots; i++ {
		_, num, err := a.FetchNewLeaf()
		require.NoError(t, err)
		tbl.TrainAppend(num)
	}
	sm := submodel.New(keys[len(keys)-1], 0.1, -1, uint64(len(keys)), 2, leafCap, tbl)
	for _, k := range keys {
		require.NoError(t, sm.Insert(a, k, k*10))
	}
	return sm
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	a := arena.New(64, 4)
	m1 := buildSubmodel(t, a, []uint64{10, 20, 30, 40}, 4)
	m2 := buildSubmodel(t, a, []uint64{110, 120, 130}, 4)

	buf, err := Encode([]*submodel.Submodel{m1, m2})
	require.NoError(t, err)
	assert.True(t, len(buf) >= UpperReserved)

	decoded, err := Decode(buf, Params{LeafCap: 4, SynMax: 4, Epsilon: 2})
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	assert.Equal(t, m1.LastKey, decoded[0].LastKey)
	assert.InDelta(t, m1.Slope, decoded[0].Slope, 1e-12)
	assert.InDelta(t, m1.Intercept, decoded[0].Intercept, 1e-12)
	assert.Equal(t, m1.Capacity, decoded[0].Capacity)

	for _, k := range []uint64{10, 20, 30, 40} {
		v, ok := decoded[0].Search(a, k)
		require.True(t, ok, "key %d", k)
		assert.Equal(t, k*10, v)
	}
	for _, k := range []uint64{110, 120, 130} {
		v, ok := decoded[1].Search(a, k)
		require.True(t, ok, "key %d", k)
		assert.Equal(t, k*10, v)
	}
}

func TestDecode_RejectsShortBuffer(t *testing.T) {
	_, err := Decode(make([]byte, 10), Params{LeafCap: 4, SynMax: 4})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestEncode_RejectsTooManyModels(t *testing.T) {
	models := make([]*submodel.Submodel, maxModels+1)
	_, err := Encode(models)
	assert.ErrorIs(t, err, ErrTooManyModels)
}
