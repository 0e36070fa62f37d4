package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/rolex/internal/leaf"
)

func TestFetchNewLeaf(t *testing.T) {
	a := New(4, 8)
	assert.EqualValues(t, 0, a.Used())

	l0, n0, err := a.FetchNewLeaf()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n0)
	assert.True(t, l0.IsEmpty())

	_, n1, err := a.FetchNewLeaf()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n1)
	assert.EqualValues(t, 2, a.Used())
}

func TestFetchNewLeaf_ExhaustsCapacity(t *testing.T) {
	a := New(2, 8)
	_, _, err := a.FetchNewLeaf()
	require.NoError(t, err)
	_, _, err = a.FetchNewLeaf()
	require.NoError(t, err)

	_, _, err = a.FetchNewLeaf()
	assert.ErrorIs(t, err, ErrLeafArenaFull)
}

func TestLeafOffsetArithmetic(t *testing.T) {
	a := New(4, 8)
	assert.Equal(t, leaf.ByteSize(8), a.LeafByteSize())
	assert.EqualValues(t, HeaderSize, a.LeafOffset(0))
	assert.EqualValues(t, uint64(HeaderSize+a.LeafByteSize()), a.LeafOffset(1))
}

func TestReadLeafBytesRoundTrips(t *testing.T) {
	a := New(2, 4)
	l, num, err := a.FetchNewLeaf()
	require.NoError(t, err)
	l.InsertNotFull(10, 100)

	buf := a.ReadLeafBytes(num)
	decoded := leaf.Decode(buf, 4)
	assert.Equal(t, l.Keys, decoded.Keys)
	assert.Equal(t, l.Vals, decoded.Vals)
}
