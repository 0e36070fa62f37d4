package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/rolex/internal/config"
	"github.com/nmxmxh/rolex/internal/engine"
	"github.com/nmxmxh/rolex/internal/leaftable"
	"github.com/nmxmxh/rolex/internal/modelarena"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.New(config.WithLeafCapacity(4), config.WithEpsilon(2), config.WithLeafArenaCapacity(256))
	e := engine.New(cfg)
	require.NoError(t, e.Train([]uint64{10, 20, 30, 40}, []uint64{100, 200, 300, 400}))
	return NewServer(e)
}

func TestHandle_Get(t *testing.T) {
	s := newTestServer(t)
	resp := s.handle(EncodeRequest(Request{ID: []byte("a"), Op: OpGet, Key: 20}))
	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, uint64(200), resp.Value)

	resp = s.handle(EncodeRequest(Request{ID: []byte("b"), Op: OpGet, Key: 25}))
	assert.Equal(t, StatusNotFound, resp.Status)
}

func TestHandle_PutUpdateDelete(t *testing.T) {
	s := newTestServer(t)

	resp := s.handle(EncodeRequest(Request{ID: []byte("a"), Op: OpPut, Key: 15, Value: 1500}))
	assert.Equal(t, StatusOK, resp.Status)

	resp = s.handle(EncodeRequest(Request{ID: []byte("b"), Op: OpPut, Key: 15, Value: 9999}))
	assert.Equal(t, StatusDuplicate, resp.Status)

	resp = s.handle(EncodeRequest(Request{ID: []byte("c"), Op: OpUpdate, Key: 15, Value: 1501}))
	assert.Equal(t, StatusOK, resp.Status)

	resp = s.handle(EncodeRequest(Request{ID: []byte("d"), Op: OpGet, Key: 15}))
	assert.Equal(t, uint64(1501), resp.Value)

	resp = s.handle(EncodeRequest(Request{ID: []byte("e"), Op: OpDelete, Key: 15}))
	assert.Equal(t, StatusOK, resp.Status)

	resp = s.handle(EncodeRequest(Request{ID: []byte("f"), Op: OpDelete, Key: 15}))
	assert.Equal(t, StatusNotFound, resp.Status)
}

func TestHandle_Scan(t *testing.T) {
	s := newTestServer(t)
	resp := s.handle(EncodeRequest(Request{ID: []byte("a"), Op: OpScan, Key: 15, Count: 2}))
	require.Equal(t, StatusOK, resp.Status)
	require.Len(t, resp.Pairs, 2)
	assert.Equal(t, uint64(20), resp.Pairs[0].Key)
	assert.Equal(t, uint64(30), resp.Pairs[1].Key)
}

func TestHandle_FetchLeaf(t *testing.T) {
	s := newTestServer(t)
	resp := s.handle(EncodeRequest(Request{ID: []byte("a"), Op: OpFetchLeaf, Key: 0}))
	require.Equal(t, StatusOK, resp.Status)
	assert.NotEmpty(t, resp.Bytes)

	resp = s.handle(EncodeRequest(Request{ID: []byte("b"), Op: OpFetchLeaf, Key: 999}))
	assert.Equal(t, StatusNotFound, resp.Status)
}

func TestHandle_FetchModelArena(t *testing.T) {
	s := newTestServer(t)
	resp := s.handle(EncodeRequest(Request{ID: []byte("a"), Op: OpFetchModelArena}))
	require.Equal(t, StatusOK, resp.Status)
	require.NotEmpty(t, resp.Bytes)

	models, err := modelarena.Decode(resp.Bytes, modelarena.Params{LeafCap: 4, SynMax: leaftable.DefaultSynMax, Epsilon: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, models)
}

func TestHandle_MalformedRequest(t *testing.T) {
	s := newTestServer(t)
	resp := s.handle([]byte{0xFF, 0xFF, 0xFF})
	assert.Equal(t, StatusError, resp.Status)
}
