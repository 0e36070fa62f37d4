package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	req := Request{ID: []byte("0123456789abcdef"), Op: OpPut, Key: 42, Value: 99}
	buf := EncodeRequest(req)
	got, err := DecodeRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestRequestRoundTrip_Scan(t *testing.T) {
	req := Request{ID: []byte("id"), Op: OpScan, Key: 10, Count: 5}
	buf := EncodeRequest(req)
	got, err := DecodeRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestResponseRoundTrip_WithPairs(t *testing.T) {
	resp := Response{
		ID:     []byte("id"),
		Status: StatusOK,
		Pairs: []Pair{
			{Key: 1, Val: 10},
			{Key: 2, Val: 20},
		},
	}
	buf := EncodeResponse(resp)
	got, err := DecodeResponse(buf)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestResponseRoundTrip_NotFound(t *testing.T) {
	resp := Response{ID: []byte("id"), Status: StatusNotFound}
	buf := EncodeResponse(resp)
	got, err := DecodeResponse(buf)
	require.NoError(t, err)
	assert.Equal(t, resp.Status, got.Status)
	assert.Equal(t, resp.ID, got.ID)
}

func TestDecodeRequest_RejectsGarbage(t *testing.T) {
	_, err := DecodeRequest([]byte{0xFF, 0xFF, 0xFF})
	assert.Error(t, err)
}
