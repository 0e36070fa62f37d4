// Package rpc implements the wire surface between a compute node and the
// memory node (spec C8): five key-value operations (GET, PUT, UPDATE,
// DELETE, SCAN) plus two bulk fetches (FETCH_LEAF, FETCH_MODEL_ARENA; see
// Op), framed as protobuf-wire-encoded envelopes over a websocket connection.
//
// There is no .proto schema here: envelopes are small and fixed-shape
// enough that hand-framing them with protowire (the same primitives
// protoc-gen-go would emit) avoids a codegen step while still using the
// real wire format, so either side could describe these messages in a
// .proto file later without changing a byte on the wire.
package rpc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Op identifies which operation an envelope carries. The first five are
// spec.md's RPC surface; OpFetchLeaf is SPEC_FULL.md's addition letting a
// compute node's Learned Cache (C7) pull one leaf's raw bytes directly,
// instead of round-tripping a full GET through the memory node's engine.
// OpFetchModelArena lets a compute node bootstrap (or refresh) its Cache by
// pulling the memory node's serialized upper index (spec §4.5) over the
// same connection it already uses for everything else.
type Op int32

const (
	OpGet Op = iota
	OpPut
	OpUpdate
	OpDelete
	OpScan
	OpFetchLeaf
	OpFetchModelArena
)

// Status is the outcome of a request, carried on the response envelope.
type Status int32

const (
	StatusOK Status = iota
	StatusNotFound
	StatusDuplicate
	StatusError
)

const (
	fieldID    = 1
	fieldOp    = 2
	fieldKey   = 3
	fieldValue = 4
	fieldCount = 5

	fieldRespID     = 1
	fieldRespStatus = 2
	fieldRespValue  = 3
	fieldRespPairs  = 4
	fieldRespBytes  = 5
)

// Request is one client-issued operation.
type Request struct {
	ID    []byte // correlation id, typically a uuid.UUID's 16 bytes
	Op    Op
	Key   uint64
	Value uint64 // meaningful for Put/Update
	Count uint64 // meaningful for Scan (n)
}

// EncodeRequest frames req as a protobuf-wire byte string.
func EncodeRequest(req Request) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldID, protowire.BytesType)
	buf = protowire.AppendBytes(buf, req.ID)
	buf = protowire.AppendTag(buf, fieldOp, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(req.Op))
	buf = protowire.AppendTag(buf, fieldKey, protowire.VarintType)
	buf = protowire.AppendVarint(buf, req.Key)
	if req.Op == OpPut || req.Op == OpUpdate {
		buf = protowire.AppendTag(buf, fieldValue, protowire.VarintType)
		buf = protowire.AppendVarint(buf, req.Value)
	}
	if req.Op == OpScan {
		buf = protowire.AppendTag(buf, fieldCount, protowire.VarintType)
		buf = protowire.AppendVarint(buf, req.Count)
	}
	return buf
}

// DecodeRequest parses a byte string produced by EncodeRequest.
func DecodeRequest(buf []byte) (Request, error) {
	var req Request
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return req, fmt.Errorf("rpc: malformed request tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case fieldID:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return req, fmt.Errorf("rpc: malformed request id: %w", protowire.ParseError(n))
			}
			req.ID = append([]byte(nil), v...)
			buf = buf[n:]
		case fieldOp:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return req, fmt.Errorf("rpc: malformed request op: %w", protowire.ParseError(n))
			}
			req.Op = Op(v)
			buf = buf[n:]
		case fieldKey:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return req, fmt.Errorf("rpc: malformed request key: %w", protowire.ParseError(n))
			}
			req.Key = v
			buf = buf[n:]
		case fieldValue:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return req, fmt.Errorf("rpc: malformed request value: %w", protowire.ParseError(n))
			}
			req.Value = v
			buf = buf[n:]
		case fieldCount:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return req, fmt.Errorf("rpc: malformed request count: %w", protowire.ParseError(n))
			}
			req.Count = v
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return req, fmt.Errorf("rpc: malformed request field %d: %w", num, protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return req, nil
}

// Pair is one (key, value) result row, used by Scan responses.
type Pair struct {
	Key uint64
	Val uint64
}

// Response is the memory node's reply to one Request.
type Response struct {
	ID     []byte
	Status Status
	Value  uint64 // meaningful for Get hits
	Pairs  []Pair // meaningful for Scan
	Bytes  []byte // meaningful for FetchLeaf (the leaf's raw wire encoding) and FetchModelArena (the serialized model arena)
}

// EncodeResponse frames resp as a protobuf-wire byte string. Per
// SPEC_FULL.md's concretized SCAN reply, each pair is carried as an 8-byte
// key followed by an 8-byte value inside one length-delimited field 4 entry.
func EncodeResponse(resp Response) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldRespID, protowire.BytesType)
	buf = protowire.AppendBytes(buf, resp.ID)
	buf = protowire.AppendTag(buf, fieldRespStatus, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(resp.Status))
	buf = protowire.AppendTag(buf, fieldRespValue, protowire.VarintType)
	buf = protowire.AppendVarint(buf, resp.Value)
	for _, p := range resp.Pairs {
		buf = protowire.AppendTag(buf, fieldRespPairs, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodePair(p))
	}
	if resp.Bytes != nil {
		buf = protowire.AppendTag(buf, fieldRespBytes, protowire.BytesType)
		buf = protowire.AppendBytes(buf, resp.Bytes)
	}
	return buf
}

func encodePair(p Pair) []byte {
	var b []byte
	b = protowire.AppendFixed64(b, p.Key)
	b = protowire.AppendFixed64(b, p.Val)
	return b
}

func decodePair(b []byte) (Pair, error) {
	if len(b) != 16 {
		return Pair{}, fmt.Errorf("rpc: malformed pair: want 16 bytes, got %d", len(b))
	}
	key, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return Pair{}, fmt.Errorf("rpc: malformed pair key: %w", protowire.ParseError(n))
	}
	val, n := protowire.ConsumeFixed64(b[n:])
	if n < 0 {
		return Pair{}, fmt.Errorf("rpc: malformed pair value: %w", protowire.ParseError(n))
	}
	return Pair{Key: key, Val: val}, nil
}

// DecodeResponse parses a byte string produced by EncodeResponse.
func DecodeResponse(buf []byte) (Response, error) {
	var resp Response
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return resp, fmt.Errorf("rpc: malformed response tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case fieldRespID:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return resp, fmt.Errorf("rpc: malformed response id: %w", protowire.ParseError(n))
			}
			resp.ID = append([]byte(nil), v...)
			buf = buf[n:]
		case fieldRespStatus:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return resp, fmt.Errorf("rpc: malformed response status: %w", protowire.ParseError(n))
			}
			resp.Status = Status(v)
			buf = buf[n:]
		case fieldRespValue:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return resp, fmt.Errorf("rpc: malformed response value: %w", protowire.ParseError(n))
			}
			resp.Value = v
			buf = buf[n:]
		case fieldRespPairs:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return resp, fmt.Errorf("rpc: malformed response pair: %w", protowire.ParseError(n))
			}
			pair, err := decodePair(v)
			if err != nil {
				return resp, err
			}
			resp.Pairs = append(resp.Pairs, pair)
			buf = buf[n:]
		case fieldRespBytes:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return resp, fmt.Errorf("rpc: malformed response bytes: %w", protowire.ParseError(n))
			}
			resp.Bytes = append([]byte(nil), v...)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return resp, fmt.Errorf("rpc: malformed response field %d: %w", num, protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return resp, nil
}
