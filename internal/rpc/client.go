package rpc

import (
	"fmt"

	"github.com/gorilla/websocket"
)

// Client is a thin synchronous wrapper around one websocket connection to a
// memory node. It is not safe for concurrent use by multiple goroutines;
// callers needing concurrency should pool connections.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to a memory node's RPC endpoint, e.g.
// "ws://10.0.0.1:9000/rolex".
func Dial(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) roundTrip(req Request) (Response, error) {
	req.ID = NewRequestID()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, EncodeRequest(req)); err != nil {
		return Response{}, fmt.Errorf("rpc: write: %w", err)
	}
	typ, msg, err := c.conn.ReadMessage()
	if err != nil {
		return Response{}, fmt.Errorf("rpc: read: %w", err)
	}
	if typ != websocket.BinaryMessage {
		return Response{}, fmt.Errorf("rpc: unexpected message type %d", typ)
	}
	return DecodeResponse(msg)
}

// Get fetches the value for key.
func (c *Client) Get(key uint64) (uint64, bool, error) {
	resp, err := c.roundTrip(Request{Op: OpGet, Key: key})
	if err != nil {
		return 0, false, err
	}
	switch resp.Status {
	case StatusOK:
		return resp.Value, true, nil
	case StatusNotFound:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("rpc: get failed with status %d", resp.Status)
	}
}

// Put inserts a new (key, value).
func (c *Client) Put(key, value uint64) error {
	resp, err := c.roundTrip(Request{Op: OpPut, Key: key, Value: value})
	if err != nil {
		return err
	}
	return statusErr(resp.Status)
}

// Update replaces the value for an existing key.
func (c *Client) Update(key, value uint64) error {
	resp, err := c.roundTrip(Request{Op: OpUpdate, Key: key, Value: value})
	if err != nil {
		return err
	}
	return statusErr(resp.Status)
}

// Delete removes a key.
func (c *Client) Delete(key uint64) error {
	resp, err := c.roundTrip(Request{Op: OpDelete, Key: key})
	if err != nil {
		return err
	}
	return statusErr(resp.Status)
}

// Scan fetches up to n pairs with key >= key.
func (c *Client) Scan(key uint64, n int) ([]Pair, error) {
	resp, err := c.roundTrip(Request{Op: OpScan, Key: key, Count: uint64(n)})
	if err != nil {
		return nil, err
	}
	if resp.Status != StatusOK {
		return nil, fmt.Errorf("rpc: scan failed with status %d", resp.Status)
	}
	return resp.Pairs, nil
}

// FetchLeaf pulls one leaf's raw wire bytes directly, bypassing the
// engine's key-routing logic. Used by a compute node's Learned Cache (C7)
// once it has already computed which leaf_num a key maps to.
func (c *Client) FetchLeaf(leafNum uint64) ([]byte, error) {
	resp, err := c.roundTrip(Request{Op: OpFetchLeaf, Key: leafNum})
	if err != nil {
		return nil, err
	}
	if resp.Status != StatusOK {
		return nil, fmt.Errorf("rpc: fetch leaf %d failed with status %d", leafNum, resp.Status)
	}
	return resp.Bytes, nil
}

// FetchModelArena pulls the memory node's current serialized upper index,
// for a compute node's Cache to Load or Refresh from.
func (c *Client) FetchModelArena() ([]byte, error) {
	resp, err := c.roundTrip(Request{Op: OpFetchModelArena})
	if err != nil {
		return nil, err
	}
	if resp.Status != StatusOK {
		return nil, fmt.Errorf("rpc: fetch model arena failed with status %d", resp.Status)
	}
	return resp.Bytes, nil
}

func statusErr(s Status) error {
	if s == StatusOK {
		return nil
	}
	return fmt.Errorf("rpc: request failed with status %d", s)
}
