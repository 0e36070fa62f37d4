package rpc

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nmxmxh/rolex/internal/engine"
	"github.com/nmxmxh/rolex/internal/leaftable"
	"github.com/nmxmxh/rolex/internal/rlog"
)

// Server exposes one Engine's GET/PUT/UPDATE/DELETE/SCAN operations over a
// websocket connection, one binary message per request/response.
type Server struct {
	engine   *engine.Engine
	upgrader websocket.Upgrader
	log      *rlog.Logger
}

// NewServer wraps e for RPC access.
func NewServer(e *engine.Engine) *Server {
	return &Server{
		engine: e,
		log:    rlog.Default("rpc-server"),
	}
}

// ServeHTTP upgrades the connection and serves requests until the client
// disconnects or sends a close frame.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", rlog.Err(err))
		return
	}
	defer conn.Close()

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		resp := s.handle(msg)
		if err := conn.WriteMessage(websocket.BinaryMessage, EncodeResponse(resp)); err != nil {
			return
		}
	}
}

func (s *Server) handle(msg []byte) Response {
	req, err := DecodeRequest(msg)
	if err != nil {
		s.log.Warn("malformed request", rlog.Err(err))
		return Response{Status: StatusError}
	}
	log := s.log.WithRequestID(req.ID)

	switch req.Op {
	case OpGet:
		v, ok, err := s.engine.Search(req.Key)
		if err != nil {
			log.Error("get failed", rlog.Err(err))
			return Response{ID: req.ID, Status: StatusError}
		}
		if !ok {
			return Response{ID: req.ID, Status: StatusNotFound}
		}
		return Response{ID: req.ID, Status: StatusOK, Value: v}

	case OpPut:
		if err := s.engine.Insert(req.Key, req.Value); err != nil {
			if st := statusFor(err); st == StatusError {
				log.Error("put failed", rlog.Err(err))
			}
			return Response{ID: req.ID, Status: statusFor(err)}
		}
		return Response{ID: req.ID, Status: StatusOK}

	case OpUpdate:
		if err := s.engine.Update(req.Key, req.Value); err != nil {
			if st := statusFor(err); st == StatusError {
				log.Error("update failed", rlog.Err(err))
			}
			return Response{ID: req.ID, Status: statusFor(err)}
		}
		return Response{ID: req.ID, Status: StatusOK}

	case OpDelete:
		if err := s.engine.Remove(req.Key); err != nil {
			if st := statusFor(err); st == StatusError {
				log.Error("delete failed", rlog.Err(err))
			}
			return Response{ID: req.ID, Status: statusFor(err)}
		}
		return Response{ID: req.ID, Status: StatusOK}

	case OpScan:
		kvs, err := s.engine.Scan(req.Key, int(req.Count))
		if err != nil {
			log.Error("scan failed", rlog.Err(err))
			return Response{ID: req.ID, Status: StatusError}
		}
		pairs := make([]Pair, len(kvs))
		for i, kv := range kvs {
			pairs[i] = Pair{Key: kv.Key, Val: kv.Val}
		}
		return Response{ID: req.ID, Status: StatusOK, Pairs: pairs}

	case OpFetchLeaf:
		if req.Key >= s.engine.Arena().Used() {
			return Response{ID: req.ID, Status: StatusNotFound}
		}
		return Response{ID: req.ID, Status: StatusOK, Bytes: s.engine.Arena().ReadLeafBytes(req.Key)}

	case OpFetchModelArena:
		buf, err := s.engine.Serialize()
		if err != nil {
			log.Error("model arena serialize failed", rlog.Err(err))
			return Response{ID: req.ID, Status: StatusError}
		}
		return Response{ID: req.ID, Status: StatusOK, Bytes: buf}

	default:
		return Response{ID: req.ID, Status: StatusError}
	}
}

func statusFor(err error) Status {
	switch err {
	case leaftable.ErrDuplicate:
		return StatusDuplicate
	case leaftable.ErrNotFound:
		return StatusNotFound
	default:
		return StatusError
	}
}

// NewRequestID generates a correlation id for a client-issued request.
func NewRequestID() []byte {
	id := uuid.New()
	return id[:]
}
