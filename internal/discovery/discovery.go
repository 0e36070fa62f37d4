// Package discovery lets a compute node find the memory node's RPC
// endpoint without a hardcoded address: the memory node announces its
// websocket URL over a libp2p stream, and a compute node holding the
// memory node's multiaddress asks for it. Adapted from the teacher's
// libp2p bootstrap (internal/network), trimmed to the one request/response
// this system needs — full peer discovery/gossip is out of scope (spec.md
// Non-goals: no RDMA transport, no general mesh networking).
package discovery

import (
	"context"
	"io"

	libp2p "github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/nmxmxh/rolex/internal/rlog"
)

// announceProtocol is the stream protocol a compute node speaks to ask the
// memory node for its RPC endpoint.
const announceProtocol = "/rolex/announce/1.0.0"

// MemoryNodeAnnouncer runs on the memory node: it answers any connecting
// peer with the websocket URL clients should dial for the RPC surface
// (C8).
type MemoryNodeAnnouncer struct {
	host   host.Host
	rpcURL string
	log    *rlog.Logger
}

// StartAnnouncer starts a libp2p host listening on listenAddr (a
// multiaddr string, e.g. "/ip4/0.0.0.0/tcp/4001") that answers announce
// requests with rpcURL.
func StartAnnouncer(listenAddr, rpcURL string) (*MemoryNodeAnnouncer, error) {
	priv, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		return nil, err
	}
	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(listenAddr),
	)
	if err != nil {
		return nil, err
	}

	a := &MemoryNodeAnnouncer{host: h, rpcURL: rpcURL, log: rlog.Default("discovery")}
	h.SetStreamHandler(announceProtocol, a.handleStream)
	a.log.Info("announcer listening", rlog.String("peer_id", h.ID().String()), rlog.String("rpc_url", rpcURL))
	return a, nil
}

func (a *MemoryNodeAnnouncer) handleStream(s network.Stream) {
	defer s.Close()
	if _, err := s.Write([]byte(a.rpcURL)); err != nil {
		a.log.Warn("announce write failed", rlog.Err(err))
	}
}

// Addrs returns the multiaddresses a compute node can dial to reach this
// announcer, combining the host's listen addresses with its peer id.
func (a *MemoryNodeAnnouncer) Addrs() []ma.Multiaddr {
	info := peer.AddrInfo{ID: a.host.ID(), Addrs: a.host.Addrs()}
	addrs, _ := peer.AddrInfoToP2pAddrs(&info)
	return addrs
}

// Close shuts down the libp2p host.
func (a *MemoryNodeAnnouncer) Close() error { return a.host.Close() }

// Discover connects to the memory node at peerAddr (a full p2p multiaddr
// including /p2p/<peer id>) and returns the RPC websocket URL it announces.
func Discover(ctx context.Context, peerAddr string) (string, error) {
	maddr, err := ma.NewMultiaddr(peerAddr)
	if err != nil {
		return "", err
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return "", err
	}

	h, err := libp2p.New()
	if err != nil {
		return "", err
	}
	defer h.Close()

	if err := h.Connect(ctx, *info); err != nil {
		return "", err
	}
	stream, err := h.NewStream(ctx, info.ID, announceProtocol)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
