// Command rolex-memnode runs the authoritative memory node: it owns the
// leaf arena and the trained upper index, and serves GET/PUT/UPDATE/DELETE/
// SCAN over RPC (spec C8) plus a libp2p announce endpoint compute nodes use
// to find it (spec C7's bootstrap path).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nmxmxh/rolex/internal/config"
	"github.com/nmxmxh/rolex/internal/discovery"
	"github.com/nmxmxh/rolex/internal/engine"
	"github.com/nmxmxh/rolex/internal/lifecycle"
	"github.com/nmxmxh/rolex/internal/rlog"
	"github.com/nmxmxh/rolex/internal/rpc"
)

func main() {
	var (
		httpAddr     = flag.String("http-addr", ":9000", "address to serve the RPC websocket endpoint on")
		advertiseURL = flag.String("advertise-url", "ws://127.0.0.1:9000/rolex", "RPC websocket URL announced to compute nodes (must be reachable from them)")
		rpcPath      = flag.String("rpc-path", "/rolex", "HTTP path the RPC endpoint is served on")
		p2pAddr      = flag.String("p2p-addr", "/ip4/0.0.0.0/tcp/4001", "libp2p multiaddr to listen on for compute-node discovery")
		leafCap      = flag.Int("leaf-capacity", 256, "number of (key, value) slots per leaf (N)")
		epsilon      = flag.Float64("epsilon", 32, "PLR training error bound / query slack")
		synMax       = flag.Int("syn-max", 128, "synonym table capacity per submodel")
		arenaSize    = flag.Uint64("leaf-arena-capacity", 1<<20, "number of leaves preallocated in the leaf arena")
		shutdownGap  = flag.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown deadline")
		seedCount    = flag.Int("seed-count", 0, "train on this many synthetic sequential keys (0..n-1, stride 10) before serving")
	)
	flag.Parse()

	log := rlog.Default("rolex-memnode")
	shutdown := lifecycle.New(*shutdownGap, log.With("shutdown"))

	cfg := config.New(
		config.WithLeafCapacity(*leafCap),
		config.WithEpsilon(*epsilon),
		config.WithSynMax(*synMax),
		config.WithLeafArenaCapacity(*arenaSize),
	)
	e := engine.New(cfg)
	log.Info("engine initialized", rlog.Int("leaf_capacity", cfg.LeafCapacity), rlog.Float64("epsilon", cfg.Epsilon))

	if *seedCount > 0 {
		keys := make([]uint64, *seedCount)
		vals := make([]uint64, *seedCount)
		for i := range keys {
			keys[i] = uint64(i) * 10
			vals[i] = keys[i] * 10
		}
		if err := e.Train(keys, vals); err != nil {
			log.Fatal("seed training failed", rlog.Err(err))
		}
		log.Info("seeded engine with synthetic keys", rlog.Int("count", *seedCount))
	}

	announcer, err := discovery.StartAnnouncer(*p2pAddr, *advertiseURL)
	if err != nil {
		log.Fatal("failed to start discovery announcer", rlog.Err(err))
	}
	shutdown.Register("discovery-announcer", announcer.Close)
	for _, a := range announcer.Addrs() {
		log.Info("announcing on", rlog.String("multiaddr", a.String()))
	}

	mux := http.NewServeMux()
	mux.Handle(*rpcPath, rpc.NewServer(e))
	srv := &http.Server{Addr: *httpAddr, Handler: mux}
	shutdown.Register("rpc-http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), *shutdownGap)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	go func() {
		log.Info("rpc server listening", rlog.String("addr", *httpAddr), rlog.String("path", *rpcPath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("rpc server failed", rlog.Err(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutdown signal received")
	if err := shutdown.Shutdown(context.Background()); err != nil {
		log.Error("shutdown did not complete cleanly", rlog.Err(err))
		os.Exit(1)
	}
}
