// Command rolex-compute runs a compute node: it discovers a memory node's
// RPC endpoint, mirrors its trained upper index into a Learned Cache (spec
// C7), and serves local GET/SCAN queries against it, fetching leaf bytes
// from the memory node lazily as keys are looked up.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nmxmxh/rolex/internal/cache"
	"github.com/nmxmxh/rolex/internal/discovery"
	"github.com/nmxmxh/rolex/internal/lifecycle"
	"github.com/nmxmxh/rolex/internal/modelarena"
	"github.com/nmxmxh/rolex/internal/rlog"
	"github.com/nmxmxh/rolex/internal/rpc"
)

func main() {
	var (
		memAddr     = flag.String("mem-addr", "", "memory node RPC websocket URL, e.g. ws://127.0.0.1:9000/rolex (skips discovery if set)")
		peerAddr    = flag.String("peer-addr", "", "memory node's full libp2p multiaddr (used to discover mem-addr when it isn't set)")
		leafCap     = flag.Int("leaf-capacity", 256, "must match the memory node's leaf capacity N")
		epsilon     = flag.Float64("epsilon", 32, "must match the memory node's PLR error bound")
		synMax      = flag.Int("syn-max", 128, "must match the memory node's synonym table capacity")
		interactive = flag.Bool("interactive", false, "read GET/SCAN commands from stdin after loading the cache")
		shutdownGap = flag.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown deadline")
	)
	flag.Parse()

	log := rlog.Default("rolex-compute")
	shutdown := lifecycle.New(*shutdownGap, log.With("shutdown"))

	addr := *memAddr
	if addr == "" {
		if *peerAddr == "" {
			log.Fatal("one of -mem-addr or -peer-addr is required")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		discovered, err := discovery.Discover(ctx, *peerAddr)
		cancel()
		if err != nil {
			log.Fatal("discovery failed", rlog.Err(err))
		}
		addr = discovered
		log.Info("discovered memory node", rlog.String("addr", addr))
	}

	client, err := rpc.Dial(addr)
	if err != nil {
		log.Fatal("failed to dial memory node", rlog.String("addr", addr), rlog.Err(err))
	}
	shutdown.Register("rpc-client", client.Close)

	params := modelarena.Params{LeafCap: *leafCap, SynMax: *synMax, Epsilon: *epsilon}
	buf, err := client.FetchModelArena()
	if err != nil {
		log.Fatal("failed to fetch model arena", rlog.Err(err))
	}
	c, err := cache.Load(client, buf, params)
	if err != nil {
		log.Fatal("failed to load cache", rlog.Err(err))
	}
	log.Info("learned cache loaded", rlog.Int("bytes", len(buf)))

	if *interactive {
		runREPL(c, log)
		return
	}

	log.Info("compute node ready; use -interactive to query, or Ctrl-C to exit")
	block := make(chan struct{})
	<-block
}

// runREPL reads simple "get <key>" / "scan <key> <n>" commands from stdin
// until EOF, printing results to stdout. It's a minimal demonstration
// surface, not a client library — production callers should use the cache
// package directly.
func runREPL(c *cache.Cache, log *rlog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: get <key> | scan <key> <n> | quit")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "get":
			if len(fields) != 2 {
				fmt.Println("usage: get <key>")
				continue
			}
			k, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				fmt.Println("bad key:", err)
				continue
			}
			v, ok, err := c.Search(k)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if !ok {
				fmt.Println("not found")
				continue
			}
			fmt.Println(v)

		case "scan":
			if len(fields) != 3 {
				fmt.Println("usage: scan <key> <n>")
				continue
			}
			k, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				fmt.Println("bad key:", err)
				continue
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				fmt.Println("bad count:", err)
				continue
			}
			for _, kv := range c.Scan(k, n) {
				fmt.Printf("%d=%d\n", kv.Key, kv.Val)
			}

		case "quit", "exit":
			return

		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn("stdin read error", rlog.Err(err))
	}
}
