// Package lifecycle manages graceful startup/shutdown of the memory-node and
// compute-node binaries (cmd/rolex-memnode, cmd/rolex-compute).
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/nmxmxh/rolex/internal/rlog"
)

type namedHook struct {
	name string
	fn   func() error
}

// GracefulShutdown runs registered shutdown hooks concurrently (started in
// reverse-registration order), bounded by an overall timeout. Each hook is
// named after the
// component it tears down (e.g. "rpc-http-server", "discovery-announcer")
// so a failure or timeout names the component that caused it instead of a
// bare registration index.
type GracefulShutdown struct {
	mu      sync.Mutex
	hooks   []namedHook
	timeout time.Duration
	logger  *rlog.Logger
}

// New creates a graceful shutdown manager.
func New(timeout time.Duration, logger *rlog.Logger) *GracefulShutdown {
	if logger == nil {
		logger = rlog.Default("shutdown")
	}
	return &GracefulShutdown{timeout: timeout, logger: logger}
}

// Register adds a named shutdown hook. Shutdown starts hooks in reverse
// registration order but runs them concurrently, so no hook waits for
// another. name identifies the component being torn down in shutdown logs.
func (g *GracefulShutdown) Register(name string, fn func() error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, namedHook{name: name, fn: fn})
}

// Shutdown executes all registered hooks concurrently, bounded by the
// configured timeout.
func (g *GracefulShutdown) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("starting graceful shutdown", rlog.Int("hooks", len(g.hooks)))

	shutdownCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	errCh := make(chan error, len(g.hooks))
	var wg sync.WaitGroup

	for i := len(g.hooks) - 1; i >= 0; i-- {
		wg.Add(1)
		hook := g.hooks[i]
		go func(hook namedHook) {
			defer wg.Done()
			if err := hook.fn(); err != nil {
				g.logger.Error("shutdown hook failed", rlog.String("hook", hook.name), rlog.Err(err))
				errCh <- err
			}
		}(hook)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.logger.Info("graceful shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		g.logger.Warn("graceful shutdown timed out")
		return rlog.NewError("shutdown timeout")
	}
}
