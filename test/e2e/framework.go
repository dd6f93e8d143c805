package e2e

import (
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittoxfer/pkg/adapter/xfer"
	"github.com/marmos91/dittoxfer/pkg/client"
	"github.com/marmos91/dittoxfer/pkg/config"
	"github.com/marmos91/dittoxfer/pkg/server"
)

// TestContext is a running server plus what a test needs to talk to it.
type TestContext struct {
	T      *testing.T
	Config *TestConfig
	Server *config.Config
	Dir    string
	Addr   string

	adapter  *xfer.XferAdapter
	cancel   context.CancelFunc
	done     chan error
	stopOnce sync.Once
}

// Option adjusts the server configuration before start.
type Option func(*config.Config)

// WithPoolSize sets the number of connections served at once.
func WithPoolSize(n int) Option {
	return func(c *config.Config) { c.Adapters.Xfer.PoolSize = n }
}

// WithMaxRequestSize sets the largest accepted request.
func WithMaxRequestSize(n int) Option {
	return func(c *config.Config) { c.Adapters.Xfer.MaxRequestSize = n }
}

// NewTestContext starts a server on an ephemeral port.
func NewTestContext(t *testing.T, tc *TestConfig, opts ...Option) *TestContext {
	t.Helper()

	ctx := &TestContext{
		T:      t,
		Config: tc,
		Dir:    t.TempDir(),
		done:   make(chan error, 1),
	}

	storeCfg, err := tc.StoreConfig(ctx.Dir)
	if err != nil {
		t.Fatalf("Failed to build store config: %v", err)
	}

	cfg := config.GetDefaultConfig()
	cfg.Store = storeCfg
	cfg.Adapters.Xfer.Host = "127.0.0.1"
	cfg.Adapters.Xfer.Port = 0
	cfg.Adapters.Xfer.PoolKind = tc.PoolKind
	cfg.Adapters.Xfer.ShutdownTimeout = 2 * time.Second
	cfg.Adapters.Xfer.MetricsLogInterval = -1
	cfg.Worker.Command = os.Args[0]
	for _, opt := range opts {
		opt(cfg)
	}
	config.ApplyDefaults(cfg)
	ctx.Server = cfg

	ctx.startServer()
	// Registered after t.TempDir and before any Dial, so clients close
	// first and the store directory outlives the server.
	t.Cleanup(ctx.Cleanup)
	return ctx
}

func (tc *TestContext) startServer() {
	t := tc.T
	t.Helper()

	cfg := tc.Server
	st, err := config.CreateStore(context.Background(), &cfg.Store)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	p, err := config.CreatePool(cfg, st, nil)
	if err != nil {
		_ = st.Close()
		t.Fatalf("Failed to create pool: %v", err)
	}

	tc.adapter = xfer.New(cfg.Adapters.Xfer, p, nil)
	srv := server.New(st)
	if err := srv.AddAdapter(tc.adapter); err != nil {
		t.Fatalf("Failed to add adapter: %v", err)
	}

	serveCtx, cancel := context.WithCancel(context.Background())
	tc.cancel = cancel
	go func() {
		tc.done <- srv.Serve(serveCtx)
	}()

	select {
	case <-tc.adapter.Ready():
	case err := <-tc.done:
		t.Fatalf("Server failed to start: %v", err)
	case <-time.After(30 * time.Second):
		t.Fatal("Server did not become ready")
	}

	tc.Addr = net.JoinHostPort("127.0.0.1", strconv.Itoa(tc.adapter.Port()))
}

// Cleanup stops the server and waits for it to exit. It runs
// automatically at the end of the test and may be called earlier.
func (tc *TestContext) Cleanup() {
	tc.stopOnce.Do(func() {
		tc.cancel()
		select {
		case <-tc.done:
		case <-time.After(30 * time.Second):
			tc.T.Error("Server did not stop")
		}
	})
}

// Dial opens a client connection closed at the end of the test.
func (tc *TestContext) Dial() *client.Client {
	tc.T.Helper()

	c, err := client.Dial(context.Background(), tc.Addr, client.WithTimeout(60*time.Second))
	if err != nil {
		tc.T.Fatalf("Failed to connect: %v", err)
	}
	tc.T.Cleanup(func() { _ = c.Close() })
	return c
}

// Adapter exposes the running adapter.
func (tc *TestContext) Adapter() *xfer.XferAdapter {
	return tc.adapter
}
