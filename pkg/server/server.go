// Package server runs the protocol adapters that share one file store.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/pkg/adapter"
	"github.com/marmos91/dittoxfer/pkg/store"
)

// DefaultStopTimeout bounds how long Serve waits for adapters to stop.
const DefaultStopTimeout = 30 * time.Second

// ErrAlreadyServed is returned by a second call to Serve.
var ErrAlreadyServed = errors.New("server: Serve already called")

// DittoXferServer manages the lifecycle of protocol adapters and the file
// store they share.
//
// Lifecycle:
//  1. New() with the store
//  2. AddAdapter() for each protocol
//  3. Serve() runs all adapters until ctx is cancelled or one fails
//  4. Adapters are stopped in reverse order and the store is closed
//
// Example usage:
//
//	srv := server.New(fileStore)
//	srv.AddAdapter(xfer.New(xferConfig, workerPool, nil))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type DittoXferServer struct {
	store    store.FileStore
	adapters []adapter.Adapter

	// StopTimeout bounds the Stop calls issued on shutdown.
	StopTimeout time.Duration

	mu     sync.Mutex
	served bool
}

// New creates a server around fs. The server closes fs when Serve returns.
//
// Panics if fs is nil.
func New(fs store.FileStore) *DittoXferServer {
	if fs == nil {
		panic("file store cannot be nil")
	}
	return &DittoXferServer{
		store:       fs,
		adapters:    make([]adapter.Adapter, 0, 2),
		StopTimeout: DefaultStopTimeout,
	}
}

// AddAdapter registers a protocol adapter. Protocols and ports must be
// unique.
func (s *DittoXferServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add adapter after Serve() has been called")
	}

	protocol, port := a.Protocol(), a.Port()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Serve starts every adapter and blocks until ctx is cancelled or an
// adapter fails.
//
// Returns ctx.Err() after a shutdown signal, or the first adapter error.
func (s *DittoXferServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	defer func() {
		if err := s.store.Close(); err != nil {
			logger.Warn("Error closing file store: %v", err)
		}
	}()

	if len(adapters) == 0 {
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}

	logger.Info("Starting DittoXfer with %d adapter(s)", len(adapters))

	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, a := range adapters {
		wg.Add(1)
		go func() {
			defer wg.Done()

			protocol := a.Protocol()
			if err := a.Serve(ctx); err != nil {
				if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped: %v", protocol, err)
				}
				return
			}
			logger.Info("%s adapter stopped", protocol)
		}()
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	s.stopAllAdapters(adapters)
	wg.Wait()

	logger.Info("DittoXfer stopped")
	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters calls Stop in reverse registration order.
func (s *DittoXferServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.StopTimeout)
	defer cancel()

	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		if err := a.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", a.Protocol(), err)
		}
	}
}

// Adapters returns a copy of the registered adapters.
func (s *DittoXferServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
