// Package pool bounds how many client connections are served at once.
//
// A Pool owns a fixed number of workers. Each accepted connection is handed
// to one idle worker and stays with it until the handler returns. While
// every worker is busy, Submit blocks, so the acceptor stops calling Accept
// and further clients wait in the kernel listen backlog.
//
// Two kinds exist:
//   - thread: worker goroutines share one Processor in this process
//   - process: each worker is bound to a child process running its own
//     Processor; requests and responses cross over stdin/stdout
package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/pkg/metrics"
)

// Kind selects the worker implementation.
type Kind string

const (
	KindThread  Kind = "thread"
	KindProcess Kind = "process"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindThread, KindProcess:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown pool kind %q (want %q or %q)", s, KindThread, KindProcess)
	}
}

var (
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("pool is closed")

	// ErrNotStarted is returned by Submit before Start.
	ErrNotStarted = errors.New("pool is not started")
)

// Processor turns one raw request into one encoded response (terminator
// included).
type Processor interface {
	Process(ctx context.Context, raw []byte) ([]byte, error)
}

// HandlerFunc serves one connection using the worker's Processor. The
// handler owns conn and must close it before returning.
type HandlerFunc func(ctx context.Context, conn net.Conn, p Processor)

// Pool is the contract shared by the thread and process pools.
type Pool interface {
	// Start launches the workers. handler is invoked once per submitted
	// connection.
	Start(ctx context.Context, handler HandlerFunc) error

	// Submit hands conn to an idle worker, waiting while none is free.
	// On error the caller still owns conn.
	Submit(ctx context.Context, conn net.Conn) error

	// Close stops accepting work and waits for busy workers until ctx is
	// done. Worker resources are released either way.
	Close(ctx context.Context) error

	Size() int
	Kind() Kind

	// Busy returns the number of workers currently serving a connection.
	Busy() int
}

// worker is one slot of a pool.
type worker interface {
	// prepare readies the worker for its next connection.
	prepare(ctx context.Context) error
	processor() Processor
	close() error
}

// pool runs size long-lived goroutines, each bound to one worker, that take
// connections from an unbuffered channel.
type pool struct {
	kind    Kind
	size    int
	metrics metrics.XferMetrics

	newWorker func(ctx context.Context, id int) (worker, error)

	jobs    chan net.Conn
	closing chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool

	workers []worker
	wg      sync.WaitGroup
	busy    atomic.Int32
}

func newPool(kind Kind, size int, m metrics.XferMetrics, newWorker func(context.Context, int) (worker, error)) *pool {
	if size < 1 {
		size = 1
	}
	if m == nil {
		m = metrics.NewNoopXferMetrics()
	}
	return &pool{
		kind:      kind,
		size:      size,
		metrics:   m,
		newWorker: newWorker,
		jobs:      make(chan net.Conn),
		closing:   make(chan struct{}),
	}
}

func (p *pool) Start(ctx context.Context, handler HandlerFunc) error {
	if handler == nil {
		return errors.New("pool: nil handler")
	}

	err := errors.New("pool already started")
	p.startOnce.Do(func() {
		err = nil
		for i := range p.size {
			w, werr := p.newWorker(ctx, i)
			if werr != nil {
				err = fmt.Errorf("start worker %d: %w", i, werr)
				break
			}
			p.workers = append(p.workers, w)
		}
		if err != nil {
			p.releaseWorkers()
			return
		}

		for i, w := range p.workers {
			p.wg.Add(1)
			go p.run(ctx, i, w, handler)
		}
		p.started.Store(true)
		logger.Info("Started %s pool with %d workers", p.kind, p.size)
	})
	return err
}

func (p *pool) run(ctx context.Context, id int, w worker, handler HandlerFunc) {
	defer p.wg.Done()

	for {
		select {
		case <-p.closing:
			return
		case conn := <-p.jobs:
			p.serve(ctx, id, w, conn, handler)
		}
	}
}

func (p *pool) serve(ctx context.Context, id int, w worker, conn net.Conn, handler HandlerFunc) {
	p.metrics.SetBusyWorkers(p.busy.Add(1))
	defer func() {
		p.metrics.SetBusyWorkers(p.busy.Add(-1))
	}()

	if err := w.prepare(ctx); err != nil {
		logger.Error("Worker %d unavailable, dropping connection from %s: %v", id, conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}

	logger.Debug("Worker %d serving %s", id, conn.RemoteAddr())
	handler(ctx, conn, w.processor())
}

func (p *pool) Submit(ctx context.Context, conn net.Conn) error {
	if !p.started.Load() {
		return ErrNotStarted
	}

	// Closed wins over an idle worker.
	select {
	case <-p.closing:
		return ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- conn:
		return nil
	case <-p.closing:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pool) Close(ctx context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closing)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("%d worker(s) still busy: %w", p.busy.Load(), ctx.Err())
		}

		p.releaseWorkers()
		logger.Debug("%s pool closed", p.kind)
	})
	return err
}

func (p *pool) releaseWorkers() {
	for i, w := range p.workers {
		if err := w.close(); err != nil {
			logger.Debug("Worker %d close: %v", i, err)
		}
	}
}

func (p *pool) Size() int  { return p.size }
func (p *pool) Kind() Kind { return p.kind }
func (p *pool) Busy() int  { return int(p.busy.Load()) }
