package xfer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/pkg/metrics"
	"github.com/marmos91/dittoxfer/pkg/pool"
)

// XferAdapter serves the file transfer protocol over TCP.
//
// The adapter owns the listener and the connection bookkeeping; a
// pool.Pool bounds how many connections are served at once. Each accepted
// connection is handed to the pool, and Accept is not called again until
// a worker has taken it.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections), idle connections woken
//  3. Wait for active connections to finish their current request
//     (up to ShutdownTimeout)
//  4. shutdownCtx cancelled and remaining connections force-closed
//  5. Pool closed
type XferAdapter struct {
	config  XferConfig
	pool    pool.Pool
	metrics metrics.XferMetrics

	listener  net.Listener
	ready     chan struct{}
	boundPort atomic.Int32

	// activeConns tracks connections for graceful shutdown.
	activeConns sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}

	connCount atomic.Int32

	// shutdownCtx is passed to every connection. It is cancelled only when
	// connections are force-closed.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// acceptCtx bounds Submit and is cancelled as soon as shutdown starts.
	acceptCtx     context.Context
	stopAccepting context.CancelFunc

	// activeConnections maps session ID to net.Conn for forced closure.
	activeConnections sync.Map
}

// XferConfig configures the transfer server.
//
// Default values (applied by New if zero):
//   - PoolSize: 5
//   - PoolKind: thread
//   - ReadTimeout: 30m (idle time allowed between reads)
//   - WriteTimeout: 30s
//   - ShutdownTimeout: 30s
//   - MaxRequestSize: 512MiB
//   - ReadBufferSize: 1MiB
//   - MetricsLogInterval: 5m
type XferConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Host is the bind address. Empty binds all interfaces.
	Host string `mapstructure:"host"`

	// Port is the TCP port. 0 lets the OS choose; pkg/config defaults it
	// to DefaultPort.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// PoolSize is the number of workers, i.e. the maximum number of
	// connections served concurrently.
	PoolSize int `mapstructure:"pool_size" validate:"min=0"`

	// PoolKind is "thread" or "process".
	PoolKind string `mapstructure:"pool_kind" validate:"omitempty,oneof=thread process"`

	// ReadTimeout closes a connection that sends nothing for this long.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing one response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// ShutdownTimeout bounds the wait for active connections on shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// MaxRequestSize bounds one unterminated request. -1 disables the limit.
	MaxRequestSize int `mapstructure:"max_request_size" validate:"min=-1"`

	// ReadBufferSize is the socket read chunk size.
	ReadBufferSize int `mapstructure:"read_buffer_size" validate:"min=0"`

	// RequestsPerSecond limits requests per connection. 0 disables.
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// RequestBurst is the token bucket size for RequestsPerSecond.
	RequestBurst uint `mapstructure:"request_burst"`

	// MetricsLogInterval logs connection counts periodically. Negative
	// disables.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval"`
}

// DefaultPort is the standard transfer server port.
const DefaultPort = 7778

// ApplyDefaults fills in zero values.
func (c *XferConfig) ApplyDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	if c.PoolKind == "" {
		c.PoolKind = string(pool.KindThread)
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = 512 << 20
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = 1 << 20
	}
	if c.MetricsLogInterval == 0 {
		c.MetricsLogInterval = 5 * time.Minute
	}
}

func (c *XferConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if _, err := pool.ParseKind(c.PoolKind); err != nil {
		return err
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("invalid timeouts: read=%v write=%v", c.ReadTimeout, c.WriteTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// New creates a stopped adapter serving connections through p.
//
// Panics if config is invalid or p is nil.
func New(config XferConfig, p pool.Pool, m metrics.XferMetrics) *XferAdapter {
	config.ApplyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid xfer config: %v", err))
	}
	if p == nil {
		panic("xfer adapter: nil pool")
	}
	if m == nil {
		m = metrics.NewNoopXferMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())
	acceptCtx, stopAccepting := context.WithCancel(context.Background())

	return &XferAdapter{
		config:         config,
		pool:           p,
		metrics:        m,
		ready:          make(chan struct{}),
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
		acceptCtx:      acceptCtx,
		stopAccepting:  stopAccepting,
	}
}

// Serve listens and serves until ctx is cancelled or Stop is called.
func (s *XferAdapter) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create xfer listener on %s: %w", addr, err)
	}
	s.listener = listener
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.boundPort.Store(int32(tcpAddr.Port))
	}

	if err := s.pool.Start(s.shutdownCtx, s.serveConn); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to start %s pool: %w", s.pool.Kind(), err)
	}

	logger.Info("Xfer server listening on %s (pool: %s x%d)", listener.Addr(), s.pool.Kind(), s.pool.Size())
	logger.Debug("Xfer config: read_timeout=%v write_timeout=%v max_request_size=%d read_buffer=%d",
		s.config.ReadTimeout, s.config.WriteTimeout, s.config.MaxRequestSize, s.config.ReadBufferSize)
	close(s.ready)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Xfer shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics()
	}

	for {
		tcpConn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting xfer connection: %v", err)
				continue
			}
		}

		session := newSessionID()
		s.track(session, tcpConn)

		// Blocks while every worker is busy, which keeps us out of Accept.
		if err := s.pool.Submit(s.acceptCtx, &trackedConn{Conn: tcpConn, session: session}); err != nil {
			logger.Debug("Connection %s from %s not served: %v", session, tcpConn.RemoteAddr(), err)
			_ = tcpConn.Close()
			s.untrack(session)
			if errors.Is(err, pool.ErrPoolClosed) || errors.Is(err, context.Canceled) {
				return s.gracefulShutdown()
			}
		}
	}
}

// trackedConn carries the session ID from the acceptor to the worker.
type trackedConn struct {
	net.Conn
	session string
}

func (s *XferAdapter) track(session string, conn net.Conn) {
	s.activeConns.Add(1)
	current := s.connCount.Add(1)
	s.activeConnections.Store(session, conn)

	s.metrics.RecordConnectionAccepted()
	s.metrics.SetActiveConnections(current)
	logger.Debug("Xfer connection %s accepted from %s (active: %d)", session, conn.RemoteAddr(), current)
}

func (s *XferAdapter) untrack(session string) {
	s.activeConnections.Delete(session)
	current := s.connCount.Add(-1)
	s.activeConns.Done()

	s.metrics.RecordConnectionClosed()
	s.metrics.SetActiveConnections(current)
	logger.Debug("Xfer connection %s closed (active: %d)", session, current)
}

// serveConn is the pool.HandlerFunc run by a worker.
func (s *XferAdapter) serveConn(ctx context.Context, conn net.Conn, proc pool.Processor) {
	session := ""
	if tc, ok := conn.(*trackedConn); ok {
		session = tc.session
		conn = tc.Conn
	} else {
		session = newSessionID()
		s.track(session, conn)
	}
	defer s.untrack(session)

	NewXferConnection(s, conn, session, proc).Serve(ctx)
}

// initiateShutdown closes the listener and wakes connections blocked in
// Read so idle ones can close. In-flight requests keep running.
// Safe to call multiple times.
func (s *XferAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Xfer shutdown initiated")
		close(s.shutdown)

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing xfer listener: %v", err)
			}
		}

		s.stopAccepting()
		s.wakeConnections()
	})
}

// wakeConnections expires the read deadline of every tracked connection.
// A connection with no partial request then closes; one mid-request
// resets its deadline and keeps reading.
func (s *XferAdapter) wakeConnections() {
	now := time.Now()
	s.activeConnections.Range(func(key, value any) bool {
		if err := value.(net.Conn).SetReadDeadline(now); err != nil {
			logger.Debug("Error waking connection %s: %v", key, err)
		}
		return true
	})
}

// gracefulShutdown waits for active connections, force-closes stragglers
// after ShutdownTimeout, then releases the pool.
func (s *XferAdapter) gracefulShutdown() error {
	logger.Info("Xfer graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		s.connCount.Load(), s.config.ShutdownTimeout)

	var result error
	if !s.waitConnections(time.After(s.config.ShutdownTimeout)) {
		remaining := s.connCount.Load()
		logger.Warn("Xfer shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)
		s.forceCloseConnections()
		result = fmt.Errorf("xfer shutdown timeout: %d connections force-closed", remaining)
	} else {
		logger.Info("Xfer graceful shutdown complete: all connections closed")
	}

	s.cancelRequests()

	// Workers are idle or their connections were just closed.
	poolCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.pool.Close(poolCtx); err != nil {
		logger.Warn("Xfer pool close: %v", err)
	}

	return result
}

func (s *XferAdapter) waitConnections(timeout <-chan time.Time) bool {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-timeout:
		return false
	}
}

func (s *XferAdapter) forceCloseConnections() {
	s.cancelRequests()

	closed := 0
	s.activeConnections.Range(func(key, value any) bool {
		session := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection %s: %v", session, err)
		} else {
			closed++
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closed > 0 {
		logger.Info("Force-closed %d connection(s)", closed)
	}
}

// Stop initiates shutdown and waits for active connections until ctx is
// done.
func (s *XferAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Warn("Xfer shutdown context cancelled: %d connection(s) still active: %v",
			s.connCount.Load(), ctx.Err())
		return ctx.Err()
	}
}

func (s *XferAdapter) logMetrics() {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("Xfer metrics: active_connections=%d busy_workers=%d/%d",
				s.connCount.Load(), s.pool.Busy(), s.pool.Size())
		}
	}
}

// Ready is closed once the listener is bound and the pool started.
func (s *XferAdapter) Ready() <-chan struct{} {
	return s.ready
}

// GetActiveConnections returns the number of tracked connections.
func (s *XferAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Port returns the bound port once listening, else the configured port.
func (s *XferAdapter) Port() int {
	if p := s.boundPort.Load(); p != 0 {
		return int(p)
	}
	return s.config.Port
}

func (s *XferAdapter) Protocol() string {
	return "XFER"
}
