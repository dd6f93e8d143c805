package xfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/internal/protocol/xfer"
	"github.com/marmos91/dittoxfer/internal/ratelimiter"
	"github.com/marmos91/dittoxfer/pkg/pool"
)

func newSessionID() string {
	return uuid.NewString()
}

// XferConnection serves one client connection: it frames the byte stream,
// runs each request through the worker's Processor and writes responses
// back in request order.
type XferConnection struct {
	server  *XferAdapter
	conn    net.Conn
	session string
	proc    pool.Processor
	limiter *ratelimiter.RateLimiter
}

func NewXferConnection(server *XferAdapter, conn net.Conn, session string, proc pool.Processor) *XferConnection {
	return &XferConnection{
		server:  server,
		conn:    conn,
		session: session,
		proc:    proc,
		limiter: ratelimiter.New(server.config.RequestsPerSecond, server.config.RequestBurst),
	}
}

// Serve handles requests until the client disconnects, an error occurs or
// the server shuts down. On shutdown a partly received request is still
// read, processed and answered before the connection closes. The
// connection is closed on return.
func (c *XferConnection) Serve(ctx context.Context) {
	clientAddr := c.conn.RemoteAddr().String()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in connection handler %s from %s: %v", c.session, clientAddr, r)
		}
		_ = c.conn.Close()
	}()

	logger.Debug("Serving connection %s from %s", c.session, clientAddr)

	buf := xfer.GetBuffer(c.server.config.ReadBufferSize)
	defer xfer.PutBuffer(buf)

	framer := xfer.NewFramer(c.server.config.MaxRequestSize)

	for {
		if ctx.Err() != nil {
			logger.Debug("Connection %s closed due to context cancellation", c.session)
			return
		}
		if c.draining(framer) {
			logger.Debug("Connection %s closed due to server shutdown", c.session)
			return
		}

		if err := c.conn.SetReadDeadline(c.readDeadline()); err != nil {
			logger.Debug("Failed to set read deadline for %s: %v", c.session, err)
			return
		}
		// Shutdown may have woken the connection before the deadline above
		// replaced the wake-up deadline.
		if c.draining(framer) {
			logger.Debug("Connection %s closed due to server shutdown", c.session)
			return
		}

		n, readErr := c.conn.Read(buf)
		if n > 0 {
			c.server.metrics.RecordWireBytes("in", int64(n))

			feedErr := framer.Feed(buf[:n])

			// Requests completed before an oversized one are still answered.
			for req := range framer.Requests() {
				if err := c.handleRequest(ctx, req); err != nil {
					c.logEnd(err)
					return
				}
			}

			if feedErr != nil {
				if errors.Is(feedErr, xfer.ErrRequestTooLarge) {
					logger.Warn("Connection %s from %s: request exceeds %d bytes, closing",
						c.session, clientAddr, c.server.config.MaxRequestSize)
					if c.writeResponse(xfer.Fail(xfer.MsgRequestTooLarge)) == nil {
						c.lingerClose()
					}
				}
				return
			}
		}

		if readErr != nil {
			var netErr net.Error
			if c.shuttingDown() && errors.As(readErr, &netErr) && netErr.Timeout() {
				// Woken by shutdown: finish a partly received request first.
				continue
			}
			if pending := framer.Pending(); pending > 0 && errors.Is(readErr, io.EOF) {
				logger.Debug("Connection %s: discarding %d bytes of unterminated request", c.session, pending)
			}
			c.logEnd(readErr)
			return
		}
	}
}

func (c *XferConnection) shuttingDown() bool {
	select {
	case <-c.server.shutdown:
		return true
	default:
		return false
	}
}

// draining reports whether the server is shutting down and no request is
// partly received, so the connection can close without losing work.
func (c *XferConnection) draining(framer *xfer.Framer) bool {
	return c.shuttingDown() && framer.Pending() == 0
}

func (c *XferConnection) readDeadline() time.Time {
	if c.server.config.ReadTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.server.config.ReadTimeout)
}

// lingerDrain bounds the unread bytes discarded by lingerClose.
const lingerDrain = 4 << 20

// lingerClose half-closes the connection and discards what the client is
// still sending for a moment. Closing a socket with unread input resets it,
// which can destroy a response the client has not read yet.
func (c *XferConnection) lingerClose() {
	cw, ok := c.conn.(interface{ CloseWrite() error })
	if !ok || cw.CloseWrite() != nil {
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _ = io.Copy(io.Discard, io.LimitReader(c.conn, lingerDrain))
}

// handleRequest processes one framed request and writes its response.
func (c *XferConnection) handleRequest(ctx context.Context, req []byte) error {
	if !c.limiter.Allow() {
		logger.Debug("Connection %s rate limited (tokens: %.2f)", c.session, c.limiter.Tokens())
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := c.proc.Process(ctx, req)
	if err != nil {
		return fmt.Errorf("process request: %w", err)
	}

	return c.write(resp)
}

func (c *XferConnection) writeResponse(r xfer.Response) error {
	out, err := xfer.Encode(r)
	if err != nil {
		return err
	}
	return c.write(out)
}

func (c *XferConnection) write(out []byte) error {
	if c.server.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	n, err := c.conn.Write(out)
	c.server.metrics.RecordWireBytes("out", int64(n))
	if err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func (c *XferConnection) logEnd(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("Connection %s closed by client", c.session)
	case errors.As(err, &netErr) && netErr.Timeout():
		logger.Debug("Connection %s timed out: %v", c.session, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Debug("Connection %s cancelled: %v", c.session, err)
	default:
		logger.Debug("Connection %s ended: %v", c.session, err)
	}
}
