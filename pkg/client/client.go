// Package client is a caller of the DittoXfer transfer protocol.
//
// A Client owns one connection and sends requests one at a time; the
// server answers requests on a connection in order, so a Client may be
// reused for any number of commands. Client is not safe for concurrent use.
package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/marmos91/dittoxfer/internal/protocol/xfer"
)

// DefaultTimeout bounds one round trip when the context has no deadline.
const DefaultTimeout = 60 * time.Second

// readChunk is the size of one socket read.
const readChunk = 64 << 10

// ResponseError is returned when the server answers with an ERROR status.
type ResponseError struct {
	Message string
}

func (e *ResponseError) Error() string {
	return e.Message
}

// IsResponseError reports whether err carries a server ERROR response.
func IsResponseError(err error) bool {
	var re *ResponseError
	return errors.As(err, &re)
}

// Client sends protocol requests over a single connection.
type Client struct {
	conn    net.Conn
	framer  *xfer.Framer
	timeout time.Duration
	buf     []byte
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout used when the context carries
// no deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxResponseSize bounds the size of a single response. The default is
// unlimited.
func WithMaxResponseSize(n int) Option {
	return func(c *Client) { c.framer = xfer.NewFramer(n) }
}

// Dial connects to a server at addr ("host:port").
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return New(conn, opts...), nil
}

// New wraps an established connection.
func New(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		framer:  xfer.NewFramer(0),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// RoundTrip sends raw (without terminator) and returns the next raw
// response (without terminator).
func (c *Client) RoundTrip(ctx context.Context, raw []byte) ([]byte, error) {
	if err := c.setDeadline(ctx); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		// Unblocks a pending read or write.
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := c.conn.Write(xfer.AppendTerminator(raw)); err != nil {
		return nil, c.wrap(ctx, "send request", err)
	}

	resp, err := c.readResponse()
	if err != nil {
		return nil, c.wrap(ctx, "read response", err)
	}
	return resp, nil
}

func (c *Client) setDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	return c.conn.SetDeadline(deadline)
}

func (c *Client) wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	// The connection deadline may fire just before the context's timer.
	if deadline, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) && !time.Now().Before(deadline) {
		return fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Client) readResponse() ([]byte, error) {
	if resp, ok := c.framer.Next(); ok {
		return resp, nil
	}

	if c.buf == nil {
		c.buf = make([]byte, readChunk)
	}
	for {
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			if ferr := c.framer.Feed(c.buf[:n]); ferr != nil {
				return nil, ferr
			}
			if resp, ok := c.framer.Next(); ok {
				return resp, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// Do sends a command and decodes the response. An ERROR response is
// returned as is, with a nil error.
func (c *Client) Do(ctx context.Context, cmd xfer.Command, params ...string) (xfer.Response, error) {
	raw, err := c.RoundTrip(ctx, []byte(xfer.Format(cmd, params...)))
	if err != nil {
		return xfer.Response{}, err
	}

	var resp xfer.Response
	if err := resp.UnmarshalJSON(raw); err != nil {
		return xfer.Response{}, fmt.Errorf("decode %s response: %w", cmd, err)
	}
	return resp, nil
}

// call is Do with ERROR responses turned into a *ResponseError.
func (c *Client) call(ctx context.Context, cmd xfer.Command, want xfer.PayloadKind, params ...string) (xfer.Response, error) {
	resp, err := c.Do(ctx, cmd, params...)
	if err != nil {
		return resp, err
	}
	if !resp.IsOK() {
		return resp, &ResponseError{Message: resp.Message}
	}
	if resp.Kind != want {
		return resp, fmt.Errorf("unexpected %s response payload", cmd)
	}
	return resp, nil
}

// List returns the names of all stored files.
func (c *Client) List(ctx context.Context) ([]string, error) {
	resp, err := c.call(ctx, xfer.CommandList, xfer.PayloadFileList)
	if err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// Get downloads a file and returns its decoded content.
func (c *Client) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := c.call(ctx, xfer.CommandGet, xfer.PayloadFileContent, name)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("decode content of %s: %w", name, err)
	}
	return data, nil
}

// Upload stores data under name and returns the server's message.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (string, error) {
	content := base64.StdEncoding.EncodeToString(data)
	resp, err := c.call(ctx, xfer.CommandUpload, xfer.PayloadMessage, name, content)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Delete removes a file and returns the server's message.
func (c *Client) Delete(ctx context.Context, name string) (string, error) {
	resp, err := c.call(ctx, xfer.CommandDelete, xfer.PayloadMessage, name)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}
