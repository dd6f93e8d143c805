package pool

import (
	"bytes"
	"context"
	"errors"
	"net"
	"time"

	"github.com/marmos91/dittoxfer/internal/protocol/xfer"
)

// serveConn is a minimal connection handler: frame, process, write.
func serveConn(ctx context.Context, conn net.Conn, p Processor) {
	defer conn.Close()

	framer := xfer.NewFramer(0)
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			_ = framer.Feed(buf[:n])
			for req := range framer.Requests() {
				resp, perr := p.Process(ctx, req)
				if perr != nil {
					return
				}
				if _, werr := conn.Write(resp); werr != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// exchange sends one request and returns the response without its
// terminator.
func exchange(conn net.Conn, line string) (string, error) {
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	if _, err := conn.Write([]byte(line + xfer.Terminator)); err != nil {
		return "", err
	}

	var got []byte
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		got = append(got, buf[:n]...)
		if i := bytes.Index(got, []byte(xfer.Terminator)); i >= 0 {
			return string(got[:i]), nil
		}
		if err != nil {
			return "", err
		}
	}
}

// submitPipe submits the server end of a net.Pipe and returns the client end.
func submitPipe(ctx context.Context, p Pool) (net.Conn, error) {
	client, server := net.Pipe()
	if err := p.Submit(ctx, server); err != nil {
		_ = client.Close()
		_ = server.Close()
		return nil, err
	}
	return client, nil
}

// echoProcessor answers every request with "echo:<request>".
type echoProcessor struct{}

func (echoProcessor) Process(_ context.Context, raw []byte) ([]byte, error) {
	if string(raw) == "FAIL" {
		return nil, errors.New("processor failure")
	}
	return xfer.AppendTerminator(append([]byte("echo:"), raw...)), nil
}
