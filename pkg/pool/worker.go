package pool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/internal/protocol/ipc"
)

// ProcessorFactory builds a worker process's Processor from the init
// message body. The returned cleanup runs when the worker exits.
type ProcessorFactory func(ctx context.Context, init []byte) (Processor, func() error, error)

// RunWorker is the body of a worker process. It reads messages from in
// and writes replies to out (normally stdin and stdout) until in reaches
// EOF or ctx is cancelled.
//
// out must be reserved for the protocol; log output belongs on stderr.
func RunWorker(ctx context.Context, in io.Reader, out io.Writer, factory ProcessorFactory) error {
	r := bufio.NewReaderSize(in, 64<<10)
	w := bufio.NewWriterSize(out, 64<<10)

	send := func(msg *ipc.Message) error {
		if err := ipc.WriteMessage(w, msg); err != nil {
			return err
		}
		return w.Flush()
	}

	initMsg, err := ipc.ReadMessage(r, 0)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read init: %w", err)
	}
	if initMsg.Kind != ipc.KindInit {
		return fmt.Errorf("expected init message, got %s", initMsg.Kind)
	}

	proc, cleanup, err := factory(ctx, initMsg.Body)
	if err != nil {
		_ = send(&ipc.Message{Kind: ipc.KindError, Body: []byte(err.Error())})
		return fmt.Errorf("init processor: %w", err)
	}
	if cleanup != nil {
		defer func() {
			if err := cleanup(); err != nil {
				logger.Warn("Worker cleanup: %v", err)
			}
		}()
	}

	if err := send(&ipc.Message{Kind: ipc.KindReady}); err != nil {
		return fmt.Errorf("send ready: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		msg, err := ipc.ReadMessage(r, 0)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug("Worker input closed, exiting")
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}
		if msg.Kind != ipc.KindRequest {
			return fmt.Errorf("expected request message, got %s", msg.Kind)
		}

		reply := &ipc.Message{Kind: ipc.KindResponse, Seq: msg.Seq}
		resp, err := proc.Process(ctx, msg.Body)
		if err != nil {
			logger.Warn("Worker request %d failed: %v", msg.Seq, err)
			reply.Kind = ipc.KindError
			resp = []byte(err.Error())
		}
		reply.Body = resp

		if err := send(reply); err != nil {
			return fmt.Errorf("send response: %w", err)
		}
	}
}
