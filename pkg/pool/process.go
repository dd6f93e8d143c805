package pool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/internal/protocol/ipc"
	"github.com/marmos91/dittoxfer/pkg/metrics"
)

// ProcessConfig describes how worker processes are launched.
type ProcessConfig struct {
	// Command is the worker executable. Default: the running binary.
	Command string

	// Args are passed to Command. Default: ["worker"].
	Args []string

	// Env is appended to the parent's environment.
	Env []string

	// Init is delivered to each worker in its init message; it usually
	// carries the store configuration.
	Init []byte

	// StartTimeout bounds the init handshake. Default: 10s.
	StartTimeout time.Duration

	// MaxMessageSize bounds one response read back from a worker.
	// Zero means unlimited.
	MaxMessageSize int

	// Stderr receives the workers' log output. Default: os.Stderr.
	Stderr io.Writer
}

func (c *ProcessConfig) applyDefaults() error {
	if c.Command == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve worker executable: %w", err)
		}
		c.Command = exe
	}
	if c.Args == nil {
		c.Args = []string{"worker"}
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = 10 * time.Second
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	return nil
}

// NewProcessPool creates a pool of size workers, each pinned to a child
// process. The parent keeps all socket I/O; a worker process only sees
// complete requests.
//
// A child that exits fails the connection it was serving and is replaced
// before its worker takes the next connection.
func NewProcessPool(size int, cfg ProcessConfig, m metrics.XferMetrics) (Pool, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.NewNoopXferMetrics()
	}

	return newPool(KindProcess, size, m, func(ctx context.Context, id int) (worker, error) {
		w := &childWorker{id: id, cfg: cfg, metrics: m}
		if err := w.start(ctx); err != nil {
			return nil, err
		}
		return w, nil
	}), nil
}

// errWorkerDead is returned by Process once the child has failed.
var errWorkerDead = errors.New("worker process is not running")

// child is one running worker process and the parent's ends of its pipes.
type child struct {
	cmd    *exec.Cmd
	stdin  *os.File
	stdout *os.File
	reader *bufio.Reader
	exited chan struct{}
}

func (c *child) running() bool {
	select {
	case <-c.exited:
		return false
	default:
		return true
	}
}

func (c *child) kill() {
	_ = c.stdin.Close()
	_ = c.cmd.Process.Kill()
	<-c.exited
	_ = c.stdout.Close()
}

// shutdown closes stdin so the child exits on EOF, killing it after timeout.
func (c *child) shutdown(timeout time.Duration) error {
	_ = c.stdin.Close()

	select {
	case <-c.exited:
	case <-time.After(timeout):
		_ = c.cmd.Process.Kill()
		<-c.exited
	}
	_ = c.stdout.Close()

	if state := c.cmd.ProcessState; state != nil && !state.Success() {
		return fmt.Errorf("process %d: %s", state.Pid(), state)
	}
	return nil
}

// childWorker is the parent's handle on one worker slot. mu serializes
// requests and restarts; procMu guards the current child so close never
// waits behind an in-flight request.
type childWorker struct {
	id      int
	cfg     ProcessConfig
	metrics metrics.XferMetrics

	mu     sync.Mutex
	seq    uint32
	failed bool

	procMu sync.Mutex
	proc   *child
	closed bool
}

func spawn(cfg ProcessConfig) (*child, error) {
	// Explicit pipes: exec's own pipes are closed by Wait, which would race
	// with reading the final response.
	childIn, parentOut, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	parentIn, childOut, err := os.Pipe()
	if err != nil {
		_ = childIn.Close()
		_ = parentOut.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Stdin = childIn
	cmd.Stdout = childOut
	cmd.Stderr = cfg.Stderr

	err = cmd.Start()
	_ = childIn.Close()
	_ = childOut.Close()
	if err != nil {
		_ = parentOut.Close()
		_ = parentIn.Close()
		return nil, fmt.Errorf("start worker process: %w", err)
	}

	c := &child{
		cmd:    cmd,
		stdin:  parentOut,
		stdout: parentIn,
		reader: bufio.NewReaderSize(parentIn, 64<<10),
		exited: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(c.exited)
	}()
	return c, nil
}

// start launches a child and completes the init handshake. Callers hold mu
// or have exclusive access.
func (w *childWorker) start(ctx context.Context) error {
	c, err := spawn(w.cfg)
	if err != nil {
		return err
	}

	if err := handshake(ctx, c, w.cfg); err != nil {
		c.kill()
		return fmt.Errorf("worker %d init: %w", w.id, err)
	}

	w.procMu.Lock()
	if w.closed {
		w.procMu.Unlock()
		c.kill()
		return ErrPoolClosed
	}
	w.proc = c
	w.procMu.Unlock()

	w.seq = 0
	w.failed = false
	logger.Debug("Worker %d: process %d ready", w.id, c.cmd.Process.Pid)
	return nil
}

func handshake(ctx context.Context, c *child, cfg ProcessConfig) error {
	if err := ipc.WriteMessage(c.stdin, &ipc.Message{Kind: ipc.KindInit, Body: cfg.Init}); err != nil {
		return err
	}

	type result struct {
		msg *ipc.Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := ipc.ReadMessage(c.reader, cfg.MaxMessageSize)
		ch <- result{msg, err}
	}()

	timer := time.NewTimer(cfg.StartTimeout)
	defer timer.Stop()

	// On timeout or cancellation the caller kills the child, which
	// unblocks the reader goroutine.
	select {
	case r := <-ch:
		if r.err != nil {
			return r.err
		}
		switch r.msg.Kind {
		case ipc.KindReady:
			return nil
		case ipc.KindError:
			return errors.New(string(r.msg.Body))
		default:
			return fmt.Errorf("unexpected %s message", r.msg.Kind)
		}
	case <-timer.C:
		return fmt.Errorf("no ready message within %v", cfg.StartTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *childWorker) current() *child {
	w.procMu.Lock()
	defer w.procMu.Unlock()
	return w.proc
}

// prepare restarts the child if it exited or failed during the previous
// connection.
func (w *childWorker) prepare(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.current()
	if c != nil && !w.failed && c.running() {
		return nil
	}

	logger.Warn("Worker %d: process exited, restarting", w.id)
	if c != nil {
		c.kill()
	}
	w.metrics.RecordWorkerRestart()
	return w.start(ctx)
}

func (w *childWorker) processor() Processor { return w }

// Process sends raw to the child and waits for its response.
func (w *childWorker) Process(ctx context.Context, raw []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.current()
	if w.failed || c == nil {
		return nil, errWorkerDead
	}

	w.seq++
	seq := w.seq

	if err := ipc.WriteMessage(c.stdin, &ipc.Message{Kind: ipc.KindRequest, Seq: seq, Body: raw}); err != nil {
		w.failed = true
		return nil, fmt.Errorf("worker %d: send request: %w", w.id, err)
	}

	msg, err := ipc.ReadMessage(c.reader, w.cfg.MaxMessageSize)
	if err != nil {
		w.failed = true
		return nil, fmt.Errorf("worker %d: read response: %w", w.id, err)
	}
	if msg.Seq != seq {
		w.failed = true
		return nil, fmt.Errorf("worker %d: response seq %d, want %d", w.id, msg.Seq, seq)
	}

	switch msg.Kind {
	case ipc.KindResponse:
		return msg.Body, nil
	case ipc.KindError:
		return nil, fmt.Errorf("worker %d: %s", w.id, msg.Body)
	default:
		w.failed = true
		return nil, fmt.Errorf("worker %d: unexpected %s message", w.id, msg.Kind)
	}
}

// close stops the current child. It does not wait for an in-flight
// request; the child's exit makes that request fail.
func (w *childWorker) close() error {
	w.procMu.Lock()
	c := w.proc
	w.proc = nil
	w.closed = true
	w.procMu.Unlock()

	if c == nil {
		return nil
	}
	if err := c.shutdown(5 * time.Second); err != nil {
		return fmt.Errorf("worker %d: %w", w.id, err)
	}
	return nil
}
