package pool

import (
	"context"

	"github.com/marmos91/dittoxfer/pkg/metrics"
)

// NewThreadPool creates a pool of size goroutine workers sharing proc.
// proc must be safe for concurrent use.
func NewThreadPool(size int, proc Processor, m metrics.XferMetrics) Pool {
	if proc == nil {
		panic("pool: nil processor")
	}
	return newPool(KindThread, size, m, func(context.Context, int) (worker, error) {
		return sharedWorker{proc: proc}, nil
	})
}

type sharedWorker struct {
	proc Processor
}

func (w sharedWorker) prepare(context.Context) error { return nil }
func (w sharedWorker) processor() Processor          { return w.proc }
func (w sharedWorker) close() error                  { return nil }
