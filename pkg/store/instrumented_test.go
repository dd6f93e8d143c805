package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittoxfer/pkg/store"
	"github.com/marmos91/dittoxfer/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedOp struct {
	backend, op string
	err         error
}

type recorder struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (r *recorder) ObserveOperation(backend, operation string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, recordedOp{backend, operation, err})
}

func TestWithMetrics(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := store.WithMetrics(memory.New(), "memory", rec)

	require.NoError(t, s.Write(ctx, "a.txt", []byte("a")))
	_, err := s.Read(ctx, "missing.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.List(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "a.txt"))

	require.Len(t, rec.ops, 4)
	assert.Equal(t, "write", rec.ops[0].op)
	assert.Equal(t, "read", rec.ops[1].op)
	assert.ErrorIs(t, rec.ops[1].err, store.ErrNotFound)
	assert.Equal(t, "list", rec.ops[2].op)
	assert.Equal(t, "delete", rec.ops[3].op)
	assert.Equal(t, "memory", rec.ops[0].backend)
}

func TestWithMetrics_NilPassesThrough(t *testing.T) {
	m := memory.New()
	assert.Same(t, m, store.WithMetrics(m, "memory", nil))
}
