package store

import (
	"context"
	"time"
)

// Metrics observes store operations. pkg/metrics.StoreMetrics satisfies it.
type Metrics interface {
	ObserveOperation(backend, operation string, duration time.Duration, err error)
}

// Instrumented wraps a FileStore and reports every operation to Metrics.
type Instrumented struct {
	FileStore
	backend string
	metrics Metrics
}

// WithMetrics wraps fs so that each call is reported to m under backend.
// A nil m returns fs unchanged.
func WithMetrics(fs FileStore, backend string, m Metrics) FileStore {
	if m == nil {
		return fs
	}
	return &Instrumented{FileStore: fs, backend: backend, metrics: m}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	s.metrics.ObserveOperation(s.backend, op, time.Since(start), err)
}

func (s *Instrumented) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	names, err := s.FileStore.List(ctx)
	s.observe("list", start, err)
	return names, err
}

func (s *Instrumented) Read(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	data, err := s.FileStore.Read(ctx, name)
	s.observe("read", start, err)
	return data, err
}

func (s *Instrumented) Write(ctx context.Context, name string, data []byte) error {
	start := time.Now()
	err := s.FileStore.Write(ctx, name, data)
	s.observe("write", start, err)
	return err
}

func (s *Instrumented) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := s.FileStore.Delete(ctx, name)
	s.observe("delete", start, err)
	return err
}

// Unwrap returns the wrapped store.
func (s *Instrumented) Unwrap() FileStore {
	return s.FileStore
}
