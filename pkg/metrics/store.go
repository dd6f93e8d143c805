package metrics

import "time"

// StoreMetrics records file store operations. It satisfies store.Metrics.
type StoreMetrics interface {
	ObserveOperation(backend, operation string, duration time.Duration, err error)
}

type noopStoreMetrics struct{}

// NewNoopStoreMetrics returns a StoreMetrics that discards everything.
func NewNoopStoreMetrics() StoreMetrics {
	return noopStoreMetrics{}
}

func (noopStoreMetrics) ObserveOperation(backend, operation string, duration time.Duration, err error) {
}
