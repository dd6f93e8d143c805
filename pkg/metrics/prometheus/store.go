package prometheus

import (
	"errors"
	"time"

	"github.com/marmos91/dittoxfer/pkg/metrics"
	"github.com/marmos91/dittoxfer/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type storeMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewStoreMetrics creates StoreMetrics on the global registry, or a no-op
// implementation if metrics are not enabled.
func NewStoreMetrics() metrics.StoreMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopStoreMetrics()
	}
	return NewStoreMetricsWith(metrics.GetRegistry())
}

// NewStoreMetricsWith registers the store metrics on reg.
func NewStoreMetricsWith(reg prometheus.Registerer) metrics.StoreMetrics {
	f := promauto.With(reg)
	return &storeMetrics{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoxfer_store_operations_total",
				Help: "File store operations by backend, operation and result",
			},
			[]string{"backend", "operation", "result"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittoxfer_store_operation_duration_milliseconds",
				Help:    "File store operation latency in milliseconds",
				Buckets: []float64{0.1, 1, 10, 100, 1000},
			},
			[]string{"backend", "operation"},
		),
	}
}

func (m *storeMetrics) ObserveOperation(backend, operation string, duration time.Duration, err error) {
	m.operations.WithLabelValues(backend, operation, result(err)).Inc()
	m.duration.WithLabelValues(backend, operation).Observe(float64(duration.Microseconds()) / 1000)
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInvalidName):
		return "invalid_name"
	default:
		return "error"
	}
}
