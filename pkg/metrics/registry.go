// Package metrics defines the instrumentation interfaces of the transfer
// server and the optional Prometheus registry and HTTP endpoint.
//
// All metrics are optional. When InitRegistry has not been called,
// constructors return no-op implementations and nothing is exported.
//
// Usage:
//
//	// In main, when metrics are enabled
//	metrics.InitRegistry()
//	xferMetrics := prometheus.NewXferMetrics()
//
//	// Or use nil for no-op behavior
//	adapter := xfer.New(config, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide Prometheus registry with the Go
// runtime and process collectors. Subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the process-wide registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
