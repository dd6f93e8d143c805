package config

import (
	"github.com/marmos91/dittoxfer/pkg/metrics"
	promMetrics "github.com/marmos91/dittoxfer/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// XferMetrics is never nil; it is a no-op when metrics are disabled.
	XferMetrics metrics.XferMetrics

	// StoreMetrics is nil when metrics are disabled, so that
	// store.WithMetrics leaves the store unwrapped.
	StoreMetrics metrics.StoreMetrics
}

// InitializeMetrics creates the metrics components described by cfg.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			XferMetrics: metrics.NewNoopXferMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Host: cfg.Server.Metrics.Host,
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:       server,
		XferMetrics:  promMetrics.NewXferMetrics(),
		StoreMetrics: promMetrics.NewStoreMetrics(),
	}
}
