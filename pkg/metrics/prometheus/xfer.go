package prometheus

import (
	"time"

	"github.com/marmos91/dittoxfer/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// xferMetrics is the Prometheus implementation of metrics.XferMetrics.
type xferMetrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	bytesTransferred       *prometheus.CounterVec
	wireBytes              *prometheus.CounterVec
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	busyWorkers            prometheus.Gauge
	workerRestarts         prometheus.Counter
}

// NewXferMetrics creates XferMetrics on the global registry, or a no-op
// implementation if metrics are not enabled.
func NewXferMetrics() metrics.XferMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopXferMetrics()
	}
	return NewXferMetricsWith(metrics.GetRegistry())
}

// NewXferMetricsWith registers the transfer metrics on reg.
func NewXferMetricsWith(reg prometheus.Registerer) metrics.XferMetrics {
	f := promauto.With(reg)

	return &xferMetrics{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoxfer_requests_total",
				Help: "Total number of requests by command and status",
			},
			[]string{"command", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittoxfer_request_duration_milliseconds",
				Help:    "Duration of request processing in milliseconds",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
			[]string{"command"},
		),
		bytesTransferred: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoxfer_file_bytes_total",
				Help: "Decoded file bytes uploaded (in) and downloaded (out)",
			},
			[]string{"direction"},
		),
		wireBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoxfer_wire_bytes_total",
				Help: "Raw bytes read from (in) and written to (out) client sockets",
			},
			[]string{"direction"},
		),
		activeConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "dittoxfer_active_connections",
			Help: "Current number of client connections",
		}),
		connectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "dittoxfer_connections_accepted_total",
			Help: "Total client connections accepted",
		}),
		connectionsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "dittoxfer_connections_closed_total",
			Help: "Total client connections closed",
		}),
		connectionsForceClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "dittoxfer_connections_force_closed_total",
			Help: "Connections force-closed after the shutdown timeout",
		}),
		busyWorkers: f.NewGauge(prometheus.GaugeOpts{
			Name: "dittoxfer_pool_busy_workers",
			Help: "Pool workers currently serving a connection",
		}),
		workerRestarts: f.NewCounter(prometheus.CounterOpts{
			Name: "dittoxfer_pool_worker_restarts_total",
			Help: "Worker processes restarted after an unexpected exit",
		}),
	}
}

func (m *xferMetrics) RecordRequest(command string, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(command, status).Inc()
	m.requestDuration.WithLabelValues(command).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *xferMetrics) RecordBytes(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *xferMetrics) RecordWireBytes(direction string, bytes int64) {
	m.wireBytes.WithLabelValues(direction).Add(float64(bytes))
}

func (m *xferMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *xferMetrics) RecordConnectionAccepted()    { m.connectionsAccepted.Inc() }
func (m *xferMetrics) RecordConnectionClosed()      { m.connectionsClosed.Inc() }
func (m *xferMetrics) RecordConnectionForceClosed() { m.connectionsForceClosed.Inc() }

func (m *xferMetrics) SetBusyWorkers(count int32) {
	m.busyWorkers.Set(float64(count))
}

func (m *xferMetrics) RecordWorkerRestart() { m.workerRestarts.Inc() }
