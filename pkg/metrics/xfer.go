package metrics

import "time"

// XferMetrics records transfer server activity.
//
// Implementations must be safe for concurrent use; every connection
// goroutine reports through the same instance.
type XferMetrics interface {
	// RecordRequest records one processed request. command is LIST, GET,
	// UPLOAD, DELETE or UNKNOWN; status is OK or ERROR.
	RecordRequest(command string, status string, duration time.Duration)

	// RecordBytes records decoded file bytes moved, direction "in" for
	// uploads and "out" for downloads.
	RecordBytes(direction string, bytes int64)

	// RecordWireBytes records raw bytes read from or written to sockets.
	RecordWireBytes(direction string, bytes int64)

	SetActiveConnections(count int32)
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()

	// SetBusyWorkers reports how many pool workers are serving a connection.
	SetBusyWorkers(count int32)

	// RecordWorkerRestart records a worker process being replaced after it
	// exited unexpectedly.
	RecordWorkerRestart()
}

type noopXferMetrics struct{}

// NewNoopXferMetrics returns an XferMetrics that discards everything.
func NewNoopXferMetrics() XferMetrics {
	return noopXferMetrics{}
}

func (noopXferMetrics) RecordRequest(command string, status string, duration time.Duration) {}
func (noopXferMetrics) RecordBytes(direction string, bytes int64)                         {}
func (noopXferMetrics) RecordWireBytes(direction string, bytes int64)                     {}
func (noopXferMetrics) SetActiveConnections(count int32)                                  {}
func (noopXferMetrics) RecordConnectionAccepted()                                         {}
func (noopXferMetrics) RecordConnectionClosed()                                           {}
func (noopXferMetrics) RecordConnectionForceClosed()                                      {}
func (noopXferMetrics) SetBusyWorkers(count int32)                                        {}
func (noopXferMetrics) RecordWorkerRestart()                                              {}
