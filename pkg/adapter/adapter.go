// Package adapter defines the lifecycle shared by protocol front ends.
package adapter

import "context"

// Adapter is a protocol server managed by server.DittoXferServer.
//
// Lifecycle:
//  1. Serve(ctx) blocks, accepting and serving connections
//  2. Stop(ctx) or cancelling ctx begins graceful shutdown
//
// Thread safety:
// Stop may be called concurrently with Serve and more than once.
type Adapter interface {
	// Serve listens and serves until ctx is cancelled or Stop is called.
	// It returns nil after a clean shutdown.
	Serve(ctx context.Context) error

	// Stop initiates shutdown and waits for active connections until ctx
	// is done.
	Stop(ctx context.Context) error

	// Protocol names the adapter in logs, e.g. "XFER".
	Protocol() string

	// Port is the bound TCP port once listening, else the configured one.
	Port() int
}
