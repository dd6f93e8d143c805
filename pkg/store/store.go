// Package store defines the flat, sandboxed file namespace served by the
// transfer protocol and the errors every backend reports.
//
// Backends live in subpackages:
//   - fs: a directory on the local filesystem (atomic replace on write)
//   - memory: a process-local map, for tests and ephemeral servers
//   - badger: an embedded BadgerDB key/value store
//   - s3: one object per file in an S3 bucket
//
// All backends share the conformance suite in store/testing.
package store

import "context"

// FileStore is a flat namespace of named byte blobs.
//
// Names are validated with ValidateName by every method; an invalid name
// fails with ErrInvalidName before any I/O is attempted, so no operation
// can reach outside the store's root.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Concurrent Writes to the
// same name leave the content of exactly one of the writers ("last writer
// wins"); a reader never observes a mixture of two writes.
type FileStore interface {
	// List returns the names of all stored files in ascending order.
	// Hidden names (leading '.') are never returned.
	List(ctx context.Context) ([]string, error)

	// Read returns the full content of name, or ErrNotFound.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write creates name or replaces its content.
	Write(ctx context.Context, name string, data []byte) error

	// Delete removes name, or returns ErrNotFound.
	Delete(ctx context.Context, name string) error

	// Close releases resources held by the store. Further calls fail with
	// ErrClosed where the backend can detect it.
	Close() error
}
