package store

import "errors"

// ============================================================================
// Standard File Store Errors
// ============================================================================

// Backends wrap these with context so callers can test them with errors.Is:
//
//	if !exists {
//	    return fmt.Errorf("file %s: %w", name, store.ErrNotFound)
//	}
//
// The dispatcher maps them to protocol ERROR responses.

var (
	// ErrNotFound indicates the named file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidName indicates a name that is empty, contains a path
	// separator or control character, is a dot-name, or is too long.
	// Such names are rejected uniformly by every operation.
	ErrInvalidName = errors.New("invalid file name")

	// ErrClosed indicates an operation on a store that has been closed.
	ErrClosed = errors.New("store closed")
)
