package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/marmos91/dittoxfer/pkg/store"
)

// MemoryStore implements store.FileStore in process memory.
//
// Content is copied on the way in and on the way out, so callers may reuse
// their buffers. Contents are lost when the process exits, and each process
// has its own map; use a shared backend with the process pool.
type MemoryStore struct {
	mu     sync.RWMutex
	files  map[string][]byte
	closed bool
}

// New creates an empty in-memory store.
func New() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *MemoryStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", name, store.ErrNotFound)
	}
	return slices.Clone(data), nil
}

func (s *MemoryStore) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	s.files[name] = buf
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	if _, ok := s.files[name]; !ok {
		return fmt.Errorf("file %s: %w", name, store.ErrNotFound)
	}
	delete(s.files, name)
	return nil
}

// Close drops all content.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.files = nil
	return nil
}

// Len returns the number of stored files.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
