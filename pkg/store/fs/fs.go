package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/pkg/store"
)

// FSStore implements store.FileStore on a single local directory.
//
// Each stored file is a regular file directly under the root directory.
// Writes go to a hidden temporary file in the same directory which is then
// renamed over the target, so a concurrent reader sees either the old or
// the new content, and two concurrent writers of one name leave exactly one
// writer's bytes.
//
// Several processes may open the same root concurrently; every operation
// is a self-contained filesystem call and no state is cached.
type FSStore struct {
	root   string
	perm   os.FileMode
	closed atomic.Bool
}

// Config configures an FSStore.
type Config struct {
	// Path is the root directory. It is created with 0755 if missing.
	Path string

	// FileMode is the permission of stored files. Defaults to 0644.
	FileMode os.FileMode
}

// New creates a filesystem-backed store rooted at cfg.Path.
func New(ctx context.Context, cfg Config) (*FSStore, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, errors.New("filesystem store: path is required")
	}

	// ========================================================================
	// Step 2: Create the root directory if it doesn't exist
	// ========================================================================

	root, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	perm := cfg.FileMode
	if perm == 0 {
		perm = 0644
	}

	logger.Debug("Filesystem store ready at %s", root)
	return &FSStore{root: root, perm: perm}, nil
}

// Root returns the absolute root directory.
func (s *FSStore) Root() string {
	return s.root
}

// path maps a validated name to its location under the root and confirms
// the result did not escape the root.
func (s *FSStore) path(name string) (string, error) {
	if err := store.ValidateName(name); err != nil {
		return "", err
	}

	p := filepath.Join(s.root, name)
	if filepath.Dir(p) != s.root {
		return "", fmt.Errorf("%w: %q resolves outside the store", store.ErrInvalidName, name)
	}
	return p, nil
}

func (s *FSStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return ctx.Err()
}

// List returns the regular, non-hidden files directly under the root.
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !store.Listable(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// Read returns the content of name.
func (s *FSStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("file %s: %w", name, store.ErrNotFound)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Write atomically creates or replaces name.
func (s *FSStore) Write(ctx context.Context, name string, data []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	p, err := s.path(name)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(p, data, s.perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Delete removes name.
func (s *FSStore) Delete(ctx context.Context, name string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	p, err := s.path(name)
	if err != nil {
		return err
	}

	info, err := os.Lstat(p)
	if err == nil && info.IsDir() {
		return fmt.Errorf("file %s: %w", name, store.ErrNotFound)
	}

	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file %s: %w", name, store.ErrNotFound)
		}
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// Close marks the store closed. Files on disk are left in place.
func (s *FSStore) Close() error {
	s.closed.Store(true)
	return nil
}

// CleanupTemp removes temporary files left behind by writes that were
// interrupted, e.g. by a crash. It returns the number of files removed.
func (s *FSStore) CleanupTemp(ctx context.Context) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("failed to list store directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), store.TempPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove stale temp file %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}
