package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/pkg/store"
)

// BadgerStore implements store.FileStore on an embedded BadgerDB database.
//
// Each file is a manifest key "file/<name>" pointing at content chunks (see
// keys.go). Badger keeps keys sorted, so List is a prefix scan that already
// yields names in ascending order. The manifest swap is a single-key
// transaction, which gives last-writer-wins semantics with no partial
// values.
//
// A Badger directory can only be opened by one process at a time.
type BadgerStore struct {
	db     *badger.DB
	closed atomic.Bool

	stopGC    chan struct{}
	gcDone    sync.WaitGroup
	closeOnce sync.Once
}

// Config configures a BadgerStore.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the whole database in memory. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every write before acknowledging it.
	SyncWrites bool

	// BlockCacheSizeMB is Badger's block cache size in MB (default: 64).
	BlockCacheSizeMB int64

	// IndexCacheSizeMB is Badger's index cache size in MB (default: 32).
	IndexCacheSizeMB int64

	// GCInterval is how often value log garbage collection runs.
	// 0 disables background GC.
	GCInterval time.Duration
}

// New opens (or creates) a Badger-backed store.
func New(ctx context.Context, cfg Config) (*BadgerStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger store: path is required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := cfg.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}

	s := &BadgerStore{
		db:     db,
		stopGC: make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcDone.Add(1)
		go s.runGC(cfg.GCInterval)
	}

	logger.Debug("Badger store opened (path=%q in_memory=%v)", cfg.Path, cfg.InMemory)
	return s, nil
}

func (s *BadgerStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return ctx.Err()
}

func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	names := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		count := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if count%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			count++

			name := string(it.Item().Key()[len(keyPrefix):])
			if store.Listable(name) {
				names = append(names, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return names, nil
}

func (s *BadgerStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	var data []byte
	// Manifest and chunks are read from one snapshot, so a concurrent
	// replace cannot mix versions.
	err := s.db.View(func(txn *badger.Txn) error {
		m, err := getManifest(txn, name)
		if err != nil {
			return err
		}

		data = make([]byte, 0, m.Size)
		for i := range m.Chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := txn.Get(chunkKey(m.ID, i))
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			if err := item.Value(func(val []byte) error {
				data = append(data, val...)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoManifest) {
			return nil, fmt.Errorf("file %s: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (s *BadgerStore) Write(ctx context.Context, name string, data []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	m := manifest{ID: uuid.New(), Size: int64(len(data))}
	chunks, err := s.writeChunks(m.ID, data)
	if err != nil {
		s.dropChunks(m.ID)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	m.Chunks = chunks

	value, err := encodeManifest(m)
	if err != nil {
		s.dropChunks(m.ID)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	var previous *manifest
	err = s.update(func(txn *badger.Txn) error {
		previous = nil
		old, err := getManifest(txn, name)
		switch {
		case err == nil:
			previous = &old
		case !errors.Is(err, errNoManifest):
			return err
		}
		return txn.Set(fileKey(name), value)
	})
	if err != nil {
		s.dropChunks(m.ID)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if previous != nil {
		s.dropChunks(previous.ID)
	}
	return nil
}

// writeChunks stores data under id. A write batch splits large files over
// as many transactions as Badger needs.
func (s *BadgerStore) writeChunks(id uuid.UUID, data []byte) (int, error) {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	count := 0
	for off := 0; off < len(data); off += chunkSize {
		end := min(off+chunkSize, len(data))
		// Badger may retain the value slice until the batch is flushed.
		chunk := make([]byte, end-off)
		copy(chunk, data[off:end])
		if err := wb.Set(chunkKey(id, count), chunk); err != nil {
			return 0, fmt.Errorf("chunk %d: %w", count, err)
		}
		count++
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return count, nil
}

// dropChunks removes the chunks of a replaced or deleted version. Failures
// leave unreachable chunks behind and are only logged.
func (s *BadgerStore) dropChunks(id uuid.UUID) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = chunkKeyPrefix(id)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err == nil && len(keys) > 0 {
		wb := s.db.NewWriteBatch()
		defer wb.Cancel()
		for _, k := range keys {
			if err = wb.Delete(k); err != nil {
				break
			}
		}
		if err == nil {
			err = wb.Flush()
		}
	}
	if err != nil {
		logger.Debug("Badger store: dropping chunks of %s: %v", id, err)
	}
}

func (s *BadgerStore) Delete(ctx context.Context, name string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	var removed manifest
	err := s.update(func(txn *badger.Txn) error {
		m, err := getManifest(txn, name)
		if err != nil {
			return err
		}
		removed = m
		return txn.Delete(fileKey(name))
	})
	if err != nil {
		if errors.Is(err, errNoManifest) {
			return fmt.Errorf("file %s: %w", name, store.ErrNotFound)
		}
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}

	s.dropChunks(removed.ID)
	return nil
}

// errNoManifest reports a missing file/<name> key.
var errNoManifest = errors.New("no manifest")

func getManifest(txn *badger.Txn, name string) (manifest, error) {
	item, err := txn.Get(fileKey(name))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return manifest{}, errNoManifest
		}
		return manifest{}, err
	}

	var m manifest
	err = item.Value(func(val []byte) error {
		var decodeErr error
		m, decodeErr = decodeManifest(val)
		return decodeErr
	})
	return m, err
}

// update runs fn in a read-write transaction, retrying when a concurrent
// transaction touched the same file first.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) || attempt >= maxConflictRetries {
			return err
		}
	}
}

const maxConflictRetries = 10

// Close stops background GC and closes the database.
func (s *BadgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopGC)
		s.gcDone.Wait()
		err = s.db.Close()
	})
	return err
}

// runGC periodically reclaims value log space left by replaced and
// deleted files.
func (s *BadgerStore) runGC(interval time.Duration) {
	defer s.gcDone.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						logger.Debug("Badger value log GC: %v", err)
					}
					break
				}
			}
		}
	}
}
