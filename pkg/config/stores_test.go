package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittoxfer/pkg/metrics"
	"github.com/marmos91/dittoxfer/pkg/pool"
	"github.com/marmos91/dittoxfer/pkg/store"
	"github.com/marmos91/dittoxfer/pkg/store/badger"
	"github.com/marmos91/dittoxfer/pkg/store/fs"
	"github.com/marmos91/dittoxfer/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStore_Filesystem(t *testing.T) {
	root := filepath.Join(t.TempDir(), "files")
	cfg := &StoreConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": root, "file_mode": "0600"},
	}

	s, err := CreateStore(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.IsType(t, &fs.FSStore{}, s)
	require.NoError(t, s.Write(context.Background(), "a.txt", []byte("x")))

	info, err := os.Stat(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestCreateStore_Memory(t *testing.T) {
	s, err := CreateStore(context.Background(), &StoreConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.MemoryStore{}, s)
}

func TestCreateStore_Badger(t *testing.T) {
	cfg := &StoreConfig{
		Type:   "badger",
		Badger: map[string]any{"in_memory": true, "gc_interval": "0s"},
	}

	s, err := CreateStore(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.IsType(t, &badger.BadgerStore{}, s)
}

func TestCreateStore_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *StoreConfig
	}{
		{"unknown type", &StoreConfig{Type: "tape"}},
		{"filesystem without path", &StoreConfig{Type: "filesystem", Filesystem: map[string]any{}}},
		{"badger bad duration", &StoreConfig{Type: "badger", Badger: map[string]any{"in_memory": true, "gc_interval": "often"}}},
		{"s3 without bucket", &StoreConfig{Type: "s3", S3: map[string]any{"region": "us-east-1"}}},
		{"s3 without region", &StoreConfig{Type: "s3", S3: map[string]any{"bucket": "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateStore(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestDecodeOptions_WeakTypes(t *testing.T) {
	var opts struct {
		SyncWrites bool          `mapstructure:"sync_writes"`
		CacheMB    int64         `mapstructure:"cache_mb"`
		Interval   time.Duration `mapstructure:"interval"`
	}

	err := decodeOptions(map[string]any{
		"sync_writes": "true",
		"cache_mb":    "128",
		"interval":    "90s",
	}, &opts)
	require.NoError(t, err)

	assert.True(t, opts.SyncWrites)
	assert.Equal(t, int64(128), opts.CacheMB)
	assert.Equal(t, 90*time.Second, opts.Interval)
}

func TestWorkerInit_RoundTrip(t *testing.T) {
	in := &StoreConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": "/srv/files"},
	}

	data, err := EncodeWorkerInit(in)
	require.NoError(t, err)

	out, err := DecodeWorkerInit(data)
	require.NoError(t, err)
	assert.Equal(t, "filesystem", out.Type)
	assert.Equal(t, "/srv/files", out.Filesystem["path"])
}

func TestDecodeWorkerInit_Invalid(t *testing.T) {
	_, err := DecodeWorkerInit([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeWorkerInit([]byte(`{"type":"tape"}`))
	assert.Error(t, err)
}

func TestCreatePool_Thread(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Xfer.PoolSize = 3

	p, err := CreatePool(cfg, memory.New(), metrics.NewNoopXferMetrics())
	require.NoError(t, err)

	assert.Equal(t, pool.KindThread, p.Kind())
	assert.Equal(t, 3, p.Size())
}

func TestCreatePool_UnknownKind(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Xfer.PoolKind = "fiber"

	_, err := CreatePool(cfg, memory.New(), nil)
	assert.Error(t, err)
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	result := InitializeMetrics(GetDefaultConfig())

	assert.Nil(t, result.Server)
	assert.Nil(t, result.StoreMetrics)
	assert.NotNil(t, result.XferMetrics)
}

func TestCleanupStaleUploads(t *testing.T) {
	root := t.TempDir()
	s, err := CreateStore(context.Background(), &StoreConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": root},
	})
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), "keep.txt", []byte("x")))
	stale := filepath.Join(root, store.TempPrefix+"123")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0644))

	CleanupStaleUploads(context.Background(), s)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	names, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, names)

	// Stores without temporary files are left alone.
	CleanupStaleUploads(context.Background(), memory.New())
}

func TestWorkerFactory(t *testing.T) {
	root := t.TempDir()
	payload, err := EncodeWorkerInit(&StoreConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": root},
	})
	require.NoError(t, err)

	proc, cleanup, err := WorkerFactory(context.Background(), payload)
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup()) }()

	resp, err := proc.Process(context.Background(), []byte("UPLOAD a.txt aGk="))
	require.NoError(t, err)
	assert.Contains(t, string(resp), "berhasil diupload")

	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestWorkerFactory_BadInit(t *testing.T) {
	_, _, err := WorkerFactory(context.Background(), []byte(`{"type":"filesystem","filesystem":{}}`))
	assert.Error(t, err)
}
