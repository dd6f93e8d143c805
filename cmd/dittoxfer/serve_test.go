package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServeConfig_Defaults(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := loadServeConfig([]string{"--config", cfgPath})
	require.NoError(t, err)

	assert.Equal(t, 7778, cfg.Adapters.Xfer.Port)
	assert.Equal(t, 5, cfg.Adapters.Xfer.PoolSize)
	assert.Equal(t, "thread", cfg.Adapters.Xfer.PoolKind)
	assert.Equal(t, "files", cfg.Store.Filesystem["path"])
}

func TestLoadServeConfig_FlagsOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "missing.yaml")
	storePath := filepath.Join(t.TempDir(), "store")

	cfg, err := loadServeConfig([]string{
		"--config", cfgPath,
		"--port", "9001",
		"--pool-size", "50",
		"--pool-kind", "process",
		"--store-path", storePath,
		"--log-level", "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Adapters.Xfer.Port)
	assert.Equal(t, 50, cfg.Adapters.Xfer.PoolSize)
	assert.Equal(t, "process", cfg.Adapters.Xfer.PoolKind)
	assert.Equal(t, storePath, cfg.Store.Filesystem["path"])
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestLoadServeConfig_BadgerPath(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := loadServeConfig([]string{"--config", cfgPath, "--store", "badger", "--store-path", "/tmp/x.db"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.Store.Badger["path"])
}

func TestLoadServeConfig_Invalid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "missing.yaml")

	tests := [][]string{
		{"--pool-kind", "fiber"},
		{"--pool-kind", "process", "--store", "memory"},
		{"--port", "70000"},
		{"stray"},
	}
	for _, args := range tests {
		_, err := loadServeConfig(append([]string{"--config", cfgPath}, args...))
		assert.Error(t, err, "args %v", args)
	}
}
