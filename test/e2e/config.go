package e2e

import (
	"fmt"
	"path/filepath"

	"github.com/marmos91/dittoxfer/pkg/config"
)

// TestConfig selects the store backend and pool kind of one e2e run.
type TestConfig struct {
	Name      string
	StoreType string
	PoolKind  string

	// Set by SetupS3Config.
	s3Endpoint string
	s3Bucket   string
}

func (tc *TestConfig) String() string {
	return tc.Name
}

// StoreConfig builds the store section for this configuration. dir is a
// scratch directory owned by the test.
func (tc *TestConfig) StoreConfig(dir string) (config.StoreConfig, error) {
	cfg := config.StoreConfig{Type: tc.StoreType}

	switch tc.StoreType {
	case "memory":
	case "filesystem":
		cfg.Filesystem = map[string]any{"path": filepath.Join(dir, "files")}
	case "badger":
		cfg.Badger = map[string]any{"path": filepath.Join(dir, "files.db")}
	case "s3":
		if tc.s3Bucket == "" {
			return cfg, fmt.Errorf("s3 configuration %s has no bucket; call SetupS3Config", tc.Name)
		}
		cfg.S3 = map[string]any{
			"region":            "us-east-1",
			"bucket":            tc.s3Bucket,
			"endpoint":          tc.s3Endpoint,
			"access_key_id":     "test",
			"secret_access_key": "test",
			"max_retries":       2,
		}
	default:
		return cfg, fmt.Errorf("unknown store type: %s", tc.StoreType)
	}
	return cfg, nil
}

// AllConfigurations returns all test configurations to run.
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{Name: "memory-thread", StoreType: "memory", PoolKind: "thread"},
		{Name: "filesystem-thread", StoreType: "filesystem", PoolKind: "thread"},
		{Name: "badger-thread", StoreType: "badger", PoolKind: "thread"},
		{Name: "filesystem-process", StoreType: "filesystem", PoolKind: "process"},
	}
}

// S3Configurations returns configurations that use S3 (requires Localstack).
func S3Configurations() []*TestConfig {
	return []*TestConfig{
		{Name: "s3-thread", StoreType: "s3", PoolKind: "thread"},
		{Name: "s3-process", StoreType: "s3", PoolKind: "process"},
	}
}
