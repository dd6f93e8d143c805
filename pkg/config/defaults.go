package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittoxfer/pkg/adapter/xfer"
)

// ApplyDefaults fills in unspecified fields. Explicit values are kept.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStoreDefaults(&cfg.Store)
	applyWorkerDefaults(&cfg.Worker)
	applyAdaptersDefaults(&cfg.Adapters)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "files"
	}
	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = "files.db"
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
}

func applyWorkerDefaults(cfg *WorkerConfig) {
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = 10 * time.Second
	}
}

// applyAdaptersDefaults fills in adapter settings. Whether the xfer
// adapter is enabled is decided by Load, since false is also a valid
// explicit value.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	if cfg.Xfer.Port == 0 {
		cfg.Xfer.Port = xfer.DefaultPort
	}
	cfg.Xfer.ApplyDefaults()
}

// GetDefaultConfig returns a Config with every default applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Adapters.Xfer.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
