package config

import (
	"strings"
	"testing"
)

func TestValidate_DefaultConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Logging.Level = "TRACE" },
			wantErr: "logging.level",
		},
		{
			name:    "invalid log format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "unknown store type",
			modify:  func(c *Config) { c.Store.Type = "tape" },
			wantErr: "store.type",
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.Adapters.Xfer.Port = 70000 },
			wantErr: "adapters.xfer.port",
		},
		{
			name:    "adapter disabled",
			modify:  func(c *Config) { c.Adapters.Xfer.Enabled = false },
			wantErr: "at least one adapter",
		},
		{
			name:    "unknown pool kind",
			modify:  func(c *Config) { c.Adapters.Xfer.PoolKind = "fiber" },
			wantErr: "adapters.xfer.pool_kind",
		},
		{
			name: "process pool with memory store",
			modify: func(c *Config) {
				c.Adapters.Xfer.PoolKind = "process"
				c.Store.Type = "memory"
			},
			wantErr: "process pool requires",
		},
		{
			name: "process pool with badger store",
			modify: func(c *Config) {
				c.Adapters.Xfer.PoolKind = "process"
				c.Store.Type = "badger"
			},
			wantErr: "process pool requires",
		},
		{
			name: "metrics port conflict",
			modify: func(c *Config) {
				c.Server.Metrics.Enabled = true
				c.Server.Metrics.Port = c.Adapters.Xfer.Port
			},
			wantErr: "conflicts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ProcessPoolWithFilesystem(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Xfer.PoolKind = "process"

	if err := Validate(cfg); err != nil {
		t.Fatalf("Process pool over a filesystem store should be valid: %v", err)
	}
}
