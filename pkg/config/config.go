package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittoxfer/pkg/adapter/xfer"
	"github.com/spf13/viper"
)

// Config is the complete DittoXfer configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (applied by cmd/dittoxfer after Load)
//  2. Environment variables (DITTOXFER_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values
//
// The store section follows the factory pattern: Type selects the backend
// and only the matching option map is decoded.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format: text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout bounds the Stop calls issued to adapters.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port" validate:"min=0,max=65535"`
}

// StoreConfig selects the file store backend.
type StoreConfig struct {
	// Type: filesystem, memory, badger, s3
	Type string `mapstructure:"type" json:"type" validate:"required,oneof=filesystem memory badger s3"`

	Filesystem map[string]any `mapstructure:"filesystem" json:"filesystem,omitempty"`
	Memory     map[string]any `mapstructure:"memory" json:"memory,omitempty"`
	Badger     map[string]any `mapstructure:"badger" json:"badger,omitempty"`
	S3         map[string]any `mapstructure:"s3" json:"s3,omitempty"`
}

// WorkerConfig controls worker processes of the process pool.
type WorkerConfig struct {
	// Command is the worker executable. Empty means this binary.
	Command string `mapstructure:"command"`

	// StartTimeout bounds a worker's init handshake.
	StartTimeout time.Duration `mapstructure:"start_timeout" validate:"min=0"`

	// MaxMessageSize bounds one response read from a worker. 0 = unlimited.
	MaxMessageSize int `mapstructure:"max_message_size" validate:"min=0"`
}

// AdaptersConfig contains protocol adapter configurations.
type AdaptersConfig struct {
	Xfer xfer.XferConfig `mapstructure:"xfer"`
}

// Load loads configuration from file, environment, and defaults.
//
// A missing config file is not an error; defaults are used.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variables and the config file search.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOXFER_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOXFER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("adapters.xfer.enabled", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/dittoxfer, ~/.config/dittoxfer, or
// "." when no home directory is known.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittoxfer")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dittoxfer")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists reports whether a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
