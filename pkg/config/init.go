package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is written by InitConfig. It must stay loadable by Load.
const sampleConfig = `# DittoXfer Configuration File
#
# Every value below is the default. Environment variables override file
# values, e.g. DITTOXFER_ADAPTERS_XFER_PORT=9000.

logging:
  # DEBUG, INFO, WARN, ERROR
  level: INFO
  # text or json
  format: text
  # stdout, stderr, or a file path
  output: stdout

server:
  shutdown_timeout: 30s
  metrics:
    enabled: false
    port: 9090

store:
  # filesystem, memory, badger, s3
  type: filesystem
  filesystem:
    path: files
  badger:
    path: files.db
    sync_writes: false
    gc_interval: 10m
  s3:
    region: us-east-1
    bucket: ""
    key_prefix: ""
    endpoint: ""

worker:
  # Empty runs this binary as "dittoxfer worker".
  command: ""
  start_timeout: 10s

adapters:
  xfer:
    enabled: true
    host: ""
    port: 7778
    # thread or process
    pool_kind: thread
    pool_size: 5
    read_timeout: 30m
    write_timeout: 30s
    shutdown_timeout: 30s
    max_request_size: 536870912
    read_buffer_size: 1048576
    # 0 disables rate limiting
    requests_per_second: 0
    metrics_log_interval: 5m
`

// InitConfig writes the sample configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the sample configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
