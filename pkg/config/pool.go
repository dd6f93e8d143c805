package config

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittoxfer/pkg/dispatcher"
	"github.com/marmos91/dittoxfer/pkg/metrics"
	"github.com/marmos91/dittoxfer/pkg/pool"
	"github.com/marmos91/dittoxfer/pkg/store"
)

// CreatePool builds the worker pool for the xfer adapter.
//
// A thread pool dispatches every request against fs in-process. A process
// pool ignores fs: each worker process opens its own store from the store
// section of cfg, delivered as its init message.
func CreatePool(cfg *Config, fs store.FileStore, m metrics.XferMetrics) (pool.Pool, error) {
	kind, err := pool.ParseKind(cfg.Adapters.Xfer.PoolKind)
	if err != nil {
		return nil, err
	}
	size := cfg.Adapters.Xfer.PoolSize

	switch kind {
	case pool.KindThread:
		return pool.NewThreadPool(size, dispatcher.New(fs, m), m), nil

	case pool.KindProcess:
		payload, err := EncodeWorkerInit(&cfg.Store)
		if err != nil {
			return nil, err
		}
		return pool.NewProcessPool(size, pool.ProcessConfig{
			Command:        cfg.Worker.Command,
			Init:           payload,
			StartTimeout:   cfg.Worker.StartTimeout,
			MaxMessageSize: cfg.Worker.MaxMessageSize,
			Env:            []string{"DITTOXFER_LOGGING_LEVEL=" + cfg.Logging.Level},
		}, m)
	}

	return nil, fmt.Errorf("unsupported pool kind %q", kind)
}

// EncodeWorkerInit serializes the store section for a worker process.
func EncodeWorkerInit(cfg *StoreConfig) ([]byte, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode worker init: %w", err)
	}
	return data, nil
}

// DecodeWorkerInit is the inverse of EncodeWorkerInit.
func DecodeWorkerInit(data []byte) (*StoreConfig, error) {
	var cfg StoreConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode worker init: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, formatValidationError(err)
	}
	return &cfg, nil
}

// WorkerFactory is the pool.ProcessorFactory of worker processes started
// by CreatePool. It opens the store described by the init message.
//
// Request metrics are not collected inside workers; the parent records
// connection and wire-level metrics for them.
func WorkerFactory(ctx context.Context, payload []byte) (pool.Processor, func() error, error) {
	cfg, err := DecodeWorkerInit(payload)
	if err != nil {
		return nil, nil, err
	}

	s, err := CreateStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s store: %w", cfg.Type, err)
	}
	return dispatcher.New(s, nil), s.Close, nil
}
