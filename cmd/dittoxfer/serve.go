package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/pkg/adapter/xfer"
	"github.com/marmos91/dittoxfer/pkg/config"
	"github.com/marmos91/dittoxfer/pkg/server"
	"github.com/marmos91/dittoxfer/pkg/store"
	"golang.org/x/sync/errgroup"
)

// serveFlags holds command-line overrides. Only flags that were set are
// applied on top of the loaded configuration.
type serveFlags struct {
	configPath string
	host       string
	port       int
	poolSize   int
	poolKind   string
	storeType  string
	storePath  string
	logLevel   string
	metrics    bool
}

func parseServeFlags(args []string) (*serveFlags, map[string]bool, error) {
	f := &serveFlags{}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittoxfer/config.yaml)")
	fs.StringVar(&f.host, "host", "", "Address to bind")
	fs.IntVar(&f.port, "port", xfer.DefaultPort, "Port to listen on")
	fs.IntVar(&f.poolSize, "pool-size", 5, "Number of connections served concurrently")
	fs.StringVar(&f.poolKind, "pool-kind", "thread", "Worker pool kind (thread, process)")
	fs.StringVar(&f.storeType, "store", "filesystem", "Store type (filesystem, memory, badger, s3)")
	fs.StringVar(&f.storePath, "store-path", "files", "Directory of the filesystem store or database of the badger store")
	fs.StringVar(&f.logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	fs.BoolVar(&f.metrics, "metrics", false, "Expose Prometheus metrics")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

func (f *serveFlags) apply(cfg *config.Config, set map[string]bool) {
	if set["host"] {
		cfg.Adapters.Xfer.Host = f.host
	}
	if set["port"] {
		cfg.Adapters.Xfer.Port = f.port
	}
	if set["pool-size"] {
		cfg.Adapters.Xfer.PoolSize = f.poolSize
	}
	if set["pool-kind"] {
		cfg.Adapters.Xfer.PoolKind = f.poolKind
	}
	if set["store"] {
		cfg.Store.Type = f.storeType
	}
	if set["store-path"] {
		switch cfg.Store.Type {
		case "badger":
			cfg.Store.Badger["path"] = f.storePath
		default:
			cfg.Store.Filesystem["path"] = f.storePath
		}
	}
	if set["log-level"] {
		cfg.Logging.Level = f.logLevel
	}
	if set["metrics"] {
		cfg.Server.Metrics.Enabled = f.metrics
	}
}

func loadServeConfig(args []string) (*config.Config, error) {
	f, set, err := parseServeFlags(args)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	f.apply(cfg, set)
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg config.LoggingConfig) error {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)
	return logger.SetOutput(cfg.Output)
}

func runServe(args []string) error {
	cfg, err := loadServeConfig(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := setupLogging(cfg.Logging); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("DittoXfer - concurrent file transfer server")

	metricsResult := config.InitializeMetrics(cfg)

	st, err := config.CreateStore(ctx, &cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to create %s store: %w", cfg.Store.Type, err)
	}
	config.CleanupStaleUploads(ctx, st)
	st = store.WithMetrics(st, cfg.Store.Type, metricsResult.StoreMetrics)
	logger.Info("Store: %s", cfg.Store.Type)

	p, err := config.CreatePool(cfg, st, metricsResult.XferMetrics)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("failed to create worker pool: %w", err)
	}

	srv := server.New(st)
	srv.StopTimeout = cfg.Server.ShutdownTimeout
	if err := srv.AddAdapter(xfer.New(cfg.Adapters.Xfer, p, metricsResult.XferMetrics)); err != nil {
		_ = st.Close()
		return err
	}

	logger.Info("Server configuration:")
	logger.Info("  Listen: %s:%d", cfg.Adapters.Xfer.Host, cfg.Adapters.Xfer.Port)
	logger.Info("  Pool: %s x %d", cfg.Adapters.Xfer.PoolKind, cfg.Adapters.Xfer.PoolSize)
	logger.Info("  Read timeout: %v", cfg.Adapters.Xfer.ReadTimeout)
	logger.Info("  Max request size: %d", cfg.Adapters.Xfer.MaxRequestSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	if metricsResult.Server != nil {
		g.Go(func() error {
			return metricsResult.Server.Start(gctx)
		})
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error: %v", err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
