package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/pkg/store"
	"github.com/marmos91/dittoxfer/pkg/store/badger"
	"github.com/marmos91/dittoxfer/pkg/store/fs"
	"github.com/marmos91/dittoxfer/pkg/store/memory"
	"github.com/marmos91/dittoxfer/pkg/store/s3"
	"github.com/mitchellh/mapstructure"
)

// CreateStore builds the file store selected by cfg.Type.
//
// Supported types:
//   - "filesystem": one regular file per name under a root directory
//   - "memory": ephemeral, lost on restart
//   - "badger": embedded key-value database (single process only)
//   - "s3": Amazon S3 or a compatible service
func CreateStore(ctx context.Context, cfg *StoreConfig) (store.FileStore, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemStore(ctx, cfg.Filesystem)
	case "memory":
		return memory.New(), nil
	case "badger":
		return createBadgerStore(ctx, cfg.Badger)
	case "s3":
		return createS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}

// decodeOptions decodes a store option map. Durations may be written as
// strings ("5m") and numbers may arrive as strings from env variables.
func decodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(options)
}

func createFilesystemStore(ctx context.Context, options map[string]any) (store.FileStore, error) {
	var opts struct {
		Path     string `mapstructure:"path"`
		FileMode uint32 `mapstructure:"file_mode"`
	}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem store config: %w", err)
	}

	return fs.New(ctx, fs.Config{
		Path:     opts.Path,
		FileMode: os.FileMode(opts.FileMode),
	})
}

// CleanupStaleUploads removes leftovers of uploads interrupted by a crash
// from stores that keep temporary files. It must only run while no other
// process writes to the store, i.e. before the pool starts.
func CleanupStaleUploads(ctx context.Context, s store.FileStore) {
	fsStore, ok := s.(*fs.FSStore)
	if !ok {
		return
	}

	n, err := fsStore.CleanupTemp(ctx)
	if err != nil {
		logger.Warn("Failed to clean temporary files in %s: %v", fsStore.Root(), err)
		return
	}
	if n > 0 {
		logger.Info("Removed %d stale temporary files from %s", n, fsStore.Root())
	}
}

func createBadgerStore(ctx context.Context, options map[string]any) (store.FileStore, error) {
	var opts struct {
		Path             string        `mapstructure:"path"`
		InMemory         bool          `mapstructure:"in_memory"`
		SyncWrites       bool          `mapstructure:"sync_writes"`
		BlockCacheSizeMB int64         `mapstructure:"block_cache_size_mb"`
		IndexCacheSizeMB int64         `mapstructure:"index_cache_size_mb"`
		GCInterval       time.Duration `mapstructure:"gc_interval"`
	}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode badger store config: %w", err)
	}

	return badger.New(ctx, badger.Config{
		Path:             opts.Path,
		InMemory:         opts.InMemory,
		SyncWrites:       opts.SyncWrites,
		BlockCacheSizeMB: opts.BlockCacheSizeMB,
		IndexCacheSizeMB: opts.IndexCacheSizeMB,
		GCInterval:       opts.GCInterval,
	})
}

// s3Options are the options of the "s3" store type.
type s3Options struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

func createS3Store(ctx context.Context, options map[string]any) (store.FileStore, error) {
	var opts s3Options
	if err := decodeOptions(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 store config: %w", err)
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 store: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("S3 store: region is required")
	}

	client, err := newS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}

	s, err := s3.New(ctx, s3.Config{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}

	logger.Info("S3 store initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)
	return s, nil
}

func newS3Client(ctx context.Context, opts s3Options) (*awss3.Client, error) {
	loadOpts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	loadOpts = append(loadOpts, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		// Localstack and MinIO need path-style addressing.
		o.UsePathStyle = opts.ForcePathStyle || opts.Endpoint != ""
	}), nil
}
