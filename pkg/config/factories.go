package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittocraft/internal/dispatcher"
	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/world"
	"github.com/marmos91/dittocraft/pkg/store/chunk"
	chunkBadger "github.com/marmos91/dittocraft/pkg/store/chunk/badger"
	chunkMemory "github.com/marmos91/dittocraft/pkg/store/chunk/memory"
	chunkS3 "github.com/marmos91/dittocraft/pkg/store/chunk/s3"
	"github.com/mitchellh/mapstructure"
)

// CreateChunkStore creates a chunk store based on configuration.
//
// This factory function uses the Type field to determine which store implementation
// to create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "none": No persistence; returns a nil store
//   - "memory": Uses pkg/store/chunk/memory (lost on restart, useful for tests)
//   - "badger": Uses pkg/store/chunk/badger (embedded key-value store)
//   - "s3": Uses pkg/store/chunk/s3 (Amazon S3 or compatible storage)
//
// Returns:
//   - chunk.Store: Initialized store, or nil for "none"
//   - error: Configuration or initialization error
func CreateChunkStore(ctx context.Context, cfg *StoreConfig) (chunk.Store, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		store, err := chunkMemory.NewMemoryChunkStore(ctx)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "badger":
		return createBadgerChunkStore(ctx, cfg.Badger)
	case "s3":
		return createS3ChunkStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown chunk store type: %q", cfg.Type)
	}
}

// createBadgerChunkStore creates a BadgerDB chunk store.
func createBadgerChunkStore(ctx context.Context, options map[string]any) (chunk.Store, error) {
	var storeCfg chunkBadger.BadgerChunkStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger chunk store config: %w", err)
	}

	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger chunk store: db_path is required")
	}

	store, err := chunkBadger.NewBadgerChunkStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Info("Badger chunk store initialized: path=%s", storeCfg.DBPath)
	return store, nil
}

// s3StoreOptions is the s3 section of the store configuration.
type s3StoreOptions struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// createS3ChunkStore creates an S3-backed chunk store.
func createS3ChunkStore(ctx context.Context, options map[string]any) (chunk.Store, error) {
	var storeCfg s3StoreOptions
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 chunk store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 chunk store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 chunk store: region is required")
	}

	client, err := newS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	store, err := chunkS3.NewS3ChunkStore(ctx, chunkS3.S3ChunkStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 chunk store: %w", err)
	}

	logger.Info("S3 chunk store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// newS3Client builds an S3 client from the store options. Static credentials
// are used when both keys are set, otherwise the default credential chain.
func newS3Client(ctx context.Context, opts s3StoreOptions) (*s3.Client, error) {
	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// MinIO and Localstack need path-style addressing
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// CreateGenerator returns the terrain generator for the game settings.
func CreateGenerator(cfg *GameConfig) (world.Generator, error) {
	return world.NewGenerator(cfg.LevelType, cfg.Seed)
}

// DispatcherConfig translates the game settings into dispatcher rules.
func DispatcherConfig(cfg *GameConfig) dispatcher.Config {
	return dispatcher.Config{
		MOTD:              cfg.MOTD,
		MaxPlayers:        cfg.MaxPlayers,
		GameMode:          cfg.GameMode,
		Difficulty:        cfg.Difficulty,
		Dimension:         cfg.Dimension,
		Seed:              cfg.Seed,
		ViewDistance:      cfg.ViewDistance,
		TPS:               cfg.TPS,
		KeepAliveInterval: cfg.KeepAliveInterval,
		EvictionInterval:  cfg.EvictionInterval,
	}
}

// ManagerConfig translates the world settings into the chunk manager's.
func (cfg *WorldConfig) ManagerConfig() world.ManagerConfig {
	return world.ManagerConfig{
		RetentionRadius: cfg.RetentionRadius,
		SaveGenerated:   cfg.SaveGenerated,
	}
}
