package backend

import (
	"context"
	"fmt"
	"time"

	"costboard/internal/cache"
	"costboard/internal/core"
	"costboard/internal/log"
	"costboard/internal/snapshot"
	gsheet "costboard/internal/snapshot/google"
	"costboard/internal/snapshot/memory"
	"costboard/internal/snapshot/web"
)

// cacheNamespace prefixes every Redis key written by the service.
const cacheNamespace = "costboard"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// Create implements Factory.Create
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	source, err := f.createSource(ctx, config)
	if err != nil {
		return nil, err
	}

	c, cleanup, err := f.createCache(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Result{
		Source:  source,
		Cache:   c,
		Cleanup: cleanup,
	}, nil
}

func (f *DefaultFactory) createSource(ctx context.Context, config Config) (snapshot.Source, error) {
	switch config.Source {
	case DirSource:
		f.logger.Info("Initialized directory snapshot source", "snapshot_dir", config.SnapshotDir)
		return memory.NewFromDir(config.SnapshotDir), nil
	case HTTPSource:
		cli, err := web.New(config.SnapshotBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize HTTP snapshot source: %w", err)
		}
		f.logger.Info("Initialized HTTP snapshot source", "base_url", config.SnapshotBaseURL)
		return cli, nil
	case SheetsSource:
		cli, err := gsheet.New(ctx, config.GoogleSpreadsheetID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets snapshot source")
		return cli, nil
	default:
		return nil, fmt.Errorf("unsupported snapshot source: %s", config.Source)
	}
}

func (f *DefaultFactory) createCache(ctx context.Context, config Config) (cache.Cache[[]core.CostRecord], CleanupFunc, error) {
	switch config.Cache {
	case MemoryCache:
		lru := cache.NewLRUCache[[]core.CostRecord](config.CacheSize, config.CacheTTL)
		manager := cache.NewManager(f.logger)
		manager.Register(lru)
		manager.StartCleanup(cleanupInterval(config.CacheTTL))

		f.logger.Info("Initialized in-process snapshot cache",
			"size", config.CacheSize, "ttl", config.CacheTTL.String())
		return lru, func() error {
			manager.Stop()
			return nil
		}, nil
	case RedisCache:
		client, err := cache.NewRedisClient(ctx, config.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		f.logger.Info("Initialized redis snapshot cache",
			"addr", config.RedisAddr, "ttl", config.CacheTTL.String())
		rc := cache.NewRedisCache[[]core.CostRecord](client, cacheNamespace, config.CacheTTL, f.logger)
		return rc, func() error {
			if err := client.Close(); err != nil {
				return fmt.Errorf("close redis client: %w", err)
			}
			return nil
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", config.Cache)
	}
}

// cleanupInterval sweeps expired entries a few times per TTL, bounded to
// [10s, 5m].
func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < 10*time.Second {
		return 10 * time.Second
	}
	if interval > 5*time.Minute {
		return 5 * time.Minute
	}
	return interval
}
