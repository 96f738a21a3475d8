package backend

import (
	"context"
	"slices"
	"time"

	"costboard/internal/cache"
	"costboard/internal/core"
	"costboard/internal/snapshot"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// Result contains the snapshot source, the record cache and a cleanup
// function covering both.
type Result struct {
	Source  snapshot.Source
	Cache   cache.Cache[[]core.CostRecord]
	Cleanup CleanupFunc
}

// Close runs Cleanup if set.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Source SourceType
	Cache  CacheType

	// dir source
	SnapshotDir string
	// http source
	SnapshotBaseURL string
	// sheets source
	GoogleSpreadsheetID string

	RedisAddr string
	CacheTTL  time.Duration
	CacheSize int
}

// SourceType selects where snapshots are read from
type SourceType string

const (
	DirSource    SourceType = "dir"
	HTTPSource   SourceType = "http"
	SheetsSource SourceType = "sheets"
)

func (t SourceType) String() string {
	return string(t)
}

func (t SourceType) IsValid() bool {
	return slices.Contains(GetSourceTypes(), t)
}

// CacheType selects where parsed snapshots are cached
type CacheType string

const (
	MemoryCache CacheType = "memory"
	RedisCache  CacheType = "redis"
)

func (t CacheType) String() string {
	return string(t)
}

func (t CacheType) IsValid() bool {
	return t == MemoryCache || t == RedisCache
}
