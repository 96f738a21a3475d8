package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"costboard/internal/config"
	"costboard/internal/core"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantErr     bool
		errorString string
	}{
		{
			name:   "dir source with memory cache",
			config: Config{Source: DirSource, Cache: MemoryCache, SnapshotDir: "data"},
		},
		{
			name:   "http source with redis cache",
			config: Config{Source: HTTPSource, Cache: RedisCache, SnapshotBaseURL: "https://example.com/", RedisAddr: "localhost:6379"},
		},
		{
			name:        "invalid source",
			config:      Config{Source: "ftp", Cache: MemoryCache},
			wantErr:     true,
			errorString: "invalid snapshot source: ftp",
		},
		{
			name:        "invalid cache",
			config:      Config{Source: DirSource, Cache: "memcached", SnapshotDir: "data"},
			wantErr:     true,
			errorString: "invalid cache backend: memcached",
		},
		{
			name:        "dir source without directory",
			config:      Config{Source: DirSource, Cache: MemoryCache},
			wantErr:     true,
			errorString: "snapshot directory is required",
		},
		{
			name:        "sheets source without spreadsheet",
			config:      Config{Source: SheetsSource, Cache: MemoryCache},
			wantErr:     true,
			errorString: "Google Spreadsheet ID is required",
		},
		{
			name:        "redis cache without address",
			config:      Config{Source: DirSource, Cache: RedisCache, SnapshotDir: "data"},
			wantErr:     true,
			errorString: "redis address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.errorString)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	app := &config.Config{
		SnapshotBackend: config.SnapshotDir,
		SnapshotDir:     "data",
		CacheBackend:    config.CacheMemory,
		CacheTTL:        time.Minute,
		CacheSize:       8,
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source != DirSource || cfg.Cache != MemoryCache || cfg.CacheSize != 8 {
		t.Errorf("unexpected backend config %+v", cfg)
	}
}

func TestFactory_DirSourceWithMemoryCache(t *testing.T) {
	dir := t.TempDir()
	key := "cost/202510.csv"
	if err := os.MkdirAll(filepath.Join(dir, "cost"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, key), []byte("header\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	res, err := NewFactory(nil).Create(ctx, Config{
		Source:      DirSource,
		Cache:       MemoryCache,
		SnapshotDir: dir,
		CacheTTL:    time.Minute,
		CacheSize:   4,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer res.Close()

	body, err := res.Source.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != "header\n" {
		t.Errorf("Fetch() = %q", body)
	}

	res.Cache.Set(ctx, "mlb:202510", []core.CostRecord{{Brand: "MLB"}})
	if got, ok := res.Cache.Get(ctx, "mlb:202510"); !ok || len(got) != 1 {
		t.Errorf("cache round trip failed: %v %v", got, ok)
	}
}

func TestFactory_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	res, err := NewFactory(nil).Create(ctx, Config{
		Source:          HTTPSource,
		Cache:           RedisCache,
		SnapshotBaseURL: "http://127.0.0.1:1/",
		RedisAddr:       mr.Addr(),
		CacheTTL:        time.Minute,
		CacheSize:       4,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res.Cache.Set(ctx, "mlb:202510", []core.CostRecord{{Brand: "MLB"}})
	if !mr.Exists("costboard:mlb:202510") {
		t.Error("expected namespaced key in redis")
	}
	if n := res.Cache.DeletePrefix(ctx, "mlb:"); n != 1 {
		t.Errorf("DeletePrefix() = %d, want 1", n)
	}
	if err := res.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestFactory_UnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewFactory(nil).Create(context.Background(), Config{
		Source:      DirSource,
		Cache:       RedisCache,
		SnapshotDir: t.TempDir(),
		RedisAddr:   addr,
		CacheTTL:    time.Minute,
	})
	if err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestCleanupInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{time.Second, 10 * time.Second},
		{4 * time.Minute, time.Minute},
		{time.Hour, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := cleanupInterval(tt.ttl); got != tt.want {
			t.Errorf("cleanupInterval(%v) = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}
