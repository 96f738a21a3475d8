package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"costboard/internal/core"
)

// Snapshot and cache backends.
const (
	SnapshotDir    = "dir"
	SnapshotHTTP   = "http"
	SnapshotSheets = "sheets"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	// HTTP Server
	Port           string
	TrustedProxies []string

	// Snapshot source
	SnapshotBackend     string
	SnapshotDir         string
	SnapshotBaseURL     string
	GoogleSpreadsheetID string

	// Cache
	CacheBackend string
	RedisAddr    string
	CacheTTL     time.Duration
	CacheSize    int

	// Loader
	FetchTimeout     time.Duration
	FetchConcurrency int

	// Engine and profile
	ReferenceMonth string
	ProfileFile    string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		SnapshotBackend:     getEnv("SNAPSHOT_BACKEND", SnapshotDir),
		SnapshotDir:         getEnv("SNAPSHOT_DIR", "./data/snapshots"),
		SnapshotBaseURL:     getEnv("SNAPSHOT_BASE_URL", ""),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),

		CacheBackend: getEnv("CACHE_BACKEND", CacheMemory),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		CacheTTL:     getEnvDuration("CACHE_TTL", 10*time.Minute),
		CacheSize:    getEnvInt("CACHE_SIZE", 512),

		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", 6),

		ReferenceMonth: getEnv("REFERENCE_MONTH", "202510"),
		ProfileFile:    getEnv("PROFILE_FILE", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/costboard.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "costboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "snapshot_updates"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Reference parses ReferenceMonth. Call Validate first.
func (c *Config) Reference() core.Period {
	p, err := core.ParsePeriod(c.ReferenceMonth)
	if err != nil {
		return 0
	}
	return p
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	snapshotBackends := []string{SnapshotDir, SnapshotHTTP, SnapshotSheets}
	if !slices.Contains(snapshotBackends, c.SnapshotBackend) {
		errors = append(errors, fmt.Sprintf("invalid snapshot backend '%s': must be one of %v", c.SnapshotBackend, snapshotBackends))
	}
	switch c.SnapshotBackend {
	case SnapshotDir:
		if c.SnapshotDir == "" {
			errors = append(errors, "SNAPSHOT_DIR cannot be empty when using dir backend")
		} else if info, err := os.Stat(c.SnapshotDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("snapshot directory does not exist: %s", c.SnapshotDir))
		}
	case SnapshotHTTP:
		if u, err := url.Parse(c.SnapshotBaseURL); err != nil || c.SnapshotBaseURL == "" {
			errors = append(errors, fmt.Sprintf("invalid snapshot base URL '%s'", c.SnapshotBaseURL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid snapshot base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	case SnapshotSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
	}

	cacheBackends := []string{CacheMemory, CacheRedis}
	if !slices.Contains(cacheBackends, c.CacheBackend) {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, cacheBackends))
	}
	if c.CacheBackend == CacheRedis && c.RedisAddr == "" {
		errors = append(errors, "REDIS_ADDR is required when using redis cache")
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}

	if c.FetchTimeout < 100*time.Millisecond || c.FetchTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be between 100ms and 5m", c.FetchTimeout))
	}
	if c.FetchConcurrency < 1 || c.FetchConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid fetch concurrency %d: must be between 1 and 64", c.FetchConcurrency))
	}

	if _, err := core.ParsePeriod(c.ReferenceMonth); err != nil {
		errors = append(errors, fmt.Sprintf("invalid reference month '%s': must be YYYYMM", c.ReferenceMonth))
	}
	if c.ProfileFile != "" {
		if _, err := os.Stat(c.ProfileFile); err != nil {
			errors = append(errors, fmt.Sprintf("profile file does not exist: %s", c.ProfileFile))
		}
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	// AMQP is optional; when set it must be complete.
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	levels := []string{"debug", "info", "warn", "warning", "error"}
	if !slices.Contains(levels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
