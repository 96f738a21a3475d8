package backend

import (
	"fmt"

	"costboard/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Source: SourceType(appConfig.SnapshotBackend),
		Cache:  CacheType(appConfig.CacheBackend),

		SnapshotDir:         appConfig.SnapshotDir,
		SnapshotBaseURL:     appConfig.SnapshotBaseURL,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,

		RedisAddr: appConfig.RedisAddr,
		CacheTTL:  appConfig.CacheTTL,
		CacheSize: appConfig.CacheSize,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Source.IsValid() {
		return fmt.Errorf("invalid snapshot source %q: must be one of %v", c.Source, GetSourceTypes())
	}
	if !c.Cache.IsValid() {
		return fmt.Errorf("invalid cache backend: %s", c.Cache)
	}

	switch c.Source {
	case DirSource:
		if c.SnapshotDir == "" {
			return fmt.Errorf("snapshot directory is required for dir source")
		}
	case HTTPSource:
		if c.SnapshotBaseURL == "" {
			return fmt.Errorf("snapshot base URL is required for http source")
		}
	case SheetsSource:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets source")
		}
	}

	if c.Cache == RedisCache && c.RedisAddr == "" {
		return fmt.Errorf("redis address is required for redis cache")
	}
	return nil
}

// GetSourceTypes returns all valid snapshot source types
func GetSourceTypes() []SourceType {
	return []SourceType{DirSource, HTTPSource, SheetsSource}
}
