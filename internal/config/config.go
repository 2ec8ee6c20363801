package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"

	pebblestore "github.com/macrat/markdown-board-sub001/internal/storage/pebble"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Sweeper SweeperConfig `json:"sweeper" yaml:"sweeper"`
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
	Log     logpkg.Config `json:"log" yaml:"log"`
}

// StorageConfig selects and tunes the update-log backend.
type StorageConfig struct {
	// Driver is one of pebble, postgres, redis.
	Driver string `json:"driver" yaml:"driver"`
	// DataDir holds the embedded database (pebble driver). Empty means the
	// platform default data directory.
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// Fsync is one of always, interval, never (pebble driver).
	Fsync           string `json:"fsync" yaml:"fsync"`
	FsyncIntervalMs int    `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	// DatabaseURL connects the postgres driver.
	DatabaseURL string `json:"databaseURL" yaml:"databaseURL"`
	// RedisURL connects the redis driver.
	RedisURL string `json:"redisURL" yaml:"redisURL"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
}

// SweeperConfig drives background compaction. IntervalMs zero disables the
// loop.
type SweeperConfig struct {
	IntervalMs int    `json:"intervalMs" yaml:"intervalMs"`
	MinRecords uint64 `json:"minRecords" yaml:"minRecords"`
	// Filter is an optional CEL expression over document, records, bytes,
	// first_seq, last_seq.
	Filter string `json:"filter" yaml:"filter"`
}

// ArchiveConfig points compaction bundles at an S3-compatible store.
type ArchiveConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"accessKey" yaml:"accessKey"`
	SecretKey string `json:"secretKey" yaml:"secretKey"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	UseSSL    bool   `json:"useSSL" yaml:"useSSL"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver: "pebble",
			Fsync:  "interval",
		},
		Server: ServerConfig{
			HTTPAddr: ":8080",
		},
		Sweeper: SweeperConfig{
			IntervalMs: 60_000,
			MinRecords: 16,
		},
		Archive: ArchiveConfig{
			Bucket: "boardlog-archive",
		},
		Log: logpkg.Config{
			Level:  "info",
			Format: "json",
			Output: "console",
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) over the
// defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports the first problem that would keep the server from
// starting.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "pebble":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.databaseURL required for the postgres driver")
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redisURL required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Storage.Fsync {
	case "", "always", "interval", "never":
	default:
		return fmt.Errorf("unknown storage.fsync %q", c.Storage.Fsync)
	}

	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" {
			return fmt.Errorf("archive.endpoint required when archive is enabled")
		}
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket required when archive is enabled")
		}
	}
	return nil
}

// FsyncMode maps the configured fsync string onto the storage wrapper's
// modes.
func (c StorageConfig) FsyncMode() pebblestore.FsyncMode {
	switch c.Fsync {
	case "always":
		return pebblestore.FsyncModeAlways
	case "never":
		return pebblestore.FsyncModeNever
	case "interval":
		return pebblestore.FsyncModeInterval
	default:
		return pebblestore.FsyncModeUnspecified
	}
}

// FsyncInterval returns the group-commit window for interval mode.
func (c StorageConfig) FsyncInterval() time.Duration {
	return time.Duration(c.FsyncIntervalMs) * time.Millisecond
}

// SweepInterval returns the sweep cadence; zero disables sweeping.
func (c SweeperConfig) SweepInterval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}
