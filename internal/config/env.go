package config

import (
	"os"
	"strconv"
)

// FromEnv overlays BOARDLOG_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("BOARDLOG_STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("BOARDLOG_DATA_DIR", &cfg.Storage.DataDir)
	setString("BOARDLOG_FSYNC", &cfg.Storage.Fsync)
	setInt("BOARDLOG_FSYNC_INTERVAL_MS", &cfg.Storage.FsyncIntervalMs)
	setString("BOARDLOG_DATABASE_URL", &cfg.Storage.DatabaseURL)
	setString("BOARDLOG_REDIS_URL", &cfg.Storage.RedisURL)

	setString("BOARDLOG_HTTP_ADDR", &cfg.Server.HTTPAddr)

	setInt("BOARDLOG_SWEEP_INTERVAL_MS", &cfg.Sweeper.IntervalMs)
	if v := os.Getenv("BOARDLOG_SWEEP_MIN_RECORDS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Sweeper.MinRecords = n
		}
	}
	setString("BOARDLOG_SWEEP_FILTER", &cfg.Sweeper.Filter)

	setBool("BOARDLOG_ARCHIVE_ENABLED", &cfg.Archive.Enabled)
	setString("BOARDLOG_ARCHIVE_ENDPOINT", &cfg.Archive.Endpoint)
	setString("BOARDLOG_ARCHIVE_ACCESS_KEY", &cfg.Archive.AccessKey)
	setString("BOARDLOG_ARCHIVE_SECRET_KEY", &cfg.Archive.SecretKey)
	setString("BOARDLOG_ARCHIVE_BUCKET", &cfg.Archive.Bucket)
	setBool("BOARDLOG_ARCHIVE_USE_SSL", &cfg.Archive.UseSSL)

	setString("BOARDLOG_LOG_LEVEL", &cfg.Log.Level)
	setString("BOARDLOG_LOG_FORMAT", &cfg.Log.Format)
	setString("BOARDLOG_LOG_OUTPUT", &cfg.Log.Output)
}
