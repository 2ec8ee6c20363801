package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"

	pebblestore "github.com/macrat/markdown-board-sub001/internal/storage/pebble"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Storage.Driver != "pebble" {
		t.Fatalf("default driver = %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Fsync != "interval" {
		t.Fatalf("default fsync = %q", cfg.Storage.Fsync)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("default http addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Sweeper.IntervalMs != 60_000 || cfg.Sweeper.MinRecords != 16 {
		t.Fatalf("default sweeper = %+v", cfg.Sweeper)
	}
	if cfg.Archive.Enabled {
		t.Fatalf("archive should default off")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "boardlog.json")
	data := []byte(`{"storage":{"driver":"postgres","databaseURL":"postgres://localhost/boardlog"},"server":{"httpAddr":":9090"},"sweeper":{"intervalMs":5000,"minRecords":4,"filter":"records >= 4"}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Storage.DatabaseURL != "postgres://localhost/boardlog" {
		t.Fatalf("database url = %q", cfg.Storage.DatabaseURL)
	}
	if cfg.Server.HTTPAddr != ":9090" {
		t.Fatalf("http addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Sweeper.IntervalMs != 5000 || cfg.Sweeper.MinRecords != 4 {
		t.Fatalf("sweeper = %+v", cfg.Sweeper)
	}
	if cfg.Sweeper.Filter != "records >= 4" {
		t.Fatalf("filter = %q", cfg.Sweeper.Filter)
	}
	// Untouched sections keep their defaults.
	if cfg.Storage.Fsync != "interval" {
		t.Fatalf("fsync should keep default, got %q", cfg.Storage.Fsync)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "boardlog.yaml")
	data := []byte(`storage:
  driver: redis
  redisURL: redis://localhost:6379/0
archive:
  enabled: true
  endpoint: minio.local:9000
  accessKey: boardlog
  secretKey: secret
`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "redis" {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Storage.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("redis url = %q", cfg.Storage.RedisURL)
	}
	if !cfg.Archive.Enabled || cfg.Archive.Endpoint != "minio.local:9000" {
		t.Fatalf("archive = %+v", cfg.Archive)
	}
	if cfg.Archive.Bucket != "boardlog-archive" {
		t.Fatalf("bucket should keep default, got %q", cfg.Archive.Bucket)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("empty path should return defaults: %v", err)
	}
	if cfg.Storage.Driver != "pebble" {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("BOARDLOG_STORAGE_DRIVER", "redis")
	t.Setenv("BOARDLOG_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("BOARDLOG_HTTP_ADDR", ":7070")
	t.Setenv("BOARDLOG_SWEEP_INTERVAL_MS", "2500")
	t.Setenv("BOARDLOG_SWEEP_MIN_RECORDS", "32")
	t.Setenv("BOARDLOG_ARCHIVE_ENABLED", "true")
	t.Setenv("BOARDLOG_LOG_LEVEL", "debug")
	FromEnv(&cfg)
	if cfg.Storage.Driver != "redis" {
		t.Fatalf("env driver = %q", cfg.Storage.Driver)
	}
	if cfg.Storage.RedisURL != "redis://cache:6379/1" {
		t.Fatalf("env redis url = %q", cfg.Storage.RedisURL)
	}
	if cfg.Server.HTTPAddr != ":7070" {
		t.Fatalf("env http addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Sweeper.IntervalMs != 2500 || cfg.Sweeper.MinRecords != 32 {
		t.Fatalf("env sweeper = %+v", cfg.Sweeper)
	}
	if !cfg.Archive.Enabled {
		t.Fatalf("env archive enabled")
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("env log level = %q", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("postgres without url should fail")
	}
	cfg.Storage.DatabaseURL = "postgres://localhost/boardlog"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("postgres with url: %v", err)
	}

	cfg = Default()
	cfg.Storage.Driver = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("redis without url should fail")
	}

	cfg = Default()
	cfg.Storage.Driver = "bolt"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown driver should fail")
	}

	cfg = Default()
	cfg.Storage.Fsync = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown fsync should fail")
	}

	cfg = Default()
	cfg.Archive.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatalf("archive without endpoint should fail")
	}
	cfg.Archive.Endpoint = "minio.local:9000"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("archive with endpoint: %v", err)
	}
}

func TestFsyncMode(t *testing.T) {
	if got := (StorageConfig{Fsync: "always"}).FsyncMode(); got != pebblestore.FsyncModeAlways {
		t.Fatalf("always = %v", got)
	}
	if got := (StorageConfig{Fsync: "never"}).FsyncMode(); got != pebblestore.FsyncModeNever {
		t.Fatalf("never = %v", got)
	}
	if got := (StorageConfig{Fsync: "interval"}).FsyncMode(); got != pebblestore.FsyncModeInterval {
		t.Fatalf("interval = %v", got)
	}
	sc := SweeperConfig{IntervalMs: 1500}
	if sc.SweepInterval() != 1500*time.Millisecond {
		t.Fatalf("sweep interval = %v", sc.SweepInterval())
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "boardlog.json")
	if err := os.WriteFile(file, []byte(`{"server":{"httpAddr":":7001"}}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Output: "discard"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Config, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Watch(ctx, file, logger, func(c Config) { got <- c }); err != nil {
			t.Errorf("watch: %v", err)
		}
	}()

	// Give the watcher a moment to register before rewriting.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(file, []byte(`{"server":{"httpAddr":":7002"}}`), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case cfg := <-got:
			if cfg.Server.HTTPAddr == ":7002" {
				cancel()
				<-done
				return
			}
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}

func TestWatchIgnoresInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "boardlog.json")
	if err := os.WriteFile(file, []byte(`{}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Output: "discard"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Config, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, file, logger, func(c Config) { got <- c })
	}()

	time.Sleep(50 * time.Millisecond)
	// Unknown driver fails Validate, so no callback should fire for it.
	if err := os.WriteFile(file, []byte(`{"storage":{"driver":"bolt"}}`), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(file, []byte(`{"storage":{"driver":"redis","redisURL":"redis://localhost:6379"}}`), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case cfg := <-got:
			if cfg.Storage.Driver == "bolt" {
				t.Fatalf("invalid config should not be applied")
			}
			if cfg.Storage.Driver == "redis" {
				cancel()
				<-done
				return
			}
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}
