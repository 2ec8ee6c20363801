package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/macrat/markdown-board-sub001/internal/archive"
	cfgpkg "github.com/macrat/markdown-board-sub001/internal/config"
	"github.com/macrat/markdown-board-sub001/internal/crdt"
	"github.com/macrat/markdown-board-sub001/internal/pages"
	pebblestore "github.com/macrat/markdown-board-sub001/internal/storage/pebble"
	"github.com/macrat/markdown-board-sub001/internal/sweeper"
	"github.com/macrat/markdown-board-sub001/internal/updatelog"
	"github.com/macrat/markdown-board-sub001/internal/updatelog/pebblelog"
	"github.com/macrat/markdown-board-sub001/internal/updatelog/pglog"
	"github.com/macrat/markdown-board-sub001/internal/updatelog/redislog"
	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Runtime wires the configured update-log backend, the merge pipeline, and
// the background sweeper for a single-node instance.
type Runtime struct {
	config cfgpkg.Config
	log    logpkg.Logger

	db  *pebblestore.DB // pebble driver
	pg  *pglog.Store    // postgres driver
	rds *redislog.Store // redis driver

	store     updatelog.Store
	loader    *updatelog.Loader
	compactor *updatelog.Compactor
	sweeper   *sweeper.Sweeper
	pages     *pages.Service
}

// Open initializes the configured backend and returns a Runtime.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	cfg := opts.Config

	rt := &Runtime{config: cfg, log: logger}
	switch cfg.Storage.Driver {
	case "", "pebble":
		dataDir := cfg.Storage.DataDir
		if dataDir == "" {
			dataDir = cfgpkg.DefaultDataDir()
		}
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:       dataDir,
			Fsync:         cfg.Storage.FsyncMode(),
			FsyncInterval: cfg.Storage.FsyncInterval(),
		})
		if err != nil {
			return nil, fmt.Errorf("open pebble: %w", err)
		}
		st := pebblelog.New(db)
		rt.db = db
		rt.store = st
		rt.pages = pages.New(db, st, logger)
	case "postgres":
		db, err := pglog.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		st := pglog.New(db)
		if err := st.EnsureSchema(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		rt.pg = st
		rt.store = st
	case "redis":
		st, err := redislog.Open(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		rt.rds = st
		rt.store = st
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	merger := crdt.NewLWWMap()
	rt.loader = updatelog.NewLoader(rt.store, merger, logger)

	var copts []updatelog.CompactorOption
	if cfg.Archive.Enabled {
		up, err := archive.NewMinioUploader(ctx, archive.Options{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			rt.closeBackend()
			return nil, fmt.Errorf("open archive: %w", err)
		}
		copts = append(copts, updatelog.WithArchiver(archive.NewArchiver(up, logger)))
	}
	rt.compactor = updatelog.NewCompactor(rt.store, merger, logger, copts...)

	sw, err := sweeper.New(rt.store, rt.compactor, sweeper.Policy{
		Interval:   cfg.Sweeper.SweepInterval(),
		MinRecords: cfg.Sweeper.MinRecords,
		Filter:     cfg.Sweeper.Filter,
	}, logger)
	if err != nil {
		rt.closeBackend()
		return nil, fmt.Errorf("configure sweeper: %w", err)
	}
	rt.sweeper = sw
	return rt, nil
}

func (r *Runtime) closeBackend() {
	switch {
	case r.db != nil:
		_ = r.db.Close()
	case r.pg != nil:
		_ = r.pg.Close()
	case r.rds != nil:
		_ = r.rds.Close()
	}
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	switch {
	case r.db != nil:
		return r.db.Close()
	case r.pg != nil:
		return r.pg.Close()
	case r.rds != nil:
		return r.rds.Close()
	}
	return nil
}

// CheckHealth verifies the configured backend is reachable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	switch {
	case r.db != nil:
		it, err := r.db.NewIter(nil)
		if err != nil {
			return err
		}
		return it.Close()
	case r.pg != nil:
		return r.pg.Ping(ctx)
	case r.rds != nil:
		return r.rds.Ping(ctx)
	}
	return errors.New("storage not open")
}

// Store returns the configured update-log backend.
func (r *Runtime) Store() updatelog.Store { return r.store }

// Loader returns the read-and-merge pipeline.
func (r *Runtime) Loader() *updatelog.Loader { return r.loader }

// Compactor returns the shared compactor.
func (r *Runtime) Compactor() *updatelog.Compactor { return r.compactor }

// Sweeper returns the background compaction sweeper.
func (r *Runtime) Sweeper() *sweeper.Sweeper { return r.sweeper }

// Pages returns the page metadata service, or nil when the configured
// backend does not host page metadata.
func (r *Runtime) Pages() *pages.Service { return r.pages }

// DB exposes the embedded database for advanced operations (pebble driver
// only, nil otherwise).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
