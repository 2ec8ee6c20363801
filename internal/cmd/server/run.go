package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	cfgpkg "github.com/macrat/markdown-board-sub001/internal/config"
	"github.com/macrat/markdown-board-sub001/internal/runtime"
	httpserver "github.com/macrat/markdown-board-sub001/internal/server/http"
	"github.com/macrat/markdown-board-sub001/internal/sweeper"
	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"
)

type Options struct {
	// ConfigPath enables live reload of the sweep policy when set.
	ConfigPath string
	Config     cfgpkg.Config
}

// Run starts the HTTP server and the background sweeper and blocks until
// ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers
	// without signal handling still get a clean shutdown.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = cfgpkg.DefaultDataDir()
	}
	// The embedded database lives in a subdirectory so the data dir can
	// later hold siblings (exports, backups) without mixing files.
	cfg.Storage.DataDir = filepath.Join(cfg.Storage.DataDir, "store")

	procLogger, err := logpkg.ApplyConfig(&cfg.Log)
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(cfg.Log.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}

	// Redirect stdlib logs (e.g., Pebble) to our logger
	logpkg.RedirectStdLog(procLogger)

	procLogger.Info("Starting boardlog server",
		logpkg.Str("driver", cfg.Storage.Driver),
		logpkg.Str("http", cfg.Server.HTTPAddr),
		logpkg.Str("data_dir", cfg.Storage.DataDir),
		logpkg.Dur("sweep_interval", cfg.Sweeper.SweepInterval()),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
	)

	rt, err := runtime.Open(sctx, runtime.Options{Config: cfg, Logger: procLogger})
	if err != nil {
		return err
	}
	defer rt.Close()

	hsrv := httpserver.New(rt, procLogger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, cfg.Server.HTTPAddr); err != nil && sctx.Err() == nil {
			procLogger.Error("http.serve.failed", logpkg.Err(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		rt.Sweeper().Run(sctx)
	}()

	if opts.ConfigPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := cfgpkg.Watch(sctx, opts.ConfigPath, procLogger, func(next cfgpkg.Config) {
				if err := rt.Sweeper().SetPolicy(sweeper.Policy{
					Interval:   next.Sweeper.SweepInterval(),
					MinRecords: next.Sweeper.MinRecords,
					Filter:     next.Sweeper.Filter,
				}); err != nil {
					procLogger.Warn("sweeper.policy.rejected", logpkg.Err(err))
				}
			})
			if err != nil && sctx.Err() == nil {
				procLogger.Warn("config.watch.failed", logpkg.Err(err))
			}
		}()
	}

	<-sctx.Done()
	// Shut servers down before closing the runtime/DB to avoid races.
	hsrv.Close()
	wg.Wait()
	return nil
}
