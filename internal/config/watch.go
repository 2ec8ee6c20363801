package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"
)

// Watch reloads path on change and hands every parsed, validated Config to
// apply. It blocks until ctx is canceled. The enclosing directory is
// watched rather than the file, since atomic saves replace the file and
// would otherwise drop the watch.
func Watch(ctx context.Context, path string, logger logpkg.Logger, apply func(Config)) error {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	logger = logger.WithComponent("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				logger.Warn("config.reload.failed", logpkg.Err(err))
				continue
			}
			FromEnv(&cfg)
			if err := cfg.Validate(); err != nil {
				logger.Warn("config.reload.invalid", logpkg.Err(err))
				continue
			}
			logger.Info("config.reload", logpkg.Str("path", path))
			apply(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config.watch.error", logpkg.Err(err))
		}
	}
}
