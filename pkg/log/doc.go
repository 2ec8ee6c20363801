// Package log provides boardlog's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by the
// standard library's slog via a custom handler that routes records through a
// formatter/outputs pipeline, so callers get consistent output regardless of
// which layer emitted the record.
//
// # Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("updatelog"), log.Str("driver", "pebble"))
//	l.Info("store opened", log.Str("dir", dataDir))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config (level, text or JSON
// format, console/stderr/file output). RedirectStdLog routes the standard
// library's global logger through a Logger so third-party packages share the
// same pipeline.
package log
