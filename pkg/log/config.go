package log

import (
	"fmt"
	stdlog "log"
	"strings"
)

// Config declares a logger for construction via ApplyConfig. The zero value
// means info level, text format, console output.
type Config struct {
	// Level names the minimum level: debug, info, warn, error, fatal.
	Level string `json:"level" yaml:"level"`
	// Format selects the formatter: "text" or "json".
	Format string `json:"format" yaml:"format"`
	// Output selects where entries go: "console" (default), "stderr",
	// "discard", or a file path.
	Output string `json:"output" yaml:"output"`
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var output Output
	switch cfg.Output {
	case "", "console":
		output = NewConsoleOutput()
	case "stderr":
		output = &ConsoleOutput{UseStderr: true}
	case "discard":
		output = discardOutput{}
	default:
		output, err = NewFileOutput(cfg.Output)
		if err != nil {
			return nil, err
		}
	}

	return NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(output)), nil
}

// RedirectStdLog routes the standard library's global logger through l so
// log lines from third-party packages share the structured pipeline.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdLogWriter{logger: l.WithComponent("stdlog")})
}

type stdLogWriter struct {
	logger Logger
}

func (w stdLogWriter) Write(p []byte) (int, error) {
	w.logger.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
