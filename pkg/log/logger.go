package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name ("debug", "info", "warn", "error",
// "fatal") to a Level. Matching is case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Fields is a map of field names to values.
type Fields map[string]interface{}

// Context keys for propagating logging context
const (
	RequestIDKey = "request_id"
	TraceIDKey   = "trace_id"
	ComponentKey = "component"
	OperationKey = "operation"
)

// Entry represents a single log entry.
type Entry struct {
	Level     Level
	Message   string
	Fields    Fields
	Timestamp time.Time
	Caller    string
}

// Logger defines the logging interface used across boardlog components.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger

	// With adds structured fields to every entry the derived logger emits.
	With(fields ...Field) Logger

	// WithContext adds request-scoped values carried by ctx.
	WithContext(ctx context.Context) Logger

	// WithComponent tags entries with a component name.
	WithComponent(component string) Logger

	// SetLevel sets the minimum level for this logger and every logger
	// derived from it.
	SetLevel(level Level)
	GetLevel() Level
}

// Formatter renders an Entry to bytes.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output receives formatted entries.
type Output interface {
	Write(entry *Entry, formatted []byte) error
	Close() error
}

// levelVar is an atomically settable Level shared by a logger and all of its
// derived loggers.
type levelVar struct {
	v atomic.Int32
}

func newLevelVar(l Level) *levelVar {
	lv := &levelVar{}
	lv.set(l)
	return lv
}

func (lv *levelVar) set(l Level) { lv.v.Store(int32(l)) }
func (lv *levelVar) get() Level  { return Level(lv.v.Load()) }

// LoggerOption configures a logger under construction.
type LoggerOption func(*BaseLogger)

// BaseLogger implements Logger on top of a slog bridge.
type BaseLogger struct {
	level      *levelVar
	fields     Fields
	formatter  Formatter
	outputs    []Output
	slogLogger *slog.Logger
}

// NewLogger creates a logger. Defaults: info level, JSON format, console
// output.
func NewLogger(options ...LoggerOption) Logger {
	logger := &BaseLogger{
		level:  newLevelVar(InfoLevel),
		fields: Fields{},
	}
	for _, option := range options {
		option(logger)
	}
	if logger.formatter == nil {
		logger.formatter = &JSONFormatter{}
	}
	if len(logger.outputs) == 0 {
		logger.outputs = []Output{NewConsoleOutput()}
	}
	logger.slogLogger = slog.New(newBridgeHandler(logger.level, logger.formatter, logger.outputs))
	return logger
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(l *BaseLogger) {
		l.level.set(level)
	}
}

// WithFormatter sets the log formatter.
func WithFormatter(formatter Formatter) LoggerOption {
	return func(l *BaseLogger) {
		l.formatter = formatter
	}
}

// WithOutput adds an output to the logger.
func WithOutput(output Output) LoggerOption {
	return func(l *BaseLogger) {
		l.outputs = append(l.outputs, output)
	}
}

func (l *BaseLogger) log(level Level, msg string, fields ...Field) {
	l.slogLogger.LogAttrs(context.Background(), toSlogLevel(level), msg, attrsFromFieldSlice(fields)...)
	if level == FatalLevel {
		for _, out := range l.outputs {
			_ = out.Close()
		}
		os.Exit(1)
	}
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields...) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields...) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields...) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields...) }
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.log(FatalLevel, msg, fields...) }

func (l *BaseLogger) Debugf(format string, args ...interface{}) {
	l.log(DebugLevel, fmt.Sprintf(format, args...))
}

func (l *BaseLogger) Infof(format string, args ...interface{}) {
	l.log(InfoLevel, fmt.Sprintf(format, args...))
}

func (l *BaseLogger) Warnf(format string, args ...interface{}) {
	l.log(WarnLevel, fmt.Sprintf(format, args...))
}

func (l *BaseLogger) Errorf(format string, args ...interface{}) {
	l.log(ErrorLevel, fmt.Sprintf(format, args...))
}

func (l *BaseLogger) Fatalf(format string, args ...interface{}) {
	l.log(FatalLevel, fmt.Sprintf(format, args...))
}

// derive returns a copy of l whose slog logger carries the extra attrs.
// The copy shares l's level so SetLevel applies to the whole family.
func (l *BaseLogger) derive(attrs []slog.Attr) *BaseLogger {
	nl := *l
	nl.fields = make(Fields, len(l.fields)+len(attrs))
	for k, v := range l.fields {
		nl.fields[k] = v
	}
	for _, a := range attrs {
		nl.fields[a.Key] = a.Value.Any()
	}
	nl.slogLogger = l.slogLogger.With(attrsToAny(attrs)...)
	return &nl
}

func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	return l.derive([]slog.Attr{slog.Any(key, value)})
}

func (l *BaseLogger) WithFields(fields Fields) Logger {
	return l.derive(attrsFromMap(fields))
}

func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.derive([]slog.Attr{slog.Any("error", err.Error())})
}

func (l *BaseLogger) With(fields ...Field) Logger {
	return l.derive(attrsFromFieldSlice(fields))
}

func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	fields := ContextExtractor(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.WithFields(fields)
}

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.derive([]slog.Attr{slog.String(ComponentKey, component)})
}

func (l *BaseLogger) SetLevel(level Level) { l.level.set(level) }
func (l *BaseLogger) GetLevel() Level      { return l.level.get() }

// ContextExtractor pulls well-known logging values out of a context.
func ContextExtractor(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	fields := Fields{}
	for _, key := range []string{RequestIDKey, TraceIDKey, ComponentKey, OperationKey} {
		if v := ctx.Value(key); v != nil {
			fields[key] = v
		}
	}
	return fields
}
