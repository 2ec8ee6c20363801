package log

import (
	"fmt"
	"os"
	"sync"
)

// ConsoleOutput writes formatted entries to stdout, or stderr when UseStderr
// is set. Writes are serialized so concurrent loggers do not interleave lines.
type ConsoleOutput struct {
	UseStderr bool
	mu        sync.Mutex
}

// NewConsoleOutput returns a stdout console output.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{}
}

// Write implements Output.
func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := os.Stdout
	if o.UseStderr {
		w = os.Stderr
	}
	_, err := w.Write(formatted)
	return err
}

// Close implements Output. Console outputs hold no resources.
func (o *ConsoleOutput) Close() error { return nil }

// FileOutput appends formatted entries to a file.
type FileOutput struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileOutput opens (or creates) path for appending.
func NewFileOutput(path string) (*FileOutput, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileOutput{f: f}, nil
}

// Write implements Output.
func (o *FileOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.f.Write(formatted)
	return err
}

// Close implements Output.
func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.f.Close()
}

// discardOutput drops everything; selected with Config.Output = "discard".
type discardOutput struct{}

func (discardOutput) Write(_ *Entry, _ []byte) error { return nil }
func (discardOutput) Close() error                   { return nil }
