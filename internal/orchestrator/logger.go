package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// defaultMaxLogSize is the size at which the debug log is rotated. A long
// serve session logs every watch trigger and notify, so the file would
// otherwise grow without bound.
const defaultMaxLogSize = 4 << 20

// DebugLogger appends timestamped lines to a file under the state
// directory. When the file passes its size limit it is renamed to
// <path>.1, replacing any earlier rotation, and a fresh file is started.
//
// The zero value and a nil pointer discard everything.
type DebugLogger struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	size    int64
	maxSize int64
}

// NewDebugLogger opens path for appending. An empty path returns a logger
// that discards.
func NewDebugLogger(path string) (*DebugLogger, error) {
	return newDebugLogger(path, defaultMaxLogSize)
}

func newDebugLogger(path string, maxSize int64) (*DebugLogger, error) {
	if path == "" {
		return &DebugLogger{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &DebugLogger{path: path, maxSize: maxSize}
	if err := l.open(); err != nil {
		return nil, err
	}
	l.Log("=== sitepipe debug log started at %s (pid %d) ===", time.Now().Format(time.RFC3339), os.Getpid())
	return l, nil
}

func (l *DebugLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	l.file = f
	l.size = info.Size()
	return nil
}

// rotate moves the current file aside. Callers hold mu.
func (l *DebugLogger) rotate() error {
	l.file.Close()
	l.file = nil
	if err := os.Rename(l.path, l.path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return l.open()
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Enabled reports whether lines are written anywhere.
func (l *DebugLogger) Enabled() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file != nil
}

// Log writes one timestamped line.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}

	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	if l.maxSize > 0 && l.size > 0 && l.size+int64(len(line)) > l.maxSize {
		if err := l.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "sitepipe: debug log rotation failed: %v\n", err)
			return
		}
	}
	n, _ := l.file.WriteString(line)
	l.size += int64(n)
}

// Component returns a logger that prefixes every line with [name].
func (l *DebugLogger) Component(name string) *ComponentLogger {
	return &ComponentLogger{l: l, prefix: "[" + name + "] "}
}

// Close syncs and closes the file. Later Log calls are dropped.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.file.Sync()
	err := l.file.Close()
	l.file = nil
	return err
}

// ComponentLogger writes to a DebugLogger under a fixed prefix.
type ComponentLogger struct {
	l      *DebugLogger
	prefix string
}

// Log writes one prefixed line.
func (c *ComponentLogger) Log(format string, args ...interface{}) {
	c.l.Log(c.prefix+format, args...)
}
