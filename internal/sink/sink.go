// Package sink writes pipeline output to the destination tree and tells
// observers about it.
package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/sitepipe/internal/asset"
)

// WriteError reports an artifact that could not be written. It fails the
// owning task; sibling tasks are unaffected.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Sink persists artifacts under a destination directory.
type Sink interface {
	// Write stores each file at dest/file.Rel and returns the absolute
	// paths written, in input order.
	Write(files []*asset.File, dest string) ([]string, error)
}

// FileSink writes to the local filesystem. Existing files are overwritten
// unconditionally and parent directories are created as needed.
type FileSink struct{}

// Write implements Sink.
func (FileSink) Write(files []*asset.File, dest string) ([]string, error) {
	written := make([]string, 0, len(files))
	for _, f := range files {
		target := filepath.Join(dest, filepath.FromSlash(f.Rel))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return written, &WriteError{Path: target, Err: err}
		}
		mode := f.Mode
		if mode == 0 {
			mode = 0644
		}
		if err := os.WriteFile(target, f.Contents, mode); err != nil {
			return written, &WriteError{Path: target, Err: err}
		}
		written = append(written, target)
	}
	return written, nil
}

var _ Sink = FileSink{}

// Notifier is told about freshly written artifacts. Delivery is
// fire-and-forget: callers log a returned error and move on.
type Notifier interface {
	Notify(paths []string) error
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify([]string) error { return nil }

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(paths []string) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(paths []string) error { return f(paths) }

// Multi fans a notification out to several observers and returns the first
// error after all of them have been told.
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(paths []string) error {
		var first error
		for _, n := range notifiers {
			if err := n.Notify(paths); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
