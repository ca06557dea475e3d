package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Op describes what happened to a path.
type Op uint8

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	var parts []string
	for _, p := range []struct {
		op   Op
		name string
	}{{OpCreate, "create"}, {OpWrite, "write"}, {OpRemove, "remove"}, {OpRename, "rename"}} {
		if op&p.op != 0 {
			parts = append(parts, p.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Event is a filesystem change.
type Event struct {
	// Path is absolute.
	Path string
	Op   Op
}

// Source delivers filesystem events. Events is closed when the source is
// closed.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// ignoredDirs are never watched.
var ignoredDirs = map[string]bool{
	".git":         true,
	".sitepipe":    true,
	"node_modules": true,
}

// FSSource watches a directory tree with fsnotify. Directories created
// after start are added as they appear.
type FSSource struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewFSSource starts watching root recursively.
func NewFSSource(root string) (*FSSource, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	s := &FSSource{
		watcher: fsw,
		events:  make(chan Event, 256),
		errors:  make(chan error, 16),
		closeCh: make(chan struct{}),
	}
	if err := s.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.processLoop()
	return s, nil
}

// addTree adds root and every directory below it.
func (s *FSSource) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && ignoredDirs[d.Name()] {
			return filepath.SkipDir
		}
		return s.watcher.Add(p)
	})
}

func (s *FSSource) processLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.closeCh:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			select {
			case s.errors <- err:
			default:
			}
		}
	}
}

func (s *FSSource) handle(ev fsnotify.Event) {
	op := convertOp(ev.Op)
	if op == 0 {
		return
	}
	if op&OpCreate != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !ignoredDirs[info.Name()] {
			if err := s.addTree(ev.Name); err != nil {
				select {
				case s.errors <- err:
				default:
				}
			}
		}
	}
	select {
	case s.events <- Event{Path: ev.Name, Op: op}:
	case <-s.closeCh:
	}
}

// convertOp maps fsnotify operations; chmod alone is not a change.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}

// Events implements Source.
func (s *FSSource) Events() <-chan Event { return s.events }

// Errors implements Source.
func (s *FSSource) Errors() <-chan error { return s.errors }

// Close stops watching and closes the event channel.
func (s *FSSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closeCh)
	s.mu.Unlock()

	err := s.watcher.Close()
	s.wg.Wait()
	close(s.events)
	close(s.errors)
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}

var _ Source = (*FSSource)(nil)

// ChanSource is a Source fed by hand, for tests and synthetic triggers.
type ChanSource struct {
	events chan Event
	errors chan error
	once   sync.Once
}

// NewChanSource creates a ChanSource with the given buffer.
func NewChanSource(buffer int) *ChanSource {
	return &ChanSource{events: make(chan Event, buffer), errors: make(chan error, 1)}
}

// Send delivers an event.
func (c *ChanSource) Send(ev Event) { c.events <- ev }

// Events implements Source.
func (c *ChanSource) Events() <-chan Event { return c.events }

// Errors implements Source.
func (c *ChanSource) Errors() <-chan error { return c.errors }

// Close implements Source.
func (c *ChanSource) Close() error {
	c.once.Do(func() {
		close(c.events)
		close(c.errors)
	})
	return nil
}

var _ Source = (*ChanSource)(nil)
