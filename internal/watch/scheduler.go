// Package watch re-runs tasks when source files change. Each binding owns
// a small state machine (idle, triggered, running) so that a burst of
// changes during a run yields exactly one follow-up run.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/sitepipe/internal/glob"
)

// DefaultDelay coalesces bursts of events, such as an editor writing a
// file in several steps, into one trigger.
const DefaultDelay = 200 * time.Millisecond

// State is a binding's position in its trigger cycle.
type State int

const (
	StateIdle State = iota
	StateTriggered
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTriggered:
		return "triggered"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Binding associates a pattern set with the tasks it triggers. A binding
// is inert until the scheduler runs.
type Binding struct {
	Patterns glob.Set
	// Tasks are run together as a parallel composite.
	Tasks []string
}

// Name identifies the binding in logs.
func (b Binding) Name() string {
	return strings.Join(b.Tasks, ",")
}

// Runner executes named tasks concurrently and returns the first failure.
type Runner interface {
	Run(ctx context.Context, names ...string) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, names ...string) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, names ...string) error { return f(ctx, names...) }

// Logger receives formatted log lines.
type Logger interface {
	Log(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Log(string, ...interface{}) {}

// Options configures a Scheduler.
type Options struct {
	// Delay between the first matching event and the run. Zero runs
	// immediately.
	Delay time.Duration
	// Console receives failures; nil discards.
	Console Logger
	// Debug receives trigger diagnostics; nil discards.
	Debug Logger
}

// Scheduler dispatches filesystem events to bindings.
type Scheduler struct {
	root     string
	runner   Runner
	opts     Options
	bindings []*binding

	wg sync.WaitGroup
}

type binding struct {
	Binding

	mu      sync.Mutex
	state   State
	pending bool
	runs    int
	lastErr error
}

// New creates a scheduler. Paths in events are matched relative to root.
func New(root string, runner Runner, bindings []Binding, opts Options) *Scheduler {
	if opts.Console == nil {
		opts.Console = nopLogger{}
	}
	if opts.Debug == nil {
		opts.Debug = nopLogger{}
	}
	s := &Scheduler{root: root, runner: runner, opts: opts}
	for _, b := range bindings {
		s.bindings = append(s.bindings, &binding{Binding: b})
	}
	return s
}

// Run consumes events until ctx is cancelled or the source closes, then
// waits for in-flight runs to finish. Task failures are logged and never
// stop the loop.
func (s *Scheduler) Run(ctx context.Context, src Source) error {
	defer s.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-src.Errors():
			if ok {
				s.opts.Debug.Log("[watch] source error: %v", err)
			}
		case ev, ok := <-src.Events():
			if !ok {
				return nil
			}
			s.Dispatch(ctx, ev)
		}
	}
}

// Dispatch triggers every binding whose patterns match ev.
func (s *Scheduler) Dispatch(ctx context.Context, ev Event) {
	rel, err := filepath.Rel(s.root, ev.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)

	for _, b := range s.bindings {
		if b.Patterns.Match(rel) {
			s.opts.Debug.Log("[watch] %s %s -> %s", ev.Op, rel, b.Name())
			s.trigger(ctx, b)
		}
	}
}

// trigger advances b: idle starts a run, triggered absorbs the event and
// running records a single pending re-run.
func (s *Scheduler) trigger(ctx context.Context, b *binding) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateRunning:
		b.pending = true
	case StateTriggered:
	case StateIdle:
		b.state = StateTriggered
		s.wg.Add(1)
		go s.loop(ctx, b)
	}
}

func (s *Scheduler) loop(ctx context.Context, b *binding) {
	defer s.wg.Done()

	if s.opts.Delay > 0 {
		select {
		case <-time.After(s.opts.Delay):
		case <-ctx.Done():
			b.mu.Lock()
			b.state = StateIdle
			b.mu.Unlock()
			return
		}
	}

	for {
		b.mu.Lock()
		b.state = StateRunning
		b.pending = false
		b.mu.Unlock()

		err := s.runner.Run(ctx, b.Tasks...)
		if err != nil {
			s.opts.Console.Log("watch %s failed: %v", b.Name(), err)
		}

		b.mu.Lock()
		b.runs++
		b.lastErr = err
		if b.pending && ctx.Err() == nil {
			b.mu.Unlock()
			continue
		}
		b.state = StateIdle
		b.pending = false
		b.mu.Unlock()
		return
	}
}

// Status is a snapshot of one binding.
type Status struct {
	Name    string
	State   State
	Pending bool
	Runs    int
	LastErr error
}

// Status returns a snapshot of every binding in declaration order.
func (s *Scheduler) Status() []Status {
	out := make([]Status, 0, len(s.bindings))
	for _, b := range s.bindings {
		b.mu.Lock()
		out = append(out, Status{Name: b.Name(), State: b.state, Pending: b.pending, Runs: b.runs, LastErr: b.lastErr})
		b.mu.Unlock()
	}
	return out
}
