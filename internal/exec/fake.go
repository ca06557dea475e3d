package exec

import (
	"context"
	"fmt"
	"sync"
)

// FakeRunner is a CommandRunner for tests. Handlers are keyed by tool name;
// tools without a handler are reported as not installed.
type FakeRunner struct {
	mu       sync.Mutex
	handlers map[string]func(Command) ([]byte, error)
	calls    []Command
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{handlers: make(map[string]func(Command) ([]byte, error))}
}

// Handle installs fn as the behavior of tool name.
func (f *FakeRunner) Handle(name string, fn func(Command) ([]byte, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = fn
}

// Calls returns a copy of every command run so far.
func (f *FakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

func (f *FakeRunner) Run(_ context.Context, c Command) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	fn, ok := f.handlers[c.Name]
	f.mu.Unlock()
	if !ok {
		return nil, &ExitError{Name: c.Name, Err: fmt.Errorf("executable not found")}
	}
	return fn(c)
}

func (f *FakeRunner) Start(ctx context.Context, c Command) error {
	_, err := f.Run(ctx, c)
	return err
}

func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[name]; !ok {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/fake/bin/" + name, nil
}

var _ CommandRunner = (*FakeRunner)(nil)
