package task

import (
	"sort"
	"sync"
)

// Registry maps task names to tasks. Composites can only reference names
// that are already registered, so the resulting graph is acyclic.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Register adds a task under name. It fails with *DuplicateTaskError if
// the name is taken and with *UnknownTaskError if a composite references
// a name that is not registered yet. The registry is unchanged on failure.
func (r *Registry) Register(name string, body Body) error {
	return r.RegisterWithDescription(name, "", body)
}

// RegisterWithDescription is Register with help text shown by `sitepipe tasks`.
func (r *Registry) RegisterWithDescription(name, description string, body Body) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[name]; exists {
		return &DuplicateTaskError{Name: name}
	}

	t, err := body.resolve(r, name)
	if err != nil {
		return err
	}
	t.description = description
	r.tasks[name] = t
	return nil
}

// Get returns the task registered under name.
func (r *Registry) Get(name string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[name]
	if !ok {
		return nil, &UnknownTaskError{Name: name}
	}
	return t, nil
}

// MustGet is Get for wiring code where a missing name is a programming error.
func (r *Registry) MustGet(name string) *Task {
	t, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return t
}

// lookup is used during resolve, with the write lock already held.
func (r *Registry) lookup(name string) (*Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for n := range r.tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
