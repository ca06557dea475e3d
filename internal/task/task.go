// Package task provides named build tasks, their registry, and the two
// composition operators used to build a task graph: Seq runs children one
// after another and stops on the first failure, Par runs them concurrently.
package task

import (
	"context"
	"strings"
)

// Func is the body of a primitive task.
type Func func(ctx context.Context) error

// Mode is how a composite runs its children.
type Mode int

const (
	// ModePrimitive marks a task with a Func body.
	ModePrimitive Mode = iota
	// ModeSequence runs children in order, stopping at the first failure.
	ModeSequence
	// ModeParallel runs children concurrently.
	ModeParallel
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModePrimitive:
		return "task"
	case ModeSequence:
		return "series"
	case ModeParallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// Task is a node of the build graph. Registered tasks have a name;
// composites nested inline in another composite are anonymous.
type Task struct {
	name        string
	description string
	mode        Mode
	fn          Func
	children    []*Task
}

// Name returns the registered name, or "" for an anonymous composite.
func (t *Task) Name() string { return t.name }

// Description returns the optional help text.
func (t *Task) Description() string { return t.description }

// Mode returns how the task executes.
func (t *Task) Mode() Mode { return t.mode }

// Children returns the ordered children of a composite.
func (t *Task) Children() []*Task {
	return append([]*Task(nil), t.children...)
}

// Label returns the name, or a synthesized "series(a, b)" label for an
// anonymous composite.
func (t *Task) Label() string {
	if t.name != "" {
		return t.name
	}
	if t.mode == ModePrimitive {
		return "<anonymous>"
	}
	labels := make([]string, 0, len(t.children))
	for _, c := range t.children {
		labels = append(labels, c.Label())
	}
	return t.mode.String() + "(" + strings.Join(labels, ", ") + ")"
}

// Body is what a task name is registered with: a Func or a composite
// built by Seq or Par.
type Body interface {
	resolve(r *Registry, owner string) (*Task, error)
}

// Ref refers to a task from inside a composite: a registered name or a
// nested anonymous composite.
type Ref interface {
	resolve(r *Registry, owner string) (*Task, error)
}

func (f Func) resolve(_ *Registry, owner string) (*Task, error) {
	return &Task{name: owner, mode: ModePrimitive, fn: f}, nil
}

// Name refers to a task registered under that name.
type Name string

func (n Name) resolve(r *Registry, owner string) (*Task, error) {
	t, ok := r.lookup(string(n))
	if !ok {
		return nil, &UnknownTaskError{Name: string(n), Referrer: owner}
	}
	return t, nil
}

// Composite is an unresolved Seq or Par expression.
type Composite struct {
	mode Mode
	refs []Ref
}

// Seq composes refs into a sequence.
func Seq(refs ...Ref) *Composite {
	return &Composite{mode: ModeSequence, refs: refs}
}

// Par composes refs into a parallel group.
func Par(refs ...Ref) *Composite {
	return &Composite{mode: ModeParallel, refs: refs}
}

// Names converts task names to refs.
func Names(names ...string) []Ref {
	refs := make([]Ref, len(names))
	for i, n := range names {
		refs[i] = Name(n)
	}
	return refs
}

func (c *Composite) resolve(r *Registry, owner string) (*Task, error) {
	t := &Task{name: owner, mode: c.mode}
	for _, ref := range c.refs {
		// Nested composites are anonymous but report errors against owner.
		child, err := ref.resolve(r, "")
		if err != nil {
			if u, ok := err.(*UnknownTaskError); ok && u.Referrer == "" {
				u.Referrer = owner
			}
			return nil, err
		}
		t.children = append(t.children, child)
	}
	return t, nil
}

// Sequence builds an anonymous sequence from resolved tasks.
func Sequence(tasks ...*Task) *Task {
	return &Task{mode: ModeSequence, children: tasks}
}

// Parallel builds an anonymous parallel group from resolved tasks.
func Parallel(tasks ...*Task) *Task {
	return &Task{mode: ModeParallel, children: tasks}
}

// New builds an unregistered primitive task, mainly for tests and for
// one-off watch targets.
func New(name string, fn Func) *Task {
	return &Task{name: name, mode: ModePrimitive, fn: fn}
}
