// Package graph provides a read-only dependency view over a task registry,
// used to list tasks in execution order and to show which composites use
// a task.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/sitepipe/internal/task"
)

// ErrCycleDetected indicates a circular reference between composites. The
// registry rejects forward references, so this only fires for graphs that
// were assembled by hand.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed acyclic graph of registered task names.
// Edges point from a composite to the named tasks it runs; anonymous
// composites are flattened into their nearest named ancestor.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps task name to the task itself.
	nodes map[string]*task.Task
	// edges maps task name to the names it runs.
	edges map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]*task.Task),
		edges:    make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// FromRegistry builds a graph from every task in r.
func FromRegistry(r *task.Registry) (*DependencyGraph, error) {
	g := New()
	if err := g.BuildFromRegistry(r); err != nil {
		return nil, err
	}
	return g, nil
}

// BuildFromRegistry builds g from every task in r. Use it instead of
// FromRegistry when a debug log must see the build.
func (g *DependencyGraph) BuildFromRegistry(r *task.Registry) error {
	var tasks []*task.Task
	for _, name := range r.Names() {
		t, err := r.Get(name)
		if err != nil {
			return err
		}
		tasks = append(tasks, t)
	}
	return g.Build(tasks)
}

// Build constructs the graph from named tasks. Returns an error if a cycle
// is detected or a composite references a task that is not in the set.
func (g *DependencyGraph) Build(tasks []*task.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d tasks", len(tasks))

	for _, t := range tasks {
		g.nodes[t.Name()] = t
		g.edges[t.Name()] = nil
	}

	for _, t := range tasks {
		for _, dep := range namedChildren(t) {
			if _, exists := g.nodes[dep]; !exists {
				return fmt.Errorf("task %s references unknown task %s", t.Name(), dep)
			}
			g.edges[t.Name()] = append(g.edges[t.Name()], dep)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return nil
}

// namedChildren returns the names of the first named tasks below t,
// looking through anonymous composites.
func namedChildren(t *task.Task) []string {
	var out []string
	var walk func(c *task.Task)
	walk = func(c *task.Task) {
		if c.Name() != "" {
			out = append(out, c.Name())
			return
		}
		for _, gc := range c.Children() {
			walk(gc)
		}
	}
	for _, c := range t.Children() {
		walk(c)
	}
	return out
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range g.edges[id] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.sortedNamesLocked() {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

func (g *DependencyGraph) sortedNamesLocked() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TopologicalSort returns task names so that every task appears after the
// tasks it runs. Ties are broken alphabetically.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool)
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.edges[id] {
			visit(dep)
		}
		result = append(result, id)
	}

	for _, id := range g.sortedNamesLocked() {
		visit(id)
	}
	return result, nil
}

// Roots returns tasks that no other task runs, sorted.
func (g *DependencyGraph) Roots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	used := make(map[string]bool)
	for _, deps := range g.edges {
		for _, d := range deps {
			used[d] = true
		}
	}
	var roots []string
	for _, n := range g.sortedNamesLocked() {
		if !used[n] {
			roots = append(roots, n)
		}
	}
	return roots
}

// GetTask returns the task for a given name, or nil if not found.
func (g *DependencyGraph) GetTask(name string) *task.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[name]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the names the given task runs.
func (g *DependencyGraph) GetDependencies(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[name]...)
}

// GetDependents returns the sorted names of composites that run the given task.
func (g *DependencyGraph) GetDependents(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for id, deps := range g.edges {
		for _, d := range deps {
			if d == name {
				dependents = append(dependents, id)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}
