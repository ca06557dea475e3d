package graph

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/ShayCichocki/sitepipe/internal/task"
)

func noop(context.Context) error { return nil }

func buildRegistry(t *testing.T) *task.Registry {
	t.Helper()
	r := task.NewRegistry()
	for _, n := range []string{"clean", "symbols", "style", "scripts", "server", "webp"} {
		if err := r.Register(n, task.Func(noop)); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}
	if err := r.Register("assets", task.Par(task.Names("style", "scripts")...)); err != nil {
		t.Fatalf("register assets: %v", err)
	}
	err := r.Register("build", task.Seq(
		task.Name("clean"),
		task.Name("symbols"),
		task.Par(task.Name("assets"), task.Name("style")),
		task.Name("server"),
	))
	if err != nil {
		t.Fatalf("register build: %v", err)
	}
	return r
}

func TestFromRegistry(t *testing.T) {
	g, err := FromRegistry(buildRegistry(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Size() != 8 {
		t.Errorf("expected size 8, got %d", g.Size())
	}
	if g.HasCycle() {
		t.Error("registry graph must be acyclic")
	}
}

func TestGraphFlattensAnonymousComposites(t *testing.T) {
	g, err := FromRegistry(buildRegistry(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"clean", "symbols", "assets", "style", "server"}
	if got := g.GetDependencies("build"); !reflect.DeepEqual(got, want) {
		t.Errorf("GetDependencies(build) = %v, want %v", got, want)
	}
}

func TestGraphDependents(t *testing.T) {
	g, err := FromRegistry(buildRegistry(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := g.GetDependents("style")
	want := []string{"assets", "build"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetDependents(style) = %v, want %v", got, want)
	}
	if deps := g.GetDependents("build"); len(deps) != 0 {
		t.Errorf("expected no dependents of build, got %v", deps)
	}
}

func TestGraphTopologicalSort(t *testing.T) {
	g, err := FromRegistry(buildRegistry(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := make(map[string]int)
	for i, n := range order {
		pos[n] = i
	}
	for _, name := range order {
		for _, dep := range g.GetDependencies(name) {
			if pos[dep] > pos[name] {
				t.Errorf("%s appears before its dependency %s", name, dep)
			}
		}
	}
}

func TestGraphRoots(t *testing.T) {
	g, err := FromRegistry(buildRegistry(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"build", "webp"}
	if got := g.Roots(); !reflect.DeepEqual(got, want) {
		t.Errorf("Roots() = %v, want %v", got, want)
	}
}

func TestGraphBuildUnknownReference(t *testing.T) {
	r := buildRegistry(t)
	g := New()
	// Only the composite, without the tasks it runs.
	err := g.Build([]*task.Task{r.MustGet("assets")})
	if err == nil {
		t.Fatal("expected error for unknown reference")
	}
}

func TestGraphDebugLog(t *testing.T) {
	var lines []string
	g := New()
	g.SetDebugLog(func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	})
	if err := g.BuildFromRegistry(buildRegistry(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d debug lines, want 2: %v", len(lines), lines)
	}
	if lines[1] != "[graph.Build] graph built with 8 nodes" {
		t.Errorf("last line = %q", lines[1])
	}
}
