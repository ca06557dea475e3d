package site

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/sitepipe/internal/livereload"
	"github.com/ShayCichocki/sitepipe/internal/task"
	"github.com/ShayCichocki/sitepipe/internal/watch"
)

// serve is the server task: it starts the live-reload server over the
// build root, then dispatches source changes to the watch bindings until
// ctx is cancelled. A missing build root fails the task.
func (s *Site) serve(ctx context.Context) error {
	if s.deps.Live != nil {
		if err := s.deps.Live.Start(ctx); err != nil {
			return err
		}
		url := s.deps.Live.URL()
		s.consolef("Serving files from %s at %s", s.cfg.Paths.BuildRoot, url)
		if s.deps.OpenBrowser {
			if err := livereload.OpenBrowser(ctx, s.deps.Runner, s.cfg.Tools.Opener, url); err != nil {
				s.consolef("could not open browser: %v", err)
			}
		}
		if s.deps.OnServe != nil {
			s.deps.OnServe(url)
		}
	}

	newSource := s.deps.Watch
	if newSource == nil {
		newSource = func(root string) (watch.Source, error) {
			return watch.NewFSSource(root)
		}
	}
	src, err := newSource(s.cfg.Abs(s.cfg.Paths.SrcRoot))
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.cfg.Paths.SrcRoot, err)
	}
	defer src.Close()

	sched := watch.New(s.cfg.Root, s.taskRunner(), s.Bindings(), watch.Options{
		Delay:   watch.DefaultDelay,
		Console: s.deps.Console,
		Debug:   s.deps.Debug,
	})
	s.sched.Store(sched)
	s.debugf("watching %s with %d binding(s)", s.cfg.Paths.SrcRoot, len(s.Bindings()))
	return sched.Run(ctx, src)
}

// taskRunner returns the configured runner or one that resolves names
// against the registry and runs them as a parallel composite.
func (s *Site) taskRunner() watch.Runner {
	if s.deps.Tasks != nil {
		return s.deps.Tasks
	}
	return watch.RunnerFunc(func(ctx context.Context, names ...string) error {
		tasks := make([]*task.Task, 0, len(names))
		for _, name := range names {
			t, err := s.registry.Get(name)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		return task.Run(ctx, task.Parallel(tasks...), nil)
	})
}

// WatchStatus reports the per-binding scheduler state while the server
// task runs; it is nil before.
func (s *Site) WatchStatus() []watch.Status {
	sched := s.sched.Load()
	if sched == nil {
		return nil
	}
	return sched.Status()
}
