// Package pipeline runs file transformations: it reads the inputs selected
// by a glob set, passes them through an ordered list of stages, writes the
// results through a sink and notifies live-reload observers.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/sitepipe/internal/asset"
	"github.com/ShayCichocki/sitepipe/internal/exec"
	"github.com/ShayCichocki/sitepipe/internal/glob"
	"github.com/ShayCichocki/sitepipe/internal/sink"
)

// Logger receives formatted log lines.
type Logger interface {
	Log(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Log(string, ...interface{}) {}

// Env carries the collaborators every pipeline needs. It is built once at
// startup and shared by all pipelines.
type Env struct {
	// Root is the absolute project directory; globs and destinations are
	// relative to it.
	Root    string
	Options Options
	// Runner executes external tools.
	Runner exec.CommandRunner
	// Sass compiles SCSS; nil uses the sass CLI through Runner.
	Sass SassCompiler
	// Sink persists outputs; nil writes to the local filesystem.
	Sink sink.Sink
	// Notifier is told about written files; nil discards.
	Notifier sink.Notifier
	// Console receives user-facing lines such as file sizes and warnings.
	Console Logger
	// Debug receives diagnostic lines.
	Debug Logger

	warned sync.Map
}

func (e *Env) console() Logger {
	if e.Console == nil {
		return nopLogger{}
	}
	return e.Console
}

func (e *Env) debug() Logger {
	if e.Debug == nil {
		return nopLogger{}
	}
	return e.Debug
}

func (e *Env) sink() sink.Sink {
	if e.Sink == nil {
		return sink.FileSink{}
	}
	return e.Sink
}

func (e *Env) notifier() sink.Notifier {
	if e.Notifier == nil {
		return sink.NopNotifier{}
	}
	return e.Notifier
}

// notify tells the notifier about written paths. A notifier panic is
// reported as an error; the files are already on disk.
func (e *Env) notify(paths []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return e.notifier().Notify(paths)
}

func (e *Env) runner() exec.CommandRunner {
	if e.Runner == nil {
		return exec.NewRunner()
	}
	return e.Runner
}

// warnOnce prints a console warning the first time key is seen.
func (e *Env) warnOnce(key, format string, args ...interface{}) {
	if _, loaded := e.warned.LoadOrStore(key, true); !loaded {
		e.console().Log(format, args...)
	}
}

// Abs resolves a project-relative path.
func (e *Env) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(e.Root, filepath.FromSlash(rel))
}

// Stage is one transformation step over the whole file set.
type Stage interface {
	Name() string
	Apply(ctx context.Context, env *Env, files []*asset.File) ([]*asset.File, error)
}

// Pipeline is a source set, an ordered list of stages and a destination.
type Pipeline struct {
	Name    string
	Sources glob.Set
	Stages  []Stage
	// Dest is the project-relative output directory.
	Dest string
}

// Run executes the pipeline once. Stage failures are returned as
// *TransformError and write failures as *sink.WriteError.
func (p *Pipeline) Run(ctx context.Context, env *Env) error {
	start := time.Now()

	files, err := p.read(env.Root)
	if err != nil {
		return newTransformError(p.Name, "src", err)
	}

	for _, st := range p.Stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		files, err = st.Apply(ctx, env, files)
		if err != nil {
			return newTransformError(p.Name, st.Name(), err)
		}
	}

	written, err := env.sink().Write(files, env.Abs(p.Dest))
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}

	if len(written) > 0 {
		if err := env.notify(written); err != nil {
			env.debug().Log("[pipeline] %s: notify failed: %v", p.Name, err)
		}
	}
	env.debug().Log("[pipeline] %s: wrote %d file(s) to %s in %v", p.Name, len(written), p.Dest, time.Since(start))
	return nil
}

func (p *Pipeline) read(root string) ([]*asset.File, error) {
	hits, err := p.Sources.Expand(root)
	if err != nil {
		return nil, err
	}
	files := make([]*asset.File, 0, len(hits))
	for _, h := range hits {
		f, err := asset.Read(h.Base, h.Path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// FileFunc transforms one file into zero or more files.
type FileFunc func(ctx context.Context, env *Env, f *asset.File) ([]*asset.File, error)

// PerFile builds a stage that applies fn to every file whose extension is
// in exts (all files when exts is empty). Other files pass through. Files
// are processed concurrently and output order follows input order.
func PerFile(name string, fn FileFunc, exts ...string) Stage {
	return &perFileStage{name: name, fn: fn, exts: exts}
}

type perFileStage struct {
	name string
	fn   FileFunc
	exts []string
}

func (s *perFileStage) Name() string { return s.name }

func (s *perFileStage) accepts(f *asset.File) bool {
	if len(s.exts) == 0 {
		return true
	}
	ext := f.Ext()
	for _, e := range s.exts {
		if e == ext {
			return true
		}
	}
	return false
}

func (s *perFileStage) Apply(ctx context.Context, env *Env, files []*asset.File) ([]*asset.File, error) {
	results := make([][]*asset.File, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, f := range files {
		if !s.accepts(f) {
			results[i] = []*asset.File{f}
			continue
		}
		i, f := i, f
		g.Go(func() error {
			out, err := s.fn(gctx, env, f)
			if err != nil {
				return &fileError{rel: f.Rel, err: err}
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*asset.File
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// StageFunc adapts a whole-set function to Stage.
func StageFunc(name string, fn func(ctx context.Context, env *Env, files []*asset.File) ([]*asset.File, error)) Stage {
	return &funcStage{name: name, fn: fn}
}

type funcStage struct {
	name string
	fn   func(ctx context.Context, env *Env, files []*asset.File) ([]*asset.File, error)
}

func (s *funcStage) Name() string { return s.name }

func (s *funcStage) Apply(ctx context.Context, env *Env, files []*asset.File) ([]*asset.File, error) {
	return s.fn(ctx, env, files)
}

// If returns stage when cond holds and a pass-through otherwise.
func If(cond bool, stage Stage) Stage {
	if cond {
		return stage
	}
	return StageFunc("noop("+stage.Name()+")", func(_ context.Context, _ *Env, files []*asset.File) ([]*asset.File, error) {
		return files, nil
	})
}
