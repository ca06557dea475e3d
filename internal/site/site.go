// Package site defines the concrete build: the named tasks that turn the
// source tree into the build tree and the watch bindings that rerun them.
package site

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/ShayCichocki/sitepipe/internal/config"
	"github.com/ShayCichocki/sitepipe/internal/exec"
	"github.com/ShayCichocki/sitepipe/internal/glob"
	"github.com/ShayCichocki/sitepipe/internal/pipeline"
	"github.com/ShayCichocki/sitepipe/internal/sink"
	"github.com/ShayCichocki/sitepipe/internal/task"
	"github.com/ShayCichocki/sitepipe/internal/watch"
	"github.com/ShayCichocki/sitepipe/pkg/models"
)

// Task names.
const (
	TaskClean           = "clean"
	TaskWebP            = "webp"
	TaskSymbols         = "symbols"
	TaskFonts           = "fonts"
	TaskBlockSVG        = "blocksvg"
	TaskCopyFavicon     = "copyfavicon"
	TaskCopyWebManifest = "copywebmanifest"
	TaskPluginsJS       = "pluginsJS"
	TaskFileInclude     = "fileinclude"
	TaskStyle           = "style"
	TaskScripts         = "scripts"
	TaskWebpack         = "webpack"
	TaskScriptsJq       = "scriptsJq"
	TaskImage           = "image"
	TaskServer          = "server"
	TaskCompile         = "compile"
	TaskBuild           = "build"
)

// transformSet is the parallel stage of a build.
var transformSet = []string{
	TaskImage,
	TaskFileInclude,
	TaskStyle,
	TaskScripts,
	TaskWebpack,
	TaskScriptsJq,
	TaskFonts,
	TaskPluginsJS,
	TaskCopyFavicon,
	TaskBlockSVG,
	TaskCopyWebManifest,
}

// LiveServer serves the build root for the server task.
type LiveServer interface {
	Start(ctx context.Context) error
	URL() string
}

// Deps are the collaborators a Site is built with.
type Deps struct {
	// Runner executes external tools; nil uses the system runner.
	Runner exec.CommandRunner
	// Sass compiles stylesheets; nil uses the sass CLI named in the config.
	Sass pipeline.SassCompiler
	// Sink persists outputs; nil writes to disk.
	Sink sink.Sink
	// Notifier is told about every written file; nil discards.
	Notifier sink.Notifier
	// Console receives user-facing lines.
	Console pipeline.Logger
	// Debug receives diagnostics.
	Debug pipeline.Logger

	// Live serves the build root; nil makes the server task watch only.
	Live LiveServer
	// OpenBrowser opens the served URL once listening.
	OpenBrowser bool
	// OnServe is called with the served URL.
	OnServe func(url string)
	// Watch creates the event source for the server task; nil watches the
	// source root with fsnotify.
	Watch func(root string) (watch.Source, error)
	// Tasks runs watch-triggered tasks; nil runs them straight from the
	// registry. Set it with SetTaskRunner once an orchestrator exists.
	Tasks watch.Runner
}

// Site is the registered task set for one project.
type Site struct {
	cfg      *config.Config
	mode     models.Mode
	env      *pipeline.Env
	deps     Deps
	registry *task.Registry

	sched atomic.Pointer[watch.Scheduler]
}

// New registers every task for cfg in mode.
func New(cfg *config.Config, mode models.Mode, deps Deps) (*Site, error) {
	if !mode.Valid() {
		return nil, &config.ConfigurationError{Key: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
	runner := deps.Runner
	if runner == nil {
		runner = exec.NewRunner()
	}
	sass := deps.Sass
	if sass == nil {
		sass = &pipeline.CLISass{Runner: runner, Tool: cfg.Tools.Sass}
	}

	s := &Site{
		cfg:  cfg,
		mode: mode,
		deps: deps,
		env: &pipeline.Env{
			Root:     cfg.Root,
			Options:  pipeline.OptionsFor(mode, cfg.Transforms),
			Runner:   runner,
			Sass:     sass,
			Sink:     deps.Sink,
			Notifier: deps.Notifier,
			Console:  deps.Console,
			Debug:    deps.Debug,
		},
		registry: task.NewRegistry(),
	}
	s.deps.Runner = runner
	if err := s.register(); err != nil {
		return nil, err
	}
	return s, nil
}

// Registry returns the registered tasks.
func (s *Site) Registry() *task.Registry {
	return s.registry
}

// Mode returns the mode the site was built for.
func (s *Site) Mode() models.Mode {
	return s.mode
}

// Env returns the pipeline environment shared by all tasks.
func (s *Site) Env() *pipeline.Env {
	return s.env
}

// SetTaskRunner routes watch-triggered runs through r.
func (s *Site) SetTaskRunner(r watch.Runner) {
	s.deps.Tasks = r
}

func (s *Site) register() error {
	for _, p := range s.Pipelines() {
		p := p
		desc := fmt.Sprintf("%s -> %s", joinPatterns(p.Sources), p.Dest)
		if err := s.registry.RegisterWithDescription(p.Name, desc, task.Func(func(ctx context.Context) error {
			return p.Run(ctx, s.env)
		})); err != nil {
			return err
		}
	}

	steps := []struct {
		name, desc string
		body       task.Body
	}{
		{TaskClean, "remove " + joinList(s.cfg.Paths.Clean), task.Func(s.clean)},
		{TaskServer, "serve " + s.cfg.Paths.BuildRoot + " and watch sources", task.Func(s.serve)},
		{TaskCompile, "clean, symbols, then every transform in parallel", task.Seq(
			task.Name(TaskClean),
			task.Name(TaskSymbols),
			task.Par(task.Names(transformSet...)...),
		)},
		{TaskBuild, "compile, then serve", task.Seq(
			task.Name(TaskClean),
			task.Name(TaskSymbols),
			task.Par(task.Names(transformSet...)...),
			task.Name(TaskServer),
		)},
	}
	for _, st := range steps {
		if err := s.registry.RegisterWithDescription(st.name, st.desc, st.body); err != nil {
			return err
		}
	}
	return nil
}

// Pipelines returns the file-transform tasks, one per resource class.
func (s *Site) Pipelines() []*pipeline.Pipeline {
	src := s.cfg.Paths.Src
	dst := s.cfg.Paths.Build
	tools := s.cfg.Tools
	minify := s.env.Options.Minify

	return []*pipeline.Pipeline{
		{
			Name:    TaskWebP,
			Sources: glob.New(src.ImgWebP...),
			Stages:  []pipeline.Stage{pipeline.WebP(tools.CWebP)},
			Dest:    webpDest(src.ImgWebP),
		},
		{
			Name:    TaskSymbols,
			Sources: glob.New(src.SVG...),
			Stages: []pipeline.Stage{
				pipeline.MinifySVG(),
				pipeline.Sprite("symbols.svg"),
			},
			Dest: dst.SVGSprite,
		},
		{
			Name:    TaskFonts,
			Sources: glob.New(src.Fonts...),
			Stages:  []pipeline.Stage{pipeline.Size(TaskFonts)},
			Dest:    dst.Fonts,
		},
		{
			Name:    TaskBlockSVG,
			Sources: glob.New(src.BlockSVG...),
			Stages: []pipeline.Stage{
				pipeline.If(minify, pipeline.MinifySVG()),
				pipeline.Size(TaskBlockSVG),
			},
			Dest: dst.Img,
		},
		{
			Name:    TaskCopyFavicon,
			Sources: glob.New(src.Favicon...),
			Dest:    dst.Favicon,
		},
		{
			Name:    TaskCopyWebManifest,
			Sources: glob.New(src.WebManifest...),
			Stages: []pipeline.Stage{
				pipeline.ValidateJSON(),
				pipeline.If(minify, pipeline.MinifyJSON()),
				pipeline.Size(TaskCopyWebManifest),
			},
			Dest: dst.WebManifest,
		},
		{
			Name:    TaskPluginsJS,
			Sources: glob.New(src.JSPlugins...),
			Dest:    dst.JSPlugins,
		},
		{
			Name:    TaskFileInclude,
			Sources: glob.New(src.HTML...),
			Stages: []pipeline.Stage{
				pipeline.Include(),
				pipeline.If(minify, pipeline.MinifyHTML()),
				pipeline.Size(TaskFileInclude),
			},
			Dest: dst.HTML,
		},
		{
			Name:    TaskStyle,
			Sources: glob.New(src.CSS...),
			Stages: []pipeline.Stage{
				pipeline.CompileSass(),
				pipeline.Autoprefix(),
				pipeline.If(minify, pipeline.MinifyCSS()),
				pipeline.Size(TaskStyle),
			},
			Dest: dst.CSS,
		},
		{
			Name:    TaskScripts,
			Sources: glob.New(src.JS...),
			Stages: []pipeline.Stage{
				pipeline.Concat("script.js"),
				pipeline.TranspileJS(),
				pipeline.If(minify, pipeline.MinifyJS()),
				pipeline.Size(TaskScripts),
			},
			Dest: dst.JS,
		},
		{
			Name:    TaskWebpack,
			Sources: glob.New(src.Webpack...),
			Stages: []pipeline.Stage{
				pipeline.Bundle("main-webpack.js"),
				pipeline.Size(TaskWebpack),
			},
			Dest: dst.JS,
		},
		{
			Name:    TaskScriptsJq,
			Sources: glob.New(src.JSJq...),
			Stages: []pipeline.Stage{
				pipeline.Concat("jq-script.js"),
				pipeline.TranspileJSWithoutMaps(),
				pipeline.If(minify, pipeline.MinifyJS()),
				pipeline.Size(TaskScriptsJq),
			},
			Dest: dst.JS,
		},
		{
			Name:    TaskImage,
			Sources: glob.New(src.Img...),
			Stages: []pipeline.Stage{
				pipeline.If(minify, pipeline.OptimizeImages(tools.OptiPNG, tools.JPEGTran)),
			},
			Dest: dst.Img,
		},
	}
}

// clean removes every existing clean target. Missing targets are skipped.
func (s *Site) clean(ctx context.Context) error {
	targets, err := glob.Paths(s.cfg.Root, s.cfg.Paths.Clean)
	if err != nil {
		return err
	}
	for _, p := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
		s.debugf("removed %s", p)
	}
	return nil
}

func (s *Site) debugf(format string, args ...interface{}) {
	if s.deps.Debug != nil {
		s.deps.Debug.Log("[site] "+format, args...)
	}
}

func (s *Site) consolef(format string, args ...interface{}) {
	if s.deps.Console != nil {
		s.deps.Console.Log(format, args...)
	}
}

// webpDest writes converted images next to their sources.
func webpDest(patterns []string) string {
	set := glob.New(patterns...)
	if len(set.Include) == 0 {
		return "."
	}
	return glob.Base(set.Include[0])
}

func joinPatterns(set glob.Set) string {
	out := append([]string(nil), set.Include...)
	for _, ex := range set.Exclude {
		out = append(out, "!"+ex)
	}
	return joinList(out)
}

func joinList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

// Bindings returns the watch bindings: each resource class reruns its own
// task when a matching source changes.
func (s *Site) Bindings() []watch.Binding {
	src := s.cfg.Paths.Src
	w := s.cfg.Paths.Watch
	bind := func(patterns []string, tasks ...string) watch.Binding {
		return watch.Binding{Patterns: glob.New(patterns...), Tasks: tasks}
	}
	return []watch.Binding{
		bind(src.Img, TaskImage),
		bind(w.HTML, TaskFileInclude),
		bind(w.JS, TaskScripts, TaskScriptsJq),
		bind(w.Webpack, TaskWebpack),
		bind(src.JSPlugins, TaskPluginsJS),
		bind(w.CSS, TaskStyle),
		bind(w.Fonts, TaskFonts),
		bind(src.Favicon, TaskCopyFavicon),
		bind(src.WebManifest, TaskCopyWebManifest),
		bind(src.BlockSVG, TaskBlockSVG),
		bind(src.SVG, TaskSymbols),
	}
}
