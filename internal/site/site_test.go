package site

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/sitepipe/internal/asset"
	"github.com/ShayCichocki/sitepipe/internal/config"
	"github.com/ShayCichocki/sitepipe/internal/exec"
	"github.com/ShayCichocki/sitepipe/internal/livereload"
	"github.com/ShayCichocki/sitepipe/internal/pipeline"
	"github.com/ShayCichocki/sitepipe/internal/sink"
	"github.com/ShayCichocki/sitepipe/internal/task"
	"github.com/ShayCichocki/sitepipe/internal/watch"
	"github.com/ShayCichocki/sitepipe/pkg/models"
)

var fixture = map[string]string{
	"src/index.html": "<!DOCTYPE html>\n<html>\n  <head>\n    <title>Demo</title>\n  </head>\n  <body>\n    @@include('_blocks/header/header.html', {\"title\": \"Home\"})\n    <p>\n      Hello   world\n    </p>\n  </body>\n</html>\n",
	"src/_blocks/header/header.html":   "<header>\n  <h1>@@title</h1>\n</header>\n",
	"src/_blocks/header/header.js":     "const greet = (name) => {\n  console.log(`hi ${name}`);\n};\ngreet(\"header\");\n",
	"src/_blocks/header/jq-header.js":  "$(function () {\n  let open = false;\n  $('.burger').on('click', () => { open = !open; });\n});\n",
	"src/scss/main.scss":               "/* layout */\n.header {\n  display: flex;\n  user-select: none;\n}\n",
	"src/webpack/main-webpack.js":      "import { twice } from './lib.js';\nconsole.log(twice(21));\n",
	"src/webpack/lib.js":               "export function twice(n) {\n  return n * 2;\n}\n",
	"src/img/svg/icon.svg":             `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><path d="M0 0h10v10H0z"/></svg>`,
	"src/img/_blocks/header/logo.png":  "PNGDATA",
	"src/img/_blocks/header/photo.gif": "GIFDATA",
	"src/img/_blocks/header/arrow.svg": "<svg xmlns=\"http://www.w3.org/2000/svg\">\n  <!-- arrow -->\n  <path d=\"M0 0L5 5\"/>\n</svg>\n",
	"src/fonts/roboto.woff2":           "FONT",
	"src/fonts/fonts.scss":             "@font-face {}",
	"src/img/favicon/favicon.ico":      "ICO",
	"src/manifest-site.json":           "{\n  \"name\": \"Demo\",\n  \"display\": \"standalone\"\n}\n",
	"src/plugins/slider/slider.js":     "window.Slider = {};\n",
	"build/stale.html":                 "old",
	"someFolder/leftover.txt":          "old",
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range fixture {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

// passthroughSass treats plain CSS as SCSS.
func passthroughSass(calls *atomic.Int32) pipeline.SassCompiler {
	return pipeline.SassFunc(func(_ context.Context, f *asset.File) ([]byte, error) {
		if calls != nil {
			calls.Add(1)
		}
		return f.Contents, nil
	})
}

func fakeTools() *exec.FakeRunner {
	r := exec.NewFakeRunner()
	r.Handle("optipng", func(c exec.Command) ([]byte, error) {
		path := c.Args[len(c.Args)-1]
		return nil, os.WriteFile(path, []byte("OPTIMIZED"), 0o644)
	})
	return r
}

func newSite(t *testing.T, root string, mode models.Mode, deps Deps) *Site {
	t.Helper()
	cfg := config.Default(root)
	require.NoError(t, cfg.Validate())
	if deps.Sass == nil {
		deps.Sass = passthroughSass(nil)
	}
	if deps.Runner == nil {
		deps.Runner = fakeTools()
	}
	s, err := New(cfg, mode, deps)
	require.NoError(t, err)
	return s
}

func runTask(t *testing.T, s *Site, name string) error {
	t.Helper()
	return task.Run(context.Background(), s.Registry().MustGet(name), nil)
}

func read(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err, rel)
	return string(data)
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		data, err := os.ReadFile(p)
		out[filepath.ToSlash(rel)] = string(data)
		return err
	})
	require.NoError(t, err)
	return out
}

func TestRegistry(t *testing.T) {
	s := newSite(t, writeProject(t), models.ModeDevelopment, Deps{})

	want := []string{
		TaskBlockSVG, TaskBuild, TaskClean, TaskCompile, TaskCopyFavicon, TaskCopyWebManifest,
		TaskFileInclude, TaskFonts, TaskImage, TaskPluginsJS, TaskScripts, TaskScriptsJq,
		TaskServer, TaskStyle, TaskSymbols, TaskWebP, TaskWebpack,
	}
	sort.Strings(want)
	assert.Equal(t, want, s.Registry().Names())

	build := s.Registry().MustGet(TaskBuild)
	assert.Equal(t, task.ModeSequence, build.Mode())
	children := build.Children()
	require.Len(t, children, 4)
	assert.Equal(t, TaskClean, children[0].Name())
	assert.Equal(t, TaskSymbols, children[1].Name())
	assert.Equal(t, task.ModeParallel, children[2].Mode())
	assert.Len(t, children[2].Children(), len(transformSet))
	assert.Equal(t, TaskServer, children[3].Name())
}

func TestNewRejectsUnknownMode(t *testing.T) {
	cfg := config.Default(t.TempDir())
	_, err := New(cfg, models.Mode("staging"), Deps{})
	var cerr *config.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "mode", cerr.Key)
}

func TestProductionBuild(t *testing.T) {
	root := writeProject(t)
	s := newSite(t, root, models.ModeProduction, Deps{})

	require.NoError(t, runTask(t, s, TaskCompile))

	html := read(t, root, "build/index.html")
	assert.Contains(t, html, "<h1>Home</h1>")
	assert.NotContains(t, html, "@@")
	assert.NotContains(t, html, "\n  ", "html whitespace is collapsed")
	assert.NotContains(t, html, "Hello   world")

	css := read(t, root, "build/css/main.css")
	assert.Contains(t, css, "-webkit-user-select")
	assert.NotContains(t, css, "/*", "comments are stripped")
	assert.NotContains(t, css, "\n  ")
	assert.NoFileExists(t, filepath.Join(root, "build/css/main.css.map"))

	script := read(t, root, "build/js/script.js")
	assert.NotContains(t, script, "sourceMappingURL")
	assert.NotContains(t, script, "\n  ", "scripts are minified")
	assert.NoFileExists(t, filepath.Join(root, "build/js/script.js.map"))
	assert.FileExists(t, filepath.Join(root, "build/js/jq-script.js"))
	assert.Contains(t, read(t, root, "build/js/main-webpack.js"), "console.log")

	sprite := read(t, root, "build/img/svg/symbols.svg")
	assert.Contains(t, sprite, `id="icon"`)
	assert.Contains(t, sprite, "display:none")

	assert.Equal(t, "OPTIMIZED", read(t, root, "build/img/header/logo.png"))
	assert.Equal(t, "GIFDATA", read(t, root, "build/img/header/photo.gif"))
	assert.NotContains(t, read(t, root, "build/img/header/arrow.svg"), "<!--")
	assert.Equal(t, "FONT", read(t, root, "build/fonts/roboto.woff2"))
	assert.NoFileExists(t, filepath.Join(root, "build/fonts/fonts.scss"))
	assert.Equal(t, "ICO", read(t, root, "build/img/favicon/favicon.ico"))
	assert.Equal(t, `{"name":"Demo","display":"standalone"}`, read(t, root, "build/manifest-site.json"))
	assert.Equal(t, "window.Slider = {};\n", read(t, root, "build/plugins/slider/slider.js"))

	assert.NoFileExists(t, filepath.Join(root, "build/stale.html"), "clean removed old outputs")
	assert.NoDirExists(t, filepath.Join(root, "someFolder"))
	assert.NoFileExists(t, filepath.Join(root, "build/_blocks/header/header.html"), "block partials are not published")
}

func TestDevelopmentBuild(t *testing.T) {
	root := writeProject(t)
	s := newSite(t, root, models.ModeDevelopment, Deps{})

	require.NoError(t, runTask(t, s, TaskCompile))

	css := read(t, root, "build/css/main.css")
	assert.Contains(t, css, "sourceMappingURL=main.css.map")
	assert.Contains(t, css, "\n  ", "css is not minified")
	assert.FileExists(t, filepath.Join(root, "build/css/main.css.map"))

	assert.Contains(t, read(t, root, "build/js/script.js"), "sourceMappingURL=script.js.map")
	assert.FileExists(t, filepath.Join(root, "build/js/script.js.map"))
	assert.NotContains(t, read(t, root, "build/js/jq-script.js"), "sourceMappingURL")
	assert.NoFileExists(t, filepath.Join(root, "build/js/jq-script.js.map"))

	assert.Contains(t, read(t, root, "build/index.html"), "\n")
	assert.Equal(t, "PNGDATA", read(t, root, "build/img/header/logo.png"), "images are not optimized")
	assert.Contains(t, read(t, root, "build/img/header/arrow.svg"), "<!-- arrow -->")
}

func TestRebuildIsIdempotent(t *testing.T) {
	root := writeProject(t)
	s := newSite(t, root, models.ModeProduction, Deps{})

	require.NoError(t, runTask(t, s, TaskCompile))
	first := snapshot(t, filepath.Join(root, "build"))

	require.NoError(t, os.RemoveAll(filepath.Join(root, "build")))
	require.NoError(t, runTask(t, s, TaskCompile))
	second := snapshot(t, filepath.Join(root, "build"))

	assert.Equal(t, first, second)
}

func TestStyleFailureLeavesSiblingsRunning(t *testing.T) {
	root := writeProject(t)
	boom := errors.New("Undefined variable $brand")
	s := newSite(t, root, models.ModeDevelopment, Deps{
		Sass: pipeline.SassFunc(func(context.Context, *asset.File) ([]byte, error) { return nil, boom }),
	})

	err := runTask(t, s, TaskCompile)
	require.Error(t, err)

	var terr *pipeline.TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, TaskStyle, terr.Pipeline)
	assert.ErrorIs(t, err, boom)

	var taskErr *task.Error
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, TaskStyle, taskErr.Task)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(root, "build/index.html"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.NoFileExists(t, filepath.Join(root, "build/css/main.css"))
}

func TestWebPWritesNextToSources(t *testing.T) {
	root := writeProject(t)
	tools := fakeTools()
	tools.Handle("cwebp", func(c exec.Command) ([]byte, error) {
		out := c.Args[len(c.Args)-1]
		return nil, os.WriteFile(out, []byte("WEBP"), 0o644)
	})
	s := newSite(t, root, models.ModeDevelopment, Deps{Runner: tools})

	require.NoError(t, runTask(t, s, TaskWebP))
	assert.Equal(t, "WEBP", read(t, root, "src/img/_blocks/header/logo.webp"))
}

func TestNotifierSeesWrittenFiles(t *testing.T) {
	root := writeProject(t)
	var mu sync.Mutex
	var notified []string
	s := newSite(t, root, models.ModeDevelopment, Deps{
		Notifier: sink.NotifierFunc(func(paths []string) error {
			mu.Lock()
			defer mu.Unlock()
			notified = append(notified, paths...)
			return nil
		}),
	})

	require.NoError(t, runTask(t, s, TaskFonts))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{filepath.Join(root, "build", "fonts", "roboto.woff2")}, notified)
}

func TestBindings(t *testing.T) {
	s := newSite(t, writeProject(t), models.ModeDevelopment, Deps{})

	triggered := func(rel string) []string {
		var names []string
		for _, b := range s.Bindings() {
			if b.Patterns.Match(rel) {
				names = append(names, b.Tasks...)
			}
		}
		sort.Strings(names)
		return names
	}

	tests := []struct {
		path string
		want []string
	}{
		{"src/_blocks/header/header.html", []string{TaskFileInclude}},
		{"src/index.html", []string{TaskFileInclude}},
		{"src/_blocks/header/header.js", []string{TaskScripts, TaskScriptsJq}},
		{"src/webpack/lib.js", []string{TaskWebpack}},
		{"src/scss/_vars.scss", []string{TaskStyle}},
		{"src/fonts/fonts.scss", []string{TaskFonts, TaskStyle}},
		{"src/img/_blocks/header/logo.png", []string{TaskImage}},
		{"src/img/_blocks/header/arrow.svg", []string{TaskBlockSVG}},
		{"src/img/svg/icon.svg", []string{TaskSymbols}},
		{"src/img/favicon/favicon.ico", []string{TaskCopyFavicon}},
		{"src/manifest-site.json", []string{TaskCopyWebManifest}},
		{"src/plugins/slider/slider.js", []string{TaskPluginsJS, TaskScripts, TaskScriptsJq}},
		{"README.md", nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, triggered(tt.path))
		})
	}
}

func TestServerRebuildsOnChange(t *testing.T) {
	root := writeProject(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o755))

	var sassCalls atomic.Int32
	src := watch.NewChanSource(8)
	live := livereload.New(filepath.Join(root, "build"), livereload.Options{Host: "127.0.0.1", Port: 0})
	served := make(chan string, 1)

	s := newSite(t, root, models.ModeDevelopment, Deps{
		Sass:     passthroughSass(&sassCalls),
		Notifier: live,
		Live:     live,
		OnServe:  func(url string) { served <- url },
		Watch:    func(string) (watch.Source, error) { return src, nil },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server := s.Registry().MustGet(TaskServer)
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx, server, nil) }()

	var url string
	select {
	case url = <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("server never started")
	}
	assert.True(t, strings.HasPrefix(url, "http://127.0.0.1:"))

	require.Eventually(t, func() bool { return s.WatchStatus() != nil }, 5*time.Second, 10*time.Millisecond)

	src.Send(watch.Event{Path: filepath.Join(root, "src/scss/main.scss"), Op: watch.OpWrite})
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(root, "build/css/main.css"))
		return err == nil && sassCalls.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server task did not stop")
	}
}

func TestServerFailsWithoutBuildRoot(t *testing.T) {
	root := writeProject(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "build")))

	live := livereload.New(filepath.Join(root, "build"), livereload.Options{Host: "127.0.0.1", Port: 0})
	s := newSite(t, root, models.ModeDevelopment, Deps{
		Live:  live,
		Watch: func(string) (watch.Source, error) { return watch.NewChanSource(1), nil },
	})

	err := runTask(t, s, TaskServer)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
