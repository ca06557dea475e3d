package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/sitepipe/internal/asset"
	"github.com/ShayCichocki/sitepipe/internal/exec"
	"github.com/ShayCichocki/sitepipe/internal/glob"
	"github.com/ShayCichocki/sitepipe/internal/sink"
	"github.com/ShayCichocki/sitepipe/internal/task"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Log(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) all() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testEnv(t *testing.T, root string) *Env {
	t.Helper()
	return &Env{
		Root: root,
		Options: Options{
			OptimizationLevel: 3,
			WebPQuality:       90,
			Targets:           []string{"chrome58", "safari11"},
			IncludePrefix:     "@@",
		},
		Runner:  exec.NewFakeRunner(),
		Console: &recordingLogger{},
	}
}

func TestPipelineRunWritesAndNotifies(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/fonts/a.woff2", "A")
	writeFile(t, root, "src/fonts/sub/b.woff2", "B")
	writeFile(t, root, "src/fonts/_vars.scss", "$x: 1;")

	var notified []string
	env := testEnv(t, root)
	env.Notifier = sink.NotifierFunc(func(paths []string) error {
		notified = append(notified, paths...)
		return errors.New("nobody listening")
	})

	p := &Pipeline{
		Name:    "fonts",
		Sources: glob.New("src/fonts/**/*.*", "!src/fonts/**/*.scss"),
		Dest:    "build/fonts/",
	}
	require.NoError(t, p.Run(context.Background(), env))

	assert.FileExists(t, filepath.Join(root, "build/fonts/a.woff2"))
	assert.FileExists(t, filepath.Join(root, "build/fonts/sub/b.woff2"))
	assert.NoFileExists(t, filepath.Join(root, "build/fonts/_vars.scss"))
	assert.Equal(t, []string{
		filepath.Join(root, "build/fonts/a.woff2"),
		filepath.Join(root, "build/fonts/sub/b.woff2"),
	}, notified)
}

func TestPipelineNotifierPanicDoesNotFailTask(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/manifest-app.json", `{}`)

	debug := &recordingLogger{}
	env := testEnv(t, root)
	env.Debug = debug
	env.Notifier = sink.NotifierFunc(func([]string) error {
		panic("send on closed channel")
	})

	p := &Pipeline{Name: "copywebmanifest", Sources: glob.New("src/manifest-*.json"), Dest: "build/"}
	err := task.Run(context.Background(), task.New("copywebmanifest", func(ctx context.Context) error {
		return p.Run(ctx, env)
	}), nil)

	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "build/manifest-app.json"))
	assert.Contains(t, debug.all(), "notify failed: notifier panic: send on closed channel")
}

func TestPipelineStageFailureIsTransformError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/page.html", `@@include('missing.html')`)

	p := &Pipeline{
		Name:    "fileinclude",
		Sources: glob.New("src/*.html"),
		Stages:  []Stage{Include()},
		Dest:    "build/",
	}
	err := p.Run(context.Background(), testEnv(t, root))

	var te *TransformError
	require.True(t, errors.As(err, &te), "expected TransformError, got %v", err)
	assert.Equal(t, "fileinclude", te.Pipeline)
	assert.Equal(t, "include", te.Stage)
	assert.Equal(t, "page.html", te.File)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.NoDirExists(t, filepath.Join(root, "build"))
}

func TestPipelineWriteError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/manifest-app.json", `{}`)
	writeFile(t, root, "build", "not a directory")

	p := &Pipeline{Name: "copywebmanifest", Sources: glob.New("src/manifest-*.json"), Dest: "build/"}
	err := p.Run(context.Background(), testEnv(t, root))

	var werr *sink.WriteError
	assert.True(t, errors.As(err, &werr), "expected WriteError, got %v", err)
}

func TestPipelineNoMatchesWritesNothing(t *testing.T) {
	root := t.TempDir()
	p := &Pipeline{Name: "scripts", Sources: glob.New("src/**/*.js"), Stages: []Stage{Concat("script.js")}, Dest: "build/js/"}
	require.NoError(t, p.Run(context.Background(), testEnv(t, root)))
	assert.NoDirExists(t, filepath.Join(root, "build"))
}

func TestPerFileKeepsOrderAndPassesThrough(t *testing.T) {
	files := []*asset.File{
		asset.New("a.txt", []byte("a")),
		asset.New("b.md", []byte("b")),
		asset.New("c.txt", []byte("c")),
	}
	upper := PerFile("upper", func(_ context.Context, _ *Env, f *asset.File) ([]*asset.File, error) {
		return []*asset.File{replaced(f, []byte(strings.ToUpper(string(f.Contents))))}, nil
	}, ".txt")

	out, err := upper.Apply(context.Background(), &Env{}, files)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "A", string(out[0].Contents))
	assert.Equal(t, "b", string(out[1].Contents))
	assert.Equal(t, "C", string(out[2].Contents))
	assert.Equal(t, "a", string(files[0].Contents), "inputs must not be mutated")
}

func TestIf(t *testing.T) {
	files := []*asset.File{asset.New("m.json", []byte(`{ "a": 1 }`))}

	out, err := If(false, MinifyJSON()).Apply(context.Background(), &Env{}, files)
	require.NoError(t, err)
	assert.Equal(t, `{ "a": 1 }`, string(out[0].Contents))

	out, err = If(true, MinifyJSON()).Apply(context.Background(), &Env{}, files)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(out[0].Contents))
}

func TestValidateJSON(t *testing.T) {
	_, err := ValidateJSON().Apply(context.Background(), &Env{}, []*asset.File{asset.New("manifest-x.json", []byte(`{"name":`))})
	var fe *fileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "manifest-x.json", fe.rel)
}

func TestSizeReportsHumanizedBytes(t *testing.T) {
	console := &recordingLogger{}
	env := &Env{Console: console}
	files := []*asset.File{asset.New("a.css", make([]byte, 2048)), asset.New("b.css", make([]byte, 10))}

	out, err := Size("style").Apply(context.Background(), env, files)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Contains(t, console.all(), "style a.css 2.0 kB")
	assert.Contains(t, console.all(), "style b.css 10 B")
	assert.Contains(t, console.all(), "all files")
}

func TestOptionsFor(t *testing.T) {
	prod := OptionsFor("production", configTransforms())
	assert.True(t, prod.Minify)
	assert.False(t, prod.Sourcemaps)

	dev := OptionsFor("development", configTransforms())
	assert.False(t, dev.Minify)
	assert.True(t, dev.Sourcemaps)
	assert.Equal(t, "@@", dev.IncludePrefix)
}
