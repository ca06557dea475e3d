package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/sitepipe/internal/asset"
	"github.com/ShayCichocki/sitepipe/internal/exec"
)

func TestMinifyHTMLCollapsesWhitespace(t *testing.T) {
	src := "<!DOCTYPE html>\n<html>\n  <body>\n    <div>\n        <p>Hello   world</p>\n    </div>\n  </body>\n</html>\n"
	out, err := MinifyHTML().Apply(context.Background(), &Env{}, []*asset.File{asset.New("index.html", []byte(src))})
	require.NoError(t, err)

	got := string(out[0].Contents)
	assert.Less(t, len(got), len(src))
	assert.NotContains(t, got, "    ")
	assert.Contains(t, got, "<p>Hello world</p>")
	assert.Contains(t, got, "</html>")
}

func TestSpriteBuildsHiddenSymbolStore(t *testing.T) {
	files := []*asset.File{
		asset.New("arrow.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 10 10"><path d="M0 0L10 10"/></svg>`)),
		asset.New("close.svg", []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><g><circle r="4"/></g></svg>`)),
	}
	files, err := Sprite("symbols.svg").Apply(context.Background(), &Env{}, files)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "symbols.svg", files[0].Rel)

	got := string(files[0].Contents)
	assert.True(t, strings.HasPrefix(got, "<svg"), got)
	assert.Contains(t, got, `style="display:none"`)
	assert.Contains(t, got, `xmlns:xlink="http://www.w3.org/1999/xlink"`)
	assert.Contains(t, got, `<symbol id="arrow" viewBox="0 0 10 10">`)
	assert.Contains(t, got, `<symbol id="close" viewBox="0 0 24 24">`)
	assert.Contains(t, got, "<circle")
	assert.NotContains(t, got, "<?xml")
}

func TestMinifySVG(t *testing.T) {
	src := "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 10 10\">\n  <!-- icon -->\n  <path d=\"M 0 0 L 10 10\" />\n</svg>\n"
	out, err := MinifySVG().Apply(context.Background(), &Env{}, []*asset.File{asset.New("arrow.svg", []byte(src))})
	require.NoError(t, err)
	got := string(out[0].Contents)
	assert.Less(t, len(got), len(src))
	assert.NotContains(t, got, "<!--")
	assert.Contains(t, got, "<path")
}

func TestSpriteRejectsDuplicateIDs(t *testing.T) {
	files := []*asset.File{
		asset.New("a/icon.svg", []byte(`<svg/>`)),
		asset.New("b/icon.svg", []byte(`<svg/>`)),
	}
	_, err := Sprite("symbols.svg").Apply(context.Background(), &Env{}, files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used")
}

func TestAutoprefixDevelopmentEmitsLinkedMap(t *testing.T) {
	env := &Env{Options: Options{Sourcemaps: true, Targets: []string{"safari11"}}}
	css := "/* header */\n.btn {\n  user-select: none;\n  color: red;\n}\n"

	out, err := Autoprefix().Apply(context.Background(), env, []*asset.File{asset.New("main.css", []byte(css))})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "main.css", out[0].Rel)
	assert.Contains(t, string(out[0].Contents), "-webkit-user-select")
	assert.Contains(t, string(out[0].Contents), "/*# sourceMappingURL=main.css.map */")
	assert.Contains(t, string(out[0].Contents), "\n  ", "development output stays readable")

	assert.Equal(t, "main.css.map", out[1].Rel)
	assert.Contains(t, string(out[1].Contents), `"mappings"`)
}

func TestAutoprefixCoversKnownPropertiesOnly(t *testing.T) {
	env := &Env{Options: Options{Targets: []string{"safari11"}}}
	css := ".field {\n  appearance: none;\n  display: flex;\n}\n"

	out, err := Autoprefix().Apply(context.Background(), env, []*asset.File{asset.New("form.css", []byte(css))})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := string(out[0].Contents)
	assert.Contains(t, got, "-webkit-appearance: none")
	assert.Contains(t, got, "display: flex")
	assert.NotContains(t, got, "-webkit-box", "legacy flexbox syntax is not generated")
}

func TestMinifyCSSStripsComments(t *testing.T) {
	env := &Env{Options: Options{Targets: []string{"chrome58"}}}
	css := "/* note */\n/*! license */\n.a {\n  color: #ff0000;\n}\n"

	out, err := MinifyCSS().Apply(context.Background(), env, []*asset.File{asset.New("main.css", []byte(css))})
	require.NoError(t, err)
	got := string(out[0].Contents)
	assert.NotContains(t, got, "/*")
	assert.NotContains(t, got, "\n  ")
	assert.Contains(t, got, ".a{color:")
}

func TestCompileSassUsesCompilerAndDropsPartials(t *testing.T) {
	env := &Env{Sass: SassFunc(func(_ context.Context, f *asset.File) ([]byte, error) {
		return []byte("/* from " + f.Rel + " */"), nil
	})}
	out, err := CompileSass().Apply(context.Background(), env, []*asset.File{
		asset.New("main.scss", []byte("$c: red;")),
		asset.New("_vars.scss", []byte("$c: blue;")),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "main.css", out[0].Rel)
	assert.Equal(t, "/* from main.scss */", string(out[0].Contents))
}

func TestCLISassPipesThroughRunner(t *testing.T) {
	runner := exec.NewFakeRunner()
	runner.Handle("sass", func(c exec.Command) ([]byte, error) {
		return []byte(".a{color:red}"), nil
	})
	f := asset.New("main.scss", []byte("$c: red; .a{color:$c}"))
	f.Source = "/proj/src/scss/main.scss"
	f.Base = "/proj/src/scss"

	out, err := (&CLISass{Runner: runner}).Compile(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, ".a{color:red}", string(out))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/proj/src/scss", calls[0].Dir)
	assert.Contains(t, calls[0].Args, "--stdin")
	assert.Equal(t, f.Contents, calls[0].Stdin)
}

func TestScriptsConcatTranspileMinify(t *testing.T) {
	env := &Env{Options: Options{Targets: []string{"chrome58"}}}
	files := []*asset.File{
		asset.New("header/header.js", []byte("const greet = (name) => `hi ${name}`;")),
		asset.New("footer/footer.js", []byte("greet('there');")),
	}

	var err error
	for _, st := range []Stage{Concat("script.js"), TranspileJS(), MinifyJS()} {
		files, err = st.Apply(context.Background(), env, files)
		require.NoError(t, err)
	}
	require.Len(t, files, 1)
	assert.Equal(t, "script.js", files[0].Rel)
	got := string(files[0].Contents)
	assert.Contains(t, got, "greet")
	assert.NotContains(t, got, "\n  ")
}

func TestTranspileJSDevelopmentMap(t *testing.T) {
	env := &Env{Options: Options{Sourcemaps: true, Targets: []string{"chrome58"}}}
	out, err := TranspileJS().Apply(context.Background(), env, []*asset.File{asset.New("script.js", []byte("let a = 1;\nconsole.log(a);\n"))})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Contains(t, string(out[0].Contents), "//# sourceMappingURL=script.js.map")
	assert.Equal(t, "script.js.map", out[1].Rel)
}

func TestTranspileJSWithoutMaps(t *testing.T) {
	env := &Env{Options: Options{Sourcemaps: true, Targets: []string{"chrome58"}}}
	out, err := TranspileJSWithoutMaps().Apply(context.Background(), env, []*asset.File{asset.New("jq-script.js", []byte("const b = () => 2;\n"))})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotContains(t, string(out[0].Contents), "sourceMappingURL")
}

func TestTranspileJSReportsSyntaxErrors(t *testing.T) {
	env := &Env{Options: Options{Targets: []string{"chrome58"}}}
	_, err := TranspileJS().Apply(context.Background(), env, []*asset.File{asset.New("broken.js", []byte("function ("))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.js")
}

func TestBundleResolvesImports(t *testing.T) {
	root := t.TempDir()
	entry := writeFile(t, root, "src/webpack/main-webpack.js", "import { twice } from './lib/math.js';\nconsole.log(twice(21));\n")
	writeFile(t, root, "src/webpack/lib/math.js", "export function twice(n) { return n * 2; }\n")

	f, err := asset.Read(filepath.Join(root, "src/webpack"), entry)
	require.NoError(t, err)

	env := &Env{Root: root, Options: Options{Sourcemaps: true, Targets: []string{"chrome58"}}}
	out, err := Bundle("main-webpack.js").Apply(context.Background(), env, []*asset.File{f})
	require.NoError(t, err)

	byRel := map[string]string{}
	for _, o := range out {
		byRel[o.Rel] = string(o.Contents)
	}
	require.Contains(t, byRel, "main-webpack.js")
	require.Contains(t, byRel, "main-webpack.js.map")
	assert.Contains(t, byRel["main-webpack.js"], "twice")
	assert.NotContains(t, byRel["main-webpack.js"], "import ")
	assert.Contains(t, byRel["main-webpack.js"], "sourceMappingURL=main-webpack.js.map")
	assert.NoDirExists(t, filepath.Join(root, ".sitepipe-bundle"))
}

func TestEngines(t *testing.T) {
	eng, err := engines([]string{"chrome58", " Safari11 ", "ios12.2"})
	require.NoError(t, err)
	require.Len(t, eng, 3)
	assert.Equal(t, "12.2", eng[2].Version)

	_, err = engines([]string{"netscape4"})
	assert.Error(t, err)
	_, err = engines([]string{"chrome"})
	assert.Error(t, err)
}

func TestOptimizeImagesMissingToolPassesThrough(t *testing.T) {
	console := &recordingLogger{}
	env := &Env{Runner: exec.NewFakeRunner(), Console: console, Options: Options{OptimizationLevel: 3}}
	files := []*asset.File{asset.New("a.png", []byte("png")), asset.New("b.png", []byte("png2")), asset.New("c.gif", []byte("gif"))}

	out, err := OptimizeImages("optipng", "jpegtran").Apply(context.Background(), env, files)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "png", string(out[0].Contents))
	assert.Equal(t, 1, strings.Count(console.all(), "optipng not found"))
}

func TestOptimizeImagesRunsTools(t *testing.T) {
	runner := exec.NewFakeRunner()
	runner.Handle("jpegtran", func(c exec.Command) ([]byte, error) {
		return append([]byte("progressive:"), c.Stdin...), nil
	})
	runner.Handle("optipng", func(c exec.Command) ([]byte, error) {
		path := c.Args[len(c.Args)-1]
		return nil, os.WriteFile(path, []byte("optimized "+c.Args[1]), 0644)
	})
	env := &Env{Runner: runner, Options: Options{OptimizationLevel: 3}}

	out, err := OptimizeImages("optipng", "jpegtran").Apply(context.Background(), env, []*asset.File{
		asset.New("photo.jpg", []byte("jpg")),
		asset.New("icon.png", []byte("png")),
	})
	require.NoError(t, err)
	assert.Equal(t, "progressive:jpg", string(out[0].Contents))
	assert.Equal(t, "optimized -o3", string(out[1].Contents))
}

func TestWebPConvertsWithQuality(t *testing.T) {
	runner := exec.NewFakeRunner()
	runner.Handle("cwebp", func(c exec.Command) ([]byte, error) {
		out := c.Args[len(c.Args)-1]
		return nil, os.WriteFile(out, []byte("webp q="+c.Args[2]), 0644)
	})
	env := &Env{Runner: runner, Options: Options{WebPQuality: 90}}

	out, err := WebP("cwebp").Apply(context.Background(), env, []*asset.File{asset.New("hero/hero.jpg", []byte("jpg"))})
	require.NoError(t, err)
	assert.Equal(t, "hero/hero.webp", out[0].Rel)
	assert.Equal(t, "webp q=90", string(out[0].Contents))
}

func TestWebPMissingToolFails(t *testing.T) {
	env := &Env{Runner: exec.NewFakeRunner(), Options: Options{WebPQuality: 90}}
	_, err := WebP("cwebp").Apply(context.Background(), env, []*asset.File{asset.New("a.png", []byte("png"))})
	assert.Error(t, err)
}
