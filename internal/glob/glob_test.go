package glob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		expected bool
	}{
		{"double star matches deep path", []string{"src/**/*.html"}, "src/pages/about/index.html", true},
		{"double star matches zero dirs", []string{"src/**/*.html"}, "src/index.html", true},
		{"exclusion wins", []string{"src/**/*.html", "!src/_blocks/**/*.html"}, "src/_blocks/header/header.html", false},
		{"exclusion leaves others", []string{"src/**/*.html", "!src/_blocks/**/*.html"}, "src/index.html", true},
		{"brace alternation", []string{"src/img/_blocks/**/*.{png,jpg,gif,webp}"}, "src/img/_blocks/hero/bg.jpg", true},
		{"brace alternation miss", []string{"src/img/_blocks/**/*.{png,jpg,gif,webp}"}, "src/img/_blocks/hero/bg.svg", false},
		{"single star in segment", []string{"src/_blocks/**/jq-*.js"}, "src/_blocks/slider/jq-slider.js", true},
		{"leading dot slash normalized", []string{"./src/*.json"}, "src/manifest-app.json", true},
		{"no includes never match", []string{"!src/**"}, "src/index.html", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := New(tc.patterns...).Match(tc.path)
			assert.Equal(t, tc.expected, got, "Match(%q) with %v", tc.path, tc.patterns)
		})
	}
}

func TestBase(t *testing.T) {
	tests := map[string]string{
		"src/**/*.html":                  "src",
		"src/scss/main.scss":             "src/scss",
		"src/img/favicon/*":              "src/img/favicon",
		"src/manifest-*.json":            "src",
		"*.html":                         ".",
		"./src/fonts/**/*.*":             "src/fonts",
		"src/img/_blocks/**/*.{png,jpg}": "src/img/_blocks",
	}
	for pattern, want := range tests {
		assert.Equal(t, want, Base(pattern), "Base(%q)", pattern)
	}
}

func TestSet_Validate(t *testing.T) {
	assert.NoError(t, New("src/**/*.js", "!src/webpack/**/*").Validate())
	assert.Error(t, New("src/[*.js").Validate())
}

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0644))
	}
}

func TestSet_Expand(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/index.html",
		"src/pages/about.html",
		"src/_blocks/header/header.html",
		"src/_blocks/header/header.js",
	)

	hits, err := New("src/**/*.html", "!src/_blocks/**/*.html").Expand(root)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "index.html", hits[0].Rel())
	assert.Equal(t, "pages/about.html", hits[1].Rel())
	assert.Equal(t, filepath.Join(root, "src"), hits[0].Base)
}

func TestSet_ExpandDeduplicates(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/a.js")

	hits, err := New("src/*.js", "src/**/*.js").Expand(root)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSet_ExpandMissingDirectory(t *testing.T) {
	hits, err := New("src/plugins/**/*").Expand(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestPaths(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "build/index.html", "tmp-1/x", "tmp-2/y")

	got, err := Paths(root, []string{"./build", "someFolder", "tmp-*"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "build"),
		filepath.Join(root, "tmp-1"),
		filepath.Join(root, "tmp-2"),
	}, got)
}
