package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/sitepipe/internal/asset"
)

func runInclude(t *testing.T, root, rel string) (string, error) {
	t.Helper()
	f, err := asset.Read(filepath.Join(root, "src"), filepath.Join(root, "src", rel))
	require.NoError(t, err)
	out, err := Include().Apply(context.Background(), &Env{Options: Options{IncludePrefix: "@@"}}, []*asset.File{f})
	if err != nil {
		return "", err
	}
	return string(out[0].Contents), nil
}

func TestIncludeNestedWithParameters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/index.html", `<body>@@include('_blocks/header/header.html', {"title": "Home", "nav": {"active": "index"}})</body>`)
	writeFile(t, root, "src/_blocks/header/header.html", `<h1>@@title</h1>@@include("../nav/nav.html")`)
	writeFile(t, root, "src/_blocks/nav/nav.html", `<nav class="@@nav.active">@@unknown</nav>`)

	out, err := runInclude(t, root, "index.html")
	require.NoError(t, err)
	assert.Equal(t, `<body><h1>Home</h1><nav class="index">@@unknown</nav></body>`, out)
}

func TestIncludeMultilineParameters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/page.html", "@@include('_card.html', {\n  \"text\": \"a } b\",\n  \"n\": 2\n})!")
	writeFile(t, root, "src/_card.html", `<p>@@text @@n</p>`)

	out, err := runInclude(t, root, "page.html")
	require.NoError(t, err)
	assert.Equal(t, `<p>a } b 2</p>!`, out)
}

func TestIncludeValuesAreNotExpandedAgain(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/index.html", `@@include('_outer.html', {"title": "Outer"})`)
	writeFile(t, root, "src/_outer.html", `<h1>@@title</h1>@@include('_inner.html', {"label": "use @@title here"})`)
	writeFile(t, root, "src/_inner.html", `<p>@@label</p>`)

	out, err := runInclude(t, root, "index.html")
	require.NoError(t, err)
	assert.Equal(t, `<h1>Outer</h1><p>use @@title here</p>`, out)
}

func TestIncludeWithoutDirectivesIsUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/plain.html", "<p>contact@@example</p>")

	out, err := runInclude(t, root, "plain.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>contact@@example</p>", out)
}

func TestIncludeErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unquoted path", "@@include(header.html)", "expected quoted path"},
		{"unterminated path", "@@include('header.html)", "unterminated path"},
		{"missing paren", "@@include('x.html' oops", "expected ')'"},
		{"bad params", "@@include('x.html', {\"a\": })", "invalid JSON"},
		{"unterminated params", "@@include('x.html', {\"a\": 1)", "unterminated JSON object"},
		{"recursive", "@@include('loop.html')", "nested deeper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, "src/x.html", "x")
			writeFile(t, root, "src/loop.html", tt.content)

			_, err := runInclude(t, root, "loop.html")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, err.Error(), "line 1")
		})
	}
}
