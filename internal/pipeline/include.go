package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ShayCichocki/sitepipe/internal/asset"
)

// maxIncludeDepth bounds nested includes so that a file including itself
// fails instead of recursing forever.
const maxIncludeDepth = 32

// Include expands @@include('path', {"key": "value"}) directives in HTML.
// Paths are relative to the including file. The optional JSON object is
// merged into the variable context and @@key (or @@key.sub) references are
// replaced with its values; unknown references are left untouched. Each
// file's own text is substituted once, so included output and inserted
// values are never expanded again.
func Include() Stage {
	return PerFile("include", func(_ context.Context, env *Env, f *asset.File) ([]*asset.File, error) {
		inc := newIncluder(env.Options.IncludePrefix)
		out, err := inc.expand(f.Contents, f.Dir(), "{}", 0)
		if err != nil {
			return nil, err
		}
		c := f.Clone()
		c.Contents = out
		return []*asset.File{c}, nil
	}, ".html", ".htm")
}

type includer struct {
	prefix string
	vars   *regexp.Regexp
}

func newIncluder(prefix string) *includer {
	if prefix == "" {
		prefix = "@@"
	}
	return &includer{
		prefix: prefix,
		vars:   regexp.MustCompile(regexp.QuoteMeta(prefix) + `([A-Za-z_][\w-]*(?:\.[\w-]+)*)`),
	}
}

func (in *includer) expand(src []byte, dir, context string, depth int) ([]byte, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("includes nested deeper than %d levels", maxIncludeDepth)
	}

	directive := []byte(in.prefix + "include(")
	var out bytes.Buffer
	rest := src
	for {
		i := bytes.Index(rest, directive)
		if i < 0 {
			out.Write(in.substitute(rest, context))
			break
		}
		out.Write(in.substitute(rest[:i], context))

		line := bytes.Count(src[:len(src)-len(rest)+i], []byte("\n")) + 1
		d, n, err := parseDirective(rest[i+len(directive):])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rest = rest[i+len(directive)+n:]

		child, err := in.include(d, dir, context, depth)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out.Write(child)
	}

	return out.Bytes(), nil
}

func (in *includer) include(d directive, dir, context string, depth int) ([]byte, error) {
	merged := context
	if d.params != "" {
		if !gjson.Valid(d.params) {
			return nil, fmt.Errorf("include %q: invalid JSON parameters", d.path)
		}
		var setErr error
		gjson.Parse(d.params).ForEach(func(k, v gjson.Result) bool {
			merged, setErr = sjson.SetRaw(merged, k.String(), v.Raw)
			return setErr == nil
		})
		if setErr != nil {
			return nil, fmt.Errorf("include %q: %w", d.path, setErr)
		}
	}

	path := filepath.Join(dir, filepath.FromSlash(d.path))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("include %q: %w", d.path, err)
	}
	return in.expand(data, filepath.Dir(path), merged, depth+1)
}

func (in *includer) substitute(src []byte, context string) []byte {
	if context == "{}" {
		return src
	}
	return in.vars.ReplaceAllFunc(src, func(m []byte) []byte {
		key := string(m[len(in.prefix):])
		v := gjson.Get(context, key)
		if !v.Exists() {
			return m
		}
		if v.IsObject() || v.IsArray() {
			return []byte(v.Raw)
		}
		return []byte(v.String())
	})
}

type directive struct {
	path   string
	params string
}

// parseDirective reads "'path'[, {json}])" and returns the directive and
// the number of bytes consumed including the closing parenthesis.
func parseDirective(b []byte) (directive, int, error) {
	var d directive
	i := skipSpace(b, 0)
	if i >= len(b) || (b[i] != '\'' && b[i] != '"' && b[i] != '`') {
		return d, 0, fmt.Errorf("include: expected quoted path")
	}
	quote := b[i]
	end := bytes.IndexByte(b[i+1:], quote)
	if end < 0 {
		return d, 0, fmt.Errorf("include: unterminated path")
	}
	d.path = string(b[i+1 : i+1+end])
	i = skipSpace(b, i+end+2)

	if i < len(b) && b[i] == ',' {
		i = skipSpace(b, i+1)
		n, err := objectLen(b[i:])
		if err != nil {
			return d, 0, fmt.Errorf("include %q: %w", d.path, err)
		}
		d.params = string(b[i : i+n])
		i = skipSpace(b, i+n)
	}

	if i >= len(b) || b[i] != ')' {
		return d, 0, fmt.Errorf("include %q: expected ')'", d.path)
	}
	return d, i + 1, nil
}

// objectLen returns the length of the balanced {...} at the start of b.
func objectLen(b []byte) (int, error) {
	if len(b) == 0 || b[0] != '{' {
		return 0, fmt.Errorf("expected JSON object")
	}
	depth := 0
	inString := false
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case inString && c == '\\':
			i++
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated JSON object")
}

func skipSpace(b []byte, i int) int {
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return i
}
