// Package glob matches slash-separated paths against gulp-style pattern
// lists: `**` spans directories, `{a,b}` alternates, and a leading `!`
// excludes whatever the positive patterns matched.
package glob

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Set is an ordered list of include patterns and exclusions.
type Set struct {
	Include []string
	Exclude []string
}

// New builds a Set. Patterns prefixed with "!" become exclusions.
func New(patterns ...string) Set {
	var s Set
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "!") {
			s.Exclude = append(s.Exclude, clean(p[1:]))
			continue
		}
		s.Include = append(s.Include, clean(p))
	}
	return s
}

// clean normalizes a pattern to a slash path without a leading "./".
func clean(p string) string {
	p = filepath.ToSlash(p)
	return strings.TrimPrefix(p, "./")
}

// Empty reports whether the set can never match anything.
func (s Set) Empty() bool {
	return len(s.Include) == 0
}

// Validate checks that every pattern is well formed.
func (s Set) Validate() error {
	for _, p := range append(append([]string(nil), s.Include...), s.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

// Match reports whether rel (relative to the project root) is selected by
// the set.
func (s Set) Match(rel string) bool {
	rel = clean(rel)
	matched := false
	for _, p := range s.Include {
		if ok, _ := doublestar.Match(p, rel); ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, p := range s.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	return true
}

// Base returns the static directory prefix of pattern, the part before the
// first segment containing a meta character. A pattern without meta
// characters has its parent directory as base.
func Base(pattern string) string {
	base, _ := doublestar.SplitPattern(clean(pattern))
	if base == "" {
		return "."
	}
	return base
}

// Roots returns the distinct static bases of the include patterns.
func (s Set) Roots() []string {
	seen := make(map[string]bool)
	var roots []string
	for _, p := range s.Include {
		b := Base(p)
		if !seen[b] {
			seen[b] = true
			roots = append(roots, b)
		}
	}
	return roots
}

// Hit is a file selected by Expand.
type Hit struct {
	// Base is the absolute glob base the file was matched under.
	Base string
	// Path is the absolute file path.
	Path string
}

// Rel returns the file path relative to its glob base.
func (h Hit) Rel() string {
	rel, err := filepath.Rel(h.Base, h.Path)
	if err != nil {
		return filepath.Base(h.Path)
	}
	return filepath.ToSlash(rel)
}

// Expand lists the regular files under root selected by the set. Each file
// carries the base of the first include pattern that selected it, so
// relative paths below that base are preserved on output. Results are
// sorted by path; a file matched by several patterns appears once.
func (s Set) Expand(root string) ([]Hit, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var hits []Hit

	for _, p := range s.Include {
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", p, err)
		}
		base := filepath.Join(root, filepath.FromSlash(Base(p)))
		for _, m := range matches {
			if seen[m] || s.excluded(m) {
				continue
			}
			seen[m] = true
			hits = append(hits, Hit{
				Base: base,
				Path: filepath.Join(root, filepath.FromSlash(m)),
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Path < hits[j].Path })
	return hits, nil
}

func (s Set) excluded(rel string) bool {
	for _, p := range s.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Paths expands the literal (non-glob) entries and globbed entries of a
// clean list to existing paths under root, files and directories alike.
func Paths(root string, patterns []string) ([]string, error) {
	fsys := os.DirFS(root)
	var out []string
	for _, p := range patterns {
		p = clean(p)
		if !strings.ContainsAny(p, "*?[{") {
			if _, err := fs.Stat(fsys, p); err == nil {
				out = append(out, filepath.Join(root, filepath.FromSlash(path.Clean(p))))
			}
			continue
		}
		matches, err := doublestar.Glob(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", p, err)
		}
		for _, m := range matches {
			out = append(out, filepath.Join(root, filepath.FromSlash(m)))
		}
	}
	return out, nil
}
