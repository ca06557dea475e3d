// Package asset defines the in-memory file that flows through a pipeline.
package asset

import (
	"os"
	"path/filepath"
	"strings"
)

// File is one artifact moving through a pipeline. Rel is the path relative
// to the glob base and is the path the file will occupy under the
// destination directory.
type File struct {
	// Source is the absolute path the file was read from. Empty for
	// files produced by a stage (concat output, sprites, source maps).
	Source string
	// Base is the directory Rel is relative to.
	Base string
	// Rel is the slash-separated relative path.
	Rel string
	// Contents holds the file bytes.
	Contents []byte
	// Mode is the permission set used when the file is written.
	Mode os.FileMode
}

// New creates a produced file with default permissions.
func New(rel string, contents []byte) *File {
	return &File{
		Rel:      filepath.ToSlash(rel),
		Contents: contents,
		Mode:     0644,
	}
}

// Read loads a file from disk. base must be an ancestor of path.
func Read(base, path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return nil, err
	}
	return &File{
		Source:   path,
		Base:     base,
		Rel:      filepath.ToSlash(rel),
		Contents: data,
		Mode:     info.Mode().Perm(),
	}, nil
}

// Ext returns the lower-cased extension of the file, including the dot.
func (f *File) Ext() string {
	return strings.ToLower(filepath.Ext(f.Rel))
}

// Dir returns the directory of the source file, falling back to the base
// for produced files.
func (f *File) Dir() string {
	if f.Source != "" {
		return filepath.Dir(f.Source)
	}
	return f.Base
}

// WithExt returns the relative path with its extension replaced.
func (f *File) WithExt(ext string) string {
	return strings.TrimSuffix(f.Rel, filepath.Ext(f.Rel)) + ext
}

// Clone returns a copy with its own contents slice.
func (f *File) Clone() *File {
	c := *f
	c.Contents = append([]byte(nil), f.Contents...)
	return &c
}

// Size returns the content length in bytes.
func (f *File) Size() int {
	return len(f.Contents)
}
