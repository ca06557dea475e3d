package pipeline

import (
	"context"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/ShayCichocki/sitepipe/internal/asset"
	"github.com/ShayCichocki/sitepipe/internal/exec"
)

// SassCompiler turns SCSS into CSS.
type SassCompiler interface {
	Compile(ctx context.Context, f *asset.File) ([]byte, error)
}

// SassFunc adapts a function to SassCompiler.
type SassFunc func(ctx context.Context, f *asset.File) ([]byte, error)

// Compile implements SassCompiler.
func (fn SassFunc) Compile(ctx context.Context, f *asset.File) ([]byte, error) {
	return fn(ctx, f)
}

// CLISass compiles with the dart-sass command line tool reading stdin.
type CLISass struct {
	Runner exec.CommandRunner
	// Tool is the executable name, "sass" when empty.
	Tool string
}

// Compile implements SassCompiler.
func (s *CLISass) Compile(ctx context.Context, f *asset.File) ([]byte, error) {
	tool := s.Tool
	if tool == "" {
		tool = "sass"
	}
	args := []string{"--stdin", "--no-source-map", "--style=expanded", "--load-path=" + f.Dir()}
	if f.Base != "" && f.Base != f.Dir() {
		args = append(args, "--load-path="+f.Base)
	}
	out, err := s.Runner.Run(ctx, exec.Command{
		Name:  tool,
		Args:  args,
		Dir:   f.Dir(),
		Stdin: f.Contents,
	})
	if err != nil {
		return nil, fmt.Errorf("sass: %w", err)
	}
	return out, nil
}

// CompileSass compiles .scss and .sass files to .css. Partials (names
// starting with "_") are dropped from the output.
func CompileSass() Stage {
	return PerFile("sass", func(ctx context.Context, env *Env, f *asset.File) ([]*asset.File, error) {
		if len(f.Rel) > 0 && baseName(f.Rel)[0] == '_' {
			return nil, nil
		}
		compiler := env.Sass
		if compiler == nil {
			compiler = &CLISass{Runner: env.runner()}
		}
		css, err := compiler.Compile(ctx, f)
		if err != nil {
			return nil, err
		}
		c := f.Clone()
		c.Contents = css
		c.Rel = f.WithExt(".css")
		return []*asset.File{c}, nil
	}, ".scss", ".sass")
}

// Autoprefix adds vendor prefixes and lowers syntax for the configured
// browser targets. Only properties esbuild has prefix data for are
// prefixed; legacy flexbox and grid syntaxes are never generated. With
// source maps enabled each stylesheet gets a linked .map companion.
func Autoprefix() Stage {
	return PerFile("autoprefix", func(_ context.Context, env *Env, f *asset.File) ([]*asset.File, error) {
		code, sourceMap, err := transform(env, f.Rel, f.Contents, api.TransformOptions{
			Loader: api.LoaderCSS,
		}, env.Options.Sourcemaps)
		if err != nil {
			return nil, err
		}
		c := f.Clone()
		c.Contents = code
		if sourceMap == nil {
			return []*asset.File{c}, nil
		}
		var mapRel string
		c.Contents, mapRel = linkSourceMap(code, c.Rel, true)
		m := asset.New(mapRel, sourceMap)
		m.Base = f.Base
		return []*asset.File{c, m}, nil
	}, ".css")
}

// MinifyCSS minifies stylesheets and strips every comment.
func MinifyCSS() Stage {
	return PerFile("cssmin", func(_ context.Context, env *Env, f *asset.File) ([]*asset.File, error) {
		code, _, err := transform(env, f.Rel, f.Contents, api.TransformOptions{
			Loader:            api.LoaderCSS,
			MinifyWhitespace:  true,
			MinifySyntax:      true,
			MinifyIdentifiers: true,
			LegalComments:     api.LegalCommentsNone,
		}, false)
		if err != nil {
			return nil, err
		}
		c := f.Clone()
		c.Contents = code
		return []*asset.File{c}, nil
	}, ".css")
}
