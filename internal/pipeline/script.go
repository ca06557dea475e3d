package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/ShayCichocki/sitepipe/internal/asset"
)

// Concat joins every file, in input order, into one file named name.
// An empty input produces no output.
func Concat(name string) Stage {
	return StageFunc("concat", func(_ context.Context, _ *Env, files []*asset.File) ([]*asset.File, error) {
		if len(files) == 0 {
			return nil, nil
		}
		var buf bytes.Buffer
		for i, f := range files {
			if i > 0 {
				buf.WriteByte('\n')
			}
			buf.Write(f.Contents)
		}
		out := asset.New(name, buf.Bytes())
		out.Base = files[0].Base
		return []*asset.File{out}, nil
	})
}

// TranspileJS lowers scripts to ES2015 for the configured targets. With
// source maps enabled each script gets a linked .map companion.
func TranspileJS() Stage {
	return transpileJS(true)
}

// TranspileJSWithoutMaps is TranspileJS that never emits a source map.
func TranspileJSWithoutMaps() Stage {
	return transpileJS(false)
}

func transpileJS(maps bool) Stage {
	return PerFile("transpile", func(_ context.Context, env *Env, f *asset.File) ([]*asset.File, error) {
		code, sourceMap, err := transform(env, f.Rel, f.Contents, api.TransformOptions{
			Loader: api.LoaderJS,
			Target: api.ES2015,
		}, maps && env.Options.Sourcemaps)
		if err != nil {
			return nil, err
		}
		c := f.Clone()
		c.Contents = code
		if sourceMap == nil {
			return []*asset.File{c}, nil
		}
		var mapRel string
		c.Contents, mapRel = linkSourceMap(code, c.Rel, false)
		m := asset.New(mapRel, sourceMap)
		m.Base = f.Base
		return []*asset.File{c, m}, nil
	}, ".js")
}

// MinifyJS compresses scripts and mangles local names.
func MinifyJS() Stage {
	return PerFile("uglify", func(_ context.Context, env *Env, f *asset.File) ([]*asset.File, error) {
		code, _, err := transform(env, f.Rel, f.Contents, api.TransformOptions{
			Loader:            api.LoaderJS,
			Target:            api.ES2015,
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
	}, ".js")
}

// Bundle resolves the imports of each entry file from disk and emits a
// single browser bundle named name, plus a linked map in development.
func Bundle(name string) Stage {
	return StageFunc("bundle", func(_ context.Context, env *Env, files []*asset.File) ([]*asset.File, error) {
		if len(files) == 0 {
			return nil, nil
		}
		eng, err := engines(env.Options.Targets)
		if err != nil {
			return nil, err
		}

		entries := make([]string, 0, len(files))
		for _, f := range files {
			if f.Source == "" {
				return nil, fmt.Errorf("bundle entry %s has no source file", f.Rel)
			}
			entries = append(entries, f.Source)
		}

		outdir := filepath.Join(env.Root, ".sitepipe-bundle")
		opts := api.BuildOptions{
			EntryPoints:   entries,
			Bundle:        true,
			Write:         false,
			Outfile:       filepath.Join(outdir, name),
			AbsWorkingDir: env.Root,
			Format:        api.FormatIIFE,
			Platform:      api.PlatformBrowser,
			Target:        api.ES2015,
			Engines:       eng,
			LogLevel:      api.LogLevelSilent,
		}
		if len(entries) > 1 {
			// Several entries keep their own names.
			opts.Outfile = ""
			opts.Outdir = outdir
		}
		if env.Options.Minify {
			opts.MinifyWhitespace = true
			opts.MinifySyntax = true
			opts.MinifyIdentifiers = true
			opts.LegalComments = api.LegalCommentsNone
		}
		if env.Options.Sourcemaps {
			opts.Sourcemap = api.SourceMapLinked
			opts.SourcesContent = api.SourcesContentInclude
		}

		res := api.Build(opts)
		if err := messagesError(res.Errors); err != nil {
			return nil, err
		}

		out := make([]*asset.File, 0, len(res.OutputFiles))
		for _, of := range res.OutputFiles {
			rel, err := filepath.Rel(outdir, of.Path)
			if err != nil {
				return nil, err
			}
			f := asset.New(rel, of.Contents)
			f.Base = files[0].Base
			out = append(out, f)
		}
		return out, nil
	})
}
