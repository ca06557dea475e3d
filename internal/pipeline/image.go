package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ShayCichocki/sitepipe/internal/asset"
	"github.com/ShayCichocki/sitepipe/internal/exec"
)

// toolAvailable reports whether name is installed and warns once when not.
func toolAvailable(env *Env, name, purpose string) bool {
	if _, err := env.runner().LookPath(name); err != nil {
		env.warnOnce("missing:"+name, "%s not found, %s skipped", name, purpose)
		return false
	}
	return true
}

// withTempFile writes contents to a temporary file named like rel and
// calls fn with its path.
func withTempFile(rel string, contents []byte, fn func(path string) error) error {
	dir, err := os.MkdirTemp("", "sitepipe-img-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, baseName(rel))
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return err
	}
	return fn(path)
}

// OptimizeImages losslessly recompresses PNG files with optipng and JPEG
// files with jpegtran. A missing tool leaves the files unchanged.
func OptimizeImages(optipng, jpegtran string) Stage {
	return PerFile("imagemin", func(ctx context.Context, env *Env, f *asset.File) ([]*asset.File, error) {
		switch f.Ext() {
		case ".png":
			if !toolAvailable(env, optipng, "PNG optimization") {
				return []*asset.File{f}, nil
			}
			var optimized []byte
			err := withTempFile(f.Rel, f.Contents, func(path string) error {
				level := "-o" + strconv.Itoa(env.Options.OptimizationLevel)
				if _, err := env.runner().Run(ctx, exec.Command{Name: optipng, Args: []string{"-quiet", level, path}}); err != nil {
					return err
				}
				data, err := os.ReadFile(path)
				optimized = data
				return err
			})
			if err != nil {
				return nil, err
			}
			return []*asset.File{replaced(f, optimized)}, nil

		case ".jpg", ".jpeg":
			if !toolAvailable(env, jpegtran, "JPEG optimization") {
				return []*asset.File{f}, nil
			}
			out, err := env.runner().Run(ctx, exec.Command{
				Name:  jpegtran,
				Args:  []string{"-copy", "none", "-optimize", "-progressive"},
				Stdin: f.Contents,
			})
			if err != nil {
				return nil, err
			}
			return []*asset.File{replaced(f, out)}, nil
		}
		return []*asset.File{f}, nil
	}, ".png", ".jpg", ".jpeg")
}

// WebP converts PNG and JPEG files to .webp with cwebp at the configured
// quality. A missing cwebp is an error since the stage has no fallback.
func WebP(cwebp string) Stage {
	return PerFile("webp", func(ctx context.Context, env *Env, f *asset.File) ([]*asset.File, error) {
		if _, err := env.runner().LookPath(cwebp); err != nil {
			return nil, fmt.Errorf("%s not found: %w", cwebp, err)
		}
		var data []byte
		err := withTempFile(f.Rel, f.Contents, func(path string) error {
			out := path + ".webp"
			quality := strconv.Itoa(env.Options.WebPQuality)
			if _, err := env.runner().Run(ctx, exec.Command{Name: cwebp, Args: []string{"-quiet", "-q", quality, path, "-o", out}}); err != nil {
				return err
			}
			b, err := os.ReadFile(out)
			data = b
			return err
		})
		if err != nil {
			return nil, err
		}
		c := f.Clone()
		c.Rel = f.WithExt(".webp")
		c.Contents = data
		return []*asset.File{c}, nil
	}, ".png", ".jpg", ".jpeg")
}

func replaced(f *asset.File, contents []byte) *asset.File {
	c := f.Clone()
	c.Contents = contents
	return c
}
