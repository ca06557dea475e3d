package pipeline

import (
	"context"
	"fmt"
	"path"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/ShayCichocki/sitepipe/internal/asset"
)

func baseName(rel string) string {
	return path.Base(rel)
}

// ValidateJSON fails on any .json file that does not parse.
func ValidateJSON() Stage {
	return PerFile("jsonlint", func(_ context.Context, _ *Env, f *asset.File) ([]*asset.File, error) {
		if !gjson.ValidBytes(f.Contents) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return []*asset.File{f}, nil
	}, ".json", ".webmanifest")
}

// MinifyJSON strips insignificant whitespace from JSON files.
func MinifyJSON() Stage {
	return PerFile("jsonmin", func(_ context.Context, _ *Env, f *asset.File) ([]*asset.File, error) {
		if !gjson.ValidBytes(f.Contents) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return []*asset.File{replaced(f, pretty.Ugly(f.Contents))}, nil
	}, ".json", ".webmanifest")
}

// Size reports each file's size on the console under title.
func Size(title string) Stage {
	return StageFunc("size", func(_ context.Context, env *Env, files []*asset.File) ([]*asset.File, error) {
		var total uint64
		for _, f := range files {
			n := uint64(f.Size())
			total += n
			env.console().Log("%s %s %s", title, f.Rel, humanize.Bytes(n))
		}
		if len(files) > 1 {
			env.console().Log("%s all files %s", title, humanize.Bytes(total))
		}
		return files, nil
	})
}
