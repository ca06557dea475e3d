package pipeline

import (
	"github.com/ShayCichocki/sitepipe/internal/config"
	"github.com/ShayCichocki/sitepipe/pkg/models"
)

// Options are the mode-dependent knobs shared by all stages.
type Options struct {
	// Minify enables minification and compression.
	Minify bool
	// Sourcemaps emits a linked .map file next to styles and scripts.
	Sourcemaps bool
	// OptimizationLevel is passed to optipng.
	OptimizationLevel int
	// WebPQuality is passed to cwebp.
	WebPQuality int
	// Targets are browser engines such as "chrome58" or "safari11".
	Targets []string
	// IncludePrefix marks HTML include directives and variables.
	IncludePrefix string
}

// OptionsFor derives stage options from the environment mode. Production
// minifies and drops source maps; development does the reverse.
func OptionsFor(mode models.Mode, t config.TransformsConfig) Options {
	prefix := t.IncludePrefix
	if prefix == "" {
		prefix = "@@"
	}
	return Options{
		Minify:            mode.IsProduction(),
		Sourcemaps:        !mode.IsProduction(),
		OptimizationLevel: t.OptimizationLevel,
		WebPQuality:       t.WebPQuality,
		Targets:           t.Targets,
		IncludePrefix:     prefix,
	}
}
