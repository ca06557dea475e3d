package pipeline

import "github.com/ShayCichocki/sitepipe/internal/config"

func configTransforms() config.TransformsConfig {
	return config.TransformsConfig{OptimizationLevel: 3, WebPQuality: 90, Targets: []string{"chrome58"}}
}
