package pipeline

import (
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ios":     api.EngineIOS,
	"safari":  api.EngineSafari,
	"opera":   api.EngineOpera,
	"node":    api.EngineNode,
}

// engines converts targets such as "safari11" or "ios12.2" into esbuild
// engine constraints. Unknown names are reported as an error.
func engines(targets []string) ([]api.Engine, error) {
	var out []api.Engine
	for _, t := range targets {
		t = strings.ToLower(strings.TrimSpace(t))
		i := strings.IndexAny(t, "0123456789")
		if i <= 0 {
			return nil, fmt.Errorf("invalid browser target %q", t)
		}
		name, ok := engineNames[t[:i]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q in target %q", t[:i], t)
		}
		out = append(out, api.Engine{Name: name, Version: t[i:]})
	}
	return out, nil
}

// messagesError flattens esbuild diagnostics into one error.
func messagesError(msgs []api.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		parts = append(parts, m.Text)
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}

// transform runs the esbuild transform API over one file. When maps is
// set, the result carries a linked source map written next to it.
func transform(env *Env, rel string, code []byte, opts api.TransformOptions, maps bool) (out []byte, sourceMap []byte, err error) {
	eng, err := engines(env.Options.Targets)
	if err != nil {
		return nil, nil, err
	}
	opts.Engines = eng
	opts.Sourcefile = path.Base(rel)
	opts.LogLevel = api.LogLevelSilent
	if maps {
		opts.Sourcemap = api.SourceMapExternal
		opts.SourcesContent = api.SourcesContentInclude
	}

	res := api.Transform(string(code), opts)
	if err := messagesError(res.Errors); err != nil {
		return nil, nil, err
	}
	if !maps {
		return res.Code, nil, nil
	}
	return res.Code, res.Map, nil
}

// linkSourceMap appends the sourceMappingURL comment for a map file named
// after rel and returns the companion map file path.
func linkSourceMap(code []byte, rel string, css bool) ([]byte, string) {
	mapRel := rel + ".map"
	ref := path.Base(mapRel)
	var comment string
	if css {
		comment = "/*# sourceMappingURL=" + ref + " */\n"
	} else {
		comment = "//# sourceMappingURL=" + ref + "\n"
	}
	if len(code) > 0 && code[len(code)-1] != '\n' {
		code = append(code, '\n')
	}
	return append(code, comment...), mapRel
}
