package capability

import (
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/pipeline"
	"github.com/sofmeright/themeforge/src/sourcemap"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// engines converts browser targets like "safari15" into esbuild engines.
func engines(browsers []string) ([]api.Engine, error) {
	out := make([]api.Engine, 0, len(browsers))
	for _, b := range browsers {
		name, version, err := config.ParseBrowser(b)
		if err != nil {
			return nil, err
		}
		out = append(out, api.Engine{Name: engineNames[name], Version: version})
	}
	return out, nil
}

// transform runs one esbuild transform over an artifact.
// When withMap is set the artifact's map is chained through esbuild and the
// returned artifact carries the resulting map. Errors are attributed to the
// original file through the incoming map when one exists.
func transform(stage string, a pipeline.Artifact, opts api.TransformOptions, withMap bool) (pipeline.Artifact, error) {
	code := a.Content
	opts.Sourcefile = a.Origin
	if withMap && a.Map != nil {
		inlined, err := sourcemap.Inline(code, a.Map, a.IsCSS())
		if err != nil {
			return a, &pipeline.TransformError{Stage: stage, File: a.Origin, Message: err.Error()}
		}
		code = inlined
		opts.Sourcemap = api.SourceMapExternal
	}

	result := api.Transform(string(code), opts)
	if len(result.Errors) > 0 {
		return a, messageError(stage, a, result.Errors[0])
	}

	out := a
	out.Content = result.Code
	out.Map = nil
	if withMap && a.Map != nil && len(result.Map) > 0 {
		m, err := sourcemap.Parse(result.Map)
		if err != nil {
			return a, &pipeline.TransformError{Stage: stage, File: a.Origin, Message: fmt.Sprintf("reading generated map: %v", err)}
		}
		out.Map = m
	}
	return out, nil
}

func messageError(stage string, a pipeline.Artifact, msg api.Message) *pipeline.TransformError {
	te := &pipeline.TransformError{Stage: stage, File: a.Origin, Message: msg.Text}
	if msg.Location == nil {
		return te
	}
	te.Line = msg.Location.Line
	te.Column = msg.Location.Column + 1
	if a.Map != nil {
		if src, line, ok := a.Map.Lookup(msg.Location.Line - 1); ok {
			te.File = src
			te.Line = line + 1
			te.Column = 0
		}
	}
	return te
}
