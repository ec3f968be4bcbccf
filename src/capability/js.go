package capability

import (
	"bytes"
	"context"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/pipeline"
	"github.com/sofmeright/themeforge/src/sourcemap"
)

// concatSeparator joins bundled files.
const concatSeparator = "\n"

func init() {
	Register(string(config.KindJS), func(env Env) pipeline.Capability {
		return &js{}
	})
}

// js optionally concatenates scripts into one bundle, then optionally
// minifies each resulting file with esbuild.
type js struct{}

func (j *js) Name() string { return string(config.KindJS) }

func (j *js) Stages(pkg config.Package) ([]pipeline.Stage, error) {
	var stages []pipeline.Stage
	if pkg.Concat.Enabled() {
		stages = append(stages, ConcatStage(string(pkg.Concat)))
	}
	if pkg.Min {
		stages = append(stages, MinifyStage())
	}
	return stages, nil
}

// ConcatStage joins every artifact, in order, into a single artifact named
// name. The merged map always exists so later failures can be traced back
// to the original file; it is only written when the package enables maps.
func ConcatStage(name string) pipeline.Stage {
	return pipeline.StageFunc{
		StageName: "concat",
		Fn: func(_ context.Context, pkg config.Package, in []pipeline.Artifact) ([]pipeline.Artifact, error) {
			parts := make([]sourcemap.Part, len(in))
			chunks := make([][]byte, len(in))
			for i, a := range in {
				m := a.Map
				if m == nil {
					m = sourcemap.Identity(a.Origin, a.Content)
				}
				parts[i] = sourcemap.Part{Map: m, Content: a.Content}
				chunks[i] = a.Content
			}

			m, err := sourcemap.Concat(name, parts, concatSeparator)
			if err != nil {
				return nil, &pipeline.TransformError{Stage: "concat", File: name, Message: err.Error()}
			}
			return []pipeline.Artifact{{
				Path:    name,
				Origin:  name,
				Content: bytes.Join(chunks, []byte(concatSeparator)),
				Map:     m,
			}}, nil
		},
	}
}

// MinifyStage minifies each artifact. The minified file replaces the
// original unless the package keeps its source.
func MinifyStage() pipeline.Stage {
	return pipeline.StageFunc{
		StageName: "minify",
		Fn: func(_ context.Context, pkg config.Package, in []pipeline.Artifact) ([]pipeline.Artifact, error) {
			var out []pipeline.Artifact
			for _, a := range in {
				opts := api.TransformOptions{
					Loader:            api.LoaderJS,
					MinifyWhitespace:  true,
					MinifyIdentifiers: true,
					MinifySyntax:      true,
				}
				minified, err := transform("minify", a, opts, pkg.MapsEnabled())
				if err != nil {
					return nil, err
				}
				minified.Path = strings.TrimSuffix(a.Path, ".js") + pkg.MinSuffix()

				if pkg.KeepSource {
					if !pkg.MapsEnabled() {
						a.Map = nil
					}
					out = append(out, a)
				}
				out = append(out, minified)
			}
			return out, nil
		},
	}
}
