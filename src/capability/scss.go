package capability

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/pipeline"
	"github.com/sofmeright/themeforge/src/sourcemap"
	"github.com/sofmeright/themeforge/src/toolrun"
)

func init() {
	Register(string(config.KindSCSS), func(env Env) pipeline.Capability {
		return &scss{env: env}
	})
}

// scss compiles Sass with dart-sass and adds vendor prefixes with esbuild.
type scss struct {
	env Env
}

func (s *scss) Name() string { return string(config.KindSCSS) }

// Accept skips Sass partials, which are only compiled through imports.
func (s *scss) Accept(rel string) bool {
	return !strings.HasPrefix(path.Base(rel), "_")
}

func (s *scss) Stages(pkg config.Package) ([]pipeline.Stage, error) {
	stages := []pipeline.Stage{
		pipeline.StageFunc{StageName: "compile", Fn: s.compile},
	}
	if len(pkg.Prefix.Browsers) > 0 {
		targets, err := engines(pkg.Prefix.Browsers)
		if err != nil {
			return nil, err
		}
		stages = append(stages, pipeline.StageFunc{StageName: "prefix", Fn: prefixer(targets)})
	}
	return stages, nil
}

func (s *scss) compile(ctx context.Context, pkg config.Package, in []pipeline.Artifact) ([]pipeline.Artifact, error) {
	bin := s.env.SassBin
	if bin == "" {
		bin = "sass"
	}
	tools := s.env.Tools
	if tools == nil {
		tools = toolrun.New(".", nil)
	}

	out := make([]pipeline.Artifact, 0, len(in))
	for _, a := range in {
		args := []string{"--style=expanded"}
		if pkg.MapsEnabled() {
			args = append(args, "--embed-source-map", "--embed-sources")
		} else {
			args = append(args, "--no-source-map")
		}
		args = append(args, a.Origin)

		res, err := tools.Run(ctx, toolrun.Command{Name: bin, Args: args})
		if err != nil {
			var tie *toolrun.ToolInvocationError
			if errors.As(err, &tie) && tie.ExitCode > 0 {
				return nil, sassError(a.Origin, string(res.Stderr))
			}
			return nil, pipeline.InFile(a.Origin, err)
		}

		css := res.Stdout
		var m *sourcemap.Map
		if pkg.MapsEnabled() {
			css, m, err = sourcemap.ExtractInline(css)
			if err != nil {
				return nil, &pipeline.TransformError{Stage: "compile", File: a.Origin, Message: err.Error()}
			}
		}

		out = append(out, pipeline.Artifact{
			Path:    strings.TrimSuffix(a.Path, path.Ext(a.Path)) + ".css",
			Origin:  a.Origin,
			Content: css,
			Map:     m,
		})
	}
	return out, nil
}

var sassLocRe = regexp.MustCompile(`(?m)^\s*(\S+\.s[ac]ss)\s+(\d+):(\d+)`)

// sassError converts dart-sass stderr into a TransformError.
func sassError(origin, stderr string) *pipeline.TransformError {
	te := &pipeline.TransformError{Stage: "compile", File: origin, Message: "sass failed"}
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			te.Message = strings.TrimPrefix(line, "Error: ")
			break
		}
	}
	if m := sassLocRe.FindStringSubmatch(stderr); m != nil {
		te.Line, _ = strconv.Atoi(m[2])
		te.Column, _ = strconv.Atoi(m[3])
		if m[1] != origin && !strings.HasSuffix(origin, m[1]) {
			// The error sits in an imported partial.
			te.Message += " (in " + m[1] + ")"
		}
	}
	return te
}

func prefixer(targets []api.Engine) func(context.Context, config.Package, []pipeline.Artifact) ([]pipeline.Artifact, error) {
	return func(_ context.Context, pkg config.Package, in []pipeline.Artifact) ([]pipeline.Artifact, error) {
		out := make([]pipeline.Artifact, 0, len(in))
		for _, a := range in {
			opts := api.TransformOptions{
				Loader:  api.LoaderCSS,
				Engines: targets,
			}
			prefixed, err := transform("prefix", a, opts, pkg.MapsEnabled())
			if err != nil {
				return nil, err
			}
			out = append(out, prefixed)
		}
		return out, nil
	}
}
