package pipeline

import (
	"context"
	"path"

	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/sourcemap"
)

// Artifact is a unit of content flowing through a package's stages.
type Artifact struct {
	Path    string // output path relative to the package destination
	Origin  string // root-relative source file, or the bundle name
	Content []byte
	Map     *sourcemap.Map
}

// IsCSS reports whether the artifact uses CSS comment syntax.
func (a Artifact) IsCSS() bool {
	return path.Ext(a.Path) == ".css"
}

// Stage is one ordered content transform contributed by a capability.
// A failing stage should return a *TransformError naming the file.
type Stage interface {
	Name() string
	Apply(ctx context.Context, pkg config.Package, in []Artifact) ([]Artifact, error)
}

// StageFunc adapts a function to Stage.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, pkg config.Package, in []Artifact) ([]Artifact, error)
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Apply(ctx context.Context, pkg config.Package, in []Artifact) ([]Artifact, error) {
	return s.Fn(ctx, pkg, in)
}

// Capability turns a package into its ordered transform stages.
// The runner wraps them with reading, source map handling and emission.
type Capability interface {
	Name() string
	Stages(pkg config.Package) ([]Stage, error)
}

// InputFilter is implemented by capabilities that skip some matched files,
// such as Sass partials.
type InputFilter interface {
	Accept(rel string) bool
}
