// Package pipeline runs build packages through capability stages and
// merges the per-package results of a run.
package pipeline

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/fileset"
	"github.com/sofmeright/themeforge/src/sourcemap"
	"github.com/sofmeright/themeforge/src/toolrun"
)

// Runner executes package pipelines. It holds no per-run state, so a
// single Runner may serve concurrent and repeated runs.
type Runner struct {
	Root        string
	Concurrency int
}

// NewRunner creates a runner rooted at root.
func NewRunner(root string, concurrency int) *Runner {
	return &Runner{Root: root, Concurrency: concurrency}
}

func (r *Runner) concurrency() int {
	if r.Concurrency > 0 {
		return r.Concurrency
	}
	return runtime.NumCPU() * 2
}

// Run processes one package: read, source map init, capability stages,
// source map write, emit. The first failing stage aborts the package.
func (r *Runner) Run(ctx context.Context, pkg config.Package, c Capability) *Result {
	start := time.Now()
	res := &Result{Package: pkg.Name, Dest: pkg.Dest}
	logger := log.FromContext(ctx).With("kind", c.Name(), "package", pkg.Name)

	fail := func(stage, file string, err error) *Result {
		se := newStageError(pkg.Name, stage, err)
		if se.File == "" {
			se.File = file
		}
		res.Errors = append(res.Errors, se)
		res.Duration = time.Since(start)
		logger.Error("package failed", "stage", se.Stage, "file", se.File, "err", se.Err)
		return res
	}

	absRoot, err := filepath.Abs(r.root())
	if err != nil {
		return fail(StageConfigure, "", err)
	}

	stages, err := c.Stages(pkg)
	if err != nil {
		return fail(StageConfigure, "", err)
	}

	files, err := fileset.Expand(absRoot, pkg.Sources)
	if err != nil {
		return fail(StageRead, "", err)
	}
	if f, ok := c.(InputFilter); ok {
		kept := files[:0:0]
		for _, file := range files {
			if f.Accept(file.Path) {
				kept = append(kept, file)
			}
		}
		files = kept
	}
	for _, f := range files {
		res.Inputs = append(res.Inputs, f.Path)
	}
	if len(files) == 0 {
		logger.Warn("no files matched", "src", strings.Join(pkg.Sources, ", "))
		res.Success = true
		res.Duration = time.Since(start)
		return res
	}

	artifacts := make([]Artifact, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.Abs)
		if err != nil {
			return fail(StageRead, f.Path, &TransformError{Stage: StageRead, File: f.Path, Message: err.Error()})
		}
		artifacts = append(artifacts, Artifact{
			Path:    f.Rel,
			Origin:  f.Path,
			Content: data,
		})
	}

	if pkg.MapsEnabled() {
		for i := range artifacts {
			artifacts[i].Map = sourcemap.Identity(artifacts[i].Origin, artifacts[i].Content)
		}
	}

	for _, st := range stages {
		logger.Debug("stage", "name", st.Name(), "artifacts", len(artifacts))
		artifacts, err = st.Apply(ctx, pkg, artifacts)
		if err != nil {
			return fail(st.Name(), "", err)
		}
	}

	absDest := pkg.Dest
	if !filepath.IsAbs(absDest) {
		absDest = filepath.Join(absRoot, filepath.FromSlash(pkg.Dest))
	}

	var maps []Artifact
	if pkg.MapsEnabled() {
		artifacts, maps, err = writeMaps(absRoot, absDest, pkg.Maps, artifacts)
		if err != nil {
			return fail(StageMapWrite, "", err)
		}
	}

	for _, a := range artifacts {
		rel, err := emit(absRoot, absDest, a)
		if err != nil {
			return fail(StageEmit, a.Origin, err)
		}
		res.Outputs = append(res.Outputs, rel)
	}
	for _, a := range maps {
		rel, err := emit(absRoot, absDest, a)
		if err != nil {
			return fail(StageEmit, a.Origin, err)
		}
		res.Maps = append(res.Maps, rel)
	}

	res.Success = true
	res.Duration = time.Since(start)
	logger.Debug("package done", "outputs", len(res.Outputs), "elapsed", res.Duration)
	return res
}

func (r *Runner) root() string {
	if r.Root == "" {
		return "."
	}
	return r.Root
}

// writeMaps moves each artifact's map into a separate map artifact under
// mapsDir (relative to the destination) and appends a sourceMappingURL
// comment to the content. Map sources are rewritten relative to the map file.
func writeMaps(absRoot, absDest, mapsDir string, in []Artifact) (content, maps []Artifact, err error) {
	for _, a := range in {
		if a.Map == nil {
			content = append(content, a)
			continue
		}

		mapRel := path.Join(fileset.Normalize(mapsDir), a.Path+".map")
		mapAbs := filepath.Join(absDest, filepath.FromSlash(mapRel))
		mapDir := filepath.Dir(mapAbs)

		m := *a.Map
		m.File = path.Base(a.Path)
		m.SourceRoot = ""
		m.Sources = make([]string, len(a.Map.Sources))
		for i, src := range a.Map.Sources {
			src = strings.TrimPrefix(src, "file://")
			abs := filepath.FromSlash(src)
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(absRoot, abs)
			}
			rel, rerr := filepath.Rel(mapDir, abs)
			if rerr != nil {
				return nil, nil, &TransformError{Stage: StageMapWrite, File: a.Origin, Message: rerr.Error()}
			}
			m.Sources[i] = filepath.ToSlash(rel)
		}

		data, jerr := m.JSON()
		if jerr != nil {
			return nil, nil, &TransformError{Stage: StageMapWrite, File: a.Origin, Message: jerr.Error()}
		}

		contentAbs := filepath.Join(absDest, filepath.FromSlash(a.Path))
		url, rerr := filepath.Rel(filepath.Dir(contentAbs), mapAbs)
		if rerr != nil {
			return nil, nil, &TransformError{Stage: StageMapWrite, File: a.Origin, Message: rerr.Error()}
		}

		a.Content = sourcemap.AppendComment(a.Content, sourcemap.Comment(filepath.ToSlash(url), a.IsCSS()))
		a.Map = nil
		content = append(content, a)
		maps = append(maps, Artifact{Path: mapRel, Origin: a.Origin, Content: data})
	}
	return content, maps, nil
}

// emit writes an artifact under absDest and returns its root-relative path.
// Write failures are reported as tool invocation failures of the emit stage.
func emit(absRoot, absDest string, a Artifact) (string, error) {
	target := filepath.Join(absDest, filepath.FromSlash(a.Path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", &toolrun.ToolInvocationError{Tool: "write", Args: []string{target}, ExitCode: -1, Err: err}
	}
	if err := os.WriteFile(target, a.Content, 0o644); err != nil {
		return "", &toolrun.ToolInvocationError{Tool: "write", Args: []string{target}, ExitCode: -1, Err: err}
	}
	rel, err := filepath.Rel(absRoot, target)
	if err != nil {
		return target, nil
	}
	return filepath.ToSlash(rel), nil
}
