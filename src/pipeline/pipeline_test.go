package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sofmeright/themeforge/src/capability"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/pipeline"
	"github.com/sofmeright/themeforge/src/toolrun"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
}

// fakeCapability runs fixed stages.
type fakeCapability struct {
	name   string
	stages []pipeline.Stage
}

func (f *fakeCapability) Name() string { return f.name }

func (f *fakeCapability) Stages(config.Package) ([]pipeline.Stage, error) {
	return f.stages, nil
}

// compileStage renames .scss to .css and rejects files containing "@error".
var compileStage = pipeline.StageFunc{
	StageName: "compile",
	Fn: func(_ context.Context, _ config.Package, in []pipeline.Artifact) ([]pipeline.Artifact, error) {
		out := make([]pipeline.Artifact, 0, len(in))
		for _, a := range in {
			if bytes.Contains(a.Content, []byte("@error")) {
				return nil, &pipeline.TransformError{Stage: "compile", File: a.Origin, Line: 1, Message: "syntax error"}
			}
			a.Path = strings.TrimSuffix(a.Path, ".scss") + ".css"
			a.Content = bytes.ToUpper(a.Content)
			out = append(out, a)
		}
		return out, nil
	},
}

func styles() *fakeCapability {
	return &fakeCapability{name: "scss", stages: []pipeline.Stage{compileStage}}
}

func TestRunAllStylePackages(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"theme/scss/a.scss":      "a {}",
		"theme/scss/b.scss":      "b {}",
		"theme/scss/c.scss":      "c {}",
		"theme/broken/x.scss":    "@error",
		"theme/unrelated/y.scss": "y {}",
	})
	pkgs := []config.Package{
		{Name: "site", Sources: config.StringList{"theme/scss/*.scss"}, Dest: "theme/dist/css"},
		{Name: "broken", Sources: config.StringList{"theme/broken/*.scss"}, Dest: "theme/dist/broken"},
	}

	out := pipeline.NewRunner(root, 0).RunAll(context.Background(), pkgs, styles())

	if out.Success {
		t.Fatal("outcome succeeded, want failure")
	}
	if len(out.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(out.Results))
	}

	site := out.Results[0]
	if !site.Success {
		t.Fatalf("site failed: %v", site.Errors)
	}
	want := []string{"theme/dist/css/a.css", "theme/dist/css/b.css", "theme/dist/css/c.css"}
	if diff := cmp.Diff(want, site.Outputs); diff != "" {
		t.Errorf("site outputs mismatch (-want +got):\n%s", diff)
	}

	broken := out.Results[1]
	if broken.Success {
		t.Fatal("broken succeeded, want failure")
	}
	if len(broken.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(broken.Errors))
	}
	e := broken.Errors[0]
	if e.File != "theme/broken/x.scss" || e.Stage != "compile" {
		t.Errorf("error tagged %s [%s], want theme/broken/x.scss [compile]", e.File, e.Stage)
	}
	if len(broken.Outputs) != 0 {
		t.Errorf("broken wrote %v", broken.Outputs)
	}
	if _, err := os.Stat(filepath.Join(root, "theme/dist/broken")); !os.IsNotExist(err) {
		t.Errorf("broken destination exists: %v", err)
	}
}

func TestRunAllResultPerPackageInOrder(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	var pkgs []config.Package
	for _, name := range []string{"p0", "p1", "p2", "p3", "p4", "p5"} {
		content := name + " {}"
		if name == "p2" || name == "p4" {
			content = "@error"
		}
		files["src/"+name+"/main.scss"] = content
		pkgs = append(pkgs, config.Package{Name: name, Sources: config.StringList{"src/" + name + "/*.scss"}, Dest: "out/" + name})
	}
	writeTree(t, root, files)

	out := pipeline.NewRunner(root, 2).RunAll(context.Background(), pkgs, styles())

	if len(out.Results) != len(pkgs) {
		t.Fatalf("got %d results, want %d", len(out.Results), len(pkgs))
	}
	for i, r := range out.Results {
		if r.Package != pkgs[i].Name {
			t.Errorf("result %d is %s, want %s", i, r.Package, pkgs[i].Name)
		}
		wantOK := pkgs[i].Name != "p2" && pkgs[i].Name != "p4"
		if r.Success != wantOK {
			t.Errorf("%s success = %v, want %v", r.Package, r.Success, wantOK)
		}
	}
	if out.Success {
		t.Error("outcome succeeded with failing packages")
	}
	if out.Failed() != 2 {
		t.Errorf("Failed() = %d, want 2", out.Failed())
	}
	if got := len(out.Errors()); got != 2 {
		t.Errorf("got %d errors, want 2", got)
	}
}

func TestRunAllAllSucceed(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a/x.scss": "x", "b/y.scss": "y"})
	pkgs := []config.Package{
		{Name: "a", Sources: config.StringList{"a/*.scss"}, Dest: "dist/a"},
		{Name: "b", Sources: config.StringList{"b/*.scss"}, Dest: "dist/b"},
	}
	out := pipeline.NewRunner(root, 0).RunAll(context.Background(), pkgs, styles())
	if !out.Success || out.Status() != "success" {
		t.Fatalf("outcome = %s, errors: %v", out.Status(), out.Errors())
	}
}

func TestRunAllIsolation(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a/bad.scss": "@error", "b/good.scss": "ok"})

	// Block the good package until the bad one has failed, so the failure
	// is known to land while its sibling is still running.
	failed := make(chan struct{})
	var once sync.Once
	stage := pipeline.StageFunc{
		StageName: "compile",
		Fn: func(ctx context.Context, pkg config.Package, in []pipeline.Artifact) ([]pipeline.Artifact, error) {
			if pkg.Name == "a" {
				defer once.Do(func() { close(failed) })
				return compileStage.Fn(ctx, pkg, in)
			}
			<-failed
			return compileStage.Fn(ctx, pkg, in)
		},
	}
	pkgs := []config.Package{
		{Name: "a", Sources: config.StringList{"a/*.scss"}, Dest: "dist/a"},
		{Name: "b", Sources: config.StringList{"b/*.scss"}, Dest: "dist/b"},
	}

	out := pipeline.NewRunner(root, 2).RunAll(context.Background(), pkgs, &fakeCapability{name: "scss", stages: []pipeline.Stage{stage}})

	if out.Results[0].Success {
		t.Error("package a succeeded, want failure")
	}
	if !out.Results[1].Success {
		t.Errorf("package b failed: %v", out.Results[1].Errors)
	}
	if _, err := os.Stat(filepath.Join(root, "dist/b/good.css")); err != nil {
		t.Errorf("package b output missing: %v", err)
	}
}

func TestRunAllIdempotent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"s/a.scss": "a", "s/b.scss": "b", "bad/c.scss": "@error"})
	pkgs := []config.Package{
		{Name: "s", Sources: config.StringList{"s/*.scss"}, Dest: "dist", Maps: "../maps"},
		{Name: "bad", Sources: config.StringList{"bad/*.scss"}, Dest: "dist/bad"},
	}
	runner := pipeline.NewRunner(root, 0)

	summarize := func(o *pipeline.Outcome) map[string]any {
		s := map[string]any{"success": o.Success}
		for _, r := range o.Results {
			s[r.Package] = map[string]any{"success": r.Success, "written": r.Written(), "errors": len(r.Errors)}
		}
		return s
	}

	first := summarize(runner.RunAll(context.Background(), pkgs, styles()))
	second := summarize(runner.RunAll(context.Background(), pkgs, styles()))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestConcatBeforeMinify(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"js/b.js": "var b = 2;",
		"js/a.js": "var a = 1;",
		"js/c.js": "var c = 3;",
	})

	var minifyInput []pipeline.Artifact
	recorder := pipeline.StageFunc{
		StageName: "minify",
		Fn: func(_ context.Context, _ config.Package, in []pipeline.Artifact) ([]pipeline.Artifact, error) {
			minifyInput = append([]pipeline.Artifact(nil), in...)
			return in, nil
		},
	}
	pkg := config.Package{
		Name:    "libs",
		Sources: config.StringList{"js/b.js", "js/a.js", "js/*.js"},
		Dest:    "dist",
		Concat:  "libs.js",
		Min:     true,
	}
	c := &fakeCapability{name: "js", stages: []pipeline.Stage{capability.ConcatStage("libs.js"), recorder}}

	res := pipeline.NewRunner(root, 0).Run(context.Background(), pkg, c)
	if !res.Success {
		t.Fatalf("run failed: %v", res.Errors)
	}
	if len(minifyInput) != 1 {
		t.Fatalf("minify received %d artifacts, want 1 bundle", len(minifyInput))
	}
	want := "var b = 2;\nvar a = 1;\nvar c = 3;"
	if got := string(minifyInput[0].Content); got != want {
		t.Errorf("bundle = %q, want %q", got, want)
	}
	if diff := cmp.Diff([]string{"dist/libs.js"}, res.Outputs); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestConcatDisabledEmitsPerFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"js/a.js": "a", "js/b.js": "b", "js/sub/c.js": "c"})

	c, err := capability.Get("js", capability.Env{})
	if err != nil {
		t.Fatal(err)
	}
	pkg := config.Package{Name: "per-file", Sources: config.StringList{"js/**/*.js"}, Dest: "dist"}
	res := pipeline.NewRunner(root, 0).Run(context.Background(), pkg, c)
	if !res.Success {
		t.Fatalf("run failed: %v", res.Errors)
	}
	want := []string{"dist/a.js", "dist/b.js", "dist/sub/c.js"}
	got := append([]string(nil), res.Outputs...)
	sort.Strings(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestNoMatchingFilesSucceeds(t *testing.T) {
	root := t.TempDir()
	pkg := config.Package{Name: "empty", Sources: config.StringList{"nothing/*.scss"}, Dest: "dist"}
	res := pipeline.NewRunner(root, 0).Run(context.Background(), pkg, styles())
	if !res.Success || len(res.Outputs) != 0 {
		t.Errorf("got success=%v outputs=%v, want success with no outputs", res.Success, res.Outputs)
	}
}

func TestSourcesAboveRoot(t *testing.T) {
	parent := t.TempDir()
	writeTree(t, parent, map[string]string{"shared/x.scss": "x {}", "proj/.keep": ""})
	root := filepath.Join(parent, "proj")
	pkg := config.Package{Name: "up", Sources: config.StringList{"../shared/*.scss"}, Dest: "dist"}

	res := pipeline.NewRunner(root, 0).Run(context.Background(), pkg, styles())
	if !res.Success {
		t.Fatalf("run failed: %v", res.Errors)
	}
	if diff := cmp.Diff([]string{"../shared/x.scss"}, res.Inputs); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"dist/x.css"}, res.Outputs); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestUnwritableDestination(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"s/a.scss": "a", "blocker": "not a directory"})
	pkg := config.Package{Name: "s", Sources: config.StringList{"s/*.scss"}, Dest: "blocker/css"}

	res := pipeline.NewRunner(root, 0).Run(context.Background(), pkg, styles())
	if res.Success {
		t.Fatal("run succeeded, want emit failure")
	}
	e := res.Errors[0]
	if e.Stage != pipeline.StageEmit || e.File != "s/a.scss" {
		t.Errorf("error tagged %s [%s], want s/a.scss [emit]", e.File, e.Stage)
	}
	var tie *toolrun.ToolInvocationError
	if !errors.As(e, &tie) {
		t.Errorf("error %v is not a ToolInvocationError", e)
	}
}

func TestSourceMapsWritten(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"theme/js/app.js": "var a = 1;\nvar b = 2;\n"})
	pkg := config.Package{Name: "app", Sources: config.StringList{"theme/js/*.js"}, Dest: "theme/dist/js", Maps: "../maps"}

	c := &fakeCapability{name: "js"}
	res := pipeline.NewRunner(root, 0).Run(context.Background(), pkg, c)
	if !res.Success {
		t.Fatalf("run failed: %v", res.Errors)
	}
	if diff := cmp.Diff([]string{"theme/dist/maps/app.js.map"}, res.Maps); diff != "" {
		t.Errorf("maps mismatch (-want +got):\n%s", diff)
	}

	content, err := os.ReadFile(filepath.Join(root, "theme/dist/js/app.js"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(content), "//# sourceMappingURL=../maps/app.js.map\n") {
		t.Errorf("missing sourceMappingURL comment:\n%s", content)
	}

	data, err := os.ReadFile(filepath.Join(root, "theme/dist/maps/app.js.map"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"../../js/app.js"`) {
		t.Errorf("map sources not relative to map file:\n%s", data)
	}
}

func TestAffected(t *testing.T) {
	pkgs := []config.Package{
		{Name: "styles", Sources: config.StringList{"theme/scss/**/*.scss"}},
		{Name: "scripts", Sources: config.StringList{"theme/js/*.js", "!theme/js/vendor.js"}},
		{Name: "libs", Sources: config.StringList{"theme/lib/foundation.js"}},
	}
	tests := []struct {
		name    string
		changed []string
		want    []string
	}{
		{"partial", []string{"theme/scss/base/_vars.scss"}, []string{"styles"}},
		{"script", []string{"theme/js/app.js"}, []string{"scripts"}},
		{"excluded", []string{"theme/js/vendor.js"}, nil},
		{"several", []string{"theme/lib/foundation.js", "theme/scss/a.scss"}, []string{"styles", "libs"}},
		{"none", []string{"README.md"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, p := range pipeline.Affected(pkgs, tt.changed) {
				got = append(got, p.Name)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Affected mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
