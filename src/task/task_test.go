package task

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sofmeright/themeforge/src/config"
)

func TestParseAndName(t *testing.T) {
	for _, info := range Catalog() {
		tk, err := Parse(info.Name)
		if err != nil {
			t.Errorf("Parse(%q): %v", info.Name, err)
			continue
		}
		if tk.Name() != info.Name {
			t.Errorf("Parse(%q).Name() = %q", info.Name, tk.Name())
		}
	}
	if _, err := Parse("build:less"); err == nil {
		t.Error("unknown task accepted")
	}
}

func TestParseVariants(t *testing.T) {
	tk, _ := Parse("build:scss")
	if diff := cmp.Diff(Build{Kinds: []config.Kind{config.KindSCSS}}, tk); diff != "" {
		t.Errorf("build:scss mismatch (-want +got):\n%s", diff)
	}
	tk, _ = Parse("check")
	if diff := cmp.Diff(Check{Checkers: []string{"phpcs", "eslint"}}, tk); diff != "" {
		t.Errorf("check mismatch (-want +got):\n%s", diff)
	}
	if got := (Check{Checkers: []string{"phplint", "secrets"}, Changed: true}).Name(); got != "check:phplint+secrets" {
		t.Errorf("custom check name = %q", got)
	}
}

func newTestRunner(t *testing.T, cfg *config.Config) (*Runner, *bytes.Buffer, string) {
	t.Helper()
	root := t.TempDir()
	var out bytes.Buffer
	return &Runner{Config: cfg, Root: root, Out: &out}, &out, root
}

func write(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunBuildJS(t *testing.T) {
	cfg := config.Default()
	cfg.Build.JS = []config.Package{
		{Name: "libs", Sources: config.StringList{"js/libs/*.js"}, Dest: "dist", Concat: "libs.js", Min: true},
		{Name: "app", Sources: config.StringList{"js/app.js"}, Dest: "dist", Maps: "maps"},
	}
	r, out, root := newTestRunner(t, cfg)
	write(t, root, map[string]string{
		"js/libs/a.js": "var first = 1;\n",
		"js/libs/b.js": "var second = 2;\n",
		"js/app.js":    "console.log(first + second);\n",
	})

	if err := r.Run(context.Background(), Build{Kinds: []config.Kind{config.KindJS}}); err != nil {
		t.Fatalf("Run: %v\n%s", err, out)
	}
	for _, name := range []string{"dist/libs.min.js", "dist/app.js", "dist/maps/app.js.map"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("missing output %s", name)
		}
	}
	if !strings.Contains(out.String(), "libs") || !strings.Contains(out.String(), "app") {
		t.Errorf("report does not list packages:\n%s", out)
	}
}

func TestRunBuildFailureContinues(t *testing.T) {
	cfg := config.Default()
	cfg.Build.JS = []config.Package{
		{Name: "broken", Sources: config.StringList{"js/broken.js"}, Dest: "dist", Min: true},
		{Name: "good", Sources: config.StringList{"js/good.js"}, Dest: "dist", Min: true},
	}
	r, out, root := newTestRunner(t, cfg)
	write(t, root, map[string]string{
		"js/broken.js": "var = ;\n",
		"js/good.js":   "var ok = true;\n",
	})

	err := r.Run(context.Background(), Build{Kinds: []config.Kind{config.KindJS}})
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("err = %v, want ErrFailed", err)
	}
	if _, err := os.Stat(filepath.Join(root, "dist", "good.min.js")); err != nil {
		t.Errorf("good package not built: %v", err)
	}
	if !strings.Contains(out.String(), "js/broken.js") {
		t.Errorf("report does not name the failing file:\n%s", out)
	}
}

func TestRunBuildConfigurationError(t *testing.T) {
	cfg := config.Default()
	cfg.Build.JS = []config.Package{{Sources: config.StringList{"js/*.js"}}}
	r, _, root := newTestRunner(t, cfg)
	write(t, root, map[string]string{"js/a.js": "var a;\n"})

	err := r.Run(context.Background(), Build{Kinds: config.Kinds()})
	var ce *config.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *config.ConfigurationError", err)
	}
	if errors.Is(err, ErrFailed) {
		t.Error("configuration error reported as task failure")
	}
	if _, err := os.Stat(filepath.Join(root, "dist")); err == nil {
		t.Error("output written despite configuration error")
	}
}

func TestRunInstall(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	cfg := config.Default()
	cfg.Install.Composer = config.InstallStep{Command: `sh -c "echo composer-ran > composer.log"`}
	cfg.Install.Bower = config.InstallStep{Command: `sh -c "exit 3"`}
	r, _, root := newTestRunner(t, cfg)

	err := r.Run(context.Background(), Install{Steps: []string{"composer", "bower"}})
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("err = %v, want ErrFailed", err)
	}
	if _, err := os.Stat(filepath.Join(root, "composer.log")); err != nil {
		t.Errorf("composer step did not run: %v", err)
	}
}

func TestRunCheckDisabled(t *testing.T) {
	off := false
	cfg := config.Default()
	cfg.Check.Checkers = map[string]config.CheckerConfig{"phpcs": {Enabled: &off}, "eslint": {Enabled: &off}}
	r, _, _ := newTestRunner(t, cfg)

	if err := r.Run(context.Background(), Check{Checkers: DefaultCheckers}); err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestRunAllJoinsErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Build.JS = []config.Package{{Name: "broken", Sources: config.StringList{"x.js"}, Dest: "dist", Min: true}}
	r, _, root := newTestRunner(t, cfg)
	write(t, root, map[string]string{"x.js": "function (\n"})

	off := false
	r.Config.Check.Checkers = map[string]config.CheckerConfig{"phpcs": {Enabled: &off}, "eslint": {Enabled: &off}}
	err := r.RunAll(context.Background(), []Task{
		Build{Kinds: []config.Kind{config.KindJS}},
		Check{Checkers: DefaultCheckers},
	})
	if !errors.Is(err, ErrFailed) || !strings.Contains(err.Error(), "build:js") {
		t.Errorf("err = %v", err)
	}
}
