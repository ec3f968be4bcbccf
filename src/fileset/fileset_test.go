package fileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func paths(files []File) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestExpandKeepsPatternOrder(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "js/a.js", "js/b.js", "js/c.js", "vendor/lib.js")

	files, err := Expand(root, []string{"js/b.js", "vendor/*.js", "js/*.js"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"js/b.js", "vendor/lib.js", "js/a.js", "js/c.js"}
	if diff := cmp.Diff(want, paths(files)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandExcludesAnywhere(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "js/a.js", "js/a.min.js", "js/sub/b.js")

	files, err := Expand(root, []string{"!**/*.min.js", "js/**/*.js"})
	if err != nil {
		t.Fatal(err)
	}
	got := paths(files)
	if len(got) != 2 {
		t.Fatalf("got %v, want two files", got)
	}
	for _, p := range got {
		if p == "js/a.min.js" {
			t.Errorf("excluded file matched: %v", got)
		}
	}
}

func TestExpandRel(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "scss/sub/a.scss", "./top.scss")

	files, err := Expand(root, []string{"./scss/**/*.scss", "top.scss"})
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]string{}
	for _, f := range files {
		got[f.Path] = f.Rel
		if f.Abs != filepath.Join(root, filepath.FromSlash(f.Path)) {
			t.Errorf("Abs = %s", f.Abs)
		}
	}
	want := map[string]string{"scss/sub/a.scss": "sub/a.scss", "top.scss": "top.scss"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rel mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandAboveRoot(t *testing.T) {
	parent := t.TempDir()
	touch(t, parent, "shared/x.js", "shared/skip.js", "proj/js/app.js")
	root := filepath.Join(parent, "proj")

	files, err := Expand(root, []string{"js/*.js", "../shared/*.js", "!../shared/skip.js"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"js/app.js", "../shared/x.js"}, paths(files)); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	shared := files[1]
	if shared.Rel != "x.js" {
		t.Errorf("Rel = %q, want x.js", shared.Rel)
	}
	if shared.Abs != filepath.Join(parent, "shared", "x.js") {
		t.Errorf("Abs = %s", shared.Abs)
	}
	if !Match([]string{"../shared/*.js"}, "../shared/x.js") {
		t.Error("Match rejects a parent-relative path")
	}
}

func TestExpandNoMatches(t *testing.T) {
	files, err := Expand(t.TempDir(), []string{"missing/*.js"})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("got %v", paths(files))
	}
}

func TestExpandInvalidPattern(t *testing.T) {
	if _, err := Expand(t.TempDir(), []string{"js/[a.js"}); err == nil {
		t.Error("invalid pattern accepted")
	}
}

func TestMatch(t *testing.T) {
	patterns := []string{"theme/js/**/*.js", "!theme/js/dist/**"}
	tests := []struct {
		path string
		want bool
	}{
		{"theme/js/app.js", true},
		{"./theme/js/sub/x.js", true},
		{"theme/js/dist/app.min.js", false},
		{"theme/scss/site.scss", false},
	}
	for _, tt := range tests {
		if got := Match(patterns, tt.path); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestBasesAndRecursive(t *testing.T) {
	patterns := []string{"theme/scss/*.scss", "theme/scss/*.sass", "!theme/scss/_*.scss", "vendor/**/*.js"}
	if diff := cmp.Diff([]string{"theme/scss", "vendor"}, Bases(patterns)); diff != "" {
		t.Errorf("Bases mismatch (-want +got):\n%s", diff)
	}
	if !Recursive(patterns) {
		t.Error("** pattern not recursive")
	}
	if Recursive([]string{"theme/scss/*.scss"}) {
		t.Error("flat pattern reported recursive")
	}
}
