// Package fileset expands ordered glob pattern lists into concrete files.
//
// Patterns use doublestar syntax ("**", "{a,b}", character classes) with
// forward slashes, relative to a root directory. A leading "!" turns a
// pattern into an exclusion that filters every positive match, regardless
// of where it appears in the list. Positive patterns keep their order, so
// files matched by an earlier pattern come first.
package fileset

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// File is a matched file.
type File struct {
	Path string // slash-separated path relative to root
	Rel  string // path relative to the static base of the matching pattern
	Abs  string // absolute path on disk
}

// Normalize converts a pattern or path to forward slashes and strips "./".
func Normalize(p string) string {
	p = filepath.ToSlash(p)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	return p
}

// Split separates include patterns from exclude patterns ("!" stripped).
func Split(patterns []string) (include, exclude []string) {
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			exclude = append(exclude, Normalize(p[1:]))
			continue
		}
		include = append(include, Normalize(p))
	}
	return include, exclude
}

// Expand returns the files under root matched by patterns, in pattern order,
// without duplicates.
func Expand(root string, patterns []string) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}

	include, exclude := Split(patterns)
	fsys := os.DirFS(absRoot)

	seen := make(map[string]bool)
	var files []File
	for _, pattern := range include {
		var matches []string
		if filepath.IsAbs(filepath.FromSlash(pattern)) || outsideRoot(pattern) {
			glob := filepath.FromSlash(pattern)
			if !filepath.IsAbs(glob) {
				glob = filepath.Join(absRoot, glob)
			}
			abs, gerr := doublestar.FilepathGlob(glob, doublestar.WithFilesOnly())
			if gerr != nil {
				return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, gerr)
			}
			for _, m := range abs {
				rel, rerr := filepath.Rel(absRoot, m)
				if rerr != nil {
					return nil, rerr
				}
				matches = append(matches, filepath.ToSlash(rel))
			}
		} else {
			matches, err = doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
			}
		}

		base, _ := doublestar.SplitPattern(pattern)
		for _, rel := range matches {
			if seen[rel] || excluded(exclude, rel) {
				continue
			}
			seen[rel] = true
			files = append(files, File{
				Path: rel,
				Rel:  relToBase(base, rel),
				Abs:  filepath.Join(absRoot, filepath.FromSlash(rel)),
			})
		}
	}
	return files, nil
}

// Match reports whether a root-relative path is selected by patterns.
func Match(patterns []string, rel string) bool {
	rel = Normalize(rel)
	include, exclude := Split(patterns)
	if excluded(exclude, rel) {
		return false
	}
	for _, p := range include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Bases returns the static directory prefix of each include pattern,
// deduplicated. Watchers use these as roots.
func Bases(patterns []string) []string {
	include, _ := Split(patterns)
	seen := make(map[string]bool)
	var bases []string
	for _, p := range include {
		base, _ := doublestar.SplitPattern(p)
		base = path.Clean(base)
		if !seen[base] {
			seen[base] = true
			bases = append(bases, base)
		}
	}
	return bases
}

// Recursive reports whether any include pattern descends into subdirectories
// below its base.
func Recursive(patterns []string) bool {
	include, _ := Split(patterns)
	for _, p := range include {
		_, rest := doublestar.SplitPattern(p)
		if strings.Contains(rest, "**") || strings.Contains(rest, "/") {
			return true
		}
	}
	return false
}

// relToBase strips a pattern's static base from a match, so "scss/sub/a.scss"
// matched by "scss/**/*.scss" becomes "sub/a.scss".
func relToBase(base, rel string) string {
	if base == "." || base == "" {
		return rel
	}
	if filepath.IsAbs(filepath.FromSlash(base)) {
		return path.Base(rel)
	}
	if trimmed := strings.TrimPrefix(rel, base+"/"); trimmed != rel {
		return trimmed
	}
	return path.Base(rel)
}

// outsideRoot reports whether a relative pattern climbs above the root,
// which an fs.FS rooted there cannot reach.
func outsideRoot(pattern string) bool {
	p := path.Clean(pattern)
	return p == ".." || strings.HasPrefix(p, "../")
}

func excluded(exclude []string, rel string) bool {
	for _, p := range exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
