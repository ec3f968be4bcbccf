// Package check runs static analysis (PHP lint, PHP code style, ESLint,
// secret scanning) over the configured file sets.
package check

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/fileset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Engine runs checkers across the configured file sets.
type Engine struct {
	Config   config.CheckConfig
	RootDir  string
	Checkers []Checker
	Cache    *Cache

	CacheHits   atomic.Int64
	CacheMisses atomic.Int64
}

// NewEngine creates an engine for the named checkers. Checkers disabled in
// config are skipped unless named explicitly.
func NewEngine(env Env, rootDir string, names []string, cache *Cache) (*Engine, error) {
	var checkers []Checker
	for _, name := range names {
		c, err := Get(name, env)
		if err != nil {
			return nil, err
		}
		checkers = append(checkers, c)
	}
	if len(checkers) == 0 {
		return nil, fmt.Errorf("no checkers selected")
	}
	return &Engine{
		Config:   env.Config,
		RootDir:  rootDir,
		Checkers: checkers,
		Cache:    cache,
	}, nil
}

// Enabled filters names down to the checkers config does not disable.
func Enabled(cfg config.CheckConfig, names []string) []string {
	var out []string
	for _, name := range names {
		if cc, ok := cfg.Checkers[name]; ok && cc.Enabled != nil && !*cc.Enabled {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Report is one checker's result.
type Report struct {
	Checker  string
	Files    int
	Cached   int
	Findings []Finding
	Err      error
	Duration time.Duration
}

// Count returns findings at the given severity.
func (r Report) Count(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// Failed reports whether the checker failed the task.
func (r Report) Failed() bool {
	return r.Err != nil || r.Count(SeverityCritical) > 0
}

// Collect expands a file set, dropping files excluded for checker and,
// when changed is non-nil, files not in changed.
func (e *Engine) Collect(set config.FileSet, checker string, changed map[string]bool) ([]FileInfo, error) {
	matched, err := fileset.Expand(e.RootDir, e.Config.Patterns(set))
	if err != nil {
		return nil, err
	}
	var exclude []string
	if cc, ok := e.Config.Checkers[checker]; ok {
		exclude = cc.Exclude
	}

	files := make([]FileInfo, 0, len(matched))
	for _, m := range matched {
		if changed != nil && !changed[m.Path] {
			continue
		}
		if len(exclude) > 0 && fileset.Match(exclude, m.Path) {
			continue
		}
		var size int64
		if info, serr := os.Stat(m.Abs); serr == nil {
			size = info.Size()
		}
		files = append(files, FileInfo{Path: m.Path, AbsPath: m.Abs, Size: size})
	}
	return files, nil
}

// Run executes every checker concurrently and returns one report per
// checker in engine order. A failing checker does not stop the others.
func (e *Engine) Run(ctx context.Context, changed map[string]bool) []Report {
	reports := make([]Report, len(e.Checkers))
	var g errgroup.Group
	for i, c := range e.Checkers {
		g.Go(func() error {
			reports[i] = e.runChecker(ctx, c, changed)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func (e *Engine) runChecker(ctx context.Context, c Checker, changed map[string]bool) Report {
	start := time.Now()
	rep := Report{Checker: c.Name()}
	logger := log.FromContext(ctx).With("checker", c.Name())

	seen := make(map[string]bool)
	var files []FileInfo
	for _, set := range c.Sets() {
		collected, err := e.Collect(set, c.Name(), changed)
		if err != nil {
			rep.Err = fmt.Errorf("collecting %s files: %w", set, err)
			rep.Duration = time.Since(start)
			return rep
		}
		for _, f := range collected {
			if !seen[f.Path] {
				seen[f.Path] = true
				files = append(files, f)
			}
		}
	}
	rep.Files = len(files)
	if len(files) == 0 {
		logger.Debug("no files to check")
		rep.Duration = time.Since(start)
		return rep
	}

	switch ck := c.(type) {
	case BatchChecker:
		rep.Findings, rep.Err = ck.CheckFiles(ctx, files)
	case FileChecker:
		rep.Findings, rep.Cached, rep.Err = e.checkEach(ctx, ck, files)
	default:
		rep.Err = fmt.Errorf("checker %s implements neither FileChecker nor BatchChecker", c.Name())
	}

	sortFindings(rep.Findings)
	rep.Duration = time.Since(start)
	logger.Debug("checker done", "files", rep.Files, "findings", len(rep.Findings), "err", rep.Err)
	return rep
}

// checkEach runs a per-file checker with bounded concurrency and the content cache.
func (e *Engine) checkEach(ctx context.Context, c FileChecker, files []FileInfo) ([]Finding, int, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		findings []Finding
		errs     []error
		cached   int
	)
	sem := semaphore.NewWeighted(int64(runtime.NumCPU() * 2))
	settings := e.settings(c.Name())

	for _, file := range files {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(f FileInfo) {
			defer wg.Done()
			defer sem.Release(1)

			var key string
			if e.Cache != nil && e.Cache.Enabled {
				if data, err := os.ReadFile(f.AbsPath); err == nil {
					key = e.Cache.Key(data, c.Name(), settings)
					if hit, ok := e.Cache.Get(key); ok {
						e.CacheHits.Add(1)
						for i := range hit {
							hit[i].File = f.Path
						}
						mu.Lock()
						cached++
						findings = append(findings, hit...)
						mu.Unlock()
						return
					}
					e.CacheMisses.Add(1)
				}
			}

			results, err := c.CheckFile(ctx, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f.Path, err))
				return
			}
			findings = append(findings, results...)
			if key != "" {
				if cerr := e.Cache.Put(key, results); cerr != nil {
					log.FromContext(ctx).Debug("cache write failed", "file", f.Path, "err", cerr)
				}
			}
		}(file)
	}
	wg.Wait()

	if len(errs) > 0 {
		return findings, cached, fmt.Errorf("%d file errors (first: %w)", len(errs), errs[0])
	}
	return findings, cached, nil
}

// settings is the part of config that changes checker output, for cache keys.
func (e *Engine) settings(name string) string {
	return strings.Join([]string{name, e.Config.PHPBin, e.Config.PHPCSStd}, "|")
}

func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Message < b.Message
	})
}
