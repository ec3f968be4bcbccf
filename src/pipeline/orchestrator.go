package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/fileset"
	"golang.org/x/sync/errgroup"
)

// RunAll runs every package through c concurrently and merges the results.
// Every launched pipeline is awaited: a failing package never cancels its
// siblings. Results keep configuration order.
func (r *Runner) RunAll(ctx context.Context, pkgs []config.Package, c Capability) *Outcome {
	start := time.Now()
	results := make([]*Result, len(pkgs))

	var g errgroup.Group
	g.SetLimit(r.concurrency())
	for i, pkg := range pkgs {
		g.Go(func() error {
			results[i] = r.Run(ctx, pkg, c)
			return nil
		})
	}
	_ = g.Wait()

	out := &Outcome{
		Kind:     c.Name(),
		Results:  results,
		Success:  true,
		Duration: time.Since(start),
	}
	for _, res := range results {
		if !res.Success {
			out.Success = false
		}
	}

	log.FromContext(ctx).Info("run finished",
		"kind", out.Kind,
		"packages", len(pkgs),
		"failed", out.Failed(),
		"elapsed", out.Duration.Round(time.Millisecond))
	return out
}

// Affected returns the packages whose sources match at least one of the
// changed root-relative paths, preserving configuration order.
func Affected(pkgs []config.Package, changed []string) []config.Package {
	var out []config.Package
	for _, pkg := range pkgs {
		for _, f := range changed {
			if fileset.Match(pkg.Sources, f) {
				out = append(out, pkg)
				break
			}
		}
	}
	return out
}
