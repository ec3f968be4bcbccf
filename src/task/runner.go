package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/sofmeright/themeforge/src/capability"
	"github.com/sofmeright/themeforge/src/check"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/delta"
	"github.com/sofmeright/themeforge/src/fileset"
	"github.com/sofmeright/themeforge/src/install"
	"github.com/sofmeright/themeforge/src/output"
	"github.com/sofmeright/themeforge/src/pipeline"
	"github.com/sofmeright/themeforge/src/toolrun"
	"github.com/sofmeright/themeforge/src/watch"
	"golang.org/x/sync/errgroup"

	_ "github.com/sofmeright/themeforge/src/check/checkers" // register checkers
)

// ErrFailed marks a task that ran to completion but reported failures.
var ErrFailed = errors.New("task failed")

// Runner dispatches tasks against one immutable configuration.
type Runner struct {
	Config *config.Config
	Root   string
	Out    io.Writer
	Color  bool
	// CI enables JUnit reports and GitLab section markers.
	CI bool
}

// NewRunner creates a runner. Output goes to out.
func NewRunner(cfg *config.Config, root string, out io.Writer) *Runner {
	return &Runner{
		Config: cfg,
		Root:   root,
		Out:    out,
		Color:  output.UseColor(),
		CI:     output.IsCI(),
	}
}

// Run executes t. Failing constituents of a composite task do not stop
// the others; the returned error wraps ErrFailed when any failed.
func (r *Runner) Run(ctx context.Context, t Task) error {
	ctx = log.WithContext(ctx, log.FromContext(ctx).With("task", t.Name()))
	switch t := t.(type) {
	case Install:
		return r.install(ctx, t)
	case Check:
		return r.check(ctx, t)
	case Build:
		return r.build(ctx, t)
	case Watch:
		return r.watch(ctx)
	default:
		return fmt.Errorf("unsupported task %T", t)
	}
}

// RunAll runs tasks in order, continuing past failures, and joins the errors.
func (r *Runner) RunAll(ctx context.Context, tasks []Task) error {
	var errs []error
	for _, t := range tasks {
		if err := r.Run(ctx, t); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) tools(stream bool) *toolrun.Runner {
	tr := toolrun.New(r.Root, r.Config.Tools)
	if stream {
		tr.Stream = r.Out
	}
	return tr
}

func (r *Runner) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.Root, p)
}

func (r *Runner) install(ctx context.Context, t Install) error {
	output.SectionStart(r.Out, "themeforge_install", "Install")
	defer output.SectionEnd(r.Out, "themeforge_install")

	inst := &install.Installer{Config: r.Config.Install, Tools: r.tools(true)}
	results := make([]install.Result, 0, len(t.Steps))
	failed := 0
	for _, step := range t.Steps {
		res := inst.Run(ctx, step)
		if res.Err != nil {
			failed++
		}
		results = append(results, res)
	}
	output.InstallReport(r.Out, results, r.Color)
	if failed > 0 {
		return fmt.Errorf("%d install step(s) failed: %w", failed, ErrFailed)
	}
	return nil
}

func (r *Runner) check(ctx context.Context, t Check) error {
	output.SectionStart(r.Out, "themeforge_check", "Check")
	defer output.SectionEnd(r.Out, "themeforge_check")

	names := t.Checkers
	if t.Name() == "check" {
		names = check.Enabled(r.Config.Check, names)
	}
	if len(names) == 0 {
		log.FromContext(ctx).Warn("all checkers disabled by configuration")
		return nil
	}

	cache := &check.Cache{Dir: r.abs(r.Config.Check.CacheDir), Enabled: !t.NoCache}
	env := check.Env{Config: r.Config.Check, Tools: r.tools(false)}
	engine, err := check.NewEngine(env, r.Root, names, cache)
	if err != nil {
		return err
	}

	var changed map[string]bool
	if t.Changed {
		d := &delta.Delta{RootDir: r.Root, TargetBranch: r.Config.Check.TargetBranch}
		if changed, err = d.Changed(ctx); err != nil {
			return fmt.Errorf("computing changed files: %w", err)
		}
	}

	reports := engine.Run(ctx, changed)
	output.CheckReport(r.Out, reports, r.Color)
	log.FromContext(ctx).Debug("check cache", "hits", engine.CacheHits.Load(), "misses", engine.CacheMisses.Load())

	if r.CI {
		if err := output.WriteJUnit(r.abs(r.Config.Build.ReportDir), "check.xml", output.CheckJUnit(reports)); err != nil {
			log.FromContext(ctx).Warn("writing junit report failed", "err", err)
		}
	}

	failed := 0
	for _, rep := range reports {
		if rep.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d checker(s) failed: %w", failed, ErrFailed)
	}
	return nil
}

// plan lists and validates the packages for every kind before anything runs,
// so a configuration error aborts the whole build.
func (r *Runner) plan(ctx context.Context, kinds []config.Kind) (map[config.Kind][]config.Package, error) {
	warnings, err := config.Validate(r.Config)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.FromContext(ctx).Warn(w)
	}

	plan := make(map[config.Kind][]config.Package, len(kinds))
	for _, kind := range kinds {
		pkgs, err := r.Config.ListPackages(kind)
		if err != nil {
			return nil, err
		}
		plan[kind] = pkgs
	}
	return plan, nil
}

func (r *Runner) build(ctx context.Context, t Build) error {
	plan, err := r.plan(ctx, t.Kinds)
	if err != nil {
		return err
	}

	if t.Changed {
		d := &delta.Delta{RootDir: r.Root, TargetBranch: r.Config.Check.TargetBranch}
		changed, err := d.Changed(ctx)
		if err != nil {
			return fmt.Errorf("computing changed files: %w", err)
		}
		if changed != nil {
			paths := delta.Paths(changed)
			for kind, pkgs := range plan {
				plan[kind] = pipeline.Affected(pkgs, paths)
			}
		}
	}

	outcomes, err := r.runKinds(ctx, t.Kinds, plan)
	if err != nil {
		return err
	}
	return r.report(ctx, outcomes)
}

// runKinds runs each kind's packages concurrently and returns outcomes in
// kinds order.
func (r *Runner) runKinds(ctx context.Context, kinds []config.Kind, plan map[config.Kind][]config.Package) ([]*pipeline.Outcome, error) {
	env := capability.Env{Tools: r.tools(false), SassBin: r.Config.Build.SassBin}
	runner := pipeline.NewRunner(r.Root, r.Config.Build.Concurrency)

	caps := make([]pipeline.Capability, len(kinds))
	for i, kind := range kinds {
		c, err := capability.Get(string(kind), env)
		if err != nil {
			return nil, err
		}
		caps[i] = c
	}

	outcomes := make([]*pipeline.Outcome, len(kinds))
	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			outcomes[i] = runner.RunAll(ctx, plan[kind], caps[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, nil
}

func (r *Runner) report(ctx context.Context, outcomes []*pipeline.Outcome) error {
	output.SectionStart(r.Out, "themeforge_build", "Build")
	failed := 0
	for _, o := range outcomes {
		output.BuildReport(r.Out, o, r.Color)
		failed += o.Failed()
	}
	output.SectionEnd(r.Out, "themeforge_build")

	if r.CI {
		if err := output.WriteJUnit(r.abs(r.Config.Build.ReportDir), "build.xml", output.BuildJUnit(outcomes)); err != nil {
			log.FromContext(ctx).Warn("writing junit report failed", "err", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d package(s) failed: %w", failed, ErrFailed)
	}
	return nil
}

func (r *Runner) watch(ctx context.Context) error {
	kinds := config.Kinds()
	plan, err := r.plan(ctx, kinds)
	if err != nil {
		return err
	}
	logger := log.FromContext(ctx)

	outcomes, err := r.runKinds(ctx, kinds, plan)
	if err != nil {
		return err
	}
	if err := r.report(ctx, outcomes); err != nil {
		logger.Warn("initial build failed, watching anyway", "err", err)
	}

	var patterns []string
	for _, kind := range kinds {
		for _, pkg := range plan[kind] {
			include, _ := fileset.Split(pkg.Sources)
			patterns = append(patterns, include...)
		}
	}

	w := &watch.Watcher{
		Root:     r.Root,
		Patterns: patterns,
		OnChange: func(ctx context.Context, changed []string) {
			subset := make(map[config.Kind][]config.Package, len(kinds))
			var active []config.Kind
			for _, kind := range kinds {
				if pkgs := pipeline.Affected(plan[kind], changed); len(pkgs) > 0 {
					subset[kind] = pkgs
					active = append(active, kind)
				}
			}
			if len(active) == 0 {
				return
			}
			logger.Info("rebuilding", "changed", len(changed), "kinds", active)
			outcomes, err := r.runKinds(ctx, active, subset)
			if err != nil {
				logger.Error("rebuild failed", "err", err)
				return
			}
			if err := r.report(ctx, outcomes); err != nil {
				logger.Warn("rebuild finished with failures", "err", err)
			}
		},
	}
	return w.Run(ctx)
}
