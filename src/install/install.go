// Package install runs the dependency installation steps (composer, bower).
package install

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/toolrun"
)

// Step names.
const (
	Composer = "composer"
	Bower    = "bower"
)

// Steps returns the configured steps keyed by name.
func Steps(cfg config.InstallConfig) map[string]config.InstallStep {
	return map[string]config.InstallStep{
		Composer: cfg.Composer,
		Bower:    cfg.Bower,
	}
}

// Names returns the step names in the order `install` runs them.
func Names() []string {
	return []string{Composer, Bower}
}

// Result records one installer run.
type Result struct {
	Step     string
	Command  string
	Dir      string
	Err      error
	Duration time.Duration
}

// Installer runs install steps through a tool runner.
type Installer struct {
	Config config.InstallConfig
	Tools  *toolrun.Runner
}

// Run executes the named step. A non-zero exit is reported as a
// *toolrun.ToolInvocationError in Result.Err.
func (i *Installer) Run(ctx context.Context, name string) Result {
	start := time.Now()
	step, ok := Steps(i.Config)[name]
	if !ok {
		known := Names()
		sort.Strings(known)
		return Result{Step: name, Err: fmt.Errorf("unknown install step %q (known: %v)", name, known)}
	}
	res := Result{Step: name, Command: step.Command, Dir: step.Dir}

	cmd, err := toolrun.Parse(step.Command)
	if err != nil {
		res.Err = &toolrun.ToolInvocationError{Tool: name, ExitCode: -1, Err: err}
		return res
	}
	cmd.Dir = step.Dir

	logger := log.FromContext(ctx).With("step", name)
	logger.Info("installing", "cmd", cmd.String(), "dir", step.Dir)
	_, res.Err = i.Tools.Run(ctx, cmd)
	res.Duration = time.Since(start)
	if res.Err != nil {
		logger.Error("install failed", "err", res.Err)
	}
	return res
}
