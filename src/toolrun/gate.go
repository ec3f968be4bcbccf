package toolrun

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
)

var versionRe = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?`)

// Verify checks tool against its configured semver constraint, once per runner.
// Tools without a gate always pass.
func (r *Runner) Verify(ctx context.Context, tool string) error {
	gate, ok := r.Gates[tool]
	if !ok {
		return nil
	}

	r.mu.Lock()
	if err, done := r.verified[tool]; done {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	err := r.checkVersion(ctx, tool, gate.Bin, gate.VersionArgs, gate.Constraint)

	r.mu.Lock()
	if r.verified == nil {
		r.verified = make(map[string]error)
	}
	r.verified[tool] = err
	r.mu.Unlock()
	return err
}

func (r *Runner) checkVersion(ctx context.Context, tool, bin string, args []string, constraint string) error {
	if bin == "" {
		bin = tool
	}
	if len(args) == 0 {
		args = []string{"--version"}
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return &ToolInvocationError{Tool: tool, ExitCode: -1, Err: fmt.Errorf("invalid constraint %q: %w", constraint, err)}
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Resolve(bin), args...)
	cmd.Dir = r.root()
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return &ToolInvocationError{Tool: tool, Args: args, ExitCode: -1, Err: fmt.Errorf("probing version: %w", err)}
	}

	v, err := ParseVersion(out.String())
	if err != nil {
		return &ToolInvocationError{Tool: tool, Args: args, ExitCode: -1, Err: err}
	}
	if !c.Check(v) {
		return &ToolInvocationError{Tool: tool, ExitCode: -1, Err: fmt.Errorf("version %s does not satisfy %q", v, constraint)}
	}

	log.FromContext(ctx).Debug("tool version ok", "tool", tool, "version", v.String(), "constraint", constraint)
	return nil
}

// ParseVersion extracts the first version number from tool output such as
// "Composer version 2.7.1 2024-02-09".
func ParseVersion(output string) (*semver.Version, error) {
	m := versionRe.FindString(output)
	if m == "" {
		return nil, fmt.Errorf("no version number in %q", output)
	}
	return semver.NewVersion(m)
}
