// Package toolrun invokes external tools (sass, php, phpcs, eslint,
// composer, bower) and surfaces their exit status as ToolInvocationError.
package toolrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-shellwords"
	"github.com/sofmeright/themeforge/src/config"
)

// ToolInvocationError reports an external tool that could not run or
// exited non-zero. ExitCode is -1 when the process never ran.
type ToolInvocationError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolInvocationError) Error() string {
	if e.ExitCode >= 0 {
		msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
		if e.Output != "" {
			msg += ": " + e.Output
		}
		return msg
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// Command is a single process invocation.
type Command struct {
	Name  string
	Args  []string
	Dir   string // working directory relative to the runner root
	Stdin []byte
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Parse splits a command line into a Command using shell word rules.
// No variable or glob expansion is performed.
func Parse(line string) (Command, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return Command{}, fmt.Errorf("parsing command %q: %w", line, err)
	}
	if len(words) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	return Command{Name: words[0], Args: words[1:]}, nil
}

// Result captures a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner executes commands relative to a project root.
// It is safe for concurrent use.
type Runner struct {
	Root  string
	Gates map[string]config.ToolConfig

	// Stream, when set, receives process output as it is produced.
	Stream io.Writer

	mu       sync.Mutex
	verified map[string]error
}

// New creates a runner for root with optional version gates.
func New(root string, gates map[string]config.ToolConfig) *Runner {
	return &Runner{Root: root, Gates: gates}
}

// Resolve returns the executable path for name. Names containing a path
// separator are taken relative to the root; bare names are looked up in PATH.
func (r *Runner) Resolve(name string) string {
	if strings.ContainsAny(name, `/\`) && !filepath.IsAbs(name) {
		return filepath.Join(r.root(), filepath.FromSlash(name))
	}
	return name
}

// Run executes cmd. On failure the returned Result is still populated
// with whatever the process wrote, and the error is a *ToolInvocationError.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	tool := filepath.Base(cmd.Name)
	if err := r.Verify(ctx, tool); err != nil {
		return &Result{ExitCode: -1}, err
	}

	dir := r.root()
	if cmd.Dir != "" {
		dir = filepath.Join(dir, filepath.FromSlash(cmd.Dir))
	}

	log.FromContext(ctx).Debug("exec", "cmd", cmd.String(), "dir", dir)

	start := time.Now()
	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, r.Resolve(cmd.Name), cmd.Args...)
	c.Dir = dir
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}
	if r.Stream != nil {
		c.Stdout = io.MultiWriter(&stdout, r.Stream)
		c.Stderr = io.MultiWriter(&stderr, r.Stream)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	err := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	tie := &ToolInvocationError{Tool: tool, Args: cmd.Args, ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		tie.ExitCode = exitErr.ExitCode()
		tie.Output = firstLines(res.Stderr, res.Stdout)
	}
	res.ExitCode = tie.ExitCode
	return res, tie
}

func (r *Runner) root() string {
	if r.Root == "" {
		return "."
	}
	return r.Root
}

// firstLines returns a short trimmed excerpt of the first non-empty stream.
func firstLines(streams ...[]byte) string {
	const maxLines = 5
	for _, s := range streams {
		text := strings.TrimSpace(string(s))
		if text == "" {
			continue
		}
		lines := strings.Split(text, "\n")
		if len(lines) > maxLines {
			lines = append(lines[:maxLines], "...")
		}
		return strings.Join(lines, "\n")
	}
	return ""
}
