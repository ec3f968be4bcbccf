// Package task defines the runnable tasks and the single entry point
// that dispatches them.
package task

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/install"
)

// Task is one runnable unit. The concrete types are Install, Check,
// Build and Watch.
type Task interface {
	Name() string
	isTask()
}

// Install runs dependency installation steps in order.
type Install struct {
	Steps []string
}

// Check runs static analysis checkers.
type Check struct {
	Checkers []string
	// Changed restricts checking to files changed relative to the target branch.
	Changed bool
	NoCache bool
}

// Build runs the build pipelines for the listed kinds.
type Build struct {
	Kinds []config.Kind
	// Changed restricts the build to packages whose sources changed.
	Changed bool
}

// Watch builds every kind, then rebuilds affected packages on change.
type Watch struct{}

func (t Install) Name() string {
	if slices.Equal(t.Steps, install.Names()) {
		return "install"
	}
	return "install:" + strings.Join(t.Steps, "+")
}

func (t Check) Name() string {
	if slices.Equal(t.Checkers, DefaultCheckers) {
		return "check"
	}
	return "check:" + strings.Join(t.Checkers, "+")
}

func (t Build) Name() string {
	if slices.Equal(t.Kinds, config.Kinds()) {
		return "build"
	}
	parts := make([]string, len(t.Kinds))
	for i, k := range t.Kinds {
		parts[i] = string(k)
	}
	return "build:" + strings.Join(parts, "+")
}

func (Watch) Name() string { return "build:watch" }

func (Install) isTask() {}
func (Check) isTask()   {}
func (Build) isTask()   {}
func (Watch) isTask()   {}

// DefaultCheckers are the checkers `check` runs.
var DefaultCheckers = []string{"phpcs", "eslint"}

// Info describes a task for listings.
type Info struct {
	Name string
	Help string
}

var catalog = []struct {
	Info
	task Task
}{
	{Info{"install", "Run all install steps"}, Install{Steps: install.Names()}},
	{Info{"install:composer", "Run composer install"}, Install{Steps: []string{install.Composer}}},
	{Info{"install:bower", "Run bower install"}, Install{Steps: []string{install.Bower}}},
	{Info{"check", "Run static code analysis (phpcs, eslint)"}, Check{Checkers: DefaultCheckers}},
	{Info{"check:phplint", "Lint PHP code"}, Check{Checkers: []string{"phplint"}}},
	{Info{"check:phpcs", "Check Drupal code style"}, Check{Checkers: []string{"phpcs"}}},
	{Info{"check:eslint", "Check JS style"}, Check{Checkers: []string{"eslint"}}},
	{Info{"check:secrets", "Scan sources for committed secrets"}, Check{Checkers: []string{"secrets"}}},
	{Info{"build", "Run all build steps"}, Build{Kinds: config.Kinds()}},
	{Info{"build:watch", "Run build steps and watch for changes"}, Watch{}},
	{Info{"build:scss", "Build SCSS files"}, Build{Kinds: []config.Kind{config.KindSCSS}}},
	{Info{"build:js", "Build JS files"}, Build{Kinds: []config.Kind{config.KindJS}}},
}

// Catalog lists every named task in display order.
func Catalog() []Info {
	out := make([]Info, len(catalog))
	for i, c := range catalog {
		out[i] = c.Info
	}
	return out
}

// Parse maps a task name such as "build:scss" to its task.
func Parse(name string) (Task, error) {
	for _, c := range catalog {
		if c.Name == name {
			return c.task, nil
		}
	}
	return nil, fmt.Errorf("unknown task %q (run 'themeforge tasks' to list tasks)", name)
}
