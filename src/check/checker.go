package check

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/toolrun"
)

// Checker is implemented by every static analysis check. A checker also
// implements FileChecker or BatchChecker.
type Checker interface {
	Name() string
	// Sets lists the configured file sets the checker inspects.
	Sets() []config.FileSet
}

// FileChecker inspects one file at a time. Results are cached by content.
type FileChecker interface {
	Checker
	CheckFile(ctx context.Context, file FileInfo) ([]Finding, error)
}

// BatchChecker inspects all files in one tool invocation.
type BatchChecker interface {
	Checker
	CheckFiles(ctx context.Context, files []FileInfo) ([]Finding, error)
}

// Env carries configuration and the tool runner to checker constructors.
type Env struct {
	Config config.CheckConfig
	Tools  *toolrun.Runner
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func(Env) Checker{}
)

// Register adds a checker constructor to the global registry.
// Called from init() in each checker file.
func Register(name string, constructor func(Env) Checker) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("check: duplicate checker registration: %s", name))
	}
	registry[name] = constructor
}

// Get returns a new instance of the named checker.
func Get(name string, env Env) (Checker, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("check: unknown checker: %s", name)
	}
	return ctor(env), nil
}

// All returns sorted names of all registered checkers.
func All() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
