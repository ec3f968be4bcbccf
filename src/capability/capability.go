// Package capability provides the build capabilities ("scss", "js") that
// turn a package into ordered pipeline stages. Compilation, prefixing and
// minification are delegated to dart-sass and esbuild.
package capability

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sofmeright/themeforge/src/pipeline"
	"github.com/sofmeright/themeforge/src/toolrun"
)

// Env carries what capabilities need to reach external tools.
type Env struct {
	Tools   *toolrun.Runner
	SassBin string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func(Env) pipeline.Capability{}
)

// Register adds a capability constructor to the global registry.
// Called from init() in each capability file.
func Register(name string, constructor func(Env) pipeline.Capability) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("capability: duplicate registration: %s", name))
	}
	registry[name] = constructor
}

// Get returns a new instance of the named capability.
func Get(name string, env Env) (pipeline.Capability, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("capability: unknown capability: %s", name)
	}
	return ctor(env), nil
}

// All returns sorted names of all registered capabilities.
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
