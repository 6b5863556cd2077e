package cliexec

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Adapter)
)

// Register adds an adapter to the global registry. Called from adapter
// init() functions; later registrations with the same name replace earlier
// ones, which lets tests install fakes.
func Register(name string, a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = a
}

// Get returns the adapter registered under name.
func Get(name string) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	a, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown adapter %q (registered: %v)", name, names())
	}
	return a, nil
}

// Names returns the registered adapter names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return names()
}

func names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
