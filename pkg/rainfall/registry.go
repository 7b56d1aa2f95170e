package rainfall

import (
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Provider)
)

// Register registers a rainfall provider.
func Register(p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if p == nil {
		panic("rainfall: Register provider is nil")
	}
	if _, dup := registry[p.Key()]; dup {
		panic("rainfall: Register called twice for provider " + p.Key())
	}
	registry[p.Key()] = p
}

// Get returns a rainfall provider by key.
func Get(key string) (Provider, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[key]
	return p, ok
}

// List returns a sorted list of registered rainfall provider keys.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var keys []string
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetAll returns all registered rainfall providers.
func GetAll() []Provider {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var providers []Provider
	for _, p := range registry {
		providers = append(providers, p)
	}
	return providers
}
