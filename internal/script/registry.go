package script

import (
	"sort"
	"sync"
)

// Registry maps script names to script bodies. Entries are merged in and
// never removed; a later registration of the same name replaces the body.
type Registry struct {
	scripts map[string]string
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		scripts: make(map[string]string),
	}
}

// Register merges scripts into the registry, last write wins
func (r *Registry) Register(scripts map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, body := range scripts {
		r.scripts[name] = body
	}
}

// RegisterOne registers a single script
func (r *Registry) RegisterOne(name, body string) {
	r.Register(map[string]string{name: body})
}

// Get returns the body registered under name
func (r *Registry) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	body, ok := r.scripts[name]
	return body, ok
}

// Names returns all registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scripts))
	for name := range r.scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the registry contents
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.scripts))
	for name, body := range r.scripts {
		out[name] = body
	}
	return out
}

// Len returns the number of registered scripts
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scripts)
}
