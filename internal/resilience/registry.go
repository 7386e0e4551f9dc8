package resilience

import (
	"sync"
)

// Canonical resource names for the breakers this subsystem runs.
const (
	ResourcePrimaryStorage   = "primary-storage"
	ResourceExternalServices = "external-services"
)

// Registry scopes breaker state per named resource. It is constructed and
// injected per run, never ambient global state, so tests can use isolated
// instances.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// Register adds a breaker under its resource name.
func (r *Registry) Register(b *Breaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers[b.Name()] = b
}

// Get retrieves a breaker by resource name, or nil.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}

// Names returns the registered resource names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}
