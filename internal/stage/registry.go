package stage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"inkwell/internal/services"
)

// Registry resolves stage identifiers to capabilities. It is populated during
// startup and read-only afterwards.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{capabilities: make(map[string]Capability)}
}

// Register adds a capability. Registering a duplicate or empty identifier is a
// configuration error.
func (r *Registry) Register(capability Capability) error {
	if capability == nil {
		return services.Wrap(services.ErrConfiguration, "stage", "register", "capability must not be nil", nil)
	}
	id := capability.ID()
	if id == "" {
		return services.Wrap(services.ErrConfiguration, "stage", "register", "capability id must not be empty", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.capabilities[id]; exists {
		return services.Wrap(services.ErrConfiguration, "stage", "register",
			fmt.Sprintf("stage %q already registered", id), nil)
	}
	r.capabilities[id] = capability
	return nil
}

// Resolve returns the capability registered under id.
func (r *Registry) Resolve(id string) (Capability, error) {
	r.mu.RLock()
	capability, ok := r.capabilities[id]
	r.mu.RUnlock()
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "stage", "resolve",
			fmt.Sprintf("unknown stage %q", id), nil)
	}
	return capability, nil
}

// Has reports whether a capability is registered under id.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.capabilities[id]
	return ok
}

// IDs returns all registered stage identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.capabilities))
	for id := range r.capabilities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HealthChecks runs every capability's health check and returns the reports
// sorted by stage identifier.
func (r *Registry) HealthChecks(ctx context.Context) []Health {
	ids := r.IDs()
	reports := make([]Health, 0, len(ids))
	for _, id := range ids {
		r.mu.RLock()
		capability := r.capabilities[id]
		r.mu.RUnlock()
		reports = append(reports, capability.HealthCheck(ctx))
	}
	return reports
}
