package template

import (
	"fmt"
	"sort"
	"sync"

	"inkwell/internal/services"
)

// Registry holds the validated templates. Populated once during startup and
// read-only afterwards.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

// Register validates the template and adds it. A duplicate name is a
// configuration error.
func (r *Registry) Register(tpl Template) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[tpl.Name]; exists {
		return services.Wrap(services.ErrConfiguration, "template", "register",
			fmt.Sprintf("template %q already registered", tpl.Name), nil)
	}
	r.templates[tpl.Name] = tpl
	return nil
}

// Resolve returns the template registered under name.
func (r *Registry) Resolve(name string) (Template, error) {
	r.mu.RLock()
	tpl, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return Template{}, services.Wrap(services.ErrNotFound, "template", "resolve",
			fmt.Sprintf("unknown template %q", name), nil)
	}
	return tpl, nil
}

// Has reports whether a template is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.templates[name]
	return ok
}

// Names returns the registered template names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered templates sorted by name.
func (r *Registry) All() []Template {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Template, 0, len(names))
	for _, name := range names {
		all = append(all, r.templates[name])
	}
	return all
}
