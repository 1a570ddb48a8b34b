package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Registry maps step kinds to plugin factories. It is an explicit object
// passed to whoever builds runs — there is no package-level registration
// and no dynamic loading by import path, so tests and embedders control
// exactly which steps exist.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under a unique step kind. Registering a kind
// twice is a configuration error.
func (r *Registry) Register(kind string, f Factory) error {
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("step kind %q already registered", kind)
	}
	if f == nil {
		return fmt.Errorf("step kind %q: nil factory", kind)
	}
	r.factories[kind] = f
	return nil
}

// Build instantiates a plugin of the given kind with its configuration.
func (r *Registry) Build(kind string, config json.RawMessage) (Plugin, error) {
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown step kind %q (registered: %v)", kind, r.Kinds())
	}
	p, err := f(config)
	if err != nil {
		return nil, fmt.Errorf("build step %q: %w", kind, err)
	}
	return p, nil
}

// Kinds returns the registered step kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
