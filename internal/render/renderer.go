// Package render turns replay frames into output artifacts. Renderers
// are instantiated through an explicit factory registry keyed by kind —
// configuration names a kind, never an import path, so there is no
// reflection-based loading.
package render

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/banshee-data/sensor.replay/internal/pipeline"
)

// Renderer consumes frames and produces some visible artifact. What a
// renderer does with a matched record is its own business; the engine
// only guarantees the frame contract.
type Renderer interface {
	// Render handles one frame.
	Render(f *pipeline.Frame) error
	// Close flushes and releases the renderer's sink.
	Close() error
}

// Factory builds a renderer from its raw JSON configuration.
type Factory func(config json.RawMessage) (Renderer, error)

// Registry maps renderer kinds to factories. Like the pipeline
// registry, it is an explicit injected object with no global state.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with the built-in
// renderers (log, jsonl).
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	// Built-ins cannot collide on an empty map.
	_ = r.Register("log", newLogRenderer)
	_ = r.Register("jsonl", newJSONLRenderer)
	return r
}

// Register adds a factory under a unique renderer kind.
func (r *Registry) Register(kind string, f Factory) error {
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("renderer kind %q already registered", kind)
	}
	if f == nil {
		return fmt.Errorf("renderer kind %q: nil factory", kind)
	}
	r.factories[kind] = f
	return nil
}

// Build instantiates a renderer of the given kind.
func (r *Registry) Build(kind string, config json.RawMessage) (Renderer, error) {
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown renderer kind %q (registered: %v)", kind, r.Kinds())
	}
	ren, err := f(config)
	if err != nil {
		return nil, fmt.Errorf("build renderer %q: %w", kind, err)
	}
	return ren, nil
}

// Kinds returns the registered renderer kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
