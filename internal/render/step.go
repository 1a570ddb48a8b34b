package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/sensor.replay/internal/pipeline"
)

// stepConfig declares which renderers a render step fans out to.
type stepConfig struct {
	Renderers []struct {
		Kind string          `json:"kind"`
		With json.RawMessage `json:"with,omitempty"`
	} `json:"renderers"`
}

// step is the "render" pipeline step: it forwards every frame to each
// configured renderer in declaration order.
type step struct {
	renderers []Renderer
}

// StepFactory returns a pipeline factory for the "render" step bound to
// a renderer registry. Binding happens here, not via globals, so two
// pipelines can carry different renderer sets.
func StepFactory(reg *Registry) pipeline.Factory {
	return func(config json.RawMessage) (pipeline.Plugin, error) {
		var cfg stepConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, fmt.Errorf("render step config: %w", err)
			}
		}
		if len(cfg.Renderers) == 0 {
			return nil, fmt.Errorf("render step declares no renderers")
		}

		s := &step{}
		for _, spec := range cfg.Renderers {
			r, err := reg.Build(spec.Kind, spec.With)
			if err != nil {
				_ = s.Close()
				return nil, err
			}
			s.renderers = append(s.renderers, r)
		}
		return s, nil
	}
}

func (s *step) Name() string { return "render" }

func (s *step) Process(_ context.Context, f *pipeline.Frame) error {
	for _, r := range s.renderers {
		if err := r.Render(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *step) Close() error {
	var errs []error
	for _, r := range s.renderers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
