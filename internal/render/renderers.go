package render

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/banshee-data/sensor.replay/internal/monitoring"
	"github.com/banshee-data/sensor.replay/internal/pipeline"
)

// logRenderer writes a one-line summary of each frame that carries new
// data through the monitoring logger.
type logRenderer struct {
	everyFrame bool
}

type logRendererConfig struct {
	// EveryFrame logs quiet frames too, not just frames with new data.
	EveryFrame bool `json:"every_frame"`
}

func newLogRenderer(config json.RawMessage) (Renderer, error) {
	var cfg logRendererConfig
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("log renderer config: %w", err)
		}
	}
	return &logRenderer{everyFrame: cfg.EveryFrame}, nil
}

func (r *logRenderer) Render(f *pipeline.Frame) error {
	if len(f.Elapsed) == 0 && !r.everyFrame {
		return nil
	}
	names := make([]string, 0, len(f.Elapsed))
	for name := range f.Elapsed {
		names = append(names, name)
	}
	sort.Strings(names)
	total := 0
	for _, batch := range f.Elapsed {
		total += len(batch)
	}
	monitoring.Logf("frame %d t=%.3fms: %d new records from %v", f.Index, f.TimeMs, total, names)
	return nil
}

func (r *logRenderer) Close() error { return nil }

// jsonlRenderer appends one JSON object per frame to a file: the frame
// time plus the per-sensor snapshot. Downstream visualization reads
// this back instead of holding the replay open.
type jsonlRenderer struct {
	f   *os.File
	enc *json.Encoder
}

type jsonlRendererConfig struct {
	Path string `json:"path"`
}

func newJSONLRenderer(config json.RawMessage) (Renderer, error) {
	var cfg jsonlRendererConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return nil, fmt.Errorf("jsonl renderer config: %w", err)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("jsonl renderer requires a path")
	}
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("jsonl renderer: %w", err)
	}
	return &jsonlRenderer{f: f, enc: json.NewEncoder(f)}, nil
}

func (r *jsonlRenderer) Render(f *pipeline.Frame) error {
	return r.enc.Encode(map[string]any{
		"frame":    f.Index,
		"time_ms":  f.TimeMs,
		"snapshot": f.Snapshot,
	})
}

func (r *jsonlRenderer) Close() error { return r.f.Close() }
