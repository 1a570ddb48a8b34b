package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/sensor.replay/internal/pipeline"
)

// stepConfig declares where the archive step writes.
type stepConfig struct {
	Path     string `json:"path"`
	CasePath string `json:"case_path,omitempty"`
}

// step is the "archive" pipeline step: it accumulates the run's frame
// and record counts and writes a run summary row when the pipeline
// closes it. Stream archiving is separate (Store.SaveStream) since
// streams exist before any run does.
type step struct {
	store    *Store
	runID    string
	casePath string

	frames  int
	records int
	startMs float64
	endMs   float64
	fps     float64
	seen    bool
}

// StepFactory returns a pipeline factory for the "archive" step.
func StepFactory() pipeline.Factory {
	return func(config json.RawMessage) (pipeline.Plugin, error) {
		var cfg stepConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, fmt.Errorf("archive step config: %w", err)
			}
		}
		if cfg.Path == "" {
			return nil, fmt.Errorf("archive step requires a database path")
		}
		store, err := Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &step{
			store:    store,
			runID:    uuid.NewString(),
			casePath: cfg.CasePath,
		}, nil
	}
}

func (s *step) Name() string { return "archive" }

func (s *step) Process(_ context.Context, f *pipeline.Frame) error {
	if !s.seen {
		s.startMs = f.TimeMs
		s.seen = true
	} else if s.frames == 1 && f.TimeMs > s.startMs {
		s.fps = 1000 / (f.TimeMs - s.startMs)
	}
	s.endMs = f.TimeMs
	s.frames++
	for _, batch := range f.Elapsed {
		s.records += len(batch)
	}
	return nil
}

// Close writes the run summary and releases the store. A run that saw
// no frames is still recorded; an aborted run records what it got to.
func (s *step) Close() error {
	defer s.store.Close()
	return s.store.RecordRun(RunRecord{
		RunID:         s.runID,
		CasePath:      s.casePath,
		Frames:        s.frames,
		RecordsPlayed: s.records,
		StartMs:       s.startMs,
		EndMs:         s.endMs,
		FPS:           s.fps,
	})
}
