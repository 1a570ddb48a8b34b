// Package pipeline wires declared processing steps into a replay run: a
// registry of step factories, case/template configuration, and a runner
// that drives a frame clock over a sensor stream manager.
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/banshee-data/sensor.replay/internal/replay"
)

// Frame is one tick of the replay clock, handed to every step in order.
type Frame struct {
	// Index is the zero-based frame number within the run.
	Index int
	// TimeMs is the frame's world time.
	TimeMs float64
	// Elapsed holds the records that newly elapsed since the previous
	// frame, per sensor; sensors with nothing new are absent.
	Elapsed map[string][]replay.Record
	// Snapshot holds the per-sensor state at TimeMs under the run's
	// matching strategy. Every registered sensor has an entry; sensors
	// with no acceptable match map to nil.
	Snapshot map[string]replay.Record
}

// Plugin is one processing step. Steps are built once per run from
// their typed configuration and receive every frame in sequence.
type Plugin interface {
	// Name identifies the step in logs and run summaries.
	Name() string
	// Process handles one frame. An error aborts the run.
	Process(ctx context.Context, f *Frame) error
	// Close releases step resources after the last frame (or on abort).
	Close() error
}

// Factory builds a plugin from its raw JSON configuration block.
type Factory func(config json.RawMessage) (Plugin, error)
