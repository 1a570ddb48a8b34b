package pipeline

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/banshee-data/sensor.replay/internal/monitoring"
	"github.com/banshee-data/sensor.replay/internal/replay"
	"github.com/banshee-data/sensor.replay/internal/timeutil"
	"github.com/banshee-data/sensor.replay/internal/units"
)

// RunSummary reports what a completed run did.
type RunSummary struct {
	Frames        int     `json:"frames"`
	RecordsPlayed int     `json:"records_played"`
	StartMs       float64 `json:"start_ms"`
	EndMs         float64 `json:"end_ms"`
	FPS           float64 `json:"fps"`
}

// Runner executes one resolved case: it owns the manager built from the
// case's sensors, the plugin chain built from the registry, and the
// frame clock that drives both.
type Runner struct {
	cfg      *CaseConfig
	manager  *replay.Manager
	steps    []Plugin
	strategy replay.Strategy
	clock    timeutil.Clock
}

// NewRunner resolves a case against a registry: registers every sensor,
// builds every step, and validates the strategy. baseDir anchors
// relative sensor paths (normally the case file's directory).
func NewRunner(cfg *CaseConfig, reg *Registry, baseDir string, clock timeutil.Clock) (*Runner, error) {
	if len(cfg.Sensors) == 0 {
		return nil, fmt.Errorf("case declares no sensors")
	}

	strategy := replay.StrategyForward
	if cfg.Strategy != nil {
		var err error
		strategy, err = replay.ParseStrategy(*cfg.Strategy)
		if err != nil {
			return nil, err
		}
	}

	manager := replay.NewManager()
	for _, spec := range cfg.Sensors {
		var opts []replay.StreamOption
		if spec.TimeOffsetMs != nil {
			opts = append(opts, replay.WithTimeOffset(*spec.TimeOffsetMs))
		}
		if spec.ToleranceMs != nil {
			opts = append(opts, replay.WithTolerance(*spec.ToleranceMs))
		}
		path := spec.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if err := manager.Register(spec.Name, path, opts...); err != nil {
			return nil, err
		}
	}

	steps := make([]Plugin, 0, len(cfg.Steps))
	for _, spec := range cfg.Steps {
		p, err := reg.Build(spec.Uses, spec.With)
		if err != nil {
			closeSteps(steps)
			return nil, err
		}
		steps = append(steps, p)
	}

	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{
		cfg:      cfg,
		manager:  manager,
		steps:    steps,
		strategy: strategy,
		clock:    clock,
	}, nil
}

// Manager exposes the runner's stream manager for callers that serve
// queries against the same data (the HTTP API does this).
func (r *Runner) Manager() *replay.Manager { return r.manager }

// Run drives the frame clock from the case's start to its end, calling
// every step for every frame. The context is checked between frames;
// cancellation aborts cleanly. Steps are closed on all exit paths.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	defer closeSteps(r.steps)

	startMs, endMs, err := r.timeWindow()
	if err != nil {
		return nil, err
	}

	fps := 10.0
	if r.cfg.FPS != nil {
		fps = *r.cfg.FPS
	}
	if fps <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %g", fps)
	}
	frameMs := units.FrameIntervalMs(fps)

	realtime := r.cfg.Realtime != nil && *r.cfg.Realtime
	speed := 1.0
	if r.cfg.Speed != nil && *r.cfg.Speed > 0 {
		speed = *r.cfg.Speed
	}

	var ticker timeutil.Ticker
	if realtime {
		ticker = r.clock.NewTicker(units.Duration(frameMs / speed))
		defer ticker.Stop()
	}

	playback := r.manager.Playback()
	summary := &RunSummary{StartMs: startMs, FPS: fps}

	for tMs := startMs; tMs <= endMs+1e-9; tMs += frameMs {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}
		if ticker != nil {
			select {
			case <-ticker.C():
			case <-ctx.Done():
				return summary, ctx.Err()
			}
		}

		elapsed := playback.Advance(tMs)
		snapshot, err := r.manager.AllSensorsAt(tMs, r.strategy)
		if err != nil {
			return summary, err
		}

		frame := &Frame{
			Index:    summary.Frames,
			TimeMs:   tMs,
			Elapsed:  elapsed,
			Snapshot: snapshot,
		}
		for _, step := range r.steps {
			if err := step.Process(ctx, frame); err != nil {
				return summary, fmt.Errorf("frame %d step %q: %w", frame.Index, step.Name(), err)
			}
		}

		summary.Frames++
		for _, batch := range elapsed {
			summary.RecordsPlayed += len(batch)
		}
		summary.EndMs = tMs
	}

	return summary, nil
}

// timeWindow resolves the run's world-time window from the case, falling
// back to the union of the streams' native ranges. The fallback carries
// the same offset caveat as Manager.GlobalTimeRange.
func (r *Runner) timeWindow() (float64, float64, error) {
	startMs, endMs := math.Inf(-1), math.Inf(1)
	if r.cfg.StartMs != nil {
		startMs = *r.cfg.StartMs
	}
	if r.cfg.EndMs != nil {
		endMs = *r.cfg.EndMs
	}
	if !math.IsInf(startMs, -1) && !math.IsInf(endMs, 1) {
		if endMs < startMs {
			return 0, 0, fmt.Errorf("case end %g precedes start %g", endMs, startMs)
		}
		return startMs, endMs, nil
	}

	lo, hi, ok := r.manager.GlobalTimeRange()
	if !ok {
		return 0, 0, fmt.Errorf("no stream data and no explicit time window")
	}
	if math.IsInf(startMs, -1) {
		startMs = lo
	}
	if math.IsInf(endMs, 1) {
		endMs = hi
	}
	if endMs < startMs {
		return 0, 0, fmt.Errorf("case end %g precedes start %g", endMs, startMs)
	}
	return startMs, endMs, nil
}

func closeSteps(steps []Plugin) {
	for _, s := range steps {
		if err := s.Close(); err != nil {
			monitoring.Logf("pipeline: closing step %q: %v", s.Name(), err)
		}
	}
}
