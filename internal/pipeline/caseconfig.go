package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/sensor.replay/internal/security"
)

// SensorSpec declares one stream registration in a case.
type SensorSpec struct {
	Name         string   `json:"name"`
	Path         string   `json:"path"`
	TimeOffsetMs *float64 `json:"time_offset_ms,omitempty"`
	ToleranceMs  *float64 `json:"tolerance_ms,omitempty"`
}

// StepSpec declares one pipeline step: the registered kind plus its
// typed configuration block, decoded by the step's own factory.
type StepSpec struct {
	Uses string          `json:"uses"`
	With json.RawMessage `json:"with,omitempty"`
}

// CaseConfig declares a replay run. A case may name a template file
// supplying defaults; fields set in the case override the template.
// Optional scalars are pointers so an omitted field is distinguishable
// from a zero value, and partial configs stay safe.
type CaseConfig struct {
	// Template is a path to another case file providing defaults,
	// resolved relative to the referencing file.
	Template string `json:"template,omitempty"`

	Strategy *string  `json:"strategy,omitempty"` // forward|backward|nearest, default forward
	FPS      *float64 `json:"fps,omitempty"`      // frame clock rate, default 10
	StartMs  *float64 `json:"start_ms,omitempty"` // default: global stream range
	EndMs    *float64 `json:"end_ms,omitempty"`
	Realtime *bool    `json:"realtime,omitempty"` // pace frames against the wall clock
	Speed    *float64 `json:"speed,omitempty"`    // realtime speed multiplier, default 1

	Sensors []SensorSpec `json:"sensors,omitempty"`
	Steps   []StepSpec   `json:"steps,omitempty"`
}

// maxCaseFileSize bounds how much JSON a case file may contain.
const maxCaseFileSize = 1 * 1024 * 1024

// maxTemplateDepth bounds template chains so a cycle fails instead of
// recursing forever.
const maxTemplateDepth = 8

// LoadCase reads a case file and resolves its template chain. Sensor
// lists merge by name (case entries override template entries of the
// same name, new names append); a non-empty case step list replaces the
// template's steps outright, since step order is the pipeline.
//
// Template references are confined to the referencing file's directory
// tree. Case content may come from less trusted places than the -case
// flag itself, so an include cannot climb out and read arbitrary files.
func LoadCase(path string) (*CaseConfig, error) {
	return loadCase(path, maxTemplateDepth)
}

func loadCase(path string, depth int) (*CaseConfig, error) {
	if depth == 0 {
		return nil, fmt.Errorf("template chain too deep at %s", path)
	}

	cfg, err := readCaseFile(path)
	if err != nil {
		return nil, err
	}
	if cfg.Template == "" {
		return cfg, nil
	}

	templatePath := cfg.Template
	if !filepath.IsAbs(templatePath) {
		templatePath = filepath.Join(filepath.Dir(path), templatePath)
	}
	if err := security.CheckWithinDir(templatePath, filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("template of %s: %w", path, err)
	}
	base, err := loadCase(templatePath, depth-1)
	if err != nil {
		return nil, fmt.Errorf("template of %s: %w", path, err)
	}
	merged := mergeCase(base, cfg)
	return merged, nil
}

func readCaseFile(path string) (*CaseConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("case file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat case file: %w", err)
	}
	if info.Size() > maxCaseFileSize {
		return nil, fmt.Errorf("case file too large: %d bytes (max %d)", info.Size(), maxCaseFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read case file: %w", err)
	}
	var cfg CaseConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse case file %s: %w", cleanPath, err)
	}
	return &cfg, nil
}

// mergeCase overlays a case onto its template's resolved config.
func mergeCase(base, over *CaseConfig) *CaseConfig {
	out := *base
	out.Template = ""

	if over.Strategy != nil {
		out.Strategy = over.Strategy
	}
	if over.FPS != nil {
		out.FPS = over.FPS
	}
	if over.StartMs != nil {
		out.StartMs = over.StartMs
	}
	if over.EndMs != nil {
		out.EndMs = over.EndMs
	}
	if over.Realtime != nil {
		out.Realtime = over.Realtime
	}
	if over.Speed != nil {
		out.Speed = over.Speed
	}

	if len(over.Sensors) > 0 {
		out.Sensors = mergeSensors(base.Sensors, over.Sensors)
	}
	if len(over.Steps) > 0 {
		out.Steps = over.Steps
	}
	return &out
}

func mergeSensors(base, over []SensorSpec) []SensorSpec {
	merged := make([]SensorSpec, len(base))
	copy(merged, base)
	for _, s := range over {
		replaced := false
		for i := range merged {
			if merged[i].Name == s.Name {
				merged[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, s)
		}
	}
	return merged
}
