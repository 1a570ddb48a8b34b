package replay

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sensor.replay/internal/units"
)

// StreamStats summarizes a stream's sampling behavior: record count,
// native time bounds, and inter-sample interval statistics. Interval
// fields are zero for streams with fewer than two records.
type StreamStats struct {
	Count int     `json:"count"`
	MinMs float64 `json:"min_timestamp_ms"`
	MaxMs float64 `json:"max_timestamp_ms"`

	// Inter-sample interval statistics, milliseconds.
	MeanIntervalMs   float64 `json:"mean_interval_ms"`
	StdDevIntervalMs float64 `json:"stddev_interval_ms"`
	MinIntervalMs    float64 `json:"min_interval_ms"`
	MaxIntervalMs    float64 `json:"max_interval_ms"`

	// Effective sampling rate derived from the mean interval.
	RateHz float64 `json:"rate_hz"`
}

// Stats computes sampling statistics over the stream's sorted
// timestamps.
func (s *Stream) Stats() StreamStats {
	st := StreamStats{Count: len(s.timestamps)}
	if len(s.timestamps) == 0 {
		return st
	}
	st.MinMs = s.timestamps[0]
	st.MaxMs = s.timestamps[len(s.timestamps)-1]
	if len(s.timestamps) < 2 {
		return st
	}

	intervals := make([]float64, len(s.timestamps)-1)
	st.MinIntervalMs = s.timestamps[1] - s.timestamps[0]
	for i := 1; i < len(s.timestamps); i++ {
		d := s.timestamps[i] - s.timestamps[i-1]
		intervals[i-1] = d
		if d < st.MinIntervalMs {
			st.MinIntervalMs = d
		}
		if d > st.MaxIntervalMs {
			st.MaxIntervalMs = d
		}
	}

	st.MeanIntervalMs = stat.Mean(intervals, nil)
	st.StdDevIntervalMs = stat.StdDev(intervals, nil)
	st.RateHz = units.RateHz(st.MeanIntervalMs)
	return st
}
