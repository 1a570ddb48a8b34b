package replay

import (
	"fmt"
	"math"
	"os"
	"sort"
)

// Strategy selects how a point query resolves "which record represents
// this stream's state at time T".
type Strategy string

const (
	// StrategyForward matches the latest record at or before the query
	// time: hold-last-value.
	StrategyForward Strategy = "forward"
	// StrategyBackward matches the earliest record at or after the query
	// time: look-ahead.
	StrategyBackward Strategy = "backward"
	// StrategyNearest matches the record closest in absolute time
	// distance. An exact-distance tie prefers the later record.
	StrategyNearest Strategy = "nearest"
)

// ParseStrategy validates a strategy name from config or an API query.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyForward, StrategyBackward, StrategyNearest:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown match strategy %q", s)
}

// Stream owns one immutable, timestamp-sorted sequence of records loaded
// from a single source. All queries translate world time into the
// stream's native time base via TimeOffsetMs and reject matches farther
// than ToleranceMs from the query.
type Stream struct {
	// Path identifies the source the stream was loaded from. Debug only.
	Path string
	// TimeOffsetMs is added to a record's native timestamp to obtain its
	// world time.
	TimeOffsetMs float64
	// ToleranceMs is the maximum acceptable |query - match| distance in
	// the native time base. Defaults to +Inf (unbounded).
	ToleranceMs float64

	records    []Record
	timestamps []float64 // parallel to records, ascending
}

// StreamOption configures a Stream at construction.
type StreamOption func(*Stream)

// WithTimeOffset sets the stream's native-to-world time offset.
func WithTimeOffset(offsetMs float64) StreamOption {
	return func(s *Stream) { s.TimeOffsetMs = offsetMs }
}

// WithTolerance sets the stream's matching tolerance window.
func WithTolerance(toleranceMs float64) StreamOption {
	return func(s *Stream) { s.ToleranceMs = toleranceMs }
}

// OpenStream loads a stream from a JSON Lines file. Loading is eager and
// fail-fast: an unreadable source or any bad record makes the whole
// stream unusable.
func OpenStream(path string, opts ...StreamOption) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stream source: %w", err)
	}
	defer f.Close()

	records, err := LoadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("load stream %s: %w", path, err)
	}
	return NewStream(path, records, opts...), nil
}

// NewStream builds a stream around already-decoded records. The records
// are sorted (stably) if not already sorted; callers must not mutate
// them afterwards.
func NewStream(path string, records []Record, opts ...StreamOption) *Stream {
	sortRecords(records)
	timestamps := make([]float64, len(records))
	for i, rec := range records {
		timestamps[i], _ = rec.TimestampMs()
	}

	s := &Stream{
		Path:        path,
		ToleranceMs: math.Inf(1),
		records:     records,
		timestamps:  timestamps,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of records in the stream.
func (s *Stream) Len() int { return len(s.records) }

// MinTimestamp returns the earliest native timestamp, or false if the
// stream is empty.
func (s *Stream) MinTimestamp() (float64, bool) {
	if len(s.timestamps) == 0 {
		return 0, false
	}
	return s.timestamps[0], true
}

// MaxTimestamp returns the latest native timestamp, or false if the
// stream is empty.
func (s *Stream) MaxTimestamp() (float64, bool) {
	if len(s.timestamps) == 0 {
		return 0, false
	}
	return s.timestamps[len(s.timestamps)-1], true
}

// Record returns the i'th record in timestamp order. The returned map is
// the stored record; callers must treat it as read-only.
func (s *Stream) Record(i int) Record { return s.records[i] }

// worldTime translates a native timestamp at index i into world time.
func (s *Stream) worldTime(i int) float64 {
	return s.timestamps[i] + s.TimeOffsetMs
}

// ValueAt answers a point query: the record representing the stream's
// state at world time snapshotMs under the given strategy. A nil record
// with nil error means no match (out of bounds or outside the tolerance
// window); an error is returned only for an unknown strategy, which is a
// programming error rather than a data condition.
//
// A successful match returns a shallow copy of the record with
// SnapshotTimeField (the original query) and AlignedTimeField (the query
// translated into native time) stamped on, overwriting any same-named
// payload fields.
func (s *Stream) ValueAt(snapshotMs float64, strategy Strategy) (Record, error) {
	aligned := snapshotMs - s.TimeOffsetMs

	var idx int
	var ok bool
	switch strategy {
	case StrategyForward:
		idx, ok = s.searchForward(aligned)
	case StrategyBackward:
		idx, ok = s.searchBackward(aligned)
	case StrategyNearest:
		idx, ok = s.searchNearest(aligned)
	default:
		return nil, fmt.Errorf("unknown match strategy %q", strategy)
	}
	if !ok {
		return nil, nil
	}
	if math.Abs(s.timestamps[idx]-aligned) > s.ToleranceMs {
		return nil, nil
	}

	out := s.records[idx].clone(2)
	out[SnapshotTimeField] = snapshotMs
	out[AlignedTimeField] = aligned
	return out, nil
}

// searchForward finds the latest record with timestamp <= t.
func (s *Stream) searchForward(t float64) (int, bool) {
	// First index with timestamp > t; the match is the one before it.
	i := sort.Search(len(s.timestamps), func(i int) bool {
		return s.timestamps[i] > t
	})
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

// searchBackward finds the earliest record with timestamp >= t.
func (s *Stream) searchBackward(t float64) (int, bool) {
	i := sort.Search(len(s.timestamps), func(i int) bool {
		return s.timestamps[i] >= t
	})
	if i == len(s.timestamps) {
		return 0, false
	}
	return i, true
}

// searchNearest finds the record minimizing |timestamp - t|. When the
// insertion point lands between two candidates, the strictly closer one
// wins; an exact tie goes to the later (>= t) candidate.
func (s *Stream) searchNearest(t float64) (int, bool) {
	n := len(s.timestamps)
	if n == 0 {
		return 0, false
	}
	i := sort.Search(n, func(i int) bool {
		return s.timestamps[i] >= t
	})
	switch i {
	case 0:
		return 0, true
	case n:
		return n - 1, true
	}
	if t-s.timestamps[i-1] < s.timestamps[i]-t {
		return i - 1, true
	}
	return i, true
}
