package replay

import (
	"fmt"
	"math"
	"sort"
)

// Manager owns a named collection of sensor streams and answers
// aggregate queries across them. It is built incrementally via Register
// and is read-only afterwards: any number of readers (point queries,
// event iterators, playback instances) may share one Manager without
// coordination.
type Manager struct {
	streams map[string]*Stream
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{streams: make(map[string]*Stream)}
}

// Register loads a stream source and adds it under a unique sensor name.
// Registering a name twice is a configuration error, as is a source that
// fails to load.
func (m *Manager) Register(name, path string, opts ...StreamOption) error {
	if _, exists := m.streams[name]; exists {
		return fmt.Errorf("sensor %q already registered", name)
	}
	s, err := OpenStream(path, opts...)
	if err != nil {
		return fmt.Errorf("register sensor %q: %w", name, err)
	}
	m.streams[name] = s
	return nil
}

// AddStream registers an already-constructed stream, for callers that
// build records in memory (tests, synthetic generators, the archive
// export path).
func (m *Manager) AddStream(name string, s *Stream) error {
	if _, exists := m.streams[name]; exists {
		return fmt.Errorf("sensor %q already registered", name)
	}
	m.streams[name] = s
	return nil
}

// Stream returns the stream registered under name.
func (m *Manager) Stream(name string) (*Stream, bool) {
	s, ok := m.streams[name]
	return s, ok
}

// Names returns all registered sensor names, sorted for deterministic
// output.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.streams))
	for name := range m.streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TimeRange reports the (min, max) native timestamps for one sensor, or
// false if the sensor is unknown or empty.
//
// Per-stream time offsets are deliberately not applied: the range is in
// each stream's native time base, and the union below mixes time bases
// when offsets differ. Callers needing world-time ranges must apply
// offsets themselves.
func (m *Manager) TimeRange(name string) (minTs, maxTs float64, ok bool) {
	s, found := m.streams[name]
	if !found {
		return 0, 0, false
	}
	lo, okLo := s.MinTimestamp()
	hi, okHi := s.MaxTimestamp()
	if !okLo || !okHi {
		return 0, 0, false
	}
	return lo, hi, true
}

// GlobalTimeRange reports the union (min of mins, max of maxes) of all
// registered streams' native time ranges, or false if no stream has
// data. See TimeRange for the offset caveat.
func (m *Manager) GlobalTimeRange() (minTs, maxTs float64, ok bool) {
	minTs = math.Inf(1)
	maxTs = math.Inf(-1)
	for _, s := range m.streams {
		lo, okLo := s.MinTimestamp()
		hi, _ := s.MaxTimestamp()
		if !okLo {
			continue
		}
		ok = true
		minTs = math.Min(minTs, lo)
		maxTs = math.Max(maxTs, hi)
	}
	if !ok {
		return 0, 0, false
	}
	return minTs, maxTs, true
}

// ValueAt answers a point query against one named stream. Unknown sensor
// names are an error; a nil record with nil error means the stream had
// no acceptable match (see Stream.ValueAt).
func (m *Manager) ValueAt(name string, snapshotMs float64, strategy Strategy) (Record, error) {
	s, ok := m.streams[name]
	if !ok {
		return nil, fmt.Errorf("unknown sensor %q", name)
	}
	return s.ValueAt(snapshotMs, strategy)
}

// AllSensorsAt queries every registered stream independently at the same
// world time. The result always has an entry for every registered
// sensor; streams with no acceptable match map to nil.
func (m *Manager) AllSensorsAt(snapshotMs float64, strategy Strategy) (map[string]Record, error) {
	out := make(map[string]Record, len(m.streams))
	for name, s := range m.streams {
		rec, err := s.ValueAt(snapshotMs, strategy)
		if err != nil {
			return nil, fmt.Errorf("sensor %q: %w", name, err)
		}
		out[name] = rec
	}
	return out, nil
}

// Events returns a fresh chronological iterator over all streams. Each
// call produces an independent traversal; a single iterator is
// forward-only and not restartable.
func (m *Manager) Events() *EventIterator {
	return newEventIterator(m.streams)
}

// Playback returns a new playback cursor over all registered streams,
// positioned before the first record of every stream. Each cursor is
// independent and must be owned by exactly one consumer.
func (m *Manager) Playback() *Playback {
	return newPlayback(m.streams)
}
