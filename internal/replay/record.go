// Package replay implements time-synchronized multi-sensor stream replay:
// sorted time-series streams with point-query matching strategies, a
// chronological multi-stream event merge, and an incremental playback cursor.
//
// Streams are loaded once, eagerly, from JSON Lines sources and are
// read-only afterwards. A Manager and its Streams may be shared freely
// between readers; only Playback carries mutable cursor state and must be
// exclusively owned by one consumer.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// TimestampField is the required per-record field holding the record's
// native sample time in milliseconds. The value may be fractional.
const TimestampField = "timestamp_ms"

// Fields stamped onto every successful point-query match. If a record
// already carries fields with these names they are overwritten on the
// returned copy; the stored record is never modified.
const (
	SnapshotTimeField = "snapshot_time_ms"
	AlignedTimeField  = "aligned_time_ms"
)

// Record is one sensor sample: an opaque key-value payload that must
// contain a numeric TimestampField. The engine never interprets any
// other field.
type Record map[string]any

// TimestampMs returns the record's native timestamp.
func (r Record) TimestampMs() (float64, error) {
	v, ok := r[TimestampField]
	if !ok {
		return 0, fmt.Errorf("record missing %q field", TimestampField)
	}
	ts, ok := asFloat(v)
	if !ok {
		return 0, fmt.Errorf("record field %q is not numeric (got %T)", TimestampField, v)
	}
	return ts, nil
}

// clone returns a shallow copy of the record with room for n extra keys.
func (r Record) clone(n int) Record {
	out := make(Record, len(r)+n)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// asFloat converts the numeric types a decoded record may carry.
// encoding/json produces float64; the CSV handler and synthetic
// generators may produce ints.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// LoadRecords reads a JSON Lines stream source: one JSON object per line,
// each required to carry a numeric TimestampField. Any malformed line or
// missing timestamp fails the whole load; a stream is never partially
// loaded. Records are returned stably sorted ascending by native
// timestamp, so records sharing an exact timestamp keep their source
// order.
func LoadRecords(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	// Single records can be large (full detection frames); default 64KB
	// line limit is not enough.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", line, err)
		}
		if _, err := rec.TimestampMs(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stream source: %w", err)
	}

	sortRecords(records)
	return records, nil
}

// sortRecords sorts records ascending by native timestamp. The sort is
// stable: exact-tie records keep their original relative order, which
// keeps replays of identical inputs reproducible.
func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, _ := records[i].TimestampMs()
		tj, _ := records[j].TimestampMs()
		return ti < tj
	})
}
