package format

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/sensor.replay/internal/replay"
)

// JSONLines is the canonical stream format: one JSON object per line,
// each carrying a numeric timestamp_ms field.
type JSONLines struct{}

// Ext returns ".jsonl".
func (JSONLines) Ext() string { return ".jsonl" }

// Load decodes a JSON Lines stream via the core loader, so handler and
// engine agree on validation and sort order.
func (JSONLines) Load(r io.Reader) ([]replay.Record, error) {
	return replay.LoadRecords(r)
}

// Save writes one compact JSON object per record, in slice order.
func (JSONLines) Save(w io.Writer, records []replay.Record) error {
	enc := json.NewEncoder(w)
	for i, rec := range records {
		if _, err := rec.TimestampMs(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
