package format

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/banshee-data/sensor.replay/internal/replay"
)

// CSV reads and writes header-driven CSV streams. Cells that parse as
// floats become float64 fields; everything else stays a string. The
// timestamp_ms column is required.
type CSV struct{}

// Ext returns ".csv".
func (CSV) Ext() string { return ".csv" }

// Load decodes a CSV stream. The first row is the header; a missing
// timestamp_ms column or an unparsable timestamp cell fails the load.
func (CSV) Load(r io.Reader) ([]replay.Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	tsCol := -1
	for i, col := range header {
		if col == replay.TimestampField {
			tsCol = i
		}
	}
	if tsCol == -1 {
		return nil, fmt.Errorf("CSV header missing %q column", replay.TimestampField)
	}

	var records []replay.Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec := make(replay.Record, len(header))
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			if f, err := strconv.ParseFloat(cell, 64); err == nil {
				rec[header[i]] = f
			} else {
				rec[header[i]] = cell
			}
		}
		if _, err := rec.TimestampMs(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save writes records under a union header of all keys, timestamp_ms
// first and the rest sorted for stable output. Missing fields become
// empty cells.
func (CSV) Save(w io.Writer, records []replay.Record) error {
	keys := map[string]bool{}
	for _, rec := range records {
		if _, err := rec.TimestampMs(); err != nil {
			return err
		}
		for k := range rec {
			keys[k] = true
		}
	}
	delete(keys, replay.TimestampField)
	header := []string{replay.TimestampField}
	rest := make([]string, 0, len(keys))
	for k := range keys {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	header = append(header, rest...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		row := make([]string, len(header))
		for i, k := range header {
			v, ok := rec[k]
			if !ok {
				continue
			}
			switch n := v.(type) {
			case float64:
				row[i] = strconv.FormatFloat(n, 'g', -1, 64)
			case string:
				row[i] = n
			default:
				row[i] = fmt.Sprint(n)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
