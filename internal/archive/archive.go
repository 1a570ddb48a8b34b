// Package archive persists registered streams, their records, and
// replay run summaries in SQLite, so finished runs can be inspected and
// stored streams exported without re-reading the original sources.
package archive

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/sensor.replay/internal/replay"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a thin wrapper over the archive database handle.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the archive database at path and migrates it
// to the latest schema version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	s := &Store{db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrateUp applies all pending embedded migrations. Running against an
// up-to-date database is a no-op.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	// The migrate instance is not closed: closing it would close the
	// underlying DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// StreamInfo is one archived stream's metadata row.
type StreamInfo struct {
	Name         string  `json:"name"`
	SourcePath   string  `json:"source_path"`
	TimeOffsetMs float64 `json:"time_offset_ms"`
	ToleranceMs  float64 `json:"tolerance_ms"` // +Inf when unbounded
	RecordCount  int     `json:"record_count"`
}

// SaveStream archives a stream's metadata and every record under the
// given sensor name, inside one transaction. An unbounded tolerance is
// stored as NULL since SQLite has no +Inf literal.
func (s *Store) SaveStream(name string, stream *replay.Stream) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tolerance := sql.NullFloat64{Float64: stream.ToleranceMs, Valid: !math.IsInf(stream.ToleranceMs, 1)}
	_, err = tx.Exec(
		`INSERT INTO streams (name, source_path, time_offset_ms, tolerance_ms, record_count)
		 VALUES (?, ?, ?, ?, ?)`,
		name, stream.Path, stream.TimeOffsetMs, tolerance, stream.Len(),
	)
	if err != nil {
		return fmt.Errorf("archive stream %q: %w", name, err)
	}

	insert, err := tx.Prepare(
		`INSERT INTO records (stream_name, idx, timestamp_ms, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insert.Close()

	for i := 0; i < stream.Len(); i++ {
		rec := stream.Record(i)
		ts, err := rec.TimestampMs()
		if err != nil {
			return fmt.Errorf("archive stream %q record %d: %w", name, i, err)
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("archive stream %q record %d: %w", name, i, err)
		}
		if _, err := insert.Exec(name, i, ts, string(payload)); err != nil {
			return fmt.Errorf("archive stream %q record %d: %w", name, i, err)
		}
	}

	return tx.Commit()
}

// Streams lists archived stream metadata, ordered by name.
func (s *Store) Streams() ([]StreamInfo, error) {
	rows, err := s.Query(
		`SELECT name, source_path, time_offset_ms, tolerance_ms, record_count
		 FROM streams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []StreamInfo
	for rows.Next() {
		var info StreamInfo
		var tolerance sql.NullFloat64
		if err := rows.Scan(&info.Name, &info.SourcePath, &info.TimeOffsetMs, &tolerance, &info.RecordCount); err != nil {
			return nil, err
		}
		if tolerance.Valid {
			info.ToleranceMs = tolerance.Float64
		} else {
			info.ToleranceMs = math.Inf(1)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// RecordsInRange returns an archived stream's records whose world time
// (native timestamp plus the stream's stored offset) lies in
// [fromWorldMs, toWorldMs], in timestamp order. The offset shift is
// applied in SQL so the index on native timestamps still serves the
// scan.
func (s *Store) RecordsInRange(name string, fromWorldMs, toWorldMs float64) ([]replay.Record, error) {
	rows, err := s.Query(
		`SELECT r.payload
		 FROM records r JOIN streams st ON st.name = r.stream_name
		 WHERE r.stream_name = ?
		   AND r.timestamp_ms >= ? - st.time_offset_ms
		   AND r.timestamp_ms <= ? - st.time_offset_ms
		 ORDER BY r.timestamp_ms, r.idx`,
		name, fromWorldMs, toWorldMs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []replay.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec replay.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode archived record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadStream rebuilds a replay stream from the archive, with its stored
// offset and tolerance.
func (s *Store) LoadStream(name string) (*replay.Stream, error) {
	var info StreamInfo
	var tolerance sql.NullFloat64
	err := s.QueryRow(
		`SELECT name, source_path, time_offset_ms, tolerance_ms, record_count
		 FROM streams WHERE name = ?`, name).
		Scan(&info.Name, &info.SourcePath, &info.TimeOffsetMs, &tolerance, &info.RecordCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stream %q not archived", name)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.Query(
		`SELECT payload FROM records WHERE stream_name = ? ORDER BY timestamp_ms, idx`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []replay.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec replay.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode archived record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	opts := []replay.StreamOption{replay.WithTimeOffset(info.TimeOffsetMs)}
	if tolerance.Valid {
		opts = append(opts, replay.WithTolerance(tolerance.Float64))
	}
	return replay.NewStream(info.SourcePath, records, opts...), nil
}

// RunRecord is one archived replay run.
type RunRecord struct {
	RunID         string  `json:"run_id"`
	CasePath      string  `json:"case_path"`
	Frames        int     `json:"frames"`
	RecordsPlayed int     `json:"records_played"`
	StartMs       float64 `json:"start_ms"`
	EndMs         float64 `json:"end_ms"`
	FPS           float64 `json:"fps"`
}

// RecordRun stores a completed run's summary.
func (s *Store) RecordRun(run RunRecord) error {
	_, err := s.Exec(
		`INSERT INTO runs (run_id, case_path, frames, records_played, start_ms, end_ms, fps)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CasePath, run.Frames, run.RecordsPlayed, run.StartMs, run.EndMs, run.FPS,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

// Runs lists archived runs, newest first.
func (s *Store) Runs() ([]RunRecord, error) {
	rows, err := s.Query(
		`SELECT run_id, case_path, frames, records_played, start_ms, end_ms, fps
		 FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.CasePath, &r.Frames, &r.RecordsPlayed, &r.StartMs, &r.EndMs, &r.FPS); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
