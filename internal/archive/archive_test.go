package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.replay/internal/pipeline"
	"github.com/banshee-data/sensor.replay/internal/replay"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func archivedStream(timestamps []float64, opts ...replay.StreamOption) *replay.Stream {
	records := make([]replay.Record, len(timestamps))
	for i, ts := range timestamps {
		records[i] = replay.Record{replay.TimestampField: ts, "seq": i}
	}
	return replay.NewStream("mem", records, opts...)
}

func TestOpenMigratesIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening an already-migrated database is a no-op.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSaveAndListStreams(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveStream("imu", archivedStream([]float64{1, 2, 3}, replay.WithTimeOffset(10))))
	require.NoError(t, s.SaveStream("gps", archivedStream([]float64{5}, replay.WithTolerance(250))))

	infos, err := s.Streams()
	require.NoError(t, err)
	require.Len(t, infos, 2)

	// Ordered by name.
	assert.Equal(t, "gps", infos[0].Name)
	assert.Equal(t, 250.0, infos[0].ToleranceMs)
	assert.Equal(t, "imu", infos[1].Name)
	assert.Equal(t, 3, infos[1].RecordCount)
	assert.Equal(t, 10.0, infos[1].TimeOffsetMs)
	assert.True(t, math.IsInf(infos[1].ToleranceMs, 1), "unbounded tolerance round-trips as +Inf")
}

func TestSaveStreamDuplicateName(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveStream("imu", archivedStream([]float64{1})))
	assert.Error(t, s.SaveStream("imu", archivedStream([]float64{2})))
}

func TestRecordsInRangeAppliesOffset(t *testing.T) {
	s := openTestStore(t)
	// Native [100, 200, 300] with +50 offset: world [150, 250, 350].
	require.NoError(t, s.SaveStream("radar", archivedStream([]float64{100, 200, 300}, replay.WithTimeOffset(50))))

	records, err := s.RecordsInRange("radar", 150, 260)
	require.NoError(t, err)
	require.Len(t, records, 2)

	ts, err := records[0].TimestampMs()
	require.NoError(t, err)
	assert.Equal(t, 100.0, ts)
}

func TestLoadStreamRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveStream("imu",
		archivedStream([]float64{10, 20}, replay.WithTimeOffset(5), replay.WithTolerance(100))))

	stream, err := s.LoadStream("imu")
	require.NoError(t, err)
	assert.Equal(t, 2, stream.Len())
	assert.Equal(t, 5.0, stream.TimeOffsetMs)
	assert.Equal(t, 100.0, stream.ToleranceMs)

	// The rebuilt stream answers queries like the original.
	rec, err := stream.ValueAt(26, replay.StrategyForward)
	require.NoError(t, err)
	require.NotNil(t, rec)
	ts, _ := rec.TimestampMs()
	assert.Equal(t, 20.0, ts)

	_, err = s.LoadStream("ghost")
	assert.Error(t, err)
}

func TestRecordAndListRuns(t *testing.T) {
	s := openTestStore(t)

	run := RunRecord{
		RunID:         "run-1",
		CasePath:      "cases/night.json",
		Frames:        120,
		RecordsPlayed: 480,
		StartMs:       0,
		EndMs:         11900,
		FPS:           10,
	}
	require.NoError(t, s.RecordRun(run))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run, runs[0])
}

func TestArchiveStepRecordsRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "archive.db")

	factory := StepFactory()
	plug, err := factory(json.RawMessage(fmt.Sprintf(`{"path": %q, "case_path": "case.json"}`, dbPath)))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		frame := &pipeline.Frame{
			Index:  i,
			TimeMs: float64(i * 100),
			Elapsed: map[string][]replay.Record{
				"imu": {{replay.TimestampField: float64(i * 100)}},
			},
		}
		require.NoError(t, plug.Process(context.Background(), frame))
	}
	require.NoError(t, plug.Close())

	s, err := Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "case.json", runs[0].CasePath)
	assert.Equal(t, 3, runs[0].Frames)
	assert.Equal(t, 3, runs[0].RecordsPlayed)
	assert.Equal(t, 0.0, runs[0].StartMs)
	assert.Equal(t, 200.0, runs[0].EndMs)
	assert.Equal(t, 10.0, runs[0].FPS)
}

func TestArchiveStepRequiresPath(t *testing.T) {
	_, err := StepFactory()(json.RawMessage(`{}`))
	assert.Error(t, err)
}
