package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.replay/internal/archive"
	"github.com/banshee-data/sensor.replay/internal/replay"
)

func testManager(t *testing.T) *replay.Manager {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	m := replay.NewManager()
	require.NoError(t, m.Register("imu",
		write("imu.jsonl", "{\"timestamp_ms\": 0}\n{\"timestamp_ms\": 100}\n{\"timestamp_ms\": 200}\n")))
	require.NoError(t, m.Register("gps",
		write("gps.jsonl", "{\"timestamp_ms\": 50}\n{\"timestamp_ms\": 150}\n"),
		replay.WithTimeOffset(25)))
	return m
}

func get(t *testing.T, srv *Server, path string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(w, req)
	res := w.Result()
	t.Cleanup(func() { res.Body.Close() })
	return res, w.Body.Bytes()
}

func TestListStreams(t *testing.T) {
	srv := NewServer(testManager(t), nil, nil)
	res, body := get(t, srv, "/api/streams")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var infos []streamInfo
	require.NoError(t, json.Unmarshal(body, &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "gps", infos[0].Name)
	assert.Equal(t, 25.0, infos[0].TimeOffsetMs)
	assert.Equal(t, 3, infos[1].Stats.Count)
}

func TestPointQuery(t *testing.T) {
	srv := NewServer(testManager(t), nil, nil)

	res, body := get(t, srv, "/api/value?sensor=imu&t=150&strategy=forward")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var v valueResponse
	require.NoError(t, json.Unmarshal(body, &v))
	assert.True(t, v.Matched)
	assert.Equal(t, float64(100), v.Record[replay.TimestampField])
	assert.Equal(t, float64(150), v.Record[replay.SnapshotTimeField])
}

func TestPointQueryNoMatch(t *testing.T) {
	srv := NewServer(testManager(t), nil, nil)

	// Before the first imu record: no match is a result, not an error.
	res, body := get(t, srv, "/api/value?sensor=imu&t=-5")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var v valueResponse
	require.NoError(t, json.Unmarshal(body, &v))
	assert.False(t, v.Matched)
	assert.Nil(t, v.Record)
}

func TestPointQueryErrors(t *testing.T) {
	srv := NewServer(testManager(t), nil, nil)

	res, _ := get(t, srv, "/api/value?t=10")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = get(t, srv, "/api/value?sensor=imu")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = get(t, srv, "/api/value?sensor=imu&t=10&strategy=sideways")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = get(t, srv, "/api/value?sensor=ghost&t=10")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestSnapshot(t *testing.T) {
	srv := NewServer(testManager(t), nil, nil)

	res, body := get(t, srv, "/api/snapshot?t=120")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var snap struct {
		TimeMs  float64                  `json:"time_ms"`
		Sensors map[string]replay.Record `json:"sensors"`
	}
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, 120.0, snap.TimeMs)
	require.Len(t, snap.Sensors, 2)
	assert.NotNil(t, snap.Sensors["imu"])
	// gps at world time 120: native 95, forward match is native 50.
	require.NotNil(t, snap.Sensors["gps"])
	assert.Equal(t, float64(50), snap.Sensors["gps"][replay.TimestampField])
}

func TestTimeRange(t *testing.T) {
	srv := NewServer(testManager(t), nil, nil)

	res, body := get(t, srv, "/api/range?sensor=gps")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var rr rangeResponse
	require.NoError(t, json.Unmarshal(body, &rr))
	assert.Equal(t, 50.0, rr.MinMs)
	assert.Equal(t, 150.0, rr.MaxMs)

	// Global union, native time bases.
	res, body = get(t, srv, "/api/range")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(body, &rr))
	assert.Equal(t, 0.0, rr.MinMs)
	assert.Equal(t, 200.0, rr.MaxMs)

	res, _ = get(t, srv, "/api/range?sensor=ghost")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestListRuns(t *testing.T) {
	store, err := archive.Open(filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.RecordRun(archive.RunRecord{RunID: "r1", Frames: 10}))

	srv := NewServer(testManager(t), store, nil)
	res, body := get(t, srv, "/api/runs")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var runs []archive.RunRecord
	require.NoError(t, json.Unmarshal(body, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].RunID)
}

func TestArchivedRecords(t *testing.T) {
	store, err := archive.Open(filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)
	defer store.Close()

	m := testManager(t)
	gps, ok := m.Stream("gps")
	require.True(t, ok)
	require.NoError(t, store.SaveStream("gps", gps))

	srv := NewServer(m, store, nil)

	// gps records at native [50, 150] with +25 offset: world [75, 175].
	res, body := get(t, srv, "/api/archive/records?stream=gps&from=0&to=100")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var records []replay.Record
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 1)
	assert.Equal(t, float64(50), records[0][replay.TimestampField])

	res, _ = get(t, srv, "/api/archive/records?stream=gps&from=0")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestListRunsWithoutArchive(t *testing.T) {
	srv := NewServer(testManager(t), nil, nil)
	res, _ := get(t, srv, "/api/runs")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestPlaybackSocket(t *testing.T) {
	srv := NewServer(testManager(t), nil, nil)
	ts := httptest.NewServer(srv.ServeMux())
	defer ts.Close()

	// High fps keeps the paced replay fast in tests.
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/playback?fps=500"
	conn, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer res.Body.Close()

	var (
		sessions = map[string]bool{}
		played   int
		lastMs   = -1e18
		done     bool
	)
	for !done {
		var msg playbackMessage
		require.NoError(t, conn.ReadJSON(&msg))
		sessions[msg.SessionID] = true
		require.GreaterOrEqual(t, msg.TimeMs, lastMs)
		lastMs = msg.TimeMs
		for _, batch := range msg.Elapsed {
			played += len(batch)
		}
		done = msg.Done
	}

	assert.Len(t, sessions, 1, "one session id per connection")
	// Every record across both streams plays exactly once.
	assert.Equal(t, 5, played)
}

func TestPlaybackSocketBadParams(t *testing.T) {
	srv := NewServer(testManager(t), nil, nil)
	res, _ := get(t, srv, "/ws/playback?fps=-1")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusTeapot, "nope")
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, fmt.Sprintf("{%q:%q}\n", "error", "nope"), w.Body.String())
}
