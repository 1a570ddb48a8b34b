// Package api serves the replay engine over HTTP: point queries,
// snapshots, time ranges, archived runs, and a WebSocket playback feed.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/sensor.replay/internal/archive"
	"github.com/banshee-data/sensor.replay/internal/replay"
	"github.com/banshee-data/sensor.replay/internal/timeutil"
)

// ANSI escape codes for request logging.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Server exposes a read-only query surface over one stream manager and,
// optionally, an archive store for run history.
type Server struct {
	manager *replay.Manager
	store   *archive.Store // may be nil; archive routes then 404
	clock   timeutil.Clock
}

// NewServer wires a server around a manager. store may be nil when no
// archive is configured; clock defaults to the real clock.
func NewServer(manager *replay.Manager, store *archive.Store, clock timeutil.Clock) *Server {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{manager: manager, store: store, clock: clock}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the server's route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/streams", s.listStreams)
	mux.HandleFunc("/api/value", s.pointQuery)
	mux.HandleFunc("/api/snapshot", s.snapshot)
	mux.HandleFunc("/api/range", s.timeRange)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/archive/records", s.archivedRecords)
	mux.HandleFunc("/ws/playback", s.playbackSocket)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseTimeParam parses a required float query parameter.
func parseTimeParam(r *http.Request, name string) (float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return t, true
}

// parseStrategyParam parses the optional strategy parameter, defaulting
// to forward.
func parseStrategyParam(r *http.Request) (replay.Strategy, error) {
	raw := r.URL.Query().Get("strategy")
	if raw == "" {
		return replay.StrategyForward, nil
	}
	return replay.ParseStrategy(raw)
}

type streamInfo struct {
	Name         string             `json:"name"`
	TimeOffsetMs float64            `json:"time_offset_ms"`
	Stats        replay.StreamStats `json:"stats"`
}

func (s *Server) listStreams(w http.ResponseWriter, r *http.Request) {
	infos := []streamInfo{}
	for _, name := range s.manager.Names() {
		stream, _ := s.manager.Stream(name)
		infos = append(infos, streamInfo{
			Name:         name,
			TimeOffsetMs: stream.TimeOffsetMs,
			Stats:        stream.Stats(),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

type valueResponse struct {
	Sensor  string        `json:"sensor"`
	Matched bool          `json:"matched"`
	Record  replay.Record `json:"record,omitempty"`
}

func (s *Server) pointQuery(w http.ResponseWriter, r *http.Request) {
	sensor := r.URL.Query().Get("sensor")
	if sensor == "" {
		writeError(w, http.StatusBadRequest, "missing sensor parameter")
		return
	}
	t, ok := parseTimeParam(r, "t")
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid t parameter")
		return
	}
	strategy, err := parseStrategyParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.manager.ValueAt(sensor, t, strategy)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, valueResponse{Sensor: sensor, Matched: rec != nil, Record: rec})
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	t, ok := parseTimeParam(r, "t")
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid t parameter")
		return
	}
	strategy, err := parseStrategyParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.manager.AllSensorsAt(t, strategy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"time_ms": t, "sensors": snap})
}

type rangeResponse struct {
	Sensor string  `json:"sensor,omitempty"`
	MinMs  float64 `json:"min_timestamp_ms"`
	MaxMs  float64 `json:"max_timestamp_ms"`
}

func (s *Server) timeRange(w http.ResponseWriter, r *http.Request) {
	sensor := r.URL.Query().Get("sensor")
	if sensor != "" {
		lo, hi, ok := s.manager.TimeRange(sensor)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown or empty sensor "+strconv.Quote(sensor))
			return
		}
		writeJSON(w, http.StatusOK, rangeResponse{Sensor: sensor, MinMs: lo, MaxMs: hi})
		return
	}

	lo, hi, ok := s.manager.GlobalTimeRange()
	if !ok {
		writeError(w, http.StatusNotFound, "no stream data")
		return
	}
	writeJSON(w, http.StatusOK, rangeResponse{MinMs: lo, MaxMs: hi})
}

// archivedRecords serves an archived stream's records over a world-time
// window, straight from the archive rather than the live manager.
func (s *Server) archivedRecords(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "no archive configured")
		return
	}
	stream := r.URL.Query().Get("stream")
	if stream == "" {
		writeError(w, http.StatusBadRequest, "missing stream parameter")
		return
	}
	from, ok := parseTimeParam(r, "from")
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid from parameter")
		return
	}
	to, ok := parseTimeParam(r, "to")
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid to parameter")
		return
	}

	records, err := s.store.RecordsInRange(stream, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []replay.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "no archive configured")
		return
	}
	runs, err := s.store.Runs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []archive.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}
