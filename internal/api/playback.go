package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/banshee-data/sensor.replay/internal/monitoring"
	"github.com/banshee-data/sensor.replay/internal/replay"
	"github.com/banshee-data/sensor.replay/internal/units"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	// The feed is read-only; origin enforcement belongs to whatever
	// fronts this server.
	CheckOrigin: func(*http.Request) bool { return true },
}

// playbackMessage is one frame pushed over the playback socket.
type playbackMessage struct {
	SessionID string                     `json:"session_id"`
	Frame     int                        `json:"frame"`
	TimeMs    float64                    `json:"time_ms"`
	Elapsed   map[string][]replay.Record `json:"elapsed,omitempty"`
	Done      bool                       `json:"done,omitempty"`
}

// playbackSocket streams the whole replay over a WebSocket, paced at
// fps frames per second scaled by speed. Each connection owns its own
// playback cursor; concurrent sessions never share mutable state.
func (s *Server) playbackSocket(w http.ResponseWriter, r *http.Request) {
	fps := 10.0
	if v, ok := parseTimeParam(r, "fps"); ok {
		fps = v
	}
	if fps <= 0 || fps > 1000 {
		writeError(w, http.StatusBadRequest, "fps out of range")
		return
	}
	speed := 1.0
	if v, ok := parseTimeParam(r, "speed"); ok && v > 0 {
		speed = v
	}

	startMs, endMs, ok := s.manager.GlobalTimeRange()
	if !ok {
		writeError(w, http.StatusNotFound, "no stream data")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("api: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	frameMs := units.FrameIntervalMs(fps)
	ticker := s.clock.NewTicker(units.Duration(frameMs / speed))
	defer ticker.Stop()

	playback := s.manager.Playback()
	frame := 0
	for tMs := startMs; tMs <= endMs; tMs += frameMs {
		select {
		case <-ticker.C():
		case <-r.Context().Done():
			return
		}

		msg := playbackMessage{
			SessionID: sessionID,
			Frame:     frame,
			TimeMs:    tMs,
			Elapsed:   playback.Advance(tMs),
		}
		if err := conn.WriteJSON(msg); err != nil {
			monitoring.Logf("api: playback session %s: %v", sessionID, err)
			return
		}
		frame++
	}

	// Anything past the last frame boundary still elapses before the
	// final message.
	final := playbackMessage{
		SessionID: sessionID,
		Frame:     frame,
		TimeMs:    endMs,
		Elapsed:   playback.Advance(endMs),
		Done:      true,
	}
	if err := conn.WriteJSON(final); err != nil {
		monitoring.Logf("api: playback session %s: %v", sessionID, err)
	}
}
