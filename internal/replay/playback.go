package replay

import (
	"math"

	"github.com/banshee-data/sensor.replay/internal/monitoring"
)

// Playback is a stateful incremental consumer: driven by an external,
// normally non-decreasing clock, each Advance call returns exactly the
// records that newly elapsed since the previous call. Cursors only move
// forward, so every record is delivered at most once regardless of step
// size.
//
// Playback is the only mutable object in this package. One instance
// belongs to exactly one consumer; parallel consumers must each take
// their own cursor from Manager.Playback.
type Playback struct {
	streams map[string]*Stream
	cursors map[string]int
	lastMs  float64
}

func newPlayback(streams map[string]*Stream) *Playback {
	cursors := make(map[string]int, len(streams))
	for name := range streams {
		cursors[name] = 0
	}
	return &Playback{
		streams: streams,
		cursors: cursors,
		lastMs:  math.Inf(-1),
	}
}

// LastTimeMs returns the clock value of the most recent accepted Advance
// call, or -Inf before the first call.
func (p *Playback) LastTimeMs() float64 { return p.lastMs }

// Advance moves the playback clock to nowMs and returns, per stream, the
// ordered records whose world time lies in (lastTime, nowMs]. Streams
// contributing nothing in this slice are absent from the result.
//
// A clock regression (nowMs earlier than the previous call) returns an
// empty result without touching any cursor: the external driver may
// jitter slightly, and dropping the step preserves the at-most-once
// delivery guarantee. The regression is logged rather than raised.
func (p *Playback) Advance(nowMs float64) map[string][]Record {
	if nowMs < p.lastMs {
		monitoring.Logf("playback: clock regression %.3f -> %.3f, dropping step", p.lastMs, nowMs)
		return map[string][]Record{}
	}

	out := make(map[string][]Record)
	for name, s := range p.streams {
		i := p.cursors[name]
		var batch []Record
		for i < s.Len() {
			world := s.worldTime(i)
			if world > nowMs {
				break
			}
			// Records at or before lastMs were either delivered by an
			// earlier call or predate the first call's window; either
			// way the cursor walks past without emitting.
			if world > p.lastMs {
				batch = append(batch, s.Record(i))
			}
			i++
		}
		p.cursors[name] = i
		if len(batch) > 0 {
			out[name] = batch
		}
	}

	p.lastMs = nowMs
	return out
}

// Remaining reports how many records have not yet been delivered,
// summed across streams.
func (p *Playback) Remaining() int {
	total := 0
	for name, s := range p.streams {
		total += s.Len() - p.cursors[name]
	}
	return total
}
