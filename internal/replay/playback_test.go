package replay

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaybackPartitionLaw(t *testing.T) {
	// Advancing over the full range in arbitrary step sizes must deliver
	// every record exactly once, in stream order.
	m := NewManager()
	require.NoError(t, m.AddStream("imu", testStream(t, []float64{0, 10, 20, 30, 40, 50})))
	require.NoError(t, m.AddStream("gps", testStream(t, []float64{5, 25, 45}, WithTimeOffset(2))))

	p := m.Playback()
	collected := map[string][]float64{}
	for _, now := range []float64{3, 7, 7, 22, 48, 60} {
		for name, batch := range p.Advance(now) {
			for _, rec := range batch {
				ts, _ := rec.TimestampMs()
				collected[name] = append(collected[name], ts)
			}
		}
	}

	assert.Equal(t, []float64{0, 10, 20, 30, 40, 50}, collected["imu"])
	assert.Equal(t, []float64{5, 25, 45}, collected["gps"])
	assert.Equal(t, 0, p.Remaining())
}

func TestPlaybackHalfOpenWindow(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.AddStream("s", testStream(t, []float64{10, 20, 30})))

	p := m.Playback()

	// (−Inf, 10]: the boundary record is included.
	first := p.Advance(10)
	require.Len(t, first["s"], 1)

	// (10, 10]: empty window, nothing re-delivered.
	assert.Empty(t, p.Advance(10))

	// (10, 20]: only the record at 20.
	second := p.Advance(20)
	require.Len(t, second["s"], 1)
	ts, _ := second["s"][0].TimestampMs()
	assert.Equal(t, float64(20), ts)
}

func TestPlaybackAppliesOffsets(t *testing.T) {
	// Native 100 with +50 offset elapses at world time 150, not 100.
	m := NewManager()
	require.NoError(t, m.AddStream("s", testStream(t, []float64{100}, WithTimeOffset(50))))

	p := m.Playback()
	assert.Empty(t, p.Advance(149))
	out := p.Advance(150)
	require.Len(t, out["s"], 1)
}

func TestPlaybackClockRegression(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.AddStream("s", testStream(t, []float64{10, 40, 60, 70})))

	p := m.Playback()
	out := p.Advance(50)
	require.Len(t, out["s"], 2) // records at 10 and 40

	// Regression: empty result, no cursor movement, clock unchanged.
	assert.Empty(t, p.Advance(30))
	assert.Equal(t, float64(50), p.LastTimeMs())

	// Resuming forward returns exactly (50, 80], nothing re-included.
	out = p.Advance(80)
	require.Len(t, out["s"], 2)
	ts0, _ := out["s"][0].TimestampMs()
	ts1, _ := out["s"][1].TimestampMs()
	assert.Equal(t, float64(60), ts0)
	assert.Equal(t, float64(70), ts1)
}

func TestPlaybackOmitsQuietStreams(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.AddStream("busy", testStream(t, []float64{1, 2})))
	require.NoError(t, m.AddStream("quiet", testStream(t, []float64{500})))
	require.NoError(t, m.AddStream("empty", testStream(t, nil)))

	out := m.Playback().Advance(10)
	require.Len(t, out, 1)
	_, ok := out["quiet"]
	assert.False(t, ok, "stream with no new records must be absent, not empty")
}

func TestPlaybackInitialState(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.AddStream("s", testStream(t, []float64{-1000})))

	p := m.Playback()
	assert.True(t, math.IsInf(p.LastTimeMs(), -1))

	// Records before time zero still elapse on the first advance.
	out := p.Advance(0)
	require.Len(t, out["s"], 1)
}

func TestPlaybackIndependentCursors(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.AddStream("s", testStream(t, []float64{10, 20})))

	p1 := m.Playback()
	p2 := m.Playback()

	require.Len(t, p1.Advance(15)["s"], 1)
	// p2 is untouched by p1's progress.
	require.Len(t, p2.Advance(25)["s"], 2)
	// And p1 continues from its own cursor.
	require.Len(t, p1.Advance(25)["s"], 1)
}
