package units

import (
	"testing"
	"time"
)

func TestFrameIntervalMs(t *testing.T) {
	tests := []struct {
		fps  float64
		want float64
	}{
		{10, 100},
		{25, 40},
		{1000, 1},
		{0.5, 2000},
	}
	for _, tt := range tests {
		if got := FrameIntervalMs(tt.fps); got != tt.want {
			t.Errorf("FrameIntervalMs(%g) = %g, want %g", tt.fps, got, tt.want)
		}
	}
}

func TestRateHz(t *testing.T) {
	if got := RateHz(100); got != 10 {
		t.Errorf("RateHz(100) = %g, want 10", got)
	}
	if got := RateHz(0); got != 0 {
		t.Errorf("RateHz(0) = %g, want 0", got)
	}
	if got := RateHz(-5); got != 0 {
		t.Errorf("RateHz(-5) = %g, want 0", got)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	if got := Duration(1500); got != 1500*time.Millisecond {
		t.Errorf("Duration(1500) = %v, want 1.5s", got)
	}
	if got := Ms(250 * time.Millisecond); got != 250 {
		t.Errorf("Ms(250ms) = %g, want 250", got)
	}
	// Sub-millisecond periods survive the float path.
	if got := Duration(0.5); got != 500*time.Microsecond {
		t.Errorf("Duration(0.5) = %v, want 500µs", got)
	}
}
