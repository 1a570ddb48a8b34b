package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClockNowAndSleep(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)

	assert.Equal(t, base, clock.Now())

	clock.Sleep(250 * time.Millisecond)
	clock.Sleep(100 * time.Millisecond)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 100 * time.Millisecond}, clock.Sleeps())

	// Sleep does not move the clock; only Advance does.
	assert.Equal(t, base, clock.Now())

	clock.Advance(time.Second)
	assert.Equal(t, base.Add(time.Second), clock.Now())
}

func TestMockTickerFiresOnAdvance(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before advance")
	default:
	}

	clock.Advance(150 * time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire after advancing past its deadline")
	}
}

func TestMockTickerStop(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(50 * time.Millisecond)
	ticker.Stop()

	clock.Advance(time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestRealClockNow(t *testing.T) {
	var clock Clock = RealClock{}
	before := time.Now()
	now := clock.Now()
	if now.Before(before) {
		t.Errorf("RealClock.Now went backwards: %v < %v", now, before)
	}
}
