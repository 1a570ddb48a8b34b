// Package units converts between the replay timebase (float64
// milliseconds) and the standard library's time.Duration.
package units

import "time"

const msPerSecond = 1000

// FrameIntervalMs returns the frame period in milliseconds for a rate
// in frames per second. fps must be positive.
func FrameIntervalMs(fps float64) float64 {
	return msPerSecond / fps
}

// RateHz returns the sampling rate implied by a mean interval in
// milliseconds, or zero for a non-positive interval.
func RateHz(intervalMs float64) float64 {
	if intervalMs <= 0 {
		return 0
	}
	return msPerSecond / intervalMs
}

// Duration converts milliseconds to a time.Duration.
func Duration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Ms converts a time.Duration to milliseconds.
func Ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
