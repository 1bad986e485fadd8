package probe

import "math"

// Normalize returns the timestamp relative to the stream epoch in milliseconds.
// Device clocks are unsigned 32 bit, the result can be negative
// for records behind the epoch.
func Normalize(raw, epoch uint32) int64 {
	return int64(raw) - int64(epoch)
}

// Rescale converts milliseconds to units of 1/timescale seconds,
// rounding half away from zero.
func Rescale(ms int64, timescale uint32) int64 {
	return int64(math.Round(float64(ms) / 1000 * float64(timescale)))
}
