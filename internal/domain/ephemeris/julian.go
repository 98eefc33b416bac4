package ephemeris

import "time"

const (
	unixEpochJulianDay = 2440587.5
	secondsPerDay      = 86400
	nanosecondsPerDay  = 86400e9
)

// JulianDay returns the Julian day number of t. Leap seconds are ignored;
// the sub-second error is far below the model's precision.
func JulianDay(t time.Time) float64 {
	// Split seconds and nanoseconds so instants outside the UnixNano range still work.
	return float64(t.Unix())/secondsPerDay + float64(t.Nanosecond())/nanosecondsPerDay + unixEpochJulianDay
}
