// Package state implements the companion scoring model: availability
// windows, mood micro-deltas, and relationship affinity.
package state

import (
	"time"
)

// Availability labels for the agent's simulated day.
const (
	Commute = "commute"
	Work    = "work"
	Evening = "evening"
	Sleep   = "sleep"
)

// AvailabilityAt maps a wall-clock instant in the given timezone to an
// availability window. Unknown timezone names degrade to UTC; this
// function never fails.
func AvailabilityAt(now time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	return availabilityForHour(now.In(loc).Hour())
}

func availabilityForHour(hour int) string {
	switch {
	case hour >= 7 && hour < 9:
		return Commute
	case hour >= 9 && hour < 17:
		return Work
	case hour >= 18 && hour < 23:
		return Evening
	default:
		return Sleep
	}
}
