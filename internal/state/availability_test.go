package state

import (
	"testing"
	"time"
)

func TestAvailabilityBands(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{0, Sleep},
		{6, Sleep},
		{7, Commute},
		{8, Commute},
		{9, Work},
		{16, Work},
		{17, Sleep},
		{18, Evening},
		{22, Evening},
		{23, Sleep},
	}
	for _, c := range cases {
		if got := availabilityForHour(c.hour); got != c.want {
			t.Errorf("availabilityForHour(%d) = %q, want %q", c.hour, got, c.want)
		}
	}
}

func TestAvailabilityAtUsesTimezone(t *testing.T) {
	// 20:00 UTC is 12:00 in Los Angeles: evening vs work.
	at := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	if got := AvailabilityAt(at, "UTC"); got != Evening {
		t.Errorf("UTC = %q, want %q", got, Evening)
	}
	if got := AvailabilityAt(at, "America/Los_Angeles"); got != Work {
		t.Errorf("America/Los_Angeles = %q, want %q", got, Work)
	}
}

func TestAvailabilityAtBadTimezoneFallsBackToUTC(t *testing.T) {
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	if got := AvailabilityAt(at, "Not/AZone"); got != Work {
		t.Errorf("bad timezone = %q, want %q", got, Work)
	}
	if got := AvailabilityAt(at, ""); got != Work {
		t.Errorf("empty timezone = %q, want %q", got, Work)
	}
}
