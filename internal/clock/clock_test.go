package clock

import (
	"testing"

	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/status"
)

func TestGetUTCNotReadyBeforeSync(t *testing.T) {
	sim := platform.NewSim()
	c := New(sim)
	if _, st := c.GetUTC(); st != status.NotReady {
		t.Fatalf("expected NotReady before any SyncUTC, got %v", st)
	}
}

func TestGetUTCAdvancesWithUptime(t *testing.T) {
	sim := platform.NewSim()
	c := New(sim)
	c.SyncUTC(UTC{Seconds: 1000})

	sim.Advance(2500) // 2.5s
	got, st := c.GetUTC()
	if st != status.OK {
		t.Fatalf("expected OK, got %v", st)
	}
	if got.Seconds != 1002 {
		t.Fatalf("expected 1002 seconds elapsed, got %d", got.Seconds)
	}
	if got.Micros != 500_000 {
		t.Fatalf("expected 500000 microsecond fine field, got %d", got.Micros)
	}
}

func TestGetUTCAppliesDrift(t *testing.T) {
	sim := platform.NewSim()
	c := New(sim)
	c.SyncUTC(UTC{Seconds: 0})
	c.SetDriftPPM(1_000_000) // 1x drift for an easy-to-check doubling

	sim.Advance(10_000) // 10s elapsed
	got, _ := c.GetUTC()
	if got.Seconds != 20 {
		t.Fatalf("expected drift-doubled 20s, got %d", got.Seconds)
	}
}

func TestDiffMsTreatsSubsecondsAsMicroseconds(t *testing.T) {
	a := UTC{Seconds: 10, Micros: 500_000}
	b := UTC{Seconds: 9, Micros: 0}
	if got := DiffMs(a, b); got != 1500 {
		t.Fatalf("expected 1500ms difference, got %d", got)
	}
}

func TestCalendarRoundTrip(t *testing.T) {
	cases := []int64{0, 1, 86399, 86400, -1, -86400, 366 * 86400, 4 * 365 * 86400}
	for _, secs := range cases {
		cal := ToCalendar(secs)
		got := FromCalendar(cal)
		if got != secs {
			t.Fatalf("round trip failed for %d: got %d via %+v", secs, got, cal)
		}
	}
}

func TestToCalendarKnownEpoch(t *testing.T) {
	cal := ToCalendar(0)
	want := Calendar{Year: 2000, Month: 1, Day: 1, Hour: 0, Minute: 0, Second: 0}
	if cal != want {
		t.Fatalf("expected epoch %+v, got %+v", want, cal)
	}
}

func TestToCalendarLeapYear(t *testing.T) {
	// 2000-02-29 exists (div400 leap year); Feb 2001 has no 29th.
	// 31 (Jan) + 28 days into Feb = day 59 since epoch (index 59 -> Feb 29 2000, 0-indexed day 59).
	cal := ToCalendar(59 * 86400)
	if cal.Year != 2000 || cal.Month != 2 || cal.Day != 29 {
		t.Fatalf("expected 2000-02-29, got %+v", cal)
	}
}
