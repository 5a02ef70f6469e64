// Package clock implements the mission time source:
// monotonic milliseconds since boot, plus an optional UTC base with
// drift correction.
package clock

import (
	"sync"

	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/status"
)

// epoch2000Unix is the Unix timestamp of 2000-01-01T00:00:00Z, the
// datetime-conversion epoch used throughout this package.
const epoch2000Unix int64 = 946684800

// UTC is a CCSDS-style timestamp: whole seconds since the 2000-01-01
// epoch plus a fine field in microseconds.
type UTC struct {
	Seconds int64
	Micros  uint32
}

// Clock is the mission time source. All public methods are safe for
// concurrent use; in lock order Clock sits directly above
// the event log and below every other stateful component, so it must
// never call back into a later component while its own lock is held —
// it never does, since it only reads platform.Hooks.
type Clock struct {
	hooks platform.Hooks

	mu         sync.Mutex
	synced     bool
	baseUTC    UTC
	syncUptime uint32 // now_s at the moment of the last sync_utc call
	driftPPM   int64
}

// New creates a Clock backed by hooks.
func New(hooks platform.Hooks) *Clock {
	return &Clock{hooks: hooks}
}

// NowMs returns milliseconds since boot.
func (c *Clock) NowMs() uint32 {
	return c.hooks.TimeMsMonotonic()
}

// NowS returns whole seconds since boot (now_ms / 1000).
func (c *Clock) NowS() uint32 {
	return c.NowMs() / 1000
}

// SetDriftPPM configures the linear drift correction applied by GetUTC.
func (c *Clock) SetDriftPPM(ppm int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.driftPPM = ppm
}

// SyncUTC latches ts as the UTC base at the current uptime.
func (c *Clock) SyncUTC(ts UTC) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseUTC = ts
	c.syncUptime = c.NowS()
	c.synced = true
}

// GetUTC returns the current UTC estimate, or status.NotReady if SyncUTC
// has never been called.
//
//	get_utc() = ts.seconds + (now_s - sync_uptime_s) + drift_ppm*elapsed/1e6
//	fine      = (now_ms mod 1000) * 1000   // milliseconds -> microseconds
func (c *Clock) GetUTC() (UTC, status.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.synced {
		return UTC{}, status.NotReady
	}
	nowMs := c.hooks.TimeMsMonotonic()
	nowS := nowMs / 1000
	elapsed := int64(nowS - c.syncUptime)
	seconds := c.baseUTC.Seconds + elapsed + (c.driftPPM*elapsed)/1_000_000
	micros := (nowMs % 1000) * 1000
	return UTC{Seconds: seconds, Micros: micros}, status.OK
}

// DiffMs returns a-b expressed uniformly in milliseconds, treating the
// fine field of both timestamps as microseconds throughout —
// subseconds are microseconds everywhere, never nanoseconds.
func DiffMs(a, b UTC) int64 {
	return (a.Seconds-b.Seconds)*1000 + (int64(a.Micros)-int64(b.Micros))/1000
}

// isLeapYear applies the Gregorian rule: div4 ∧ ¬div100 ∨ div400.
func isLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

var daysInMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Calendar is a decoded civil UTC date/time.
type Calendar struct {
	Year, Month, Day     int
	Hour, Minute, Second int
}

// ToCalendar converts seconds since the 2000-01-01 epoch to a civil
// date/time using the Gregorian leap-year rule.
func ToCalendar(secondsSince2000 int64) Calendar {
	unix := secondsSince2000 + epoch2000Unix

	days := unix / 86400
	rem := unix % 86400
	if rem < 0 {
		rem += 86400
		days--
	}

	hour := int(rem / 3600)
	minute := int((rem % 3600) / 60)
	second := int(rem % 60)

	year := 1970
	for {
		length := int64(365)
		if isLeapYear(year) {
			length = 366
		}
		if days < 0 {
			year--
			length = 365
			if isLeapYear(year) {
				length = 366
			}
			days += length
			continue
		}
		if days < length {
			break
		}
		days -= length
		year++
	}

	month := 0
	for {
		dim := int64(daysInMonth[month])
		if month == 1 && isLeapYear(year) {
			dim = 29
		}
		if days < dim {
			break
		}
		days -= dim
		month++
	}

	return Calendar{
		Year:   year,
		Month:  month + 1,
		Day:    int(days) + 1,
		Hour:   hour,
		Minute: minute,
		Second: second,
	}
}

// FromCalendar converts a civil date/time back to seconds since the
// 2000-01-01 epoch. Inverse of ToCalendar for valid inputs.
func FromCalendar(c Calendar) int64 {
	days := int64(0)
	if c.Year >= 1970 {
		for y := 1970; y < c.Year; y++ {
			days += 365
			if isLeapYear(y) {
				days++
			}
		}
	} else {
		for y := c.Year; y < 1970; y++ {
			days -= 365
			if isLeapYear(y) {
				days--
			}
		}
	}
	for m := 0; m < c.Month-1; m++ {
		days += int64(daysInMonth[m])
		if m == 1 && isLeapYear(c.Year) {
			days++
		}
	}
	days += int64(c.Day - 1)

	unix := days*86400 + int64(c.Hour)*3600 + int64(c.Minute)*60 + int64(c.Second)
	return unix - epoch2000Unix
}
