// Package flow turns pasted options time-and-sales text into OptionTrade
// records and derives per-batch aggregates from them: the volume-weighted
// summary, the put/call ratio, per-minute flow, per-contract IV history, and
// date filtering.
package flow

import (
	"regexp"
	"time"
)

// Clock supplies the current time. The normalizer only reads the calendar
// date from it.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the local wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// TodayLayout is the date prefix applied to time-only timestamps, e.g.
// "Oct 16, 2026".
const TodayLayout = "Jan 2, 2006"

var (
	// "10/9/25 22:58:21", "10-9-2025 22:58:21"
	numericDateRe = regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	// "Mar 14 2024 10:30:25", "Oct 16, 2026 09:31:05"
	longDateRe = regexp.MustCompile(`[A-Za-z]+ \d+,? \d{4}`)
)

// HasDate reports whether raw already carries a calendar date.
func HasDate(raw string) bool {
	return numericDateRe.MatchString(raw) || longDateRe.MatchString(raw)
}

// NormalizeTimestamp returns raw unchanged when it already carries a date.
// Otherwise raw is treated as a bare time of day and prefixed with the
// clock's current date; isTimeOnly is true in that case.
func NormalizeTimestamp(raw string, clock Clock) (ts string, isTimeOnly bool) {
	if HasDate(raw) {
		return raw, false
	}
	if clock == nil {
		clock = SystemClock
	}
	return clock.Now().Format(TodayLayout) + " " + raw, true
}
