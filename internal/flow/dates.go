package flow

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"flowdesk/internal/domain"
)

// DayLayout is the canonical day key used for date filtering.
const DayLayout = "2006-01-02"

var (
	longDateExtractRe    = regexp.MustCompile(`([A-Za-z]{3,9})\.? (\d{1,2}),? (\d{4})`)
	numericDateExtractRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`)
)

// timeLayouts are tried in order by ParseTime.
var timeLayouts = []string{
	"Jan 2, 2006 15:04:05",
	"Jan 2 2006 15:04:05",
	"Jan 2, 2006 15:04",
	"Jan 2 2006 15:04",
	"1/2/06 15:04:05",
	"1/2/2006 15:04:05",
	"1-2-06 15:04:05",
	"1-2-2006 15:04:05",
	"1/2/06 15:04",
	"1/2/2006 15:04",
}

// ParseTime parses a normalized trade timestamp in loc. A nil loc means
// time.Local.
func ParseTime(ts string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	ts = strings.TrimSpace(ts)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, ts, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", ts)
}

// ExtractDate returns the trade's calendar day as "2006-01-02". Timestamps
// without a recognisable date fall back to the clock's current day.
func ExtractDate(ts string, clock Clock) string {
	if clock == nil {
		clock = SystemClock
	}
	if d, ok := extractDate(ts); ok {
		return d.Format(DayLayout)
	}
	return clock.Now().Format(DayLayout)
}

func extractDate(ts string) (time.Time, bool) {
	if m := numericDateExtractRe.FindStringSubmatch(ts); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		return validDate(year, time.Month(month), day)
	}
	if m := longDateExtractRe.FindStringSubmatch(ts); m != nil {
		name := m[1]
		abbr := strings.ToUpper(name[:1]) + strings.ToLower(name[1:3])
		mt, err := time.Parse("Jan", abbr)
		if err != nil {
			return time.Time{}, false
		}
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return validDate(year, mt.Month(), day)
	}
	return time.Time{}, false
}

func validDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// Reject rollovers such as Feb 31.
	if d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}

// IsToday reports whether ts falls on the clock's current day.
func IsToday(ts string, clock Clock) bool {
	if clock == nil {
		clock = SystemClock
	}
	return ExtractDate(ts, clock) == clock.Now().Format(DayLayout)
}

// TradeDates returns the distinct trade days, newest first.
func TradeDates(trades []domain.OptionTrade, clock Clock) []string {
	seen := make(map[string]bool)
	dates := make([]string, 0)
	for i := range trades {
		d := ExtractDate(trades[i].Timestamp, clock)
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

// DateFilter selects trades by day. TodayOnly wins over Date; an empty Date
// or "all" keeps every trade.
type DateFilter struct {
	TodayOnly bool
	Date      string
}

// FilterTrades returns the trades selected by f, preserving order.
func FilterTrades(trades []domain.OptionTrade, f DateFilter, clock Clock) []domain.OptionTrade {
	if !f.TodayOnly && (f.Date == "" || f.Date == "all") {
		return trades
	}
	out := make([]domain.OptionTrade, 0, len(trades))
	for i := range trades {
		if f.TodayOnly {
			if IsToday(trades[i].Timestamp, clock) {
				out = append(out, trades[i])
			}
			continue
		}
		if ExtractDate(trades[i].Timestamp, clock) == f.Date {
			out = append(out, trades[i])
		}
	}
	return out
}
