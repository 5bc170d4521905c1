// Package dashboard renders flowdesk views for terminals: number formatting,
// per-contract aggregation, and tablewriter tables used by the CLI.
package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatVolume formats a contract count with comma separators.
func FormatVolume(n int) string {
	return humanize.Comma(int64(n))
}

// FormatPremium formats a dollar premium with B/M/K suffixes.
func FormatPremium(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%s$%.1fB", sign, v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%s$%.1fM", sign, v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%s$%.1fK", sign, v/1e3)
	default:
		return fmt.Sprintf("%s$%.0f", sign, v)
	}
}

// FormatPrice formats a price or breakeven with two decimals, or "-" for
// non-finite values.
func FormatPrice(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "-"
	}
	return humanize.FormatFloat("#,###.##", p)
}

// FormatSpot is FormatPrice with "-" for an unset (non-positive) spot.
func FormatSpot(p float64) string {
	if p <= 0 {
		return "-"
	}
	return FormatPrice(p)
}

// FormatDelta formats a delta string as its magnitude with two decimals.
// Unparseable input is returned unchanged.
func FormatDelta(delta string) string {
	d, err := strconv.ParseFloat(strings.TrimSpace(delta), 64)
	if err != nil {
		return delta
	}
	return strconv.FormatFloat(math.Abs(d), 'f', 2, 64)
}

// FormatPercent formats a 0-100 percentage as "66.7%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// FormatDistance formats a level's distance from spot as "12.00 above" or
// "3.50 below".
func FormatDistance(d float64) string {
	if d < 0 {
		return fmt.Sprintf("%.2f below", -d)
	}
	return fmt.Sprintf("%.2f above", d)
}

// FormatRatio formats a put/call ratio, or "-" when undefined.
func FormatRatio(r float64) string {
	if r == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", r)
}
