package sentiment

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"flowdesk/internal/domain"
)

// Band is a |delta| window used to pick trades for a level list. Max of 0
// leaves the window open above.
type Band struct {
	Name         string  `json:"name"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	ExclusiveMin bool    `json:"exclusiveMin"`
}

// HighBand selects trades with |delta| strictly above threshold.
func HighBand(threshold float64) Band {
	return Band{Name: "high", Min: threshold, ExclusiveMin: true}
}

// MidBand selects trades with lo <= |delta| <= hi.
func MidBand(lo, hi float64) Band {
	return Band{Name: "mid", Min: lo, Max: hi}
}

// Contains reports whether absDelta falls inside b.
func (b Band) Contains(absDelta float64) bool {
	if b.ExclusiveMin && absDelta <= b.Min {
		return false
	}
	if !b.ExclusiveMin && absDelta < b.Min {
		return false
	}
	return b.Max == 0 || absDelta <= b.Max
}

// LevelSentiment is the bullish and bearish premium printed at one
// breakeven.
type LevelSentiment struct {
	Level          float64 `json:"level"`
	BullishPremium float64 `json:"bullishPremium"`
	BearishPremium float64 `json:"bearishPremium"`
}

// Bullish is true only when bullish premium strictly outweighs bearish.
func (l LevelSentiment) Bullish() bool {
	return l.BullishPremium > l.BearishPremium
}

// String renders the level as "5895.10 bullish".
func (l LevelSentiment) String() string {
	word := "bearish"
	if l.Bullish() {
		word = "bullish"
	}
	return decimal.NewFromFloat(l.Level).StringFixed(2) + " " + word
}

// BandLevels nets premium per exact breakeven for trades inside band,
// ordered by level ascending.
func BandLevels(trades []domain.OptionTrade, band Band) []LevelSentiment {
	byLevel := make(map[float64]*LevelSentiment)
	for _, t := range trades {
		if !band.Contains(t.AbsDelta) {
			continue
		}
		l, ok := byLevel[t.Breakeven]
		if !ok {
			l = &LevelSentiment{Level: t.Breakeven}
			byLevel[t.Breakeven] = l
		}
		if bullish, _ := Bullish(t); bullish {
			l.BullishPremium += t.Premium()
		} else {
			l.BearishPremium += t.Premium()
		}
	}

	out := make([]LevelSentiment, 0, len(byLevel))
	for _, l := range byLevel {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

// FormatLevels joins levels into the clipboard form
// "5895.10 bullish, 5900.00 bearish".
func FormatLevels(levels []LevelSentiment) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = l.String()
	}
	return strings.Join(parts, ", ")
}
