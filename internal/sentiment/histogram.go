package sentiment

import (
	"math"
	"sort"

	"flowdesk/internal/domain"
)

// Bin is the bullish/bearish premium of one breakeven interval.
type Bin struct {
	StartPrice        float64 `json:"startPrice"`
	EndPrice          float64 `json:"endPrice"`
	BullishPremium    float64 `json:"bullishPremium"`
	BearishPremium    float64 `json:"bearishPremium"`
	TotalPremium      float64 `json:"totalPremium"`
	BullishPercentage float64 `json:"bullishPercentage"`
}

// Contains reports whether price lies in [StartPrice, EndPrice).
func (b Bin) Contains(price float64) bool {
	return price >= b.StartPrice && price < b.EndPrice
}

// roundHalfUp rounds .5 towards +Inf, so -2.5 becomes -2.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// Histogram bins every trade by breakeven. Bins are 5 points wide, or 1
// point when roundFigures is set, in which case breakevens are rounded to a
// whole number first. The result is ordered by StartPrice, highest first.
func Histogram(trades []domain.OptionTrade, roundFigures bool) []Bin {
	size := 5.0
	if roundFigures {
		size = 1
	}
	bins := make(map[float64]*Bin)
	for _, t := range trades {
		be := t.Breakeven
		if roundFigures {
			be = roundHalfUp(be)
		}
		start := roundHalfUp(be/size) * size
		b, ok := bins[start]
		if !ok {
			b = &Bin{StartPrice: start, EndPrice: start + size}
			bins[start] = b
		}
		premium := t.Premium()
		if bullish, _ := Bullish(t); bullish {
			b.BullishPremium += premium
		} else {
			b.BearishPremium += premium
		}
		b.TotalPremium += premium
	}

	out := make([]Bin, 0, len(bins))
	for _, b := range bins {
		if b.TotalPremium > 0 {
			b.BullishPercentage = b.BullishPremium / b.TotalPremium * 100
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartPrice > out[j].StartPrice })
	return out
}
