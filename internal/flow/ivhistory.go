package flow

import (
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"flowdesk/internal/domain"
)

// IVPoint is one print of a contract on the IV chart.
type IVPoint struct {
	Time     time.Time `json:"time"`
	IV       float64   `json:"iv"` // percent, e.g. 13.23
	Quantity int       `json:"quantity"`
	Price    float64   `json:"price"`
}

// IVHistory is the implied-volatility trail of a single contract.
type IVHistory struct {
	Contract    string    `json:"contract"`
	Points      []IVPoint `json:"points"`
	AverageIV   float64   `json:"averageIV"`
	MedianIV    float64   `json:"medianIV"`
	TotalVolume int       `json:"totalVolume"`
	Latest      *IVPoint  `json:"latest,omitempty"`
}

// ParseIV reads an IV field such as "13.23%" as a percentage.
func ParseIV(s string) (float64, bool) {
	return parseNumber(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

// BuildIVHistory collects the prints of contract in time order. Prints that
// land on an already used timestamp are pushed forward one second at a time
// so every point has a distinct time. Prints with an unparseable time or IV
// are left out.
func BuildIVHistory(trades []domain.OptionTrade, contract string, loc *time.Location) IVHistory {
	h := IVHistory{Contract: contract, Points: make([]IVPoint, 0)}
	used := make(map[int64]bool)
	var ivs stats.Float64Data

	for i := range trades {
		t := &trades[i]
		if t.Contract != contract {
			continue
		}
		ts, err := ParseTime(t.Timestamp, loc)
		if err != nil {
			continue
		}
		iv, ok := ParseIV(t.IV)
		if !ok {
			continue
		}
		for used[ts.UnixMilli()] {
			ts = ts.Add(time.Second)
		}
		used[ts.UnixMilli()] = true

		h.Points = append(h.Points, IVPoint{Time: ts, IV: iv, Quantity: t.Quantity, Price: t.Price})
		h.TotalVolume += t.Quantity
		ivs = append(ivs, iv)
	}

	sort.SliceStable(h.Points, func(i, j int) bool {
		return h.Points[i].Time.Before(h.Points[j].Time)
	})

	if len(ivs) > 0 {
		h.AverageIV, _ = stats.Mean(ivs)
		h.MedianIV, _ = stats.Median(ivs)
		latest := h.Points[len(h.Points)-1]
		h.Latest = &latest
	}
	return h
}

// Contracts returns the distinct contract descriptors in first-seen order.
func Contracts(trades []domain.OptionTrade) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for i := range trades {
		if !seen[trades[i].Contract] {
			seen[trades[i].Contract] = true
			out = append(out, trades[i].Contract)
		}
	}
	return out
}
