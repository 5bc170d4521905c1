package dashboard

import (
	"math"
	"sort"
	"strings"
	"time"

	"flowdesk/internal/domain"
	"flowdesk/internal/flow"
)

// ContractStats holds aggregated print statistics for a single contract.
type ContractStats struct {
	Contract string            `json:"contract"`
	Type     domain.OptionType `json:"type"`
	Strike   float64           `json:"strike"`
	Trades   int               `json:"trades"`
	Volume   int               `json:"volume"`
	Premium  float64           `json:"premium"` // sum(price * qty * 100)
	High     float64           `json:"high"`
	Low      float64           `json:"low"`
	Open     float64           `json:"open"`  // first print price (by timestamp)
	Close    float64           `json:"close"` // last print price (by timestamp)
	VWAP     float64           `json:"vwap"`
}

// ContractSort selects the order of AggregateContracts output.
type ContractSort string

const (
	SortContractsByPremium ContractSort = "premium"
	SortContractsByVolume  ContractSort = "volume"
	SortContractsByTrades  ContractSort = "trades"
)

// ParseContractSort accepts premium, volume or trades; anything else means
// premium.
func ParseContractSort(s string) ContractSort {
	switch c := ContractSort(strings.ToLower(s)); c {
	case SortContractsByVolume, SortContractsByTrades:
		return c
	}
	return SortContractsByPremium
}

// AggregateContracts computes per-contract statistics. Prints are ordered by
// parsed timestamp per contract for Open/Close; prints whose timestamp does
// not parse keep input order after the parsed ones. limit <= 0 keeps all.
func AggregateContracts(trades []domain.OptionTrade, mode ContractSort, limit int) []ContractStats {
	// Group trade indices by contract.
	groups := make(map[string][]int)
	order := make([]string, 0)
	for i := range trades {
		c := trades[i].Contract
		if _, ok := groups[c]; !ok {
			order = append(order, c)
		}
		groups[c] = append(groups[c], i)
	}

	times := make([]time.Time, len(trades))
	for i := range trades {
		if ts, err := flow.ParseTime(trades[i].Timestamp, time.UTC); err == nil {
			times[i] = ts
		}
	}

	out := make([]ContractStats, 0, len(groups))
	for _, contract := range order {
		indices := groups[contract]
		sort.SliceStable(indices, func(a, b int) bool {
			ta, tb := times[indices[a]], times[indices[b]]
			if ta.IsZero() || tb.IsZero() {
				return !ta.IsZero() && tb.IsZero()
			}
			return ta.Before(tb)
		})

		first := &trades[indices[0]]
		s := ContractStats{
			Contract: contract,
			Type:     first.Type,
			Strike:   first.Strike,
			Low:      math.MaxFloat64,
		}
		var notional float64
		for j, idx := range indices {
			t := &trades[idx]
			s.Trades++
			s.Volume += t.Quantity
			s.Premium += t.Premium()
			notional += t.Price * float64(t.Quantity)
			if t.Price > s.High {
				s.High = t.Price
			}
			if t.Price < s.Low {
				s.Low = t.Price
			}
			if j == 0 {
				s.Open = t.Price
			}
			s.Close = t.Price
		}
		if s.Volume > 0 {
			s.VWAP = notional / float64(s.Volume)
		}
		out = append(out, s)
	}

	sortContracts(out, mode)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortContracts(ss []ContractStats, mode ContractSort) {
	sort.SliceStable(ss, func(i, j int) bool {
		si, sj := &ss[i], &ss[j]
		switch mode {
		case SortContractsByVolume:
			if si.Volume != sj.Volume {
				return si.Volume > sj.Volume
			}
			return si.Premium > sj.Premium
		case SortContractsByTrades:
			if si.Trades != sj.Trades {
				return si.Trades > sj.Trades
			}
			return si.Premium > sj.Premium
		default:
			if si.Premium != sj.Premium {
				return si.Premium > sj.Premium
			}
			return si.Volume > sj.Volume
		}
	})
}
