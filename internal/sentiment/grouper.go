package sentiment

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"flowdesk/internal/domain"
)

// DefaultThreshold is the |delta| a trade must exceed to count as high
// conviction.
const DefaultThreshold = 0.64

// significantLevels is how many of the largest levels compete for the signal.
const significantLevels = 3

// ErrUnknownSortField is returned for a sort key or order that is not
// recognised.
var ErrUnknownSortField = errors.New("sentiment: unknown sort field")

// Direction is where a level's first trade expects the underlying to close.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// Action is the trade the signal recommends.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// SortField selects the key Analyze orders levels by.
type SortField string

const (
	SortByDistance SortField = "distance"
	SortByLevel    SortField = "level"
	SortByPremium  SortField = "premium"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortField accepts distance, level or premium; empty means distance.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return SortByDistance, nil
	case SortByDistance, SortByLevel, SortByPremium:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortField, s)
}

// ParseSortOrder accepts asc or desc; empty means asc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return SortAsc, nil
	case SortAsc, SortDesc:
		return o, nil
	}
	return "", fmt.Errorf("%w: order %q", ErrUnknownSortField, s)
}

// Level aggregates every high-delta trade sharing one exact breakeven.
type Level struct {
	Level        float64              `json:"level"`
	TotalPremium float64              `json:"totalPremium"`
	Direction    Direction            `json:"direction"` // fixed by the first trade
	Trades       []domain.OptionTrade `json:"trades"`
	Distance     float64              `json:"distance"` // level - spot
}

// Signal is the actionable read of the nearest significant level.
type Signal struct {
	Action     Action   `json:"action"`
	Entry      float64  `json:"entry"`
	Target     float64  `json:"target"`
	NextTarget *float64 `json:"nextTarget,omitempty"`
	Points     float64  `json:"points"`
	Premium    float64  `json:"premium"`
}

// Analysis is the result of one grouping pass.
type Analysis struct {
	Levels          []Level `json:"levels"`
	Signal          *Signal `json:"signal"`
	MalformedQuotes int     `json:"malformedQuotes"`
}

// Options controls Analyze.
type Options struct {
	Threshold float64
	SpotPrice float64
	SortField SortField
	SortOrder SortOrder
}

// DefaultOptions returns the dashboard defaults for the given spot price.
func DefaultOptions(spot float64) Options {
	return Options{
		Threshold: DefaultThreshold,
		SpotPrice: spot,
		SortField: SortByDistance,
		SortOrder: SortAsc,
	}
}

// Analyze groups trades with AbsDelta strictly above opts.Threshold by exact
// breakeven and derives the signal. It keeps no state between calls.
func Analyze(trades []domain.OptionTrade, opts Options) Analysis {
	a := Analysis{Levels: make([]Level, 0)}
	index := make(map[float64]int)

	for _, t := range trades {
		if !(t.AbsDelta > opts.Threshold) {
			continue
		}
		buy, ok := IsBuy(t)
		if !ok {
			a.MalformedQuotes++
		}
		dir := DirectionBelow
		if (t.Type == domain.OptionTypeCall && buy) || (t.Type == domain.OptionTypePut && !buy) {
			dir = DirectionAbove
		}

		if i, found := index[t.Breakeven]; found {
			a.Levels[i].TotalPremium += t.Premium()
			a.Levels[i].Trades = append(a.Levels[i].Trades, t)
			continue
		}
		index[t.Breakeven] = len(a.Levels)
		a.Levels = append(a.Levels, Level{
			Level:        t.Breakeven,
			TotalPremium: t.Premium(),
			Direction:    dir,
			Trades:       []domain.OptionTrade{t},
			Distance:     t.Breakeven - opts.SpotPrice,
		})
	}

	a.Signal = deriveSignal(a.Levels, opts.SpotPrice)
	sortLevels(a.Levels, opts.SortField, opts.SortOrder)
	return a
}

func deriveSignal(levels []Level, spot float64) *Signal {
	if len(levels) == 0 {
		return nil
	}
	byPremium := make([]Level, len(levels))
	copy(byPremium, levels)
	sort.SliceStable(byPremium, func(i, j int) bool {
		return math.Abs(byPremium[i].TotalPremium) > math.Abs(byPremium[j].TotalPremium)
	})

	top := byPremium[:min(significantLevels, len(byPremium))]
	target := top[0]
	for _, l := range top[1:] {
		if math.Abs(l.Distance) < math.Abs(target.Distance) {
			target = l
		}
	}

	sig := &Signal{
		Action:  ActionSell,
		Entry:   spot,
		Target:  target.Level,
		Points:  math.Abs(target.Distance),
		Premium: target.TotalPremium,
	}
	if target.Direction == DirectionAbove {
		sig.Action = ActionBuy
	}
	for _, l := range byPremium {
		if (target.Direction == DirectionAbove && l.Level > target.Level) ||
			(target.Direction != DirectionAbove && l.Level < target.Level) {
			next := l.Level
			sig.NextTarget = &next
			break
		}
	}
	return sig
}

func sortLevels(levels []Level, field SortField, order SortOrder) {
	if field == "" {
		field = SortByDistance
	}
	key := func(l Level) float64 {
		switch field {
		case SortByLevel:
			return l.Level
		case SortByPremium:
			return l.TotalPremium
		}
		return math.Abs(l.Distance)
	}
	sort.SliceStable(levels, func(i, j int) bool {
		if order == SortDesc {
			return key(levels[i]) > key(levels[j])
		}
		return key(levels[i]) < key(levels[j])
	})
}
