package sentiment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowdesk/internal/domain"
)

// trade builds a high-delta print. A bidAsk of "1x3" puts the mid at 2.
func trade(typ domain.OptionType, breakeven, price float64, qty int, bidAsk string) domain.OptionTrade {
	return domain.OptionTrade{
		Type:      typ,
		Breakeven: breakeven,
		Price:     price,
		Quantity:  qty,
		BidAsk:    bidAsk,
		AbsDelta:  0.8,
		Delta:     "0.80",
	}
}

func TestAnalyzeGroupsByExactBreakeven(t *testing.T) {
	trades := []domain.OptionTrade{
		trade(domain.OptionTypeCall, 5900, 2, 10, "1x3"),
		trade(domain.OptionTypeCall, 5900, 3, 5, "1x3"),
		trade(domain.OptionTypeCall, 5900.01, 2, 1, "1x3"),
	}

	a := Analyze(trades, DefaultOptions(5890))

	require.Len(t, a.Levels, 2)
	byLevel := map[float64]Level{}
	for _, l := range a.Levels {
		byLevel[l.Level] = l
	}
	assert.Equal(t, 2*10*100+3*5*100.0, byLevel[5900].TotalPremium)
	assert.Len(t, byLevel[5900].Trades, 2)
	assert.Equal(t, 200.0, byLevel[5900.01].TotalPremium)
	assert.InDelta(t, 10.0, byLevel[5900].Distance, 1e-9)
}

func TestAnalyzeThresholdIsStrict(t *testing.T) {
	at := trade(domain.OptionTypeCall, 5900, 2, 1, "1x3")
	at.AbsDelta = 0.64
	above := trade(domain.OptionTypeCall, 5910, 2, 1, "1x3")
	above.AbsDelta = 0.6401

	a := Analyze([]domain.OptionTrade{at, above}, DefaultOptions(5900))

	require.Len(t, a.Levels, 1)
	assert.Equal(t, 5910.0, a.Levels[0].Level)
}

func TestAnalyzeDirection(t *testing.T) {
	tests := []struct {
		name   string
		typ    domain.OptionType
		price  float64
		bidAsk string
		want   Direction
	}{
		{"call bought", domain.OptionTypeCall, 2, "1x3", DirectionAbove},
		{"call sold", domain.OptionTypeCall, 1.5, "1x3", DirectionBelow},
		{"put bought", domain.OptionTypePut, 2.5, "1x3", DirectionBelow},
		{"put sold", domain.OptionTypePut, 1, "1x3", DirectionAbove},
		{"call with malformed quote", domain.OptionTypeCall, 2, "n/a", DirectionBelow},
		{"put with malformed quote", domain.OptionTypePut, 2, "1x", DirectionAbove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Analyze([]domain.OptionTrade{trade(tt.typ, 5900, tt.price, 1, tt.bidAsk)}, DefaultOptions(5900))
			require.Len(t, a.Levels, 1)
			assert.Equal(t, tt.want, a.Levels[0].Direction)
		})
	}
}

func TestAnalyzeFirstTradeFixesDirection(t *testing.T) {
	trades := []domain.OptionTrade{
		trade(domain.OptionTypeCall, 5900, 2, 1, "1x3"),   // above
		trade(domain.OptionTypeCall, 5900, 1, 100, "1x3"), // below, larger
	}
	a := Analyze(trades, DefaultOptions(5900))
	require.Len(t, a.Levels, 1)
	assert.Equal(t, DirectionAbove, a.Levels[0].Direction)
}

func TestAnalyzeCountsMalformedQuotes(t *testing.T) {
	trades := []domain.OptionTrade{
		trade(domain.OptionTypeCall, 5900, 2, 1, "garbage"),
		trade(domain.OptionTypeCall, 5901, 2, 1, ".05x.10"),
	}
	var a Analysis
	require.NotPanics(t, func() { a = Analyze(trades, DefaultOptions(5900)) })
	assert.Equal(t, 1, a.MalformedQuotes)
}

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze(nil, DefaultOptions(5900))
	assert.Empty(t, a.Levels)
	assert.NotNil(t, a.Levels)
	assert.Nil(t, a.Signal)

	low := trade(domain.OptionTypeCall, 5900, 2, 1, "1x3")
	low.AbsDelta = 0.3
	a = Analyze([]domain.OptionTrade{low}, DefaultOptions(5900))
	assert.Empty(t, a.Levels)
	assert.Nil(t, a.Signal)
}

func TestAnalyzeSignal(t *testing.T) {
	trades := []domain.OptionTrade{
		trade(domain.OptionTypeCall, 5950, 2, 100, "1x3"), // premium 20000, dist 50, above
		trade(domain.OptionTypeCall, 5910, 2, 50, "1x3"),  // premium 10000, dist 10, above
		trade(domain.OptionTypePut, 5880, 2.5, 40, "1x3"), // premium 10000, dist -20, below
		trade(domain.OptionTypeCall, 5901, 2, 1, "1x3"),   // premium 200, not significant
		trade(domain.OptionTypeCall, 5930, 2, 60, "1x3"),  // premium 12000, dist 30, above
	}

	a := Analyze(trades, DefaultOptions(5900))

	require.NotNil(t, a.Signal)
	s := a.Signal
	// Top three by premium: 5950, 5930, 5910 (5910 precedes 5880 on the tie).
	assert.Equal(t, ActionBuy, s.Action)
	assert.Equal(t, 5910.0, s.Target)
	assert.Equal(t, 5900.0, s.Entry)
	assert.InDelta(t, 10.0, s.Points, 1e-9)
	assert.Equal(t, 10000.0, s.Premium)
	require.NotNil(t, s.NextTarget)
	assert.Equal(t, 5950.0, *s.NextTarget)
}

func TestAnalyzeSellSignalWithoutNextTarget(t *testing.T) {
	trades := []domain.OptionTrade{
		trade(domain.OptionTypePut, 5880, 2.5, 40, "1x3"), // below, dist -20
		trade(domain.OptionTypeCall, 5950, 2, 10, "1x3"),
	}
	a := Analyze(trades, DefaultOptions(5900))
	require.NotNil(t, a.Signal)
	assert.Equal(t, ActionSell, a.Signal.Action)
	assert.Equal(t, 5880.0, a.Signal.Target)
	assert.InDelta(t, 20.0, a.Signal.Points, 1e-9)
	assert.Nil(t, a.Signal.NextTarget)
}

func TestAnalyzeSort(t *testing.T) {
	trades := []domain.OptionTrade{
		trade(domain.OptionTypeCall, 5950, 2, 1, "1x3"),
		trade(domain.OptionTypeCall, 5890, 2, 3, "1x3"),
		trade(domain.OptionTypeCall, 5920, 2, 2, "1x3"),
	}
	levels := func(a Analysis) []float64 {
		out := make([]float64, len(a.Levels))
		for i, l := range a.Levels {
			out[i] = l.Level
		}
		return out
	}

	opts := DefaultOptions(5900)
	assert.Equal(t, []float64{5890, 5920, 5950}, levels(Analyze(trades, opts)))

	opts.SortOrder = SortDesc
	assert.Equal(t, []float64{5950, 5920, 5890}, levels(Analyze(trades, opts)))

	opts.SortField = SortByLevel
	assert.Equal(t, []float64{5950, 5920, 5890}, levels(Analyze(trades, opts)))

	opts.SortField, opts.SortOrder = SortByPremium, SortAsc
	assert.Equal(t, []float64{5950, 5920, 5890}, levels(Analyze(trades, opts)))
}

func TestParseSortField(t *testing.T) {
	f, err := ParseSortField("")
	require.NoError(t, err)
	assert.Equal(t, SortByDistance, f)

	f, err = ParseSortField("Premium")
	require.NoError(t, err)
	assert.Equal(t, SortByPremium, f)

	_, err = ParseSortField("volume")
	assert.True(t, errors.Is(err, ErrUnknownSortField))

	o, err := ParseSortOrder("DESC")
	require.NoError(t, err)
	assert.Equal(t, SortDesc, o)
	_, err = ParseSortOrder("sideways")
	assert.ErrorIs(t, err, ErrUnknownSortField)
}

func TestParseQuote(t *testing.T) {
	bid, ask, ok := ParseQuote(".05x.10")
	require.True(t, ok)
	assert.Equal(t, 0.05, bid)
	assert.Equal(t, 0.10, ask)

	for _, s := range []string{"", "x", ".05", ".05x", "axb", "1x2x3"} {
		_, _, ok := ParseQuote(s)
		assert.False(t, ok, s)
	}
}
