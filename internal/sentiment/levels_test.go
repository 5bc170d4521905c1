package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowdesk/internal/domain"
)

func withDelta(tr domain.OptionTrade, abs float64) domain.OptionTrade {
	tr.AbsDelta = abs
	return tr
}

func TestBandContains(t *testing.T) {
	high := HighBand(0.64)
	assert.False(t, high.Contains(0.64))
	assert.True(t, high.Contains(0.6401))
	assert.True(t, high.Contains(1))

	mid := MidBand(0.5, 0.6)
	assert.True(t, mid.Contains(0.5))
	assert.True(t, mid.Contains(0.6))
	assert.False(t, mid.Contains(0.61))
	assert.False(t, mid.Contains(0.49))
}

func TestBandLevels(t *testing.T) {
	trades := []domain.OptionTrade{
		withDelta(trade(domain.OptionTypeCall, 5900, 2, 10, "1x3"), 0.7),  // bullish 2000
		withDelta(trade(domain.OptionTypeCall, 5900, 1, 5, "1x3"), 0.7),   // bearish 500
		withDelta(trade(domain.OptionTypePut, 5895.1, 2, 1, "1x3"), 0.8),  // bearish 200
		withDelta(trade(domain.OptionTypePut, 5895.1, 1, 2, "1x3"), 0.8),  // bullish 200
		withDelta(trade(domain.OptionTypeCall, 5910, 2, 1, "1x3"), 0.55),  // mid band only
	}

	high := BandLevels(trades, HighBand(0.64))
	require.Len(t, high, 2)
	assert.Equal(t, 5895.1, high[0].Level)
	assert.False(t, high[0].Bullish(), "ties are bearish")
	assert.True(t, high[1].Bullish())
	assert.Equal(t, "5895.10 bearish, 5900.00 bullish", FormatLevels(high))

	mid := BandLevels(trades, MidBand(0.5, 0.6))
	require.Len(t, mid, 1)
	assert.Equal(t, "5910.00 bullish", FormatLevels(mid))

	assert.Equal(t, "", FormatLevels(BandLevels(nil, HighBand(0.64))))
}
