package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowdesk/internal/domain"
)

func flowTrade(ts string, typ domain.OptionType, qty int, absDelta float64) domain.OptionTrade {
	return domain.OptionTrade{Timestamp: ts, Type: typ, Quantity: qty, AbsDelta: absDelta}
}

func TestBuildFlowSeries(t *testing.T) {
	trades := []domain.OptionTrade{
		flowTrade("Oct 16, 2026 10:00:05", domain.OptionTypeCall, 10, 0.5),
		flowTrade("Oct 16, 2026 10:00:55", domain.OptionTypePut, 4, 0.45),
		flowTrade("Oct 16, 2026 09:59:00", domain.OptionTypeCall, 7, 0.55),
		flowTrade("Oct 16, 2026 10:00:10", domain.OptionTypeCall, 100, 0.9), // out of band
		flowTrade("garbage", domain.OptionTypePut, 3, 0.5),
	}
	atm, ok := PresetByName("ATM")
	require.True(t, ok)

	fs := BuildFlowSeries(trades, atm, time.UTC)

	require.Len(t, fs.Points, 2)
	assert.Equal(t, time.Date(2026, 10, 16, 9, 59, 0, 0, time.UTC), fs.Points[0].Time.UTC())
	assert.Equal(t, 7, fs.Points[0].Calls)
	assert.Equal(t, FlowPoint{Time: fs.Points[1].Time, Calls: 10, Puts: 4, Net: 6}, fs.Points[1])

	assert.Equal(t, 17, fs.TotalCalls)
	assert.Equal(t, 7, fs.TotalPuts)
	assert.Equal(t, 10, fs.Net)
	assert.Equal(t, 1, fs.Skipped)
}

func TestDeltaRangeInclusive(t *testing.T) {
	r := DeltaRange{Min: 0.4, Max: 0.6}
	assert.True(t, r.Contains(0.4))
	assert.True(t, r.Contains(0.6))
	assert.False(t, r.Contains(0.61))

	_, ok := PresetByName("nope")
	assert.False(t, ok)
}
