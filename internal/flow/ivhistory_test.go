package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowdesk/internal/domain"
)

func TestBuildIVHistory(t *testing.T) {
	const c = "24 OCT 24 5895 C"
	trades := []domain.OptionTrade{
		{Contract: c, Timestamp: "Oct 16, 2026 10:00:00", IV: "12.00%", Quantity: 10},
		{Contract: c, Timestamp: "Oct 16, 2026 10:00:00", IV: "14.00%", Quantity: 5},
		{Contract: "other", Timestamp: "Oct 16, 2026 10:00:00", IV: "99%", Quantity: 1},
		{Contract: c, Timestamp: "Oct 16, 2026 09:00:00", IV: "10%", Quantity: 1},
		{Contract: c, Timestamp: "Oct 16, 2026 09:30:00", IV: "n/a", Quantity: 1},
	}

	h := BuildIVHistory(trades, c, time.UTC)

	require.Len(t, h.Points, 3)
	assert.Equal(t, 10.0, h.Points[0].IV)
	assert.Equal(t, 12.0, h.Points[1].IV)
	assert.Equal(t, 14.0, h.Points[2].IV)
	// The second 10:00:00 print is pushed to 10:00:01.
	assert.Equal(t, time.Second, h.Points[2].Time.Sub(h.Points[1].Time))

	assert.InDelta(t, 12.0, h.AverageIV, 1e-12)
	assert.InDelta(t, 12.0, h.MedianIV, 1e-12)
	assert.Equal(t, 16, h.TotalVolume)
	require.NotNil(t, h.Latest)
	assert.Equal(t, 14.0, h.Latest.IV)
}

func TestBuildIVHistoryUnknownContract(t *testing.T) {
	h := BuildIVHistory(nil, "x", time.UTC)
	assert.Empty(t, h.Points)
	assert.Nil(t, h.Latest)
	assert.Zero(t, h.AverageIV)
}

func TestContracts(t *testing.T) {
	trades := []domain.OptionTrade{{Contract: "b"}, {Contract: "a"}, {Contract: "b"}}
	assert.Equal(t, []string{"b", "a"}, Contracts(trades))
}
