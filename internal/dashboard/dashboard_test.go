package dashboard

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"flowdesk/internal/domain"
	"flowdesk/internal/sentiment"
)

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{149, "149"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-2500, "-2,500"},
	}
	for _, tt := range tests {
		if got := FormatVolume(tt.in); got != tt.want {
			t.Errorf("FormatVolume(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPremium(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1490, "$1.5K"},
		{999, "$999"},
		{2_500_000, "$2.5M"},
		{3_100_000_000, "$3.1B"},
		{-1500, "-$1.5K"},
	}
	for _, tt := range tests {
		if got := FormatPremium(tt.in); got != tt.want {
			t.Errorf("FormatPremium(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPriceAndDelta(t *testing.T) {
	if got := FormatPrice(5895.1); got != "5,895.10" {
		t.Errorf("FormatPrice(5895.1) = %q, want %q", got, "5,895.10")
	}
	if got := FormatPrice(0); got != "0.00" {
		t.Errorf("FormatPrice(0) = %q, want %q", got, "0.00")
	}
	if got := FormatPrice(math.NaN()); got != "-" {
		t.Errorf("FormatPrice(NaN) = %q, want %q", got, "-")
	}
	if got := FormatSpot(0); got != "-" {
		t.Errorf("FormatSpot(0) = %q, want %q", got, "-")
	}
	if got := FormatDelta("-0.456"); got != "0.46" {
		t.Errorf("FormatDelta(-0.456) = %q, want %q", got, "0.46")
	}
	if got := FormatDelta("n/a"); got != "n/a" {
		t.Errorf("FormatDelta(n/a) = %q, want %q", got, "n/a")
	}
	if got := FormatDistance(-3.5); got != "3.50 below" {
		t.Errorf("FormatDistance(-3.5) = %q, want %q", got, "3.50 below")
	}
}

func contractTrade(contract, ts string, qty int, price float64) domain.OptionTrade {
	return domain.OptionTrade{Contract: contract, Timestamp: ts, Quantity: qty, Price: price, Type: domain.OptionTypeCall}
}

func TestAggregateContracts(t *testing.T) {
	trades := []domain.OptionTrade{
		contractTrade("A", "Oct 16, 2026 10:05:00", 10, 2.0),
		contractTrade("B", "Oct 16, 2026 10:00:00", 100, 0.5),
		contractTrade("A", "Oct 16, 2026 10:00:00", 30, 1.0),
		contractTrade("A", "unparsed", 10, 3.0),
	}

	ss := AggregateContracts(trades, SortContractsByPremium, 0)
	if len(ss) != 2 {
		t.Fatalf("len = %d, want 2", len(ss))
	}

	a := ss[0]
	if a.Contract != "A" {
		t.Fatalf("first contract = %q, want A (premium 8000 > 5000)", a.Contract)
	}
	if a.Trades != 3 || a.Volume != 50 {
		t.Errorf("A trades/volume = %d/%d, want 3/50", a.Trades, a.Volume)
	}
	if a.Open != 1.0 || a.Close != 3.0 {
		t.Errorf("A open/close = %v/%v, want 1/3", a.Open, a.Close)
	}
	if a.High != 3.0 || a.Low != 1.0 {
		t.Errorf("A high/low = %v/%v, want 3/1", a.High, a.Low)
	}
	if a.VWAP != 1.6 {
		t.Errorf("A VWAP = %v, want 1.6", a.VWAP)
	}

	ss = AggregateContracts(trades, ParseContractSort("volume"), 1)
	if len(ss) != 1 || ss[0].Contract != "B" {
		t.Errorf("top by volume = %+v, want B only", ss)
	}
}

func TestRenderSentiment(t *testing.T) {
	next := 5950.0
	a := sentiment.Analysis{
		Levels: []sentiment.Level{
			{Level: 5910, TotalPremium: 10000, Direction: sentiment.DirectionAbove, Distance: 10, Trades: make([]domain.OptionTrade, 2)},
		},
		Signal: &sentiment.Signal{Action: sentiment.ActionBuy, Entry: 5900, Target: 5910, NextTarget: &next, Points: 10, Premium: 10000},
	}

	var buf bytes.Buffer
	RenderSentiment(&buf, a, 5900)
	out := buf.String()

	for _, want := range []string{"5,910.00", "$10.0K", "close above", "10.00 above", "Signal: BUY", "next 5,950.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	RenderSignal(&buf, nil)
	if got := buf.String(); got != "Signal: none\n" {
		t.Errorf("RenderSignal(nil) = %q", got)
	}
}
