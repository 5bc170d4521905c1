package dashboard

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"flowdesk/internal/domain"
	"flowdesk/internal/flow"
	"flowdesk/internal/sentiment"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	return table
}

// RenderTrades writes one row per parsed trade.
func RenderTrades(w io.Writer, trades []domain.OptionTrade) {
	table := newTable(w, "Time", "Contract", "Type", "Qty", "Price", "Bid x Ask", "Delta", "IV", "Underlying", "Breakeven", "Premium")
	for _, t := range trades {
		table.Append([]string{
			t.Timestamp,
			t.Contract,
			t.Type.String(),
			FormatVolume(t.Quantity),
			FormatPrice(t.Price),
			t.BidAsk,
			FormatDelta(t.Delta),
			t.IV,
			FormatPrice(t.UnderlyingPrice),
			FormatPrice(t.Breakeven),
			FormatPremium(t.Premium()),
		})
	}
	table.Render()
}

// RenderSummary writes the call and put sides of the summary side by side.
func RenderSummary(w io.Writer, s domain.OptionsSummary, putCallRatio float64) {
	table := newTable(w, "", "Calls", "Puts")
	table.Append([]string{"Volume", FormatVolume(s.TotalCallVolume), FormatVolume(s.TotalPutVolume)})
	table.Append([]string{"Avg Price", FormatPrice(s.AverageCallPrice), FormatPrice(s.AveragePutPrice)})
	table.Append([]string{"Avg Breakeven", FormatPrice(s.AverageCallBreakeven), FormatPrice(s.AveragePutBreakeven)})
	table.SetFooter([]string{"P/C Ratio", FormatRatio(putCallRatio), ""})
	table.Render()
}

// RenderSentiment writes the grouped levels followed by the signal line.
func RenderSentiment(w io.Writer, a sentiment.Analysis, spot float64) {
	table := newTable(w, "Level", "Premium", "Expect", "Distance", "Trades")
	for _, l := range a.Levels {
		table.Append([]string{
			FormatPrice(l.Level),
			FormatPremium(l.TotalPremium),
			"close " + string(l.Direction),
			FormatDistance(l.Distance),
			strconv.Itoa(len(l.Trades)),
		})
	}
	table.Render()

	fmt.Fprintf(w, "Spot: %s\n", FormatSpot(spot))
	if a.MalformedQuotes > 0 {
		fmt.Fprintf(w, "Malformed bid/ask quotes: %d (classified as sells)\n", a.MalformedQuotes)
	}
	RenderSignal(w, a.Signal)
}

// RenderSignal writes a one-line summary of the signal.
func RenderSignal(w io.Writer, s *sentiment.Signal) {
	if s == nil {
		fmt.Fprintln(w, "Signal: none")
		return
	}
	next := "-"
	if s.NextTarget != nil {
		next = FormatPrice(*s.NextTarget)
	}
	fmt.Fprintf(w, "Signal: %s  entry %s  target %s  next %s  (%.1f points, %s)\n",
		s.Action, FormatPrice(s.Entry), FormatPrice(s.Target), next, s.Points, FormatPremium(s.Premium))
}

// RenderHistogram writes one row per bin, marking the bin holding spot.
func RenderHistogram(w io.Writer, bins []sentiment.Bin, spot float64) {
	table := newTable(w, "", "From", "To", "Bullish", "Bearish", "Total", "Bullish %")
	for _, b := range bins {
		mark := ""
		if b.Contains(spot) {
			mark = "*"
		}
		table.Append([]string{
			mark,
			strconv.FormatFloat(b.StartPrice, 'f', -1, 64),
			strconv.FormatFloat(b.EndPrice, 'f', -1, 64),
			FormatPremium(b.BullishPremium),
			FormatPremium(b.BearishPremium),
			FormatPremium(b.TotalPremium),
			FormatPercent(b.BullishPercentage),
		})
	}
	table.Render()
}

// RenderBandLevels writes per-level bullish and bearish premium.
func RenderBandLevels(w io.Writer, levels []sentiment.LevelSentiment) {
	table := newTable(w, "Level", "Bullish", "Bearish", "Net")
	for _, l := range levels {
		net := "bearish"
		if l.Bullish() {
			net = "bullish"
		}
		table.Append([]string{
			FormatPrice(l.Level),
			FormatPremium(l.BullishPremium),
			FormatPremium(l.BearishPremium),
			net,
		})
	}
	table.Render()
}

// RenderSeries writes one row per minute of flow.
func RenderSeries(w io.Writer, fs flow.FlowSeries) {
	table := newTable(w, "Minute", "Calls", "Puts", "Net")
	for _, p := range fs.Points {
		table.Append([]string{
			p.Time.Format("Jan 2 15:04"),
			FormatVolume(p.Calls),
			FormatVolume(p.Puts),
			FormatVolume(p.Net),
		})
	}
	table.SetFooter([]string{fs.Range.Label, FormatVolume(fs.TotalCalls), FormatVolume(fs.TotalPuts), FormatVolume(fs.Net)})
	table.Render()
}

// RenderIV writes the IV trail of one contract.
func RenderIV(w io.Writer, h flow.IVHistory) {
	table := newTable(w, "Time", "IV", "Qty", "Price")
	for _, p := range h.Points {
		table.Append([]string{
			p.Time.Format("Jan 2 15:04:05"),
			FormatPercent(p.IV),
			FormatVolume(p.Quantity),
			FormatPrice(p.Price),
		})
	}
	table.SetFooter([]string{"avg / median", FormatPercent(h.AverageIV), FormatPercent(h.MedianIV), FormatVolume(h.TotalVolume)})
	table.Render()
}

// RenderContracts writes per-contract statistics.
func RenderContracts(w io.Writer, ss []ContractStats) {
	table := newTable(w, "Contract", "Trades", "Volume", "Premium", "Open", "High", "Low", "Close", "VWAP")
	for _, s := range ss {
		table.Append([]string{
			s.Contract,
			FormatVolume(s.Trades),
			FormatVolume(s.Volume),
			FormatPremium(s.Premium),
			FormatPrice(s.Open),
			FormatPrice(s.High),
			FormatPrice(s.Low),
			FormatPrice(s.Close),
			FormatPrice(s.VWAP),
		})
	}
	table.Render()
}
