package live

import (
	"time"

	"flowdesk/internal/config"
	"flowdesk/internal/domain"
	"flowdesk/internal/flow"
	"flowdesk/internal/sentiment"
)

// ReportOptions selects the inputs of a Report that are not desk state.
type ReportOptions struct {
	Sentiment    sentiment.Options // SpotPrice of 0 means the desk spot
	MidDeltaMin  float64
	MidDeltaMax  float64
	RoundFigures bool
	Filter       flow.DateFilter
}

// DefaultReportOptions returns the dashboard defaults.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{
		Sentiment:   sentiment.DefaultOptions(0),
		MidDeltaMin: 0.50,
		MidDeltaMax: 0.60,
	}
}

// ReportOptionsFromConfig builds ReportOptions from the sentiment section of
// the config. Unknown sort keys fall back to the defaults; Validate rejects
// them earlier.
func ReportOptionsFromConfig(s config.Sentiment) ReportOptions {
	opts := DefaultReportOptions()
	opts.Sentiment.Threshold = s.DeltaThreshold
	if f, err := sentiment.ParseSortField(s.SortField); err == nil {
		opts.Sentiment.SortField = f
	}
	if o, err := sentiment.ParseSortOrder(s.SortOrder); err == nil {
		opts.Sentiment.SortOrder = o
	}
	opts.MidDeltaMin = s.MidDeltaMin
	opts.MidDeltaMax = s.MidDeltaMax
	opts.RoundFigures = s.HistogramRoundFigures
	return opts
}

// Report is every derived view of one snapshot.
type Report struct {
	BatchID        string                     `json:"batchId"`
	UpdatedAt      time.Time                  `json:"updatedAt"`
	Spot           float64                    `json:"spot"`
	TradeCount     int                        `json:"tradeCount"`
	Stats          flow.ParseStats            `json:"stats"`
	Dates          []string                   `json:"dates"`
	Summary        domain.OptionsSummary      `json:"summary"`
	PutCallRatio   float64                    `json:"putCallRatio"`
	Sentiment      sentiment.Analysis         `json:"sentiment"`
	Histogram      []sentiment.Bin            `json:"histogram"`
	HighLevels     []sentiment.LevelSentiment `json:"highLevels"`
	HighLevelsText string                     `json:"highLevelsText"`
	MidLevels      []sentiment.LevelSentiment `json:"midLevels"`
	MidLevelsText  string                     `json:"midLevelsText"`
}

// BuildReport derives a Report from snap. Date filtering applies to every
// view; Dates always lists the days of the whole batch.
func BuildReport(snap Snapshot, opts ReportOptions, clock flow.Clock) Report {
	trades := flow.FilterTrades(snap.Trades, opts.Filter, clock)

	sopts := opts.Sentiment
	if sopts.SpotPrice == 0 {
		sopts.SpotPrice = snap.Spot
	}
	high := sentiment.BandLevels(trades, sentiment.HighBand(sopts.Threshold))
	mid := sentiment.BandLevels(trades, sentiment.MidBand(opts.MidDeltaMin, opts.MidDeltaMax))

	return Report{
		BatchID:        snap.BatchID,
		UpdatedAt:      snap.UpdatedAt,
		Spot:           sopts.SpotPrice,
		TradeCount:     len(trades),
		Stats:          snap.Stats,
		Dates:          flow.TradeDates(snap.Trades, clock),
		Summary:        flow.Summarize(trades),
		PutCallRatio:   flow.PutCallRatio(trades),
		Sentiment:      sentiment.Analyze(trades, sopts),
		Histogram:      sentiment.Histogram(trades, opts.RoundFigures),
		HighLevels:     high,
		HighLevelsText: sentiment.FormatLevels(high),
		MidLevels:      mid,
		MidLevelsText:  sentiment.FormatLevels(mid),
	}
}

// Report derives a Report from the current desk state.
func (d *Desk) Report(opts ReportOptions) Report {
	return BuildReport(d.Snapshot(), opts, d.clock)
}
