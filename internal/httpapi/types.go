// Package httpapi serves the flowdesk dashboard API: JSON endpoints over the
// desk, a WebSocket push of reports, and Prometheus metrics.
package httpapi

import (
	"time"

	"flowdesk/internal/domain"
	"flowdesk/internal/flow"
	"flowdesk/internal/live"
	"flowdesk/internal/sentiment"
)

// FlowResponse is returned after loading or appending flow text.
type FlowResponse struct {
	BatchID string                `json:"batchId"`
	Mode    string                `json:"mode"` // load | append
	Stats   flow.ParseStats       `json:"stats"`
	Trades  int                   `json:"trades"`
	Summary domain.OptionsSummary `json:"summary"`
}

// TradesResponse lists the trades selected by a date filter.
type TradesResponse struct {
	Date   string               `json:"date,omitempty"`
	Today  bool                 `json:"today,omitempty"`
	Count  int                  `json:"count"`
	Trades []domain.OptionTrade `json:"trades"`
}

// SummaryResponse is the aggregate view of the selected trades.
type SummaryResponse struct {
	Summary      domain.OptionsSummary `json:"summary"`
	PutCallRatio float64               `json:"putCallRatio"`
	Stats        flow.ParseStats       `json:"stats"`
	Trades       int                   `json:"trades"`
}

// SentimentResponse wraps the grouping with the inputs it was computed for.
type SentimentResponse struct {
	Spot      float64             `json:"spot"`
	Threshold float64             `json:"threshold"`
	SortField sentiment.SortField `json:"sortField"`
	SortOrder sentiment.SortOrder `json:"sortOrder"`
	sentiment.Analysis
}

// HistogramResponse lists histogram bins, highest first.
type HistogramResponse struct {
	Spot         float64         `json:"spot"`
	RoundFigures bool            `json:"roundFigures"`
	Bins         []sentiment.Bin `json:"bins"`
}

// LevelsResponse is a copyable level list for one delta band.
type LevelsResponse struct {
	Band   sentiment.Band             `json:"band"`
	Levels []sentiment.LevelSentiment `json:"levels"`
	Text   string                     `json:"text"`
}

// SpotResponse reports the desk's spot price.
type SpotResponse struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// SpotRequest manually overrides the spot price.
type SpotRequest struct {
	Price float64 `json:"price"`
}

// CandlesResponse holds recent 1-minute candles of the spot symbol.
type CandlesResponse struct {
	Symbol  string          `json:"symbol"`
	Candles []domain.Candle `json:"candles"`
}

// ExportResponse names the file written by an export.
type ExportResponse struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Trades int    `json:"trades"`
}

// WSMessage is pushed to WebSocket clients.
type WSMessage struct {
	Type   string       `json:"type"` // report
	Event  *live.Event  `json:"event,omitempty"`
	Report *live.Report `json:"report"`
}
