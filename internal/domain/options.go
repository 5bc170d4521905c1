// Package domain defines the core value types shared across flowdesk: parsed
// option prints, their per-batch summary, and index price candles.
package domain

import "time"

// OptionType is the contract type letter carried in the contract descriptor.
type OptionType string

const (
	OptionTypeCall OptionType = "C"
	OptionTypePut  OptionType = "P"
)

// Valid reports whether t is a call or a put.
func (t OptionType) Valid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// String returns "CALL" or "PUT".
func (t OptionType) String() string {
	switch t {
	case OptionTypeCall:
		return "CALL"
	case OptionTypePut:
		return "PUT"
	default:
		return string(t)
	}
}

// ContractMultiplier converts a per-contract premium into dollars.
const ContractMultiplier = 100

// OptionTrade is a single options print parsed from a flow line. Values are
// never mutated after parsing.
type OptionTrade struct {
	Timestamp       string     `json:"timestamp"`
	IsTimeOnly      bool       `json:"isTimeOnly,omitempty"` // original token had no date
	Contract        string     `json:"contract"`
	Quantity        int        `json:"quantity"`
	Price           float64    `json:"price"`
	Exchange        string     `json:"exchange"`
	BidAsk          string     `json:"bidAsk"`
	Delta           string     `json:"delta"`
	AbsDelta        float64    `json:"absDelta"`
	IV              string     `json:"iv"`
	UnderlyingPrice float64    `json:"underlyingPrice"`
	Type            OptionType `json:"type"`
	Strike          float64    `json:"strike"`
	Breakeven       float64    `json:"breakeven"`
}

// Premium returns the dollar notional of the print: price × quantity × 100.
func (t OptionTrade) Premium() float64 {
	return t.Price * float64(t.Quantity) * ContractMultiplier
}

// OptionsSummary holds volume totals and volume-weighted averages per side.
type OptionsSummary struct {
	TotalCallVolume      int     `json:"totalCallVolume"`
	TotalPutVolume       int     `json:"totalPutVolume"`
	AverageCallPrice     float64 `json:"averageCallPrice"`
	AveragePutPrice      float64 `json:"averagePutPrice"`
	AverageCallBreakeven float64 `json:"averageCallBreakeven"`
	AveragePutBreakeven  float64 `json:"averagePutBreakeven"`
}

// ParsedOptionData is the result of parsing a pasted block of flow.
type ParsedOptionData struct {
	Trades  []OptionTrade  `json:"trades"`
	Summary OptionsSummary `json:"summary"`
}

// Candle is one OHLC bar of the index price chart.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume,omitempty"`
}
