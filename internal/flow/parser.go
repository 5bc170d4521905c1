package flow

import (
	"math"
	"strconv"
	"strings"

	"flowdesk/internal/domain"
)

// Column positions of a tab-delimited flow line.
const (
	colTimestamp = iota
	colContract
	colQuantity
	colPrice
	colExchange
	colBidAsk
	colDelta
	colIV
	colUnderlying

	// NumColumns is the minimum number of fields a line must carry.
	NumColumns
)

// ParseStats counts what happened to the non-blank lines of one input.
type ParseStats struct {
	Lines   int `json:"lines"`
	Parsed  int `json:"parsed"`
	Dropped int `json:"dropped"`
}

// Parser converts flow lines into trades. The zero value uses SystemClock.
type Parser struct {
	clock Clock
}

// NewParser returns a Parser that stamps time-only timestamps using clock.
func NewParser(clock Clock) *Parser {
	return &Parser{clock: clock}
}

func (p *Parser) now() Clock {
	if p == nil || p.clock == nil {
		return SystemClock
	}
	return p.clock
}

// Parse splits data into lines, parses each, and summarizes the trades that
// survived. Bad lines are dropped and counted, never reported as errors.
func (p *Parser) Parse(data string) (domain.ParsedOptionData, ParseStats) {
	var stats ParseStats
	trades := make([]domain.OptionTrade, 0)

	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Lines++
		trade, ok := p.ParseLine(line)
		if !ok {
			stats.Dropped++
			continue
		}
		stats.Parsed++
		trades = append(trades, trade)
	}

	return domain.ParsedOptionData{
		Trades:  trades,
		Summary: Summarize(trades),
	}, stats
}

// ParseLine parses a single tab-delimited line. ok is false when the line is
// short, the contract has no type letter or strike, or the quantity, price or
// breakeven is not a usable number.
func (p *Parser) ParseLine(line string) (trade domain.OptionTrade, ok bool) {
	fields := strings.Split(strings.TrimSpace(line), "\t")
	if len(fields) < NumColumns {
		return trade, false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	typ, strike, ok := parseContract(fields[colContract])
	if !ok {
		return trade, false
	}

	quantity, ok := parseQuantity(fields[colQuantity])
	if !ok {
		return trade, false
	}

	price, ok := parseNumber(fields[colPrice])
	if !ok {
		return trade, false
	}

	breakeven := Breakeven(typ, strike, price)
	if !finite(breakeven) {
		return trade, false
	}

	delta := restoreLeadingZero(fields[colDelta])
	absDelta := 0.0
	if d, ok := parseNumber(delta); ok {
		absDelta = math.Abs(d)
	}

	underlying, ok := parseNumber(fields[colUnderlying])
	if !ok {
		underlying = 0
	}

	ts, timeOnly := NormalizeTimestamp(fields[colTimestamp], p.now())

	return domain.OptionTrade{
		Timestamp:       ts,
		IsTimeOnly:      timeOnly,
		Contract:        fields[colContract],
		Quantity:        quantity,
		Price:           price,
		Exchange:        fields[colExchange],
		BidAsk:          fields[colBidAsk],
		Delta:           delta,
		AbsDelta:        absDelta,
		IV:              fields[colIV],
		UnderlyingPrice: underlying,
		Type:            typ,
		Strike:          strike,
		Breakeven:       breakeven,
	}, true
}

// Breakeven returns strike+price for calls and strike-price for puts.
func Breakeven(typ domain.OptionType, strike, price float64) float64 {
	if typ == domain.OptionTypeCall {
		return strike + price
	}
	return strike - price
}

// parseContract reads the type letter from the last token of a descriptor
// such as "24 OCT 24 5895 C" and the strike from the nearest numeric token
// before it.
func parseContract(contract string) (domain.OptionType, float64, bool) {
	parts := strings.Fields(contract)
	if len(parts) < 2 {
		return "", 0, false
	}

	typ := domain.OptionType(strings.ToUpper(parts[len(parts)-1]))
	if !typ.Valid() {
		return "", 0, false
	}

	for i := len(parts) - 2; i >= 0; i-- {
		if strike, ok := parseNumber(parts[i]); ok {
			return typ, strike, true
		}
	}
	return "", 0, false
}

func parseQuantity(s string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// parseNumber parses a decimal field, tolerating the feed's habit of
// dropping the leading zero (".10").
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(restoreLeadingZero(strings.TrimSpace(s)), 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

func restoreLeadingZero(s string) string {
	switch {
	case strings.HasPrefix(s, "."):
		return "0" + s
	case strings.HasPrefix(s, "-."):
		return "-0" + s[1:]
	default:
		return s
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
