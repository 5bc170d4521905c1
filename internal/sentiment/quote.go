// Package sentiment groups option prints by breakeven level and derives
// directional signals from them.
package sentiment

import (
	"strconv"
	"strings"

	"flowdesk/internal/domain"
)

// ParseQuote splits a "<bid>x<ask>" field such as ".05x.10". ok is false
// unless both sides are numeric.
func ParseQuote(bidAsk string) (bid, ask float64, ok bool) {
	parts := strings.Split(strings.TrimSpace(bidAsk), "x")
	if len(parts) != 2 {
		return 0, 0, false
	}
	var err error
	if bid, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, false
	}
	if ask, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, false
	}
	return bid, ask, true
}

// IsBuy reports whether t printed at or above the quote midpoint. A trade
// with a malformed quote is never a buy; quoteOK reports that case.
func IsBuy(t domain.OptionTrade) (isBuy, quoteOK bool) {
	bid, ask, ok := ParseQuote(t.BidAsk)
	if !ok {
		return false, false
	}
	return t.Price >= (bid+ask)/2, true
}

// Bullish reports whether t is a call bought or a put sold.
func Bullish(t domain.OptionTrade) (bullish, quoteOK bool) {
	buy, ok := IsBuy(t)
	switch t.Type {
	case domain.OptionTypeCall:
		return buy, ok
	case domain.OptionTypePut:
		return !buy, ok
	}
	return false, ok
}
