// Package market supplies the index spot price and price-chart candles that
// the sentiment views measure distance against.
package market

import (
	"context"
	"errors"
	"time"

	"flowdesk/internal/domain"
)

// ErrNoPrice is returned when a source has no price for the symbol.
var ErrNoPrice = errors.New("market: no price available")

// Quote is a spot price observation.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// SpotSource provides spot prices and minute candles for a symbol.
type SpotSource interface {
	LatestPrice(ctx context.Context, symbol string) (Quote, error)
	Candles(ctx context.Context, symbol string, start, end time.Time) ([]domain.Candle, error)
}
