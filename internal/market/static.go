package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"flowdesk/internal/domain"
)

// Compile-time interface check.
var _ SpotSource = (*StaticSource)(nil)

// StaticSource serves prices and candles set by hand. It backs offline runs
// and tests.
type StaticSource struct {
	mu      sync.RWMutex
	prices  map[string]Quote
	candles map[string][]domain.Candle
	now     func() time.Time
}

// NewStaticSource creates an empty StaticSource.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		prices:  make(map[string]Quote),
		candles: make(map[string][]domain.Candle),
		now:     time.Now,
	}
}

// SetPrice records price as the latest quote for symbol.
func (s *StaticSource) SetPrice(symbol string, price float64) {
	symbol = strings.ToUpper(symbol)
	s.mu.Lock()
	s.prices[symbol] = Quote{Symbol: symbol, Price: price, Time: s.now()}
	s.mu.Unlock()
}

// SetCandles replaces the candles of symbol.
func (s *StaticSource) SetCandles(symbol string, candles []domain.Candle) {
	s.mu.Lock()
	s.candles[strings.ToUpper(symbol)] = candles
	s.mu.Unlock()
}

// LatestPrice returns the price set for symbol or ErrNoPrice.
func (s *StaticSource) LatestPrice(ctx context.Context, symbol string) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, err
	}
	s.mu.RLock()
	q, ok := s.prices[strings.ToUpper(symbol)]
	s.mu.RUnlock()
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return q, nil
}

// Candles returns the stored candles of symbol that fall in [start, end].
func (s *StaticSource) Candles(ctx context.Context, symbol string, start, end time.Time) ([]domain.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Candle, 0)
	for _, c := range s.candles[strings.ToUpper(symbol)] {
		if c.Time.Before(start) || c.Time.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
