package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"flowdesk/internal/domain"
	"flowdesk/internal/util"
)

// Compile-time interface check.
var _ SpotSource = (*AlpacaSource)(nil)

// marketDataClient is the subset of *marketdata.Client used here.
type marketDataClient interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaOptions configures an AlpacaSource.
type AlpacaOptions struct {
	APIKey          string
	APISecret       string
	DataURL         string
	Feed            string // "sip" or "iex"
	RateLimitPerMin int
}

// AlpacaSource reads spot prices and 1-minute bars from the Alpaca market
// data API.
type AlpacaSource struct {
	client  marketDataClient
	feed    string
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource from the given credentials.
func NewAlpacaSource(opts AlpacaOptions) *AlpacaSource {
	co := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		co.BaseURL = opts.DataURL
	}
	return newAlpacaSource(marketdata.NewClient(co), opts)
}

func newAlpacaSource(client marketDataClient, opts AlpacaOptions) *AlpacaSource {
	feed := opts.Feed
	if feed == "" {
		feed = "sip"
	}
	var limiter *util.RateLimiter
	if opts.RateLimitPerMin > 0 {
		limiter = util.NewRateLimiter(opts.RateLimitPerMin, 5)
	}
	return &AlpacaSource{
		client:  client,
		feed:    feed,
		limiter: limiter,
		log:     slog.Default().With("component", "alpaca"),
	}
}

// LatestPrice returns the last trade price of symbol.
func (s *AlpacaSource) LatestPrice(ctx context.Context, symbol string) (Quote, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Quote{}, err
	}
	symbol = strings.ToUpper(symbol)
	trade, err := s.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{
		Feed: marketdata.Feed(s.feed),
	})
	if err != nil {
		return Quote{}, fmt.Errorf("GetLatestTrade %s: %w", symbol, err)
	}
	if trade == nil || trade.Price <= 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return Quote{Symbol: symbol, Price: trade.Price, Time: trade.Timestamp}, nil
}

// Candles returns 1-minute bars of symbol in [start, end].
func (s *AlpacaSource) Candles(ctx context.Context, symbol string, start, end time.Time) ([]domain.Candle, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	bars, err := s.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneMin,
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(s.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	candles := make([]domain.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, domain.Candle{
			Time:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	s.log.Debug("fetched candles", "symbol", symbol, "count", len(candles))
	return candles, nil
}
