package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowdesk/internal/domain"
)

type fakeMarketData struct {
	trade    *marketdata.Trade
	tradeErr error
	bars     []marketdata.Bar
	lastBars marketdata.GetBarsRequest
	symbol   string
}

func (f *fakeMarketData) GetLatestTrade(symbol string, _ marketdata.GetLatestTradeRequest) (*marketdata.Trade, error) {
	f.symbol = symbol
	return f.trade, f.tradeErr
}

func (f *fakeMarketData) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.symbol = symbol
	f.lastBars = req
	return f.bars, nil
}

func TestAlpacaLatestPrice(t *testing.T) {
	at := time.Date(2026, 10, 16, 14, 30, 0, 0, time.UTC)
	fake := &fakeMarketData{trade: &marketdata.Trade{Price: 580.25, Timestamp: at}}
	src := newAlpacaSource(fake, AlpacaOptions{})

	q, err := src.LatestPrice(context.Background(), "spy")
	require.NoError(t, err)
	assert.Equal(t, "SPY", fake.symbol)
	assert.Equal(t, Quote{Symbol: "SPY", Price: 580.25, Time: at}, q)
}

func TestAlpacaLatestPriceErrors(t *testing.T) {
	src := newAlpacaSource(&fakeMarketData{trade: &marketdata.Trade{}}, AlpacaOptions{})
	_, err := src.LatestPrice(context.Background(), "SPY")
	assert.ErrorIs(t, err, ErrNoPrice)

	boom := errors.New("boom")
	src = newAlpacaSource(&fakeMarketData{tradeErr: boom}, AlpacaOptions{})
	_, err = src.LatestPrice(context.Background(), "SPY")
	assert.ErrorIs(t, err, boom)
}

func TestAlpacaCandles(t *testing.T) {
	start := time.Date(2026, 10, 16, 14, 30, 0, 0, time.UTC)
	fake := &fakeMarketData{bars: []marketdata.Bar{
		{Timestamp: start, Open: 1, High: 3, Low: 0.5, Close: 2, Volume: 1200},
	}}
	src := newAlpacaSource(fake, AlpacaOptions{Feed: "iex"})

	candles, err := src.Candles(context.Background(), "SPY", start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, domain.Candle{Time: start, Open: 1, High: 3, Low: 0.5, Close: 2, Volume: 1200}, candles[0])
	assert.Equal(t, marketdata.OneMin, fake.lastBars.TimeFrame)
	assert.EqualValues(t, "iex", fake.lastBars.Feed)
}

func TestStaticSource(t *testing.T) {
	s := NewStaticSource()
	ctx := context.Background()

	_, err := s.LatestPrice(ctx, "SPX")
	assert.ErrorIs(t, err, ErrNoPrice)

	s.SetPrice("spx", 5900.5)
	q, err := s.LatestPrice(ctx, "SPX")
	require.NoError(t, err)
	assert.Equal(t, 5900.5, q.Price)

	base := time.Date(2026, 10, 16, 14, 30, 0, 0, time.UTC)
	s.SetCandles("SPX", []domain.Candle{
		{Time: base}, {Time: base.Add(time.Minute)}, {Time: base.Add(2 * time.Minute)},
	})
	got, err := s.Candles(ctx, "spx", base.Add(time.Minute), base.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

type recordingSink struct {
	mu     sync.Mutex
	prices []float64
}

func (r *recordingSink) SetSpot(price float64, _ time.Time) {
	r.mu.Lock()
	r.prices = append(r.prices, price)
	r.mu.Unlock()
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prices)
}

func TestPollerPollOnce(t *testing.T) {
	src := NewStaticSource()
	sink := &recordingSink{}
	p := NewPoller(src, sink, "SPX", time.Second, nil)
	p.backoff = 0

	err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, ErrNoPrice)
	assert.Equal(t, int64(1), p.Stats.Failures.Load())

	src.SetPrice("SPX", 5901)
	require.NoError(t, p.PollOnce(context.Background()))
	assert.Equal(t, []float64{5901}, sink.prices)
	assert.Equal(t, int64(2), p.Stats.Polls.Load())
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	src := NewStaticSource()
	src.SetPrice("SPX", 5900)
	sink := &recordingSink{}
	p := NewPoller(src, sink, "SPX", 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sink.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

type flakySource struct {
	calls int
	errs  []error
}

func (f *flakySource) LatestPrice(_ context.Context, _ string) (Quote, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) {
		return Quote{}, f.errs[i]
	}
	return Quote{Price: 5902, Time: time.Date(2026, 10, 16, 14, 30, 0, 0, time.UTC)}, nil
}

func (f *flakySource) Candles(context.Context, string, time.Time, time.Time) ([]domain.Candle, error) {
	return nil, nil
}

func TestPollerRetries(t *testing.T) {
	src := &flakySource{errs: []error{errors.New("timeout")}}
	sink := &recordingSink{}
	p := NewPoller(src, sink, "SPX", time.Second, nil)
	p.backoff = 0

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, []float64{5902}, sink.prices)

	missing := &flakySource{errs: []error{ErrNoPrice, ErrNoPrice, ErrNoPrice}}
	p = NewPoller(missing, sink, "SPX", time.Second, nil)
	p.backoff = 0
	assert.ErrorIs(t, p.PollOnce(context.Background()), ErrNoPrice)
	assert.Equal(t, 1, missing.calls, "a missing price is not retried")
}
