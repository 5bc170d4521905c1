package market

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"flowdesk/internal/util"
)

// SpotSink receives refreshed spot prices.
type SpotSink interface {
	SetSpot(price float64, at time.Time)
}

// PollerStats counts poll outcomes. Safe for concurrent reads.
type PollerStats struct {
	Polls    atomic.Int64
	Failures atomic.Int64
}

// Poller refreshes a SpotSink from a SpotSource on a fixed interval.
type Poller struct {
	src      SpotSource
	sink     SpotSink
	symbol   string
	interval time.Duration
	attempts int
	backoff  time.Duration
	log      *slog.Logger

	Stats PollerStats
}

// NewPoller creates a Poller for symbol. Each poll makes up to three
// attempts with exponential backoff.
func NewPoller(src SpotSource, sink SpotSink, symbol string, interval time.Duration, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		src:      src,
		sink:     sink,
		symbol:   symbol,
		interval: interval,
		attempts: 3,
		backoff:  250 * time.Millisecond,
		log:      log.With("component", "poller", "symbol", symbol),
	}
}

// PollOnce fetches one price and forwards it to the sink.
func (p *Poller) PollOnce(ctx context.Context) error {
	p.Stats.Polls.Add(1)
	var q Quote
	err := util.Retry(ctx, p.attempts, p.backoff, func() error {
		var err error
		q, err = p.src.LatestPrice(ctx, p.symbol)
		if errors.Is(err, ErrNoPrice) {
			// Nothing to fetch until a price is published.
			return util.Permanent(err)
		}
		return err
	})
	if err != nil {
		p.Stats.Failures.Add(1)
		return err
	}
	p.sink.SetSpot(q.Price, q.Time)
	return nil
}

// Run polls immediately and then every interval until ctx is cancelled.
// Failures are logged and counted; they never stop the loop.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("spot poller started", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("spot poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			p.log.Info("spot poller stopped")
			return
		case <-ticker.C:
		}
	}
}
