package live

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

var errStop = errors.New("stop")

// startServer serves a FlowService for d over an in-memory listener and
// returns a connected client.
func startServer(t *testing.T, d *Desk) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(d, DefaultReportOptions(), nil).RegisterGRPC(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	c, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAnalyzeRawText(t *testing.T) {
	d := newTestDesk()
	d.SetSpot(5890, testNow)
	c := startServer(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := c.Analyze(ctx, sampleFlow)
	require.NoError(t, err)
	assert.Equal(t, 3, r.TradeCount)
	assert.Equal(t, 5890.0, r.Spot)
	assert.Equal(t, 4, r.Stats.Lines)
	require.NotNil(t, r.Sentiment.Signal)
	assert.Equal(t, 5902.0, r.Sentiment.Signal.Target)
	assert.Equal(t, "5902.00 bullish", r.HighLevelsText)

	assert.Empty(t, d.Snapshot().Trades, "analyze must not load the desk")
}

func TestAnalyzeEmptyReportsDesk(t *testing.T) {
	d := newTestDesk()
	snap := d.Load(sampleFlow)
	c := startServer(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := c.Analyze(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, snap.BatchID, r.BatchID)
	assert.Equal(t, 3, r.TradeCount)
}

func TestWatchStreamsReports(t *testing.T) {
	d := newTestDesk()
	c := startServer(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reports := make(chan Report, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(r Report) error {
			reports <- r
			if r.TradeCount > 0 {
				return errStop
			}
			return nil
		})
	}()

	first := <-reports
	assert.Zero(t, first.TradeCount)

	require.Eventually(t, func() bool { return d.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	d.Load(sampleFlow)

	var last Report
	select {
	case last = <-reports:
	case <-ctx.Done():
		t.Fatal("no report after load")
	}
	assert.Equal(t, 3, last.TradeCount)
	assert.ErrorIs(t, <-done, errStop)
}
