package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowdesk/internal/flow"
)

func TestObserveBatch(t *testing.T) {
	m := New()
	m.ObserveBatch("loaded", flow.ParseStats{Lines: 5, Parsed: 4, Dropped: 1}, 4)
	m.ObserveBatch("appended", flow.ParseStats{Lines: 2, Parsed: 2}, 6)

	assert.Equal(t, 6.0, testutil.ToFloat64(m.Lines.WithLabelValues("parsed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lines.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches.WithLabelValues("loaded")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.DeskTrades))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET /api/summary", 200, 3*time.Millisecond)
	var polls, failures int64 = 7, 2
	m.RegisterPoller(func() int64 { return polls }, func() int64 { return failures })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `flowdesk_http_requests_total{code="200",route="GET /api/summary"} 1`), body)
	assert.Contains(t, body, "flowdesk_spot_polls_total 7")
	assert.Contains(t, body, "flowdesk_spot_poll_failures_total 2")
	assert.Contains(t, body, "go_goroutines")
}
