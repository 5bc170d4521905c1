// Package metrics exposes flowdesk's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flowdesk/internal/flow"
)

// Metrics owns a private registry so tests and multiple servers do not
// collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	// Parse metrics
	Lines   *prometheus.CounterVec // result: parsed|dropped
	Batches *prometheus.CounterVec // kind: loaded|appended|cleared

	// Desk metrics
	DeskTrades prometheus.Gauge
	SpotPrice  prometheus.Gauge

	// Transport metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	WSClients    prometheus.Gauge
}

// New creates and registers every metric, plus the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowdesk_lines_total",
				Help: "Options flow lines seen by the parser",
			},
			[]string{"result"},
		),
		Batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowdesk_batches_total",
				Help: "Desk batch operations",
			},
			[]string{"kind"},
		),
		DeskTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowdesk_desk_trades",
			Help: "Trades in the current desk batch",
		}),
		SpotPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowdesk_spot_price",
			Help: "Last recorded spot price",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowdesk_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowdesk_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"route"},
		),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowdesk_ws_clients",
			Help: "Connected WebSocket clients",
		}),
	}
	m.Registry.MustRegister(
		m.Lines, m.Batches, m.DeskTrades, m.SpotPrice,
		m.HTTPRequests, m.HTTPDuration, m.WSClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveBatch records a desk batch operation and its parse outcome.
func (m *Metrics) ObserveBatch(kind string, stats flow.ParseStats, deskTrades int) {
	m.Batches.WithLabelValues(kind).Inc()
	m.Lines.WithLabelValues("parsed").Add(float64(stats.Parsed))
	m.Lines.WithLabelValues("dropped").Add(float64(stats.Dropped))
	m.DeskTrades.Set(float64(deskTrades))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RegisterPoller exposes spot poller counters read through the given
// functions.
func (m *Metrics) RegisterPoller(polls, failures func() int64) {
	m.Registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "flowdesk_spot_polls_total",
			Help: "Spot price polls attempted",
		}, func() float64 { return float64(polls()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "flowdesk_spot_poll_failures_total",
			Help: "Spot price polls that failed after retries",
		}, func() float64 { return float64(failures()) }),
	)
}
