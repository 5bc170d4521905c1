package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flowdesk/internal/dashboard"
	"flowdesk/internal/domain"
	"flowdesk/internal/flow"
	"flowdesk/internal/live"
	"flowdesk/internal/market"
	"flowdesk/internal/metrics"
	"flowdesk/internal/sentiment"
	"flowdesk/internal/store"
)

const (
	maxFlowBody       = 8 << 20
	defaultCandleMins = 60
	maxCandleMins     = 24 * 60
)

// Options configures a Server. Only Desk is required.
type Options struct {
	Desk      *live.Desk
	Source    market.SpotSource // nil disables /api/candles
	Symbol    string
	Report    live.ReportOptions
	ExportDir string // empty disables /api/export
	Metrics   *metrics.Metrics
	Location  *time.Location
	Log       *slog.Logger
}

// Server serves the dashboard HTTP API backed by a live desk.
type Server struct {
	desk      *live.Desk
	source    market.SpotSource
	symbol    string
	opts      live.ReportOptions
	exportDir string
	metrics   *metrics.Metrics
	loc       *time.Location
	hub       *Hub
	log       *slog.Logger
}

// NewServer creates a Server. Call Run to start pushing desk updates to
// WebSocket clients.
func NewServer(o Options) *Server {
	log := o.Log
	if log == nil {
		log = slog.Default()
	}
	loc := o.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		desk:      o.Desk,
		source:    o.Source,
		symbol:    o.Symbol,
		opts:      o.Report,
		exportDir: o.ExportDir,
		metrics:   o.Metrics,
		loc:       loc,
		log:       log.With("component", "httpapi"),
	}
	var onCount func(int)
	if s.metrics != nil {
		onCount = func(n int) { s.metrics.WSClients.Set(float64(n)) }
	}
	s.hub = NewHub(log, onCount)
	return s
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Run drives the WebSocket hub and broadcasts a fresh report after every
// desk event. It blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	go s.hub.Run(ctx)

	id, events := s.desk.Subscribe(32)
	defer s.desk.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			msg, err := s.reportMessage(&ev)
			if err != nil {
				s.log.Error("encoding report", "error", err)
				continue
			}
			s.hub.Broadcast(msg)
		}
	}
}

// RegisterRoutes adds the API routes to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/flow", s.handleLoadFlow)
	mux.HandleFunc("DELETE /api/flow", s.handleClearFlow)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/dates", s.handleDates)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/sentiment", s.handleSentiment)
	mux.HandleFunc("GET /api/histogram", s.handleHistogram)
	mux.HandleFunc("GET /api/levels", s.handleLevels)
	mux.HandleFunc("GET /api/flow/series", s.handleSeries)
	mux.HandleFunc("GET /api/iv", s.handleIV)
	mux.HandleFunc("GET /api/contracts", s.handleContracts)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/spot", s.handleGetSpot)
	mux.HandleFunc("PUT /api/spot", s.handleSetSpot)
	mux.HandleFunc("GET /api/candles", s.handleCandles)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns an http.Handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(s.metricsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for metrics. It forwards
// Hijack so WebSocket upgrades still work behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("httpapi: response does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(route, rec.status, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// --- query parsing ---

// parseFilter reads the date and today query params.
func parseFilter(r *http.Request) flow.DateFilter {
	q := r.URL.Query()
	today, _ := strconv.ParseBool(q.Get("today"))
	return flow.DateFilter{TodayOnly: today, Date: q.Get("date")}
}

// floatParam parses an optional float query param. ok is false when the
// param is absent.
func floatParam(r *http.Request, name string) (v float64, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, true, nil
}

// reportOptions overlays the request's query params on the server defaults.
func (s *Server) reportOptions(r *http.Request) (live.ReportOptions, error) {
	opts := s.opts
	opts.Filter = parseFilter(r)
	q := r.URL.Query()

	if v, ok, err := floatParam(r, "threshold"); err != nil {
		return opts, err
	} else if ok {
		if v < 0 || v > 1 {
			return opts, fmt.Errorf("threshold %v outside [0,1]", v)
		}
		opts.Sentiment.Threshold = v
	}
	if v, ok, err := floatParam(r, "spot"); err != nil {
		return opts, err
	} else if ok {
		if v <= 0 {
			return opts, fmt.Errorf("spot must be positive")
		}
		opts.Sentiment.SpotPrice = v
	}
	if raw := q.Get("sort"); raw != "" {
		f, err := sentiment.ParseSortField(raw)
		if err != nil {
			return opts, err
		}
		opts.Sentiment.SortField = f
	}
	if raw := q.Get("order"); raw != "" {
		o, err := sentiment.ParseSortOrder(raw)
		if err != nil {
			return opts, err
		}
		opts.Sentiment.SortOrder = o
	}
	if raw := q.Get("round"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid round %q", raw)
		}
		opts.RoundFigures = b
	}
	return opts, nil
}

// filtered returns the desk snapshot and the trades selected by opts.
func (s *Server) filtered(opts live.ReportOptions) (live.Snapshot, []domain.OptionTrade) {
	snap := s.desk.Snapshot()
	return snap, flow.FilterTrades(snap.Trades, opts.Filter, s.desk.Clock())
}

// spotFor resolves the spot price used for distance calculations.
func spotFor(opts live.ReportOptions, snap live.Snapshot) float64 {
	if opts.Sentiment.SpotPrice != 0 {
		return opts.Sentiment.SpotPrice
	}
	return snap.Spot
}

func (s *Server) reportMessage(ev *live.Event) ([]byte, error) {
	report := s.desk.Report(s.opts)
	return json.Marshal(WSMessage{Type: "report", Event: ev, Report: &report})
}

// --- flow ---

func (s *Server) handleLoadFlow(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFlowBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "flow text too large")
		return
	}

	mode := r.URL.Query().Get("mode")
	var snap live.Snapshot
	switch mode {
	case "", "load", "replace":
		mode = "load"
		snap = s.desk.Load(string(body))
	case "append":
		snap = s.desk.Append(string(body))
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", mode))
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveBatch(mode, snap.LastParse, len(snap.Trades))
	}
	s.log.Info("flow received", "mode", mode, "batch", snap.BatchID,
		"lines", snap.LastParse.Lines, "parsed", snap.LastParse.Parsed, "dropped", snap.LastParse.Dropped)

	writeJSON(w, FlowResponse{
		BatchID: snap.BatchID,
		Mode:    mode,
		Stats:   snap.LastParse,
		Trades:  len(snap.Trades),
		Summary: snap.Summary,
	})
}

func (s *Server) handleClearFlow(w http.ResponseWriter, r *http.Request) {
	s.desk.Clear()
	if s.metrics != nil {
		s.metrics.ObserveBatch("clear", flow.ParseStats{}, 0)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	f := parseFilter(r)
	trades := flow.FilterTrades(s.desk.Snapshot().Trades, f, s.desk.Clock())
	writeJSON(w, TradesResponse{Date: f.Date, Today: f.TodayOnly, Count: len(trades), Trades: trades})
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	dates := flow.TradeDates(s.desk.Snapshot().Trades, s.desk.Clock())
	writeJSON(w, map[string][]string{"dates": dates})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap := s.desk.Snapshot()
	trades := flow.FilterTrades(snap.Trades, parseFilter(r), s.desk.Clock())
	writeJSON(w, SummaryResponse{
		Summary:      flow.Summarize(trades),
		PutCallRatio: flow.PutCallRatio(trades),
		Stats:        snap.Stats,
		Trades:       len(trades),
	})
}

// --- sentiment ---

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	opts, err := s.reportOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, trades := s.filtered(opts)
	sopts := opts.Sentiment
	sopts.SpotPrice = spotFor(opts, snap)

	writeJSON(w, SentimentResponse{
		Spot:      sopts.SpotPrice,
		Threshold: sopts.Threshold,
		SortField: sopts.SortField,
		SortOrder: sopts.SortOrder,
		Analysis:  sentiment.Analyze(trades, sopts),
	})
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	opts, err := s.reportOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, trades := s.filtered(opts)
	writeJSON(w, HistogramResponse{
		Spot:         spotFor(opts, snap),
		RoundFigures: opts.RoundFigures,
		Bins:         sentiment.Histogram(trades, opts.RoundFigures),
	})
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	opts, err := s.reportOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var band sentiment.Band
	switch b := r.URL.Query().Get("band"); b {
	case "", "high":
		band = sentiment.HighBand(opts.Sentiment.Threshold)
	case "mid":
		band = sentiment.MidBand(opts.MidDeltaMin, opts.MidDeltaMax)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown band %q", b))
		return
	}

	_, trades := s.filtered(opts)
	levels := sentiment.BandLevels(trades, band)
	writeJSON(w, LevelsResponse{Band: band, Levels: levels, Text: sentiment.FormatLevels(levels)})
}

// --- series, IV, contracts ---

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	rng := flow.DeltaPresets[0]
	if name := r.URL.Query().Get("preset"); name != "" {
		p, ok := flow.PresetByName(name)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown preset %q", name))
			return
		}
		rng = p
	} else {
		lo, okLo, err := floatParam(r, "min")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		hi, okHi, err := floatParam(r, "max")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if okLo || okHi {
			if !okHi {
				hi = 1
			}
			if lo < 0 || hi > 1 || lo > hi {
				writeError(w, http.StatusBadRequest, "delta range must satisfy 0 <= min <= max <= 1")
				return
			}
			rng = flow.DeltaRange{Name: "custom", Label: fmt.Sprintf("%.2f-%.2f", lo, hi), Min: lo, Max: hi}
		}
	}

	trades := flow.FilterTrades(s.desk.Snapshot().Trades, parseFilter(r), s.desk.Clock())
	writeJSON(w, flow.BuildFlowSeries(trades, rng, s.loc))
}

func (s *Server) handleIV(w http.ResponseWriter, r *http.Request) {
	trades := flow.FilterTrades(s.desk.Snapshot().Trades, parseFilter(r), s.desk.Clock())
	contract := r.URL.Query().Get("contract")
	if contract == "" {
		writeJSON(w, map[string][]string{"contracts": flow.Contracts(trades)})
		return
	}
	writeJSON(w, flow.BuildIVHistory(trades, contract, s.loc))
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	trades := flow.FilterTrades(s.desk.Snapshot().Trades, parseFilter(r), s.desk.Clock())
	writeJSON(w, dashboard.AggregateContracts(trades, dashboard.ParseContractSort(q.Get("sort")), limit))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	opts, err := s.reportOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, s.desk.Report(opts))
}

// --- spot & candles ---

func (s *Server) handleGetSpot(w http.ResponseWriter, r *http.Request) {
	price, at := s.desk.Spot()
	writeJSON(w, SpotResponse{Symbol: s.symbol, Price: price, Time: at})
}

func (s *Server) handleSetSpot(w http.ResponseWriter, r *http.Request) {
	var req SpotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Price <= 0 || math.IsInf(req.Price, 0) || math.IsNaN(req.Price) {
		writeError(w, http.StatusBadRequest, "price must be a positive number")
		return
	}
	now := s.desk.Clock().Now()
	s.desk.SetSpot(req.Price, now)
	if s.metrics != nil {
		s.metrics.SpotPrice.Set(req.Price)
	}
	s.log.Info("spot overridden", "price", req.Price)
	writeJSON(w, SpotResponse{Symbol: s.symbol, Price: req.Price, Time: now})
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusServiceUnavailable, "market data not configured")
		return
	}
	minutes := defaultCandleMins
	if raw := r.URL.Query().Get("minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxCandleMins {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("minutes must be in 1..%d", maxCandleMins))
			return
		}
		minutes = n
	}

	end := time.Now()
	start := end.Add(-time.Duration(minutes) * time.Minute)
	candles, err := s.source.Candles(r.Context(), s.symbol, start, end)
	if err != nil {
		s.log.Warn("candles failed", "symbol", s.symbol, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load candles")
		return
	}
	writeJSON(w, CandlesResponse{Symbol: s.symbol, Candles: candles})
}

// --- export ---

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exportDir == "" {
		writeError(w, http.StatusServiceUnavailable, "export not configured")
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "parquet"
	}
	exp, err := store.ExporterFor(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.desk.Snapshot()
	trades := flow.FilterTrades(snap.Trades, parseFilter(r), s.desk.Clock())
	if len(trades) == 0 {
		writeError(w, http.StatusConflict, "no trades to export")
		return
	}

	path := store.ExportPath(s.exportDir, snap.BatchID, exp.Ext(), time.Now().In(s.loc))
	if err := exp.Export(r.Context(), path, trades); err != nil {
		s.log.Error("export failed", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	s.log.Info("exported trades", "path", path, "trades", len(trades))
	writeJSON(w, ExportResponse{Path: path, Format: exp.Ext(), Trades: len(trades)})
}

// --- websocket ---

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	greeting, err := s.reportMessage(nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	s.hub.ServeWS(w, r, greeting)
}
