// Command flowdesk-server runs the flowdesk desk: the HTTP dashboard API
// with WebSocket push, the gRPC flow service, and the spot price poller.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"flowdesk/internal/config"
	"flowdesk/internal/flow"
	"flowdesk/internal/httpapi"
	"flowdesk/internal/live"
	"flowdesk/internal/market"
	"flowdesk/internal/metrics"
	"flowdesk/internal/util"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default $FLOWDESK_CONFIG or "+config.DefaultPath+")")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("loading .env: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()
	desk := live.NewDesk(flow.SystemClock)
	symbol := cfg.Alpaca.SpotSymbol

	// Spot source: Alpaca when credentials are configured, otherwise a static
	// source driven only by PUT /api/spot.
	var source market.SpotSource
	if cfg.HasAlpacaCredentials() {
		source = market.NewAlpacaSource(market.AlpacaOptions{
			APIKey:          cfg.Alpaca.APIKey,
			APISecret:       cfg.Alpaca.APISecret,
			DataURL:         cfg.Alpaca.DataURL,
			Feed:            cfg.Alpaca.Feed,
			RateLimitPerMin: cfg.Alpaca.RateLimitPerMin,
		})
		logger.Info("using Alpaca market data", "symbol", symbol, "feed", cfg.Alpaca.Feed)
	} else {
		source = market.NewStaticSource()
		logger.Warn("no Alpaca credentials; spot price must be set manually")
	}

	sink := spotSink{desk: desk, gauge: m.SpotPrice.Set}
	poller := market.NewPoller(source, sink, symbol, cfg.Alpaca.PollInterval, logger)
	m.RegisterPoller(poller.Stats.Polls.Load, poller.Stats.Failures.Load)

	reportOpts := live.ReportOptionsFromConfig(cfg.Sentiment)

	api := httpapi.NewServer(httpapi.Options{
		Desk:      desk,
		Source:    source,
		Symbol:    symbol,
		Report:    reportOpts,
		ExportDir: cfg.Export.Dir,
		Metrics:   m,
		Log:       logger,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	live.NewServer(desk, reportOpts, logger).RegisterGRPC(grpcServer)
	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", grpcAddr, err)
	}

	var wg sync.WaitGroup
	errc := make(chan error, 2)

	wg.Add(3)
	go func() {
		defer wg.Done()
		api.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if cfg.HasAlpacaCredentials() {
			poller.Run(ctx)
		}
	}()
	go func() {
		defer wg.Done()
		logger.Info("gRPC server listening", "addr", grpcAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errc:
		logger.Error("listener failed, shutting down", "error", runErr)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	wg.Wait()
	return runErr
}

// spotSink records polled prices on the desk and the spot gauge.
type spotSink struct {
	desk  *live.Desk
	gauge func(float64)
}

func (s spotSink) SetSpot(price float64, at time.Time) {
	s.desk.SetSpot(price, at)
	s.gauge(price)
}
