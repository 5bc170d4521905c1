package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"flowdesk/internal/config"
	"flowdesk/internal/dashboard"
	"flowdesk/internal/domain"
	"flowdesk/internal/flow"
	"flowdesk/internal/live"
	"flowdesk/internal/market"
	"flowdesk/internal/sentiment"
	"flowdesk/internal/store"
	"flowdesk/internal/util"
)

// app carries state shared by every subcommand.
type app struct {
	clock      flow.Clock
	configPath string
	logLevel   string
	cfg        *config.Config
	log        *slog.Logger

	// filter flags shared by the analysis commands
	date  string
	today bool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "flowdesk",
		Short:         "Options flow analysis from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.log = util.NewLoggerTo(cmd.ErrOrStderr(), a.logLevel, "text")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $FLOWDESK_CONFIG or "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		a.parseCmd(),
		a.summaryCmd(),
		a.sentimentCmd(),
		a.levelsCmd(),
		a.histogramCmd(),
		a.seriesCmd(),
		a.ivCmd(),
		a.contractsCmd(),
		a.exportCmd(),
		a.analyzeCmd(),
		a.watchCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.date, "date", "", "only trades on this day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&a.today, "today", false, "only today's trades")
}

// readInput returns the flow text from the file argument, or stdin when the
// argument is absent or "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(b), nil
}

// load parses the input and applies the date filter.
func (a *app) load(cmd *cobra.Command, args []string) ([]domain.OptionTrade, flow.ParseStats, error) {
	raw, err := readInput(cmd, args)
	if err != nil {
		return nil, flow.ParseStats{}, err
	}
	parsed, stats := flow.NewParser(a.clock).Parse(raw)
	a.log.Info("parsed flow", "lines", stats.Lines, "parsed", stats.Parsed, "dropped", stats.Dropped)
	trades := flow.FilterTrades(parsed.Trades, flow.DateFilter{TodayOnly: a.today, Date: a.date}, a.clock)
	return trades, stats, nil
}

// resolveSpot returns spot when set, otherwise the latest price from Alpaca
// when credentials are configured, otherwise 0.
func (a *app) resolveSpot(ctx context.Context, spot float64, fetch bool) float64 {
	if spot > 0 || !fetch {
		return spot
	}
	if !a.cfg.HasAlpacaCredentials() {
		a.log.Warn("no Alpaca credentials; distances are relative to 0")
		return 0
	}
	src := market.NewAlpacaSource(market.AlpacaOptions{
		APIKey:    a.cfg.Alpaca.APIKey,
		APISecret: a.cfg.Alpaca.APISecret,
		DataURL:   a.cfg.Alpaca.DataURL,
		Feed:      a.cfg.Alpaca.Feed,
	})
	q, err := src.LatestPrice(ctx, a.cfg.Alpaca.SpotSymbol)
	if err != nil {
		a.log.Warn("fetching spot price", "symbol", a.cfg.Alpaca.SpotSymbol, "error", err)
		return 0
	}
	return q.Price
}

func (a *app) parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse flow lines and print the trades",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, stats, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			dashboard.RenderTrades(out, trades)
			fmt.Fprintf(out, "Lines: %d  parsed: %d  dropped: %d\n", stats.Lines, stats.Parsed, stats.Dropped)
			return nil
		},
	}
	a.addFilterFlags(cmd)
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary [file]",
		Short: "Print volume-weighted call/put averages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, _, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			dashboard.RenderSummary(cmd.OutOrStdout(), flow.Summarize(trades), flow.PutCallRatio(trades))
			return nil
		},
	}
	a.addFilterFlags(cmd)
	return cmd
}

func (a *app) sentimentCmd() *cobra.Command {
	var (
		threshold float64
		spot      float64
		fetch     bool
		sortKey   string
		order     string
	)
	cmd := &cobra.Command{
		Use:   "sentiment [file]",
		Short: "Group high-delta trades by breakeven and derive a signal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := live.ReportOptionsFromConfig(a.cfg.Sentiment).Sentiment
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = threshold
			}
			if sortKey != "" {
				f, err := sentiment.ParseSortField(sortKey)
				if err != nil {
					return err
				}
				opts.SortField = f
			}
			if order != "" {
				o, err := sentiment.ParseSortOrder(order)
				if err != nil {
					return err
				}
				opts.SortOrder = o
			}
			trades, _, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			opts.SpotPrice = a.resolveSpot(cmd.Context(), spot, fetch)
			dashboard.RenderSentiment(cmd.OutOrStdout(), sentiment.Analyze(trades, opts), opts.SpotPrice)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", sentiment.DefaultThreshold, "minimum |delta| (exclusive)")
	cmd.Flags().Float64Var(&spot, "spot", 0, "spot price for distances")
	cmd.Flags().BoolVar(&fetch, "fetch-spot", false, "fetch the spot price from Alpaca when --spot is not set")
	cmd.Flags().StringVar(&sortKey, "sort", "", "sort by distance, level or premium")
	cmd.Flags().StringVar(&order, "order", "", "asc or desc")
	a.addFilterFlags(cmd)
	return cmd
}

func (a *app) levelsCmd() *cobra.Command {
	var band string
	cmd := &cobra.Command{
		Use:   "levels [file]",
		Short: "Print copyable bullish/bearish level lists",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.cfg.Sentiment
			var bands []sentiment.Band
			switch band {
			case "high":
				bands = []sentiment.Band{sentiment.HighBand(s.DeltaThreshold)}
			case "mid":
				bands = []sentiment.Band{sentiment.MidBand(s.MidDeltaMin, s.MidDeltaMax)}
			case "all", "":
				bands = []sentiment.Band{sentiment.HighBand(s.DeltaThreshold), sentiment.MidBand(s.MidDeltaMin, s.MidDeltaMax)}
			default:
				return fmt.Errorf("unknown band %q", band)
			}
			trades, _, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, b := range bands {
				levels := sentiment.BandLevels(trades, b)
				fmt.Fprintf(out, "%s: %s\n", b.Name, sentiment.FormatLevels(levels))
				dashboard.RenderBandLevels(out, levels)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&band, "band", "all", "high, mid or all")
	a.addFilterFlags(cmd)
	return cmd
}

func (a *app) histogramCmd() *cobra.Command {
	var (
		spot  float64
		fetch bool
		round bool
	)
	cmd := &cobra.Command{
		Use:   "histogram [file]",
		Short: "Bin premium by breakeven into bullish and bearish totals",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, _, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("round") {
				round = a.cfg.Sentiment.HistogramRoundFigures
			}
			dashboard.RenderHistogram(cmd.OutOrStdout(), sentiment.Histogram(trades, round), a.resolveSpot(cmd.Context(), spot, fetch))
			return nil
		},
	}
	cmd.Flags().Float64Var(&spot, "spot", 0, "mark the bin holding this price")
	cmd.Flags().BoolVar(&fetch, "fetch-spot", false, "fetch the spot price from Alpaca when --spot is not set")
	cmd.Flags().BoolVar(&round, "round", false, "1-point bins on rounded breakevens")
	a.addFilterFlags(cmd)
	return cmd
}

func (a *app) seriesCmd() *cobra.Command {
	var (
		preset string
		lo, hi float64
	)
	cmd := &cobra.Command{
		Use:   "series [file]",
		Short: "Per-minute call/put volume for a delta band",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rng := flow.DeltaRange{Name: "custom", Label: fmt.Sprintf("%.2f-%.2f", lo, hi), Min: lo, Max: hi}
			if preset != "" {
				p, ok := flow.PresetByName(preset)
				if !ok {
					return fmt.Errorf("unknown preset %q", preset)
				}
				rng = p
			} else if lo < 0 || hi > 1 || lo > hi {
				return errors.New("delta range must satisfy 0 <= min <= max <= 1")
			}
			trades, _, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			dashboard.RenderSeries(cmd.OutOrStdout(), flow.BuildFlowSeries(trades, rng, time.Local))
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "all, atm, itm, otm or deep-itm")
	cmd.Flags().Float64Var(&lo, "min", 0, "minimum |delta|")
	cmd.Flags().Float64Var(&hi, "max", 1, "maximum |delta|")
	a.addFilterFlags(cmd)
	return cmd
}

func (a *app) ivCmd() *cobra.Command {
	var contract string
	cmd := &cobra.Command{
		Use:   "iv [file]",
		Short: "Implied volatility history of one contract",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, _, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if contract == "" {
				for _, c := range flow.Contracts(trades) {
					fmt.Fprintln(out, c)
				}
				return nil
			}
			dashboard.RenderIV(out, flow.BuildIVHistory(trades, contract, time.Local))
			return nil
		},
	}
	cmd.Flags().StringVar(&contract, "contract", "", "contract to chart; lists contracts when empty")
	a.addFilterFlags(cmd)
	return cmd
}

func (a *app) contractsCmd() *cobra.Command {
	var (
		sortKey string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "contracts [file]",
		Short: "Per-contract print statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, _, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			dashboard.RenderContracts(cmd.OutOrStdout(), dashboard.AggregateContracts(trades, dashboard.ParseContractSort(sortKey), limit))
			return nil
		},
	}
	cmd.Flags().StringVar(&sortKey, "sort", "premium", "premium, volume or trades")
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show (0 = all)")
	a.addFilterFlags(cmd)
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var (
		format string
		dir    string
		verify bool
	)
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write parsed trades to parquet or csv",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := store.ExporterFor(format)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Export.Dir
			}
			trades, _, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				return errors.New("no trades to export")
			}
			path := store.ExportPath(dir, "", exp.Ext(), a.clock.Now())
			if len(args) > 0 && args[0] != "-" {
				base := filepath.Base(args[0])
				path = store.ExportPath(dir, base[:len(base)-len(filepath.Ext(base))], exp.Ext(), a.clock.Now())
			}
			if err := exp.Export(cmd.Context(), path, trades); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d trades to %s\n", len(trades), path)
			if !verify {
				return nil
			}
			back, err := exp.Read(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("verify %s: %w", path, err)
			}
			if len(back) != len(trades) {
				return fmt.Errorf("verify %s: read %d trades, wrote %d", path, len(back), len(trades))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified %d trades\n", len(back))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "parquet", "parquet or csv")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&verify, "verify", false, "read the file back and check the trade count")
	a.addFilterFlags(cmd)
	return cmd
}

func (a *app) grpcAddr(addr string) string {
	if addr != "" {
		return addr
	}
	return fmt.Sprintf("localhost:%d", a.cfg.Server.GRPCPort)
}

func (a *app) analyzeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze flow on a running flowdesk-server over gRPC",
		Long:  "Sends the flow text to the server's Analyze RPC. With empty input the server reports on its current desk.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			client, err := live.NewClient(a.grpcAddr(addr))
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			r, err := client.Analyze(ctx, raw)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			dashboard.RenderSummary(out, r.Summary, r.PutCallRatio)
			dashboard.RenderSentiment(out, r.Sentiment, r.Spot)
			fmt.Fprintf(out, "High delta: %s\nMid delta: %s\n", r.HighLevelsText, r.MidLevelsText)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "gRPC address (default localhost:<server.grpc_port>)")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of a running flowdesk-server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := a.grpcAddr(addr)
			client, err := live.NewClient(target)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			p := tea.NewProgram(
				dashboard.NewWatchModel(target, cancel),
				tea.WithAltScreen(),
				tea.WithMouseCellMotion(),
				tea.WithContext(ctx),
			)
			go func() {
				err := client.Watch(ctx, func(r live.Report) error {
					p.Send(dashboard.ReportMsg(r))
					return nil
				})
				if err != nil && ctx.Err() == nil {
					p.Send(dashboard.StreamErrMsg{Err: err})
				}
			}()

			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "gRPC address (default localhost:<server.grpc_port>)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "flowdesk %s\n", version)
			return nil
		},
	}
}
