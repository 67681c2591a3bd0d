// tickvault loads, queries, and benchmarks a daily OHLCV dataset
// stored under interchangeable physical layouts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/xtxerr/tickvault/internal/analytics"
	"github.com/xtxerr/tickvault/internal/bench"
	tverrors "github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/loader"
	"github.com/xtxerr/tickvault/internal/logging"
	"github.com/xtxerr/tickvault/internal/storage"
	"github.com/xtxerr/tickvault/internal/storage/config"
	"github.com/xtxerr/tickvault/internal/storage/types"
)

// Version is set at build time via ldflags
var Version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, `tickvault %s - layout benchmarking store for daily OHLCV bars

Usage: tickvault <command> [flags]

Commands:
  load     generate or import a bar history into one or more layouts
  query    run a range query against a single layout
  analyze  compute moving averages and a next-day forecast
  bench    compare query latency across layouts
  stats    print row counts, partitions, and executor counters

Run 'tickvault <command> -h' for command flags.
`, Version)
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "load":
		err = runLoad(args)
	case "query":
		err = runQuery(args)
	case "analyze":
		err = runAnalyze(args)
	case "bench":
		err = runBench(args)
	case "stats":
		err = runStats(args)
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// openService loads the config (falling back to defaults when the file
// is absent) and opens the storage facade.
func openService(cfgPath string, verbose bool) (*storage.Service, *config.Config, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logging.Init(level, false)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		logging.Info("no config file found, using defaults", "path", cfgPath)
		cfg = config.DefaultConfig()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	svc, err := storage.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

// signalContext cancels on SIGINT/SIGTERM so long scans abort cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runLoad(args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	cfgPath := fs.String("config", "tickvault.yaml", "config file path")
	ticker := fs.String("ticker", "NFLX", "ticker symbol")
	start := fs.String("start", "2002-05-23", "first date (YYYY-MM-DD)")
	end := fs.String("end", "2022-05-20", "last date (YYYY-MM-DD)")
	seed := fs.Int64("seed", 1, "generator seed")
	parquetPath := fs.String("parquet", "", "load from a Parquet file instead of generating")
	layouts := fs.String("layouts", "plain,indexed,partitioned", "comma-separated layouts")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	svc, _, err := openService(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer svc.Close()

	targets, err := types.ParseLayouts(*layouts)
	if err != nil {
		return err
	}

	req := loader.Request{Layouts: targets}
	if *parquetPath != "" {
		req.ParquetPath = *parquetPath
	} else {
		startDate, err := types.ParseDate(*start)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		endDate, err := types.ParseDate(*end)
		if err != nil {
			return fmt.Errorf("end: %w", err)
		}
		req.Generate = &loader.GenerateSpec{
			Ticker:    *ticker,
			StartDate: startDate,
			EndDate:   endDate,
			Seed:      *seed,
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := svc.Load(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("loaded %d bars from %s in %s\n", res.Bars, res.Source, res.Elapsed)
	for _, lr := range res.PerLayout {
		fmt.Printf("  %-12s %8d rows\n", lr.Layout, lr.Rows)
	}
	return nil
}

func parseQueryRequest(fs *flag.FlagSet) (storage.QueryRequest, error) {
	ticker := fs.Lookup("ticker").Value.String()
	startDate, err := types.ParseDate(fs.Lookup("start").Value.String())
	if err != nil {
		return storage.QueryRequest{}, fmt.Errorf("start: %w", err)
	}
	endDate, err := types.ParseDate(fs.Lookup("end").Value.String())
	if err != nil {
		return storage.QueryRequest{}, fmt.Errorf("end: %w", err)
	}
	return storage.QueryRequest{Ticker: ticker, Start: startDate, End: endDate}, nil
}

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	cfgPath := fs.String("config", "tickvault.yaml", "config file path")
	fs.String("ticker", "NFLX", "ticker symbol")
	fs.String("start", "2002-01-01", "range start (YYYY-MM-DD)")
	fs.String("end", "2022-12-31", "range end (YYYY-MM-DD)")
	layout := fs.String("layout", "partitioned", "layout to query")
	limit := fs.Int("limit", 10, "rows to print (0 = none)")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	svc, _, err := openService(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer svc.Close()

	req, err := parseQueryRequest(fs)
	if err != nil {
		return err
	}
	req.Layout, err = types.ParseLayout(*layout)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := svc.Query(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("%d rows from %s (%d unit(s)) in %s\n",
		res.RowCount, res.Layout, res.UnitsScanned, res.Elapsed)
	for i, b := range res.Bars {
		if *limit > 0 && i >= *limit {
			fmt.Printf("  ... %d more\n", res.RowCount-*limit)
			break
		}
		fmt.Printf("  %s %s  o=%s h=%s l=%s c=%s v=%d\n",
			types.FormatDate(b.Date), b.Ticker,
			b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	return nil
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	cfgPath := fs.String("config", "tickvault.yaml", "config file path")
	fs.String("ticker", "NFLX", "ticker symbol")
	fs.String("start", "2002-01-01", "range start (YYYY-MM-DD)")
	fs.String("end", "2022-12-31", "range end (YYYY-MM-DD)")
	layout := fs.String("layout", "indexed", "layout to read from")
	window := fs.Int("window", 20, "moving-average window in trading days")
	record := fs.Bool("record", false, "persist moving averages to the results database")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	svc, cfg, err := openService(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer svc.Close()

	req, err := parseQueryRequest(fs)
	if err != nil {
		return err
	}
	req.Layout, err = types.ParseLayout(*layout)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := svc.Query(ctx, req)
	if err != nil {
		return err
	}

	recs, err := analytics.ComputeMovingAverage(res.Bars, *window)
	if err != nil {
		return err
	}
	fmt.Printf("%d-day moving average: %d points over %d bars\n",
		*window, len(recs), res.RowCount)
	if len(recs) > 0 {
		last := recs[len(recs)-1]
		fmt.Printf("  latest (%s): %s\n", types.FormatDate(last.Date), last.MovingAverage)
	}

	if *record {
		rec, err := analytics.NewRecorder(cfg.ResultsPath())
		if err != nil {
			return err
		}
		defer rec.Close()
		if err := rec.Record(ctx, recs); err != nil {
			return err
		}
		fmt.Printf("  recorded to %s\n", cfg.ResultsPath())
	}

	forecast, err := analytics.ForecastNext(res.Bars)
	if err != nil {
		return err
	}
	fmt.Printf("next-day forecast (as of %s): %.2f (slope %+.4f/day, n=%d)\n",
		types.FormatDate(forecast.AsOf), forecast.Next,
		forecast.Slope, forecast.Observations)
	return nil
}

func runBench(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	cfgPath := fs.String("config", "tickvault.yaml", "config file path")
	ticker := fs.String("ticker", "NFLX", "ticker symbol")
	start := fs.String("start", "2002-01-01", "range start (YYYY-MM-DD)")
	end := fs.String("end", "2022-12-31", "range end (YYYY-MM-DD)")
	layouts := fs.String("layouts", "plain,indexed,partitioned", "layouts to compare")
	trials := fs.Int("trials", 0, "measured runs per layout (0 = config default)")
	warmup := fs.Int("warmup", 0, "unmeasured runs per layout (0 = config default, negative = none)")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	svc, cfg, err := openService(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer svc.Close()

	targets, err := types.ParseLayouts(*layouts)
	if err != nil {
		return err
	}
	startDate, err := types.ParseDate(*start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	endDate, err := types.ParseDate(*end)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	r, err := types.NewDateRange(startDate, endDate)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	h := bench.New(svc, bench.Options{
		DefaultTrials:  cfg.Bench.Trials,
		DefaultWarmup:  cfg.Bench.Warmup,
		SketchAccuracy: cfg.Bench.SketchAccuracy,
	})
	report, err := h.Run(ctx, bench.Spec{
		Ticker:  *ticker,
		Range:   r,
		Layouts: targets,
		Trials:  *trials,
		Warmup:  *warmup,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run %s  ticker=%s  range=%s\n", report.RunID, report.Ticker, report.Range)
	report.Render(os.Stdout)
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", "tickvault.yaml", "config file path")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	svc, cfg, err := openService(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("data dir: %s\n", cfg.DataDir)
	fmt.Printf("database: %s\n", cfg.DatabasePath())

	for _, layout := range types.AllLayouts() {
		n, err := svc.RowCount(ctx, layout)
		if err != nil {
			return err
		}
		dupNote := ""
		if err := svc.CheckDuplicates(ctx, layout); err != nil {
			if !errors.Is(err, tverrors.ErrDuplicateKey) {
				return err
			}
			dupNote = "  (duplicates present)"
		}
		fmt.Printf("  %-12s %10d rows%s\n", layout, n, dupNote)
	}

	parts := svc.Partitions()
	years := make([]string, 0, len(parts))
	for _, p := range parts {
		years = append(years, p.Table)
	}
	fmt.Printf("partitions (%d): %s\n", len(parts), strings.Join(years, ", "))
	return nil
}
