package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/HiNala/stock-agents/internal/app"
	"github.com/HiNala/stock-agents/internal/config"
	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/export"
	"github.com/HiNala/stock-agents/internal/observability"
	"github.com/HiNala/stock-agents/internal/reporting"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	symbol := flag.String("symbol", "", "Ticker to backtest (required)")
	strategyType := flag.String("strategy", "", "Strategy: momentum, mean_reversion (default from config)")
	lookback := flag.Int("lookback", 0, "Lookback window in bars (default from config)")
	holding := flag.Int("holding", 0, "Holding period for momentum (default from config)")
	stdDevs := flag.Float64("std-devs", 0, "Band width for mean_reversion (default from config)")
	optimize := flag.Bool("optimize", false, "Grid search the strategy parameters and record the best")

	exportFormat := flag.String("export", "", "Export the equity curve: csv, json, parquet")
	outputDir := flag.String("output-dir", "output", "Directory for exported curves")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	*symbol = strings.ToUpper(*symbol)

	var saver export.Saver
	if *exportFormat != "" {
		if saver = export.NewSaver(*exportFormat); saver == nil {
			logger.Fatalf("Invalid export format: %s. Must be csv, json or parquet", *exportFormat)
		}
	}

	config.LoadEnvFile(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	applyOverrides(cfg, *strategyType, *lookback, *holding, *stdDevs)
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	stores, err := app.OpenStores(ctx, cfg.Storage, false)
	if err != nil {
		logger.Fatalf("open stores: %v", err)
	}
	defer stores.Close()

	src, closeSource, err := app.OpenSource(cfg, stores)
	if err != nil {
		logger.Fatalf("open source: %v", err)
	}
	defer closeSource()

	sink := app.NewSink(observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format))
	comps, err := app.Build(cfg, stores, src, sink, false)
	if err != nil {
		logger.Fatalf("build components: %v", err)
	}
	defer comps.Close()

	logger.Printf("Fetching %s (%s, %s) from %s", *symbol, cfg.Universe.Period, cfg.Universe.Interval, src.Name())
	series, err := src.Fetch(ctx, *symbol, cfg.Universe.Period, cfg.Universe.Interval)
	if err != nil {
		logger.Fatalf("fetch %s: %v", *symbol, err)
	}

	strat := cfg.StrategyConfig()
	costs := cfg.CostModel()

	var opt *domain.OptimizationResult
	if *optimize {
		grid := app.StrategyGrid(strat.StrategyType)
		logger.Printf("Optimising %d %s candidates", len(grid), strat.StrategyType)
		opt, err = comps.Engines.Optimizer.Optimize(series, grid, costs)
		if err != nil {
			logger.Fatalf("optimise: %v", err)
		}
		strat = opt.Best
	}

	logger.Printf("Running backtest: symbol=%s strategy=%s", *symbol, strat)
	run, result, err := comps.Runner.RunSeries(ctx, series, strat, costs)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	var exported string
	if saver != nil {
		if err := os.MkdirAll(*outputDir, 0755); err != nil {
			logger.Fatalf("create output dir: %v", err)
		}
		exported = filepath.Join(*outputDir, fmt.Sprintf("%s_%s.%s", run.Symbol, run.StrategyID, saver.Extension()))
		if err := saver.Save(export.RowsFromResult(run.RunID, result), exported); err != nil {
			logger.Fatalf("export equity curve: %v", err)
		}
		logger.Printf("Equity curve written to %s", exported)
	}

	if *outputJSON {
		out := struct {
			Run          *domain.BacktestRun        `json:"run"`
			Optimization *domain.OptimizationResult `json:"optimization,omitempty"`
			Export       string                     `json:"export,omitempty"`
		}{run, opt, exported}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}
	printRun(run, opt)
}

// applyOverrides replaces config strategy settings with non-zero flags.
func applyOverrides(cfg *config.Config, strategyType string, lookback, holding int, stdDevs float64) {
	if strategyType != "" {
		cfg.Analysis.StrategyType = strings.ToLower(strategyType)
	}
	if lookback > 0 {
		cfg.Analysis.LookbackPeriod = lookback
	}
	if holding > 0 {
		cfg.Analysis.HoldingPeriod = holding
	}
	if stdDevs > 0 {
		cfg.Analysis.StdDevs = stdDevs
	}
}

// printRun outputs a human-readable run summary.
func printRun(r *domain.BacktestRun, opt *domain.OptimizationResult) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:             %s\n", r.RunID)
	fmt.Printf("Symbol:             %s\n", r.Symbol)
	fmt.Printf("Strategy:           %s\n", r.StrategyID)
	fmt.Printf("Bars:               %d (%s to %s)\n", r.BarCount,
		time.UnixMilli(r.StartMs).UTC().Format("2006-01-02"),
		time.UnixMilli(r.EndMs).UTC().Format("2006-01-02"))
	fmt.Println()

	fmt.Println("Costs:")
	fmt.Printf("  Commission Rate:  %s\n", reporting.FormatPct(r.CommissionRate))
	fmt.Printf("  Initial Capital:  %s\n", reporting.FormatMoney(r.InitialCapital))
	fmt.Println()

	fmt.Println("Result:")
	fmt.Printf("  Total Return:     %s\n", reporting.FormatPct(r.TotalReturn))
	fmt.Printf("  Annual Return:    %s\n", reporting.FormatPct(r.AnnualizedReturn))
	fmt.Printf("  Annual Vol:       %s\n", reporting.FormatPct(r.AnnualizedVolatility))
	fmt.Printf("  Sharpe Ratio:     %.4f\n", r.SharpeRatio)
	fmt.Printf("  Max Drawdown:     %s\n", reporting.FormatPct(r.MaxDrawdown))
	fmt.Printf("  Win Rate:         %s\n", reporting.FormatPct(r.WinRate))
	fmt.Printf("  Trade Bars:       %d\n", r.TradeCount)
	fmt.Printf("  Final Equity:     %s\n", reporting.FormatMoney(r.FinalEquity))

	if opt != nil {
		fmt.Println()
		fmt.Println("Optimisation:")
		fmt.Printf("  Candidates:       %d (%d failed)\n", len(opt.Candidates), opt.Failed)
		fmt.Printf("  Best:             %s\n", opt.Best)
	}
}
