// Package main provides the one-shot analysis entry point.
// Executes: fetch → filter → backtests → aggregates → recommendations → risk → narrative → publish
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HiNala/stock-agents/internal/app"
	"github.com/HiNala/stock-agents/internal/config"
	"github.com/HiNala/stock-agents/internal/observability"
	"github.com/HiNala/stock-agents/internal/pipeline"
	"github.com/HiNala/stock-agents/internal/reporting"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	riskTolerance := flag.String("risk", "", "Risk tolerance: low, medium, high (default from config)")
	timeHorizon := flag.String("horizon", "", "Time horizon: short, medium, long (default from config)")
	migrate := flag.Bool("migrate", false, "Apply schema migrations before running")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	config.LoadEnvFile(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *riskTolerance != "" {
		cfg.Analysis.RiskTolerance = *riskTolerance
	}
	if *timeHorizon != "" {
		cfg.Analysis.TimeHorizon = *timeHorizon
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling pipeline...\n", sig)
		cancel()
	}()

	stores, err := app.OpenStores(ctx, cfg.Storage, *migrate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening stores: %v\n", err)
		os.Exit(1)
	}
	defer stores.Close()

	src, closeSource, err := app.OpenSource(cfg, stores)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening source: %v\n", err)
		os.Exit(1)
	}
	defer closeSource()

	sink := app.NewSink(observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format))
	comps, err := app.Build(cfg, stores, src, sink, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building pipeline: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	fmt.Println("=== Analysis Pipeline ===")
	result, err := comps.Pipeline.Run(ctx, cfg.Preferences())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline error: %v\n", err)
		os.Exit(1)
	}
	printSummary(result)

	manifest, err := pipeline.WriteOutputs(*outputDir, result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing outputs: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n=== Outputs ===")
	fmt.Printf("  Data version: %s\n", manifest.DataVersion)
	for _, f := range manifest.Files {
		fmt.Printf("  %s/%s\n", *outputDir, f)
	}
}

func printSummary(result *pipeline.RunResult) {
	fmt.Printf("Pipeline completed:\n")
	fmt.Printf("  Fetched: %d\n", result.Fetched)
	fmt.Printf("  Rejected by filter: %d\n", len(result.Rejected))
	fmt.Printf("  Backtests: %d\n", len(result.Backtests))
	fmt.Printf("  Aggregates: %d\n", len(result.Aggregates))
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
	if result.Output == nil {
		return
	}

	run := result.Output.Run
	fmt.Printf("\n=== Recommendations (%s) ===\n", run.RunID)
	if len(run.Recommendations) == 0 {
		fmt.Println("  No BUY or SELL signals.")
	}
	for i, rec := range run.Recommendations {
		fmt.Printf("  %d. %-6s %-4s size=%s price=%s\n", i+1, rec.Symbol, rec.Action,
			reporting.FormatPct(rec.PositionSize), reporting.FormatMoney(rec.LastPrice))
	}
	for _, f := range run.Skipped {
		fmt.Printf("  skipped %s (%s)\n", f.Symbol, f.Kind)
	}

	pr := run.PortfolioRisk
	fmt.Println("\n=== Portfolio Risk ===")
	fmt.Printf("  Volatility: %s\n", reporting.FormatPct(pr.AnnualizedVolatility))
	fmt.Printf("  VaR (%s): %s\n", pr.VaRMethod, reporting.FormatPct(pr.VaR))
	fmt.Printf("  Expected shortfall: %s\n", reporting.FormatPct(pr.ExpectedShortfall))
	fmt.Printf("  Max drawdown: %s\n", reporting.FormatPct(pr.MaxDrawdown))
	if result.Published {
		fmt.Println("  Published: yes")
	}
}
