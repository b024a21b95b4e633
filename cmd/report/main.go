package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/HiNala/stock-agents/internal/app"
	"github.com/HiNala/stock-agents/internal/config"
	"github.com/HiNala/stock-agents/internal/export"
	"github.com/HiNala/stock-agents/internal/metrics"
	"github.com/HiNala/stock-agents/internal/reporting"
	"github.com/HiNala/stock-agents/internal/storage"
)

// Output file names
const (
	reportFile     = "BACKTEST_REPORT.md"
	aggregatesFile = "STRATEGY_AGGREGATES.csv"
	runsFile       = "BACKTEST_RUNS.csv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	curveFormat := flag.String("export-curves", "", "Also export every stored equity curve: csv, json, parquet")
	flag.Parse()

	ctx := context.Background()

	config.LoadEnvFile(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickHouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: storage.postgres_dsn and storage.clickhouse_dsn are required")
		fmt.Fprintln(os.Stderr, "Reports read runs recorded by cmd/backtest, cmd/pipeline or cmd/server")
		os.Exit(1)
	}

	var saver export.Saver
	if *curveFormat != "" {
		if saver = export.NewSaver(*curveFormat); saver == nil {
			fmt.Fprintf(os.Stderr, "Error: invalid export format %q\n", *curveFormat)
			os.Exit(1)
		}
	}

	stores, err := app.OpenStores(ctx, cfg.Storage, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
		os.Exit(1)
	}
	defer stores.Close()

	aggregator := metrics.NewAggregator(stores.Runs, stores.Aggregates)
	if err := computeAllAggregates(ctx, aggregator, stores.Aggregates); err != nil {
		fmt.Fprintf(os.Stderr, "Error computing aggregates: %v\n", err)
		os.Exit(1)
	}

	report, err := reporting.NewGenerator(stores.Runs, stores.Aggregates).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}
	report.DataQuality.IntegrityErrors = append(report.DataQuality.IntegrityErrors, aggregator.GetInvalidRunErrors()...)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}
	files := map[string]string{
		reportFile:     reporting.RenderMarkdown(report),
		aggregatesFile: reporting.RenderCSV(report.StrategyMetrics),
		runsFile:       reporting.RenderRunsCSV(report.Runs),
	}
	for _, name := range []string{reportFile, aggregatesFile, runsFile} {
		if err := os.WriteFile(filepath.Join(*outputDir, name), []byte(files[name]), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	exported := 0
	if saver != nil {
		exported, err = exportCurves(ctx, stores.Curves, report.Runs, saver, filepath.Join(*outputDir, "curves"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting curves: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Backtest report generated successfully (%d runs, %d strategies):\n", report.DataSummary.TotalRuns, report.StrategyCount)
	fmt.Printf("  - %s/%s\n", *outputDir, reportFile)
	fmt.Printf("  - %s/%s\n", *outputDir, aggregatesFile)
	fmt.Printf("  - %s/%s\n", *outputDir, runsFile)
	if exported > 0 {
		fmt.Printf("  - %s/curves (%d %s files)\n", *outputDir, exported, saver.Extension())
	}
}

// computeAllAggregates recomputes every strategy aggregate and replaces the
// stored ones.
func computeAllAggregates(ctx context.Context, agg *metrics.Aggregator, store storage.StrategyAggregateStore) error {
	start := time.Now()
	aggs, err := agg.ComputeAll(ctx)
	if err != nil {
		return err
	}
	for _, a := range aggs {
		if err := store.Upsert(ctx, a); err != nil {
			return fmt.Errorf("store aggregate %s: %w", a.StrategyID, err)
		}
	}
	fmt.Printf("Computed %d aggregates in %v\n", len(aggs), time.Since(start).Round(time.Millisecond))
	return nil
}

// exportCurves writes one file per run with a stored equity curve.
func exportCurves(ctx context.Context, curves storage.EquityCurveStore, runs []reporting.RunRow, saver export.Saver, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range runs {
		points, err := curves.GetByRunID(ctx, r.RunID)
		if err != nil {
			return n, fmt.Errorf("load curve %s: %w", r.RunID, err)
		}
		if len(points) == 0 {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", r.Symbol, r.StrategyID, saver.Extension()))
		if err := saver.Save(export.RowsFromPoints(points), path); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
