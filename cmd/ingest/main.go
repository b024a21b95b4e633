package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/HiNala/stock-agents/internal/app"
	"github.com/HiNala/stock-agents/internal/config"
	"github.com/HiNala/stock-agents/internal/marketdata"
	"github.com/HiNala/stock-agents/internal/observability"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	symbols := flag.String("symbols", "", "Comma-separated tickers (default from config)")
	period := flag.String("period", "", "History period, e.g. 1y, 6mo, max (default from config)")
	interval := flag.String("interval", "", "Bar interval (default from config)")
	every := flag.Duration("every", 0, "Repeat ingestion at this interval (0 runs once)")
	migrate := flag.Bool("migrate", true, "Apply schema migrations before ingesting")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	config.LoadEnvFile(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *symbols != "" {
		cfg.Universe.Symbols = nil
		for _, s := range strings.Split(*symbols, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				cfg.Universe.Symbols = append(cfg.Universe.Symbols, s)
			}
		}
	}
	if *period != "" {
		cfg.Universe.Period = *period
	}
	if *interval != "" {
		cfg.Universe.Interval = *interval
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}
	if cfg.DataSource.Kind == config.SourceStore {
		logger.Fatal("data_source.kind=store cannot be ingested into itself; use yahoo or influx")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Metrics server listening on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
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

	stores, err := app.OpenStores(ctx, cfg.Storage, *migrate)
	if err != nil {
		logger.Fatalf("open stores: %v", err)
	}
	defer stores.Close()
	if cfg.Storage.ClickHouseDSN == "" {
		logger.Println("WARNING: no clickhouse_dsn set, bars are kept in memory and lost on exit")
	}

	src, closeSource, err := app.OpenSource(cfg, stores)
	if err != nil {
		logger.Fatalf("open source: %v", err)
	}
	defer closeSource()

	ingester := marketdata.NewIngester(src, stores.Bars, stores.Progress)

	for {
		runOnce(ctx, logger, ingester, cfg)
		if *every <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			logger.Println("Shutdown complete")
			return
		case <-time.After(*every):
		}
	}
}

func runOnce(ctx context.Context, logger *log.Logger, ing *marketdata.Ingester, cfg *config.Config) {
	start := time.Now()
	logger.Printf("Ingesting %d symbols (%s, %s)...", len(cfg.Universe.Symbols), cfg.Universe.Period, cfg.Universe.Interval)

	stats, err := ing.Ingest(ctx, cfg.Universe.Symbols, cfg.Universe.Period, cfg.Universe.Interval, cfg.Universe.Concurrency)
	if err != nil {
		logger.Printf("Ingest failed: %v", err)
		return
	}
	for _, f := range stats.Failures {
		logger.Printf("  %s skipped (%s): %s", f.Symbol, f.Kind, f.Reason)
	}
	logger.Printf("Ingested %d symbols: %d new bars, %d already stored, %d failed (%v)",
		stats.Symbols, stats.Inserted, stats.Skipped, len(stats.Failures), time.Since(start).Round(time.Millisecond))
}
