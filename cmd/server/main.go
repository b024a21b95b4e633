// Package main provides the long-running service:
// - HTTP API: recommendations, backtests, /status, /metrics
// - Scheduler (cron): recurring recommendation runs
// - Websocket push of every completed run
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HiNala/stock-agents/internal/api"
	"github.com/HiNala/stock-agents/internal/app"
	"github.com/HiNala/stock-agents/internal/config"
	"github.com/HiNala/stock-agents/internal/observability"
	"github.com/HiNala/stock-agents/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	addr := flag.String("addr", "", "HTTP listen address (default from config)")
	runOnStart := flag.Bool("run-on-start", false, "Run one recommendation pass at startup")
	migrate := flag.Bool("migrate", true, "Apply schema migrations at startup")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	config.LoadEnvFile(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}

	slogger := observability.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg.Storage, *migrate)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()
	if cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickHouseDSN == "" {
		logger.Println("WARNING: database DSNs missing, some stores are in memory")
	}

	src, closeSource, err := app.OpenSource(cfg, stores)
	if err != nil {
		logger.Fatalf("Failed to open price source: %v", err)
	}
	defer closeSource()

	comps, err := app.Build(cfg, stores, src, app.NewSink(slogger), false)
	if err != nil {
		logger.Fatalf("Failed to build pipeline: %v", err)
	}
	defer func() {
		if err := comps.Close(); err != nil {
			logger.Printf("close publisher: %v", err)
		}
	}()

	hub := api.NewHub(slogger.With("component", "hub"))
	handler := api.NewHandler(api.Options{
		Pipeline:     comps.Pipeline,
		Backtests:    comps.Runner,
		Runs:         stores.Runs,
		Fundamentals: comps.Fundamentals,
		Hub:          hub,
		Preferences:  cfg.Preferences(),
		Costs:        cfg.CostModel(),
		Interval:     cfg.Universe.Interval,
		Logger:       slogger.With("component", "api"),
	})

	sched := scheduler.New(ctx, handler.RunRecommendations, cfg.Preferences(),
		log.New(os.Stdout, "[scheduler] ", log.LstdFlags))
	if cfg.Schedule.RecommendCron != "" {
		if err := sched.Register(cfg.Schedule.RecommendCron); err != nil {
			logger.Fatalf("schedule: %v", err)
		}
		logger.Printf("Recommendation runs scheduled at %q", cfg.Schedule.RecommendCron)
	}
	sched.Start()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.SetupRoutes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("HTTP server listening on %s", cfg.Server.Addr)
		logger.Printf("  /health, /status, /metrics, /api/v1/...")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if *runOnStart {
		go sched.RunNow()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		logger.Printf("HTTP server error: %v", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	go func() {
		sig := <-sigCh
		logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
		os.Exit(1)
	}()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}
	sched.Stop(shutdownCtx)

	runs, fails := sched.Counts()
	slogger.Info("shutdown complete", slog.Int("scheduled_runs", runs), slog.Int("scheduled_failures", fails))
}
