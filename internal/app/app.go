// Package app wires configuration into stores, data sources and the pipeline.
// Every binary under cmd/ builds its components through this package.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/HiNala/stock-agents/internal/backtest"
	"github.com/HiNala/stock-agents/internal/config"
	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/events"
	"github.com/HiNala/stock-agents/internal/marketdata"
	"github.com/HiNala/stock-agents/internal/metrics"
	"github.com/HiNala/stock-agents/internal/narrative"
	"github.com/HiNala/stock-agents/internal/observability"
	"github.com/HiNala/stock-agents/internal/pipeline"
	"github.com/HiNala/stock-agents/internal/recommend"
	"github.com/HiNala/stock-agents/internal/reporting"
	"github.com/HiNala/stock-agents/internal/risk"
	"github.com/HiNala/stock-agents/internal/signals"
	"github.com/HiNala/stock-agents/internal/storage"
	chstore "github.com/HiNala/stock-agents/internal/storage/clickhouse"
	"github.com/HiNala/stock-agents/internal/storage/memory"
	"github.com/HiNala/stock-agents/internal/storage/migrations"
	pgstore "github.com/HiNala/stock-agents/internal/storage/postgres"
	"github.com/HiNala/stock-agents/internal/strategy"
)

// Stores holds every storage implementation.
// PostgreSQL keeps backtest runs and ingest progress; ClickHouse keeps
// bars, equity curves and aggregates. A missing DSN falls back to memory.
type Stores struct {
	Bars       storage.PriceBarStore
	Runs       storage.BacktestRunStore
	Curves     storage.EquityCurveStore
	Aggregates storage.StrategyAggregateStore
	Progress   storage.IngestProgressStore

	closers []func()
}

// MemoryStores returns in-memory stores.
func MemoryStores() *Stores {
	return &Stores{
		Bars:       memory.NewPriceBarStore(),
		Runs:       memory.NewBacktestRunStore(),
		Curves:     memory.NewEquityCurveStore(),
		Aggregates: memory.NewStrategyAggregateStore(),
		Progress:   memory.NewIngestProgressStore(),
	}
}

// OpenStores connects the configured databases. With migrate set the
// embedded schema migrations are applied first.
func OpenStores(ctx context.Context, cfg config.Storage, migrate bool) (*Stores, error) {
	s := MemoryStores()

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)

		if migrate {
			if _, err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				s.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		s.Runs = pgstore.NewBacktestRunStore(pool)
		s.Progress = pgstore.NewIngestProgressStore(pool)
	}

	if cfg.ClickHouseDSN != "" {
		var conn *chstore.Conn
		var err error
		if migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
		}
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { conn.Close() })

		s.Bars = chstore.NewPriceBarStore(conn)
		s.Curves = chstore.NewEquityCurveStore(conn)
		s.Aggregates = chstore.NewStrategyAggregateStore(conn)
	}

	return s, nil
}

// Close releases database connections.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenSource builds the configured price source, wrapped in the SQLite
// cache when a cache path is set. The returned func releases it.
func OpenSource(cfg *config.Config, stores *Stores) (marketdata.Source, func(), error) {
	var src marketdata.Source
	cleanup := func() {}

	switch cfg.DataSource.Kind {
	case config.SourceInflux:
		in := cfg.DataSource.Influx
		s, err := marketdata.NewInfluxSource(marketdata.InfluxConfig{
			URL:         in.URL,
			Token:       in.Token,
			Org:         in.Org,
			Bucket:      in.Bucket,
			Measurement: in.Measurement,
		})
		if err != nil {
			return nil, nil, err
		}
		src, cleanup = s, s.Close
	case config.SourceStore:
		src = marketdata.NewStoreSource(stores.Bars)
	default:
		src = marketdata.NewYahooSource(marketdata.YahooOptions{
			BaseURL:           cfg.DataSource.Yahoo.BaseURL,
			RequestsPerSecond: cfg.DataSource.Yahoo.RequestsPerSecond,
		})
	}

	if cfg.DataSource.CachePath == "" {
		return src, cleanup, nil
	}
	cache, err := marketdata.NewSQLiteCache(cfg.DataSource.CachePath, src, cfg.CacheTTL())
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	inner := cleanup
	return cache, func() {
		cache.Close()
		inner()
	}, nil
}

// NewSink logs engine events through logger and counts them in Prometheus.
func NewSink(logger *slog.Logger) observability.Sink {
	return observability.MultiSink{
		observability.NewSlogSink(logger),
		observability.NewMetricsSink(observability.DefaultMetrics),
	}
}

// Engines holds the analysis engines built from config.
type Engines struct {
	Signals     *signals.Engine
	Risk        *risk.Engine
	Recommender *recommend.Engine
	Backtest    *backtest.Engine
	Optimizer   *backtest.Optimizer
}

// NewEngines validates the engine parameters and builds the engines.
func NewEngines(cfg *config.Config, sink observability.Sink) (*Engines, error) {
	sig, err := signals.NewEngine(cfg.SignalParams(), sink)
	if err != nil {
		return nil, fmt.Errorf("signal engine: %w", err)
	}
	rk, err := risk.NewEngine(cfg.RiskConfig(), sink)
	if err != nil {
		return nil, fmt.Errorf("risk engine: %w", err)
	}
	bt := backtest.NewEngine(sink)
	return &Engines{
		Signals:     sig,
		Risk:        rk,
		Recommender: recommend.NewEngine(sig, rk, sink),
		Backtest:    bt,
		Optimizer:   backtest.NewOptimizer(bt, sink),
	}, nil
}

// NewResearcher returns the narrative researcher, or nil when disabled.
func NewResearcher(cfg config.LLM, sink observability.Sink) (*narrative.Researcher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	gen, err := narrative.NewOpenAIGenerator(narrative.OpenAIConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return narrative.NewResearcher(gen, sink), nil
}

// NewPublisher returns the Kafka publisher, or a no-op one when disabled.
func NewPublisher(cfg config.Kafka) events.Publisher {
	if !cfg.Enabled {
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

// NewFundamentalsSource returns the Yahoo quoteSummary client.
func NewFundamentalsSource(cfg config.Yahoo) *marketdata.YahooSource {
	return marketdata.NewYahooSource(marketdata.YahooOptions{
		BaseURL:           cfg.BaseURL,
		SummaryURL:        cfg.SummaryURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
}

// Components is everything a pipeline run needs.
type Components struct {
	Engines      *Engines
	Runner       *backtest.Runner
	Pipeline     *pipeline.Pipeline
	Publisher    events.Publisher
	Fundamentals marketdata.FundamentalsSource
}

// Close releases the publisher.
func (c *Components) Close() error {
	return c.Publisher.Close()
}

// Build assembles the pipeline from config, stores and a price source.
func Build(cfg *config.Config, stores *Stores, src marketdata.Source, sink observability.Sink, verbose bool) (*Components, error) {
	engines, err := NewEngines(cfg, sink)
	if err != nil {
		return nil, err
	}
	researcher, err := NewResearcher(cfg.LLM, sink)
	if err != nil {
		return nil, fmt.Errorf("narrative: %w", err)
	}
	publisher := NewPublisher(cfg.Kafka)
	fundamentals := NewFundamentalsSource(cfg.DataSource.Yahoo)

	runner := backtest.NewRunner(stores.Bars, stores.Runs, stores.Curves, engines.Backtest)

	opts := pipeline.Options{
		Source:          src,
		Symbols:         cfg.Universe.Symbols,
		Period:          cfg.Universe.Period,
		Interval:        cfg.Universe.Interval,
		Recommender:     engines.Recommender,
		Risk:            engines.Risk,
		Concurrency:     cfg.Universe.Concurrency,
		BarStore:        stores.Bars,
		Runner:          runner,
		Strategies:      []domain.StrategyConfig{cfg.StrategyConfig()},
		Costs:           cfg.CostModel(),
		Aggregator:      metrics.NewAggregator(stores.Runs, stores.Aggregates),
		AggregateStore:  stores.Aggregates,
		StressScenarios: cfg.StressScenarios,
		Reports:         reporting.NewGenerator(stores.Runs, stores.Aggregates),
		Researcher:      researcher,
		Publisher:       publisher,
		Sink:            sink,
		Verbose:         verbose,
	}
	if cfg.DataSource.Kind == config.SourceStore {
		// bars already live in the store
		opts.BarStore = nil
	}
	if cfg.Universe.FilterMomentum {
		f := cfg.MomentumFilter()
		opts.Filter = &f
	}
	if screen := cfg.FundamentalFilter(); screen != nil {
		opts.Screen = screen
		opts.Fundamentals = fundamentals
	}
	if cfg.Analysis.Optimize {
		opts.Optimizer = engines.Optimizer
	}

	return &Components{
		Engines:      engines,
		Runner:       runner,
		Pipeline:     pipeline.New(opts),
		Publisher:    publisher,
		Fundamentals: fundamentals,
	}, nil
}

// StrategyGrid returns the optimisation candidates for a strategy type,
// or both grids when t is empty.
func StrategyGrid(t domain.StrategyType) []domain.StrategyConfig {
	if t == "" {
		return append(strategy.MomentumGrid(), strategy.MeanReversionGrid()...)
	}
	return strategy.GridFor(t)
}
