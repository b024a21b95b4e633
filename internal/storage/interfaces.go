package storage

import (
	"context"

	"github.com/HiNala/stock-agents/internal/domain"
)

// PriceBarStore provides access to price_bars storage.
type PriceBarStore interface {
	// InsertBulk adds the bars of a series atomically.
	// Returns ErrDuplicateKey if any (symbol, interval, timestamp_ms) exists.
	InsertBulk(ctx context.Context, series *domain.PriceSeries) error

	// GetBySymbol retrieves all bars for a symbol, ordered by timestamp ASC.
	// Returns ErrNotFound if the symbol has no bars.
	GetBySymbol(ctx context.Context, symbol, interval string) (*domain.PriceSeries, error)

	// GetByTimeRange retrieves bars within [start, end] (inclusive), ordered by timestamp ASC.
	// Returns ErrNotFound if no bar falls in the range.
	GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) (*domain.PriceSeries, error)

	// ListSymbols returns all symbols with bars at the interval, sorted ASC.
	ListSymbols(ctx context.Context, interval string) ([]string, error)
}

// BacktestRunStore provides access to backtest_runs storage.
type BacktestRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetBySymbol retrieves all runs for a symbol, ordered by strategy_id ASC, run_id ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.BacktestRun, error)

	// GetByStrategy retrieves all runs for a strategy_id, ordered by symbol ASC, run_id ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.BacktestRun, error)

	// ListStrategyIDs returns the distinct strategy IDs, sorted ASC.
	ListStrategyIDs(ctx context.Context) ([]string, error)
}

// EquityCurveStore provides access to equity_curves storage.
type EquityCurveStore interface {
	// InsertBulk adds multiple points atomically.
	// Returns ErrDuplicateKey if any (run_id, timestamp_ms) exists.
	InsertBulk(ctx context.Context, points []*domain.EquityCurvePoint) error

	// GetByRunID retrieves the curve of a run, ordered by timestamp ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.EquityCurvePoint, error)
}

// StrategyAggregateStore provides access to strategy_aggregates storage.
type StrategyAggregateStore interface {
	// Insert adds a new aggregate. Returns ErrDuplicateKey if strategy_id exists.
	Insert(ctx context.Context, a *domain.StrategyAggregate) error

	// InsertBulk adds multiple aggregates atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, aggregates []*domain.StrategyAggregate) error

	// Upsert stores a, replacing any aggregate with the same strategy_id.
	Upsert(ctx context.Context, a *domain.StrategyAggregate) error

	// GetByStrategyID retrieves an aggregate. Returns ErrNotFound if not exists.
	GetByStrategyID(ctx context.Context, strategyID string) (*domain.StrategyAggregate, error)

	// GetAll retrieves all aggregates ordered by strategy_id ASC.
	GetAll(ctx context.Context) ([]*domain.StrategyAggregate, error)
}
