package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/idhash"
	"github.com/HiNala/stock-agents/internal/observability"
	"github.com/HiNala/stock-agents/internal/storage"
	"github.com/HiNala/stock-agents/internal/strategy"
)

// Runner executes backtests against stored price bars and records the runs.
type Runner struct {
	bars   storage.PriceBarStore
	runs   storage.BacktestRunStore
	curves storage.EquityCurveStore
	engine *Engine
	now    func() time.Time
}

// NewRunner creates a new backtest runner. curves may be nil to skip
// equity curve persistence.
func NewRunner(bars storage.PriceBarStore, runs storage.BacktestRunStore, curves storage.EquityCurveStore, engine *Engine) *Runner {
	return &Runner{
		bars:   bars,
		runs:   runs,
		curves: curves,
		engine: engine,
		now:    time.Now,
	}
}

// WithClock overrides the creation timestamp source.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run loads the series for symbol, backtests cfg and records the run.
// Re-running identical inputs returns the stored run.
func (r *Runner) Run(ctx context.Context, symbol, interval string, cfg domain.StrategyConfig, costs domain.CostModel) (*domain.BacktestRun, *domain.BacktestResult, error) {
	series, err := r.bars.GetBySymbol(ctx, symbol, interval)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s/%s: %w", symbol, interval, err)
	}
	return r.RunSeries(ctx, series, cfg, costs)
}

// RunAll backtests every config against one symbol, loading bars once.
// Configs that fail are returned as failures and do not stop the batch.
func (r *Runner) RunAll(ctx context.Context, symbol, interval string, cfgs []domain.StrategyConfig, costs domain.CostModel) ([]*domain.BacktestRun, []domain.Failure, error) {
	series, err := r.bars.GetBySymbol(ctx, symbol, interval)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s/%s: %w", symbol, interval, err)
	}

	var runs []*domain.BacktestRun
	var failures []domain.Failure
	for _, cfg := range cfgs {
		if err := ctx.Err(); err != nil {
			return runs, failures, err
		}
		run, _, err := r.RunSeries(ctx, series, cfg, costs)
		if err != nil {
			if !isEngineError(err) {
				return runs, failures, err
			}
			f := domain.NewFailure(symbol, err)
			f.Reason = cfg.String() + ": " + f.Reason
			failures = append(failures, f)
			continue
		}
		runs = append(runs, run)
	}
	return runs, failures, nil
}

// RunSeries backtests cfg over an already loaded series and records the
// equity curve, then the run. A failed write leaves no run behind.
func (r *Runner) RunSeries(ctx context.Context, series *domain.PriceSeries, cfg domain.StrategyConfig, costs domain.CostModel) (*domain.BacktestRun, *domain.BacktestResult, error) {
	strat, err := strategy.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	result, err := r.engine.Run(series, strat, costs)
	r.emitExecuted(series.Symbol, cfg, err)
	if err != nil {
		return nil, nil, err
	}

	// the curve goes first so a stored run always has its curve
	run := NewRun(series, result, r.now())
	if r.curves != nil {
		err := r.curves.InsertBulk(ctx, EquityPoints(run.RunID, result))
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, nil, fmt.Errorf("insert equity curve %s: %w", idhash.ShortRunID(run.RunID), err)
		}
	}

	if err := r.runs.Insert(ctx, run); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			existing, getErr := r.runs.GetByID(ctx, run.RunID)
			if getErr != nil {
				return nil, nil, getErr
			}
			return existing, result, nil
		}
		return nil, nil, fmt.Errorf("insert run %s: %w", idhash.ShortRunID(run.RunID), err)
	}
	return run, result, nil
}

func (r *Runner) emitExecuted(symbol string, cfg domain.StrategyConfig, err error) {
	status, level := "ok", observability.LevelDebug
	if err != nil {
		status, level = "error", observability.LevelWarn
	}
	r.engine.sink.Emit(observability.Event{
		Component: "backtest",
		Name:      observability.EventBacktestExecuted,
		Level:     level,
		Symbol:    symbol,
		Attrs:     map[string]any{"strategy_type": string(cfg.StrategyType), "status": status},
		Err:       err,
	})
}

// NewRun summarizes a result as a persistable run with a deterministic ID.
func NewRun(series *domain.PriceSeries, result *domain.BacktestResult, createdAt time.Time) *domain.BacktestRun {
	first, last := series.Bars[0], series.Last()
	strategyID := result.Strategy.String()
	return &domain.BacktestRun{
		RunID: idhash.BacktestRunID(
			series.Symbol, series.Interval, strategyID,
			result.Costs.CommissionRate, result.Costs.InitialCapital,
			first.TimestampMs, last.TimestampMs, series.Len(),
		),
		Symbol:               series.Symbol,
		StrategyID:           strategyID,
		StrategyType:         result.Strategy.StrategyType,
		Lookback:             result.Strategy.Lookback,
		HoldingPeriod:        result.Strategy.HoldingPeriod,
		StdDevs:              result.Strategy.StdDevs,
		CommissionRate:       result.Costs.CommissionRate,
		InitialCapital:       result.Costs.InitialCapital,
		StartMs:              first.TimestampMs,
		EndMs:                last.TimestampMs,
		BarCount:             result.BarCount,
		TotalReturn:          result.TotalReturn,
		AnnualizedReturn:     result.AnnualizedReturn,
		AnnualizedVolatility: result.AnnualizedVolatility,
		SharpeRatio:          result.SharpeRatio,
		MaxDrawdown:          result.MaxDrawdown,
		WinRate:              result.WinRate,
		TradeCount:           result.TradeCount,
		FinalEquity:          result.FinalEquity(),
		CreatedAtMs:          createdAt.UnixMilli(),
	}
}

// EquityPoints flattens the curves of a result into storable points.
func EquityPoints(runID string, result *domain.BacktestResult) []*domain.EquityCurvePoint {
	points := make([]*domain.EquityCurvePoint, len(result.EquityCurve))
	for i, p := range result.EquityCurve {
		points[i] = &domain.EquityCurvePoint{
			RunID:       runID,
			TimestampMs: p.TimestampMs,
			Equity:      p.Value,
			Drawdown:    result.DrawdownCurve[i].Value,
			Position:    result.PositionCurve[i].Value,
		}
	}
	return points
}

func isEngineError(err error) bool {
	return errors.Is(err, domain.ErrInsufficientData) ||
		errors.Is(err, domain.ErrInvalidParameter) ||
		errors.Is(err, domain.ErrDegenerateInput)
}
