package backtest

import (
	"fmt"
	"math"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/observability"
	"github.com/HiNala/stock-agents/internal/strategy"
)

// Optimizer grid-searches strategy parameters for the highest Sharpe ratio.
type Optimizer struct {
	engine *Engine
	sink   observability.Sink
}

// NewOptimizer creates an optimizer backed by engine. A nil sink discards events.
func NewOptimizer(engine *Engine, sink observability.Sink) *Optimizer {
	return &Optimizer{engine: engine, sink: observability.OrNop(sink)}
}

// Optimize backtests every candidate in order and keeps the first one with
// the maximal Sharpe ratio. Failed candidates are recorded, not fatal,
// unless every candidate fails.
func (o *Optimizer) Optimize(series *domain.PriceSeries, candidates []domain.StrategyConfig, costs domain.CostModel) (*domain.OptimizationResult, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: empty parameter grid", domain.ErrInvalidParameter)
	}

	out := &domain.OptimizationResult{
		Symbol:     series.Symbol,
		Candidates: make([]domain.ParamResult, 0, len(candidates)),
	}
	var firstErr error
	bestSharpe := math.Inf(-1)

	for _, cfg := range candidates {
		res, err := o.runOne(series, cfg, costs)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			out.Failed++
			out.Candidates = append(out.Candidates, domain.ParamResult{Strategy: cfg, SharpeRatio: math.NaN(), TotalReturn: math.NaN(), Err: err.Error()})
			continue
		}
		out.Candidates = append(out.Candidates, domain.ParamResult{
			Strategy:    cfg,
			SharpeRatio: res.SharpeRatio,
			TotalReturn: res.TotalReturn,
		})

		sharpe := res.SharpeRatio
		if math.IsNaN(sharpe) {
			sharpe = math.Inf(-1)
		}
		if out.BestResult == nil || sharpe > bestSharpe {
			bestSharpe = sharpe
			out.Best = cfg
			out.BestResult = res
		}
	}

	if out.BestResult == nil {
		return nil, fmt.Errorf("all %d candidates failed for %s: %w", len(candidates), series.Symbol, firstErr)
	}

	o.sink.Emit(observability.Event{
		Component: "backtest",
		Name:      "optimized",
		Level:     observability.LevelInfo,
		Symbol:    series.Symbol,
		Attrs: map[string]any{
			"best":       out.Best.String(),
			"sharpe":     out.BestResult.SharpeRatio,
			"candidates": len(candidates),
			"failed":     out.Failed,
		},
	})
	return out, nil
}

func (o *Optimizer) runOne(series *domain.PriceSeries, cfg domain.StrategyConfig, costs domain.CostModel) (*domain.BacktestResult, error) {
	strat, err := strategy.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return o.engine.Run(series, strat, costs)
}
