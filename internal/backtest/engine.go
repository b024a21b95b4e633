// Package backtest simulates signal-driven strategies over price series.
package backtest

import (
	"fmt"
	"math"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/metrics"
	"github.com/HiNala/stock-agents/internal/observability"
	"github.com/HiNala/stock-agents/internal/strategy"
)

// MinBars is the shortest series the engine accepts. Volatility needs
// at least two net returns after the first bar.
const MinBars = 3

// Engine runs a single strategy over a single series. It holds no state
// between calls and is safe for concurrent use.
type Engine struct {
	sink observability.Sink
}

// NewEngine creates a backtest engine. A nil sink discards events.
func NewEngine(sink observability.Sink) *Engine {
	return &Engine{sink: observability.OrNop(sink)}
}

// Run simulates strat over series.
//
// The position held on bar t is the signal observed on bar t-1; bars whose
// prior signal is undefined hold no position and are not trade bars.
// Commission is charged on every unit of position change.
func (e *Engine) Run(series *domain.PriceSeries, strat strategy.Strategy, costs domain.CostModel) (*domain.BacktestResult, error) {
	if costs.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital must be positive, got %v", domain.ErrInvalidParameter, costs.InitialCapital)
	}
	if costs.CommissionRate < 0 {
		return nil, fmt.Errorf("%w: commission rate must be non-negative, got %v", domain.ErrInvalidParameter, costs.CommissionRate)
	}
	n := series.Len()
	if n < MinBars {
		return nil, fmt.Errorf("%w: series %q has %d bars, need %d", domain.ErrInsufficientData, series.Symbol, n, MinBars)
	}

	closes := series.Closes()
	sig, err := strat.Signals(closes)
	if err != nil {
		return nil, err
	}
	if len(sig) != n {
		return nil, fmt.Errorf("%w: strategy %s returned %d signals for %d bars", domain.ErrInvalidParameter, strat.ID(), len(sig), n)
	}

	positions := make([]float64, n)
	net := make([]float64, n)
	trades, wins := 0, 0
	prev := 0.0
	for t := 1; t < n; t++ {
		if math.IsNaN(sig[t-1]) {
			prev = 0
			continue
		}
		pos := sig[t-1]
		positions[t] = pos

		change := math.Abs(pos - prev)
		ret := closes[t]/closes[t-1] - 1
		net[t] = pos*ret - change*costs.CommissionRate

		if change > 0 {
			trades++
			if net[t] > 0 {
				wins++
			}
		}
		prev = pos
	}

	equity := metrics.Compound(costs.InitialCapital, net)
	drawdowns := metrics.Drawdowns(equity)

	totalReturn := equity[n-1]/costs.InitialCapital - 1
	annualReturn := annualize(totalReturn, n)
	annualVol := metrics.AnnualizedVolatility(net[1:])

	timestamps := series.Timestamps()
	result := &domain.BacktestResult{
		Symbol:               series.Symbol,
		Strategy:             strat.Config(),
		Costs:                costs,
		TotalReturn:          totalReturn,
		AnnualizedReturn:     annualReturn,
		AnnualizedVolatility: annualVol,
		SharpeRatio:          metrics.SafeRatio(annualReturn, annualVol),
		MaxDrawdown:          metrics.MaxDrawdown(equity),
		WinRate:              metrics.WinRate(wins, trades),
		TradeCount:           trades,
		BarCount:             n,
		EquityCurve:          curve(timestamps, equity),
		DrawdownCurve:        curve(timestamps, drawdowns),
		PositionCurve:        curve(timestamps, positions),
	}

	e.sink.Emit(observability.Event{
		Component: "backtest",
		Name:      "completed",
		Level:     observability.LevelDebug,
		Symbol:    series.Symbol,
		Attrs: map[string]any{
			"strategy":     strat.ID(),
			"bars":         n,
			"trades":       trades,
			"total_return": totalReturn,
			"sharpe":       result.SharpeRatio,
		},
	})
	return result, nil
}

// annualize compounds totalReturn over 252/bars periods. A total loss
// of capital or worse annualizes to -1.
func annualize(totalReturn float64, bars int) float64 {
	growth := 1 + totalReturn
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, metrics.TradingDaysPerYear/float64(bars)) - 1
}

func curve(timestamps []int64, values []float64) []domain.CurvePoint {
	out := make([]domain.CurvePoint, len(values))
	for i, v := range values {
		out[i] = domain.CurvePoint{TimestampMs: timestamps[i], Value: v}
	}
	return out
}
