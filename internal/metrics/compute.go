package metrics

import (
	"sort"

	"github.com/HiNala/stock-agents/internal/domain"
)

// computeFromRuns calculates aggregate metrics from backtest runs of one strategy.
// Runs are sorted by Symbol ASC, RunID ASC so the result does not depend on
// store iteration order.
func computeFromRuns(runs []*domain.BacktestRun) *domain.StrategyAggregate {
	n := len(runs)
	if n == 0 {
		return &domain.StrategyAggregate{}
	}

	sorted := make([]*domain.BacktestRun, n)
	copy(sorted, runs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		return sorted[i].RunID < sorted[j].RunID
	})

	returns := make([]float64, n)
	sharpes := make([]float64, n)
	winRates := make([]float64, n)
	trades := make([]float64, n)
	symbols := make(map[string]struct{}, n)
	profitable := 0
	worst := 0.0
	for i, r := range sorted {
		returns[i] = r.TotalReturn
		sharpes[i] = r.SharpeRatio
		winRates[i] = r.WinRate
		trades[i] = float64(r.TradeCount)
		symbols[r.Symbol] = struct{}{}
		if r.TotalReturn > 0 {
			profitable++
		}
		if r.MaxDrawdown < worst {
			worst = r.MaxDrawdown
		}
	}

	sortedReturns := make([]float64, n)
	copy(sortedReturns, returns)
	sort.Float64s(sortedReturns)

	stddev := 0.0
	if n >= 2 {
		stddev = Stddev(returns)
	}

	return &domain.StrategyAggregate{
		StrategyID:   sorted[0].StrategyID,
		StrategyType: sorted[0].StrategyType,

		// Counts
		TotalRuns:    n,
		TotalSymbols: len(symbols),
		Profitable:   profitable,

		// Return distribution
		ReturnMean:   Mean(returns),
		ReturnMedian: Percentile(sortedReturns, 0.50),
		ReturnP10:    Percentile(sortedReturns, 0.10),
		ReturnP90:    Percentile(sortedReturns, 0.90),
		ReturnMin:    sortedReturns[0],
		ReturnMax:    sortedReturns[n-1],
		ReturnStddev: stddev,

		// Averages
		SharpeMean:  Mean(sharpes),
		WinRateMean: Mean(winRates),
		TradesMean:  Mean(trades),

		WorstDrawdown: worst,
	}
}
