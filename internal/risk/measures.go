package risk

import (
	"fmt"
	"math"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/metrics"
)

// Beta is cov(asset, market) / var(market). It is NaN, without error,
// when the market proxy has zero variance.
func Beta(asset, market []float64) (float64, error) {
	if len(asset) != len(market) {
		return math.NaN(), fmt.Errorf("%w: beta inputs differ in length (%d vs %d)", domain.ErrInvalidParameter, len(asset), len(market))
	}
	if len(asset) < 2 {
		return math.NaN(), fmt.Errorf("%w: beta needs 2 aligned returns, got %d", domain.ErrInsufficientData, len(asset))
	}
	v := metrics.Variance(market)
	if v == 0 {
		return math.NaN(), nil
	}
	return metrics.Covariance(asset, market) / v, nil
}

// MarketProxy is the cross-sectional mean return of each row.
func MarketProxy(table domain.ReturnTable) []float64 {
	rows := table.Rows()
	out := make([]float64, rows)
	if len(table.Columns) == 0 {
		return out
	}
	row := make([]float64, len(table.Columns))
	for t := 0; t < rows; t++ {
		for j, col := range table.Columns {
			row[j] = col[t]
		}
		out[t] = metrics.Mean(row)
	}
	return out
}

// Correlation returns the pairwise Pearson matrix of the table columns.
// The diagonal is 1; an off-diagonal entry is NaN when either column has
// zero variance.
func Correlation(table domain.ReturnTable) domain.CorrelationMatrix {
	n := len(table.Symbols)
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		values[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := metrics.Correlation(table.Columns[i], table.Columns[j])
			values[i][j] = c
			values[j][i] = c
		}
	}
	return domain.CorrelationMatrix{
		Symbols: append([]string(nil), table.Symbols...),
		Values:  values,
	}
}

// PortfolioReturns is the weighted row sum of the table.
func PortfolioReturns(table domain.ReturnTable, weights []float64) []float64 {
	out := make([]float64, table.Rows())
	for j, col := range table.Columns {
		for t, r := range col {
			out[t] += weights[j] * r
		}
	}
	return out
}

// ResolveWeights returns equal weights for an empty input, else validates
// that there is one finite weight per column.
func ResolveWeights(table domain.ReturnTable, weights []float64) ([]float64, error) {
	n := len(table.Columns)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty return table", domain.ErrInsufficientData)
	}
	if len(weights) == 0 {
		out := make([]float64, n)
		for i := range out {
			out[i] = 1 / float64(n)
		}
		return out, nil
	}
	if len(weights) != n {
		return nil, fmt.Errorf("%w: %d weights for %d assets", domain.ErrInvalidParameter, len(weights), n)
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight %d is not finite", domain.ErrInvalidParameter, i)
		}
	}
	return append([]float64(nil), weights...), nil
}

// Shocked returns a copy of table with every return multiplied by 1 + impact.
func Shocked(table domain.ReturnTable, impact float64) domain.ReturnTable {
	cols := make([][]float64, len(table.Columns))
	for j, col := range table.Columns {
		cols[j] = make([]float64, len(col))
		for t, r := range col {
			cols[j][t] = r * (1 + impact)
		}
	}
	return domain.ReturnTable{
		Symbols:      table.Symbols,
		TimestampsMs: table.TimestampsMs,
		Columns:      cols,
	}
}
