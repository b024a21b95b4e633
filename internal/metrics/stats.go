package metrics

import (
	"math"
	"sort"
)

// TradingDaysPerYear is the annualisation factor for daily bars.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean. Returns NaN for empty input.
// Deviations are summed around the first value so a constant input
// yields that constant exactly.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	base := values[0]
	sum := 0.0
	for _, v := range values {
		sum += v - base
	}
	return base + sum/float64(len(values))
}

// Stddev calculates sample standard deviation (n-1 denominator).
// Returns NaN for fewer than 2 values.
func Stddev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Variance calculates sample variance (n-1 denominator).
// Returns NaN for fewer than 2 values.
func Variance(values []float64) float64 {
	return Covariance(values, values)
}

// Covariance calculates sample covariance of two equal-length slices.
// Returns NaN when lengths differ or fewer than 2 values are given.
func Covariance(a, b []float64) float64 {
	n := len(a)
	if n != len(b) || n < 2 {
		return math.NaN()
	}
	ma, mb := Mean(a), Mean(b)
	sum := 0.0
	for i := range a {
		sum += (a[i] - ma) * (b[i] - mb)
	}
	return sum / float64(n-1)
}

// Correlation calculates the Pearson coefficient.
// Returns NaN when either input has zero variance.
func Correlation(a, b []float64) float64 {
	va, vb := Variance(a), Variance(b)
	if va == 0 || vb == 0 || math.IsNaN(va) || math.IsNaN(vb) {
		return math.NaN()
	}
	r := Covariance(a, b) / math.Sqrt(va*vb)
	// rounding can push |r| marginally above 1
	return math.Max(-1, math.Min(1, r))
}

// Percentile uses linear interpolation between closest ranks.
// sorted must be pre-sorted ASC; p is a fraction (0.05 = 5th percentile).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// PercentileOf sorts a copy of values and returns its p-th percentile.
func PercentileOf(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Percentile(sorted, p)
}

// Drawdowns returns (equity - running peak) / running peak for each point.
// Every value is <= 0.
func Drawdowns(equity []float64) []float64 {
	out := make([]float64, len(equity))
	peak := math.Inf(-1)
	for i, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			out[i] = (e - peak) / peak
		}
	}
	return out
}

// MaxDrawdown returns the minimum of Drawdowns(equity), 0 for empty input.
func MaxDrawdown(equity []float64) float64 {
	worst := 0.0
	for _, d := range Drawdowns(equity) {
		if d < worst {
			worst = d
		}
	}
	return worst
}

// Compound returns start * cumulative product of (1 + r).
func Compound(start float64, returns []float64) []float64 {
	out := make([]float64, len(returns))
	v := start
	for i, r := range returns {
		v *= 1 + r
		out[i] = v
	}
	return out
}

// AnnualizedVolatility returns sample stddev * sqrt(252).
func AnnualizedVolatility(returns []float64) float64 {
	return Stddev(returns) * math.Sqrt(TradingDaysPerYear)
}

// SafeRatio divides num by den, returning 0 when den is exactly 0.
// Used for every Sharpe ratio so zero volatility never yields NaN or Inf.
func SafeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Sign returns -1, 0 or +1.
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// WinRate calculates win rate as wins / total.
func WinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}
