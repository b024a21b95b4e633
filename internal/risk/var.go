// Package risk computes distributional and cross-asset risk measures.
// Every function is a pure function of its inputs.
package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/metrics"
)

// ErrUnknownVaRMethod is returned for a VaR method name that has no model.
var ErrUnknownVaRMethod = fmt.Errorf("%w: unknown VaR method", domain.ErrInvalidParameter)

// VaRModel estimates one-period Value at Risk as a return quantile.
type VaRModel interface {
	Method() domain.VaRMethod
	Compute(returns []float64, confidence float64) (float64, error)
}

// NewVaRModel returns the model for method.
func NewVaRModel(method domain.VaRMethod) (VaRModel, error) {
	switch method {
	case domain.VaRHistorical:
		return HistoricalVaR{}, nil
	case domain.VaRParametric:
		return ParametricVaR{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVaRMethod, method)
	}
}

// HistoricalVaR is the linearly interpolated (1 - confidence) percentile
// of the empirical returns.
type HistoricalVaR struct{}

// Method implements VaRModel.
func (HistoricalVaR) Method() domain.VaRMethod { return domain.VaRHistorical }

// Compute implements VaRModel.
func (HistoricalVaR) Compute(returns []float64, confidence float64) (float64, error) {
	if err := checkConfidence(confidence); err != nil {
		return math.NaN(), err
	}
	if len(returns) == 0 {
		return math.NaN(), fmt.Errorf("%w: no returns for VaR", domain.ErrInsufficientData)
	}
	return metrics.PercentileOf(returns, 1-confidence), nil
}

// ParametricVaR assumes normally distributed returns with the sample
// mean and standard deviation.
type ParametricVaR struct{}

// Method implements VaRModel.
func (ParametricVaR) Method() domain.VaRMethod { return domain.VaRParametric }

// Compute implements VaRModel.
func (ParametricVaR) Compute(returns []float64, confidence float64) (float64, error) {
	if err := checkConfidence(confidence); err != nil {
		return math.NaN(), err
	}
	if len(returns) < 2 {
		return math.NaN(), fmt.Errorf("%w: parametric VaR needs 2 returns, got %d", domain.ErrInsufficientData, len(returns))
	}
	dist := distuv.Normal{Mu: metrics.Mean(returns), Sigma: metrics.Stddev(returns)}
	return dist.Quantile(1 - confidence), nil
}

// ExpectedShortfall is the mean of returns at or below the historical VaR
// at the same confidence. It is NaN with ErrDegenerateInput when no
// return reaches the threshold.
func ExpectedShortfall(returns []float64, confidence float64) (float64, error) {
	threshold, err := HistoricalVaR{}.Compute(returns, confidence)
	if err != nil {
		return math.NaN(), err
	}
	var tail []float64
	for _, r := range returns {
		if r <= threshold {
			tail = append(tail, r)
		}
	}
	if len(tail) == 0 {
		return math.NaN(), fmt.Errorf("%w: no returns at or below VaR %v", domain.ErrDegenerateInput, threshold)
	}
	return metrics.Mean(tail), nil
}

func checkConfidence(c float64) error {
	if !(c > 0 && c < 1) {
		return fmt.Errorf("%w: confidence level must be in (0, 1), got %v", domain.ErrInvalidParameter, c)
	}
	return nil
}
