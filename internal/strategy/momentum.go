package strategy

import (
	"fmt"
	"math"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/metrics"
)

// MomentumStrategy goes long after a rise over Lookback bars and short after a fall.
// The signal is re-evaluated every HoldingPeriod bars and held in between.
type MomentumStrategy struct {
	Lookback      int
	HoldingPeriod int
}

// NewMomentumStrategy creates a momentum strategy.
func NewMomentumStrategy(lookback, holdingPeriod int) *MomentumStrategy {
	return &MomentumStrategy{Lookback: lookback, HoldingPeriod: holdingPeriod}
}

// Signals implements Strategy.
func (s *MomentumStrategy) Signals(closes []float64) ([]float64, error) {
	if s.Lookback <= 0 || s.HoldingPeriod <= 0 {
		return nil, fmt.Errorf("%w: momentum lookback=%d holding=%d", ErrInvalidParams, s.Lookback, s.HoldingPeriod)
	}

	out := make([]float64, len(closes))
	held := math.NaN()
	for i := range closes {
		if i < s.Lookback {
			out[i] = math.NaN()
			continue
		}
		if (i-s.Lookback)%s.HoldingPeriod == 0 {
			held = metrics.Sign(closes[i]/closes[i-s.Lookback] - 1)
		}
		out[i] = held
	}
	return out, nil
}

// Type implements Strategy.
func (s *MomentumStrategy) Type() domain.StrategyType { return domain.StrategyTypeMomentum }

// Config implements Strategy.
func (s *MomentumStrategy) Config() domain.StrategyConfig {
	return domain.StrategyConfig{
		StrategyType:  domain.StrategyTypeMomentum,
		Lookback:      s.Lookback,
		HoldingPeriod: s.HoldingPeriod,
	}
}

// ID implements Strategy.
func (s *MomentumStrategy) ID() string { return s.Config().String() }

var _ Strategy = (*MomentumStrategy)(nil)
