package strategy

import (
	"fmt"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/signals"
)

// MeanReversionStrategy fades moves outside Bollinger bands:
// long below the lower band, short above the upper band.
type MeanReversionStrategy struct {
	Lookback int
	StdDevs  float64
}

// NewMeanReversionStrategy creates a Bollinger mean-reversion strategy.
func NewMeanReversionStrategy(lookback int, stdDevs float64) *MeanReversionStrategy {
	return &MeanReversionStrategy{Lookback: lookback, StdDevs: stdDevs}
}

// Signals implements Strategy.
func (s *MeanReversionStrategy) Signals(closes []float64) ([]float64, error) {
	if s.Lookback < 2 || s.StdDevs <= 0 {
		return nil, fmt.Errorf("%w: mean reversion lookback=%d std_devs=%v", ErrInvalidParams, s.Lookback, s.StdDevs)
	}

	bands, err := signals.Bollinger(closes, s.Lookback, s.StdDevs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = signals.BandSignal(c, bands.Lower[i], bands.Upper[i])
	}
	return out, nil
}

// Type implements Strategy.
func (s *MeanReversionStrategy) Type() domain.StrategyType { return domain.StrategyTypeMeanReversion }

// Config implements Strategy.
func (s *MeanReversionStrategy) Config() domain.StrategyConfig {
	return domain.StrategyConfig{
		StrategyType: domain.StrategyTypeMeanReversion,
		Lookback:     s.Lookback,
		StdDevs:      s.StdDevs,
	}
}

// ID implements Strategy.
func (s *MeanReversionStrategy) ID() string { return s.Config().String() }

var _ Strategy = (*MeanReversionStrategy)(nil)
