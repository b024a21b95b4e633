package strategy

import (
	"errors"
	"fmt"

	"github.com/HiNala/stock-agents/internal/domain"
)

// Factory errors. Both wrap domain.ErrInvalidParameter.
var (
	ErrUnknownStrategyType = fmt.Errorf("%w: unknown strategy type", domain.ErrInvalidParameter)
	ErrInvalidParams       = fmt.Errorf("%w: invalid strategy parameters", domain.ErrInvalidParameter)
	ErrMissingLookback     = errors.New("strategy requires a positive Lookback")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Validates required parameters per strategy type.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeMomentum:
		return fromMomentumConfig(cfg)
	case domain.StrategyTypeMeanReversion:
		return fromMeanReversionConfig(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.StrategyType)
	}
}

// fromMomentumConfig creates MomentumStrategy from config.
// A zero HoldingPeriod means re-evaluate every bar.
func fromMomentumConfig(cfg domain.StrategyConfig) (*MomentumStrategy, error) {
	if cfg.Lookback <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, ErrMissingLookback)
	}
	holding := cfg.HoldingPeriod
	if holding == 0 {
		holding = 1
	}
	if holding < 0 {
		return nil, fmt.Errorf("%w: holding period %d", ErrInvalidParams, holding)
	}
	return NewMomentumStrategy(cfg.Lookback, holding), nil
}

// fromMeanReversionConfig creates MeanReversionStrategy from config.
func fromMeanReversionConfig(cfg domain.StrategyConfig) (*MeanReversionStrategy, error) {
	if cfg.Lookback <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, ErrMissingLookback)
	}
	if cfg.Lookback < 2 {
		return nil, fmt.Errorf("%w: mean reversion lookback must be at least 2", ErrInvalidParams)
	}
	if cfg.StdDevs <= 0 {
		return nil, fmt.Errorf("%w: std devs must be positive, got %v", ErrInvalidParams, cfg.StdDevs)
	}
	return NewMeanReversionStrategy(cfg.Lookback, cfg.StdDevs), nil
}
