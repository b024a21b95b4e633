package strategy

import "github.com/HiNala/stock-agents/internal/domain"

// Parameter grids searched by the optimizer.
var (
	GridLookbacks      = []int{10, 20, 30, 40, 50}
	GridHoldingPeriods = []int{1, 3, 5, 7, 9}
	GridStdDevs        = []float64{1.5, 2.0, 2.5}
)

// MomentumGrid enumerates momentum candidates lookback-major.
func MomentumGrid() []domain.StrategyConfig {
	out := make([]domain.StrategyConfig, 0, len(GridLookbacks)*len(GridHoldingPeriods))
	for _, lb := range GridLookbacks {
		for _, h := range GridHoldingPeriods {
			out = append(out, domain.StrategyConfig{
				StrategyType:  domain.StrategyTypeMomentum,
				Lookback:      lb,
				HoldingPeriod: h,
			})
		}
	}
	return out
}

// MeanReversionGrid enumerates mean-reversion candidates lookback-major.
func MeanReversionGrid() []domain.StrategyConfig {
	out := make([]domain.StrategyConfig, 0, len(GridLookbacks)*len(GridStdDevs))
	for _, lb := range GridLookbacks {
		for _, sd := range GridStdDevs {
			out = append(out, domain.StrategyConfig{
				StrategyType: domain.StrategyTypeMeanReversion,
				Lookback:     lb,
				StdDevs:      sd,
			})
		}
	}
	return out
}

// GridFor returns the grid for a strategy type, or nil for an unknown type.
func GridFor(t domain.StrategyType) []domain.StrategyConfig {
	switch t {
	case domain.StrategyTypeMomentum:
		return MomentumGrid()
	case domain.StrategyTypeMeanReversion:
		return MeanReversionGrid()
	default:
		return nil
	}
}
