package domain

import "fmt"

// StrategyType identifies a signal-generation policy.
type StrategyType string

const (
	StrategyTypeMomentum      StrategyType = "momentum"
	StrategyTypeMeanReversion StrategyType = "mean_reversion"
)

// IsValid reports whether t is a known strategy type.
func (t StrategyType) IsValid() bool {
	return t == StrategyTypeMomentum || t == StrategyTypeMeanReversion
}

// StrategyConfig represents strategy configuration parameters.
type StrategyConfig struct {
	StrategyType StrategyType `json:"strategy_type"`
	Lookback     int          `json:"lookback"`

	// momentum parameters
	HoldingPeriod int `json:"holding_period,omitempty"`

	// mean_reversion parameters
	StdDevs float64 `json:"std_devs,omitempty"`
}

// String renders the config as a stable strategy identifier,
// e.g. "momentum_lb20_h5" or "mean_reversion_lb20_sd2.0".
func (c StrategyConfig) String() string {
	switch c.StrategyType {
	case StrategyTypeMomentum:
		return fmt.Sprintf("%s_lb%d_h%d", c.StrategyType, c.Lookback, c.HoldingPeriod)
	case StrategyTypeMeanReversion:
		return fmt.Sprintf("%s_lb%d_sd%.1f", c.StrategyType, c.Lookback, c.StdDevs)
	default:
		return fmt.Sprintf("%s_lb%d", c.StrategyType, c.Lookback)
	}
}

// CostModel holds the execution assumptions of a backtest.
type CostModel struct {
	CommissionRate float64 `json:"commission_rate"` // fraction charged per unit of position change
	InitialCapital float64 `json:"initial_capital"`
}

// DefaultCostModel matches the configuration defaults.
var DefaultCostModel = CostModel{
	CommissionRate: 0.001,
	InitialCapital: 100000,
}

// StrategyAggregate represents per-strategy metrics across a universe.
// Corresponds to strategy_aggregates table in ClickHouse.
type StrategyAggregate struct {
	StrategyID   string       // StrategyConfig.String()
	StrategyType StrategyType // momentum | mean_reversion

	// Counts
	TotalRuns    int
	TotalSymbols int // unique symbols
	Profitable   int // runs with total_return > 0

	// Distribution of total return
	ReturnMean   float64
	ReturnMedian float64
	ReturnP10    float64
	ReturnP90    float64
	ReturnMin    float64
	ReturnMax    float64
	ReturnStddev float64

	// Averages
	SharpeMean  float64
	WinRateMean float64
	TradesMean  float64

	WorstDrawdown float64 // most negative max_drawdown across runs
}
