package domain

import (
	"encoding/json"
	"time"
)

// Action is the decision for one asset.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// RiskTolerance is the user's appetite for volatility.
type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

// IsValid reports whether t is a known tolerance.
func (t RiskTolerance) IsValid() bool {
	return t == RiskLow || t == RiskMedium || t == RiskHigh
}

// SizeMultiplier scales the base risk per trade.
func (t RiskTolerance) SizeMultiplier() float64 {
	switch t {
	case RiskLow:
		return 0.5
	case RiskHigh:
		return 1.5
	default:
		return 1.0
	}
}

// TimeHorizon is the intended holding horizon.
type TimeHorizon string

const (
	HorizonShort  TimeHorizon = "short"
	HorizonMedium TimeHorizon = "medium"
	HorizonLong   TimeHorizon = "long"
)

// IsValid reports whether h is a known horizon.
func (h TimeHorizon) IsValid() bool {
	return h == HorizonShort || h == HorizonMedium || h == HorizonLong
}

// Preferences are the user inputs of a recommendation run.
type Preferences struct {
	RiskTolerance RiskTolerance `json:"risk_tolerance"`
	TimeHorizon   TimeHorizon   `json:"time_horizon"`
	MaxPositions  int           `json:"max_positions"`
	RiskPerTrade  float64       `json:"risk_per_trade"` // base fraction of capital risked per position
}

// DefaultPreferences matches the configuration defaults.
var DefaultPreferences = Preferences{
	RiskTolerance: RiskMedium,
	TimeHorizon:   HorizonMedium,
	MaxPositions:  5,
	RiskPerTrade:  0.02,
}

// Recommendation is one ranked BUY or SELL.
type Recommendation struct {
	Symbol              string  `json:"symbol"`
	Action              Action  `json:"action"`
	Rationale           string  `json:"rationale"`
	LastPrice           float64 `json:"last_price"`
	Volatility          float64 `json:"volatility"` // annualized
	Beta                float64 `json:"beta"`       // NaN when the market proxy has no variance
	RSI                 float64 `json:"rsi"`
	MomentumSignal      int     `json:"momentum_signal"`
	MeanReversionSignal int     `json:"mean_reversion_signal"`
	CombinedSignal      int     `json:"combined_signal"`
	PositionSize        float64 `json:"position_size"` // fraction of allocatable capital, <= 1
}

// MarshalJSON writes an undefined beta as null.
func (r Recommendation) MarshalJSON() ([]byte, error) {
	type alias Recommendation
	return json.Marshal(struct {
		alias
		Beta *float64 `json:"beta"`
	}{alias: alias(r), Beta: FiniteOrNil(r.Beta)})
}

// RecommendationRun is the output artifact of the recommendation engine.
type RecommendationRun struct {
	RunID             string            `json:"run_id"`
	Timestamp         time.Time         `json:"timestamp"`
	RiskTolerance     RiskTolerance     `json:"risk_tolerance"`
	TimeHorizon       TimeHorizon       `json:"time_horizon"`
	Recommendations   []Recommendation  `json:"recommendations"`
	PortfolioRisk     PortfolioRisk     `json:"portfolio_risk"`
	CorrelationMatrix CorrelationMatrix `json:"correlation_matrix"`
	Evaluated         int               `json:"evaluated"` // assets that reached the decision rule
	Skipped           []Failure         `json:"skipped"`
}
