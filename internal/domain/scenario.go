package domain

// StressScenario is a named uniform shock applied multiplicatively to every
// return: r' = r * (1 + Impact).
type StressScenario struct {
	Name   string  `json:"name" yaml:"name"`
	Impact float64 `json:"impact" yaml:"impact"`
}

// Stress scenario name constants
const (
	ScenarioMarketCrash     = "market_crash"
	ScenarioVolatilitySpike = "volatility_spike"
	ScenarioSectorRotation  = "sector_rotation"
)

// Predefined stress scenarios
var (
	StressMarketCrash = StressScenario{
		Name:   ScenarioMarketCrash,
		Impact: -0.20,
	}

	StressVolatilitySpike = StressScenario{
		Name:   ScenarioVolatilitySpike,
		Impact: 0.50,
	}

	StressSectorRotation = StressScenario{
		Name:   ScenarioSectorRotation,
		Impact: -0.10,
	}
)

// DefaultStressScenarios returns the predefined scenarios in a fixed order.
func DefaultStressScenarios() []StressScenario {
	return []StressScenario{StressMarketCrash, StressVolatilitySpike, StressSectorRotation}
}
