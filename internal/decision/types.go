// Package decision expresses the per-asset recommendation rule as a set of
// evaluated gates so each verdict can be rendered as a checklist.
package decision

import (
	"fmt"

	"github.com/HiNala/stock-agents/internal/domain"
)

// Validation errors. All wrap domain.ErrInvalidParameter.
var (
	ErrEmptySymbol      = fmt.Errorf("%w: empty symbol", domain.ErrInvalidParameter)
	ErrInvalidSignal    = fmt.Errorf("%w: signal must be -1, 0 or +1", domain.ErrInvalidParameter)
	ErrInvalidTolerance = fmt.Errorf("%w: unknown risk tolerance", domain.ErrInvalidParameter)
	ErrInvalidHorizon   = fmt.Errorf("%w: unknown time horizon", domain.ErrInvalidParameter)
)

// Gate thresholds.
const (
	LowToleranceMaxVol  = 0.30
	HighToleranceMinVol = 0.10
	ShortHorizonMinBeta = 0.8
	LongHorizonMaxBeta  = 1.2
)

// Input contains the per-asset values the rule is evaluated on.
type Input struct {
	Symbol string

	// Latest discrete signals in {-1, 0, +1}
	MomentumSignal      int
	MeanReversionSignal int

	// Annualized volatility of the asset's own returns
	Volatility float64

	// Beta against the market proxy; NaN when undefined
	Beta float64

	RiskTolerance domain.RiskTolerance
	TimeHorizon   domain.TimeHorizon
}

// Validate checks Input invariants.
func (in *Input) Validate() error {
	if in == nil || in.Symbol == "" {
		return ErrEmptySymbol
	}
	if !validSignal(in.MomentumSignal) || !validSignal(in.MeanReversionSignal) {
		return ErrInvalidSignal
	}
	if !in.RiskTolerance.IsValid() {
		return ErrInvalidTolerance
	}
	if !in.TimeHorizon.IsValid() {
		return ErrInvalidHorizon
	}
	return nil
}

func validSignal(s int) bool {
	return s >= -1 && s <= 1
}

// CriterionResult represents pass/fail for one gate.
// Pass=false means the gate vetoed the signal.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Result is the verdict for one asset.
type Result struct {
	Symbol         string
	RawSignal      int // momentum + mean reversion
	CombinedSignal int // after gates
	Action         domain.Action
	Rationale      string
	Gates          []CriterionResult
}

// Vetoed reports whether any gate failed.
func (r *Result) Vetoed() bool {
	for _, g := range r.Gates {
		if !g.Pass {
			return true
		}
	}
	return false
}
