package decision

import (
	"fmt"
	"math"

	"github.com/HiNala/stock-agents/internal/domain"
)

// Rationales attached to actionable verdicts.
const (
	RationaleBuy  = "Strong buy signal from multiple indicators"
	RationaleSell = "Strong sell signal from multiple indicators"
	RationaleHold = "No consensus signal"
)

// Evaluator evaluates the recommendation rule.
type Evaluator struct{}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate produces the verdict for one asset.
// The combined signal is forced to 0 if ANY gate fails.
// BUY when the combined signal is >= 1, SELL when <= -1, else HOLD.
func (e *Evaluator) Evaluate(input Input) (*Result, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	gates := []CriterionResult{
		e.volatilityCap(input),
		e.volatilityFloor(input),
		e.betaFloor(input),
		e.betaCap(input),
	}

	raw := input.MomentumSignal + input.MeanReversionSignal
	res := &Result{
		Symbol:         input.Symbol,
		RawSignal:      raw,
		CombinedSignal: raw,
		Gates:          gates,
	}
	if res.Vetoed() {
		res.CombinedSignal = 0
	}

	switch {
	case res.CombinedSignal >= 1:
		res.Action, res.Rationale = domain.ActionBuy, RationaleBuy
	case res.CombinedSignal <= -1:
		res.Action, res.Rationale = domain.ActionSell, RationaleSell
	default:
		res.Action, res.Rationale = domain.ActionHold, RationaleHold
	}
	return res, nil
}

// volatilityCap: low tolerance vetoes volatility above 0.30.
func (e *Evaluator) volatilityCap(in Input) CriterionResult {
	c := CriterionResult{
		Name:      "Volatility cap (low tolerance)",
		Threshold: fmt.Sprintf("<= %.2f", LowToleranceMaxVol),
		Actual:    fmt.Sprintf("%.4f", in.Volatility),
		Pass:      true,
	}
	if in.RiskTolerance != domain.RiskLow {
		c.Threshold = "n/a"
		return c
	}
	c.Pass = !(in.Volatility > LowToleranceMaxVol)
	return c
}

// volatilityFloor: high tolerance vetoes volatility below 0.10.
func (e *Evaluator) volatilityFloor(in Input) CriterionResult {
	c := CriterionResult{
		Name:      "Volatility floor (high tolerance)",
		Threshold: fmt.Sprintf(">= %.2f", HighToleranceMinVol),
		Actual:    fmt.Sprintf("%.4f", in.Volatility),
		Pass:      true,
	}
	if in.RiskTolerance != domain.RiskHigh {
		c.Threshold = "n/a"
		return c
	}
	c.Pass = !(in.Volatility < HighToleranceMinVol)
	return c
}

// betaFloor: short horizon vetoes beta below 0.8. An undefined beta fails.
func (e *Evaluator) betaFloor(in Input) CriterionResult {
	c := CriterionResult{
		Name:      "Beta floor (short horizon)",
		Threshold: fmt.Sprintf(">= %.1f", ShortHorizonMinBeta),
		Actual:    formatBeta(in.Beta),
		Pass:      true,
	}
	if in.TimeHorizon != domain.HorizonShort {
		c.Threshold = "n/a"
		return c
	}
	c.Pass = in.Beta >= ShortHorizonMinBeta
	return c
}

// betaCap: long horizon vetoes beta above 1.2. An undefined beta fails.
func (e *Evaluator) betaCap(in Input) CriterionResult {
	c := CriterionResult{
		Name:      "Beta cap (long horizon)",
		Threshold: fmt.Sprintf("<= %.1f", LongHorizonMaxBeta),
		Actual:    formatBeta(in.Beta),
		Pass:      true,
	}
	if in.TimeHorizon != domain.HorizonLong {
		c.Threshold = "n/a"
		return c
	}
	c.Pass = in.Beta <= LongHorizonMaxBeta
	return c
}

func formatBeta(b float64) string {
	if math.IsNaN(b) {
		return "undefined"
	}
	return fmt.Sprintf("%.2f", b)
}
