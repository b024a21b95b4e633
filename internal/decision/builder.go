package decision

import "github.com/HiNala/stock-agents/internal/domain"

// Builder constructs Input from signal snapshots and risk measures.
type Builder struct {
	prefs domain.Preferences
}

// NewBuilder creates a builder bound to one preference set.
func NewBuilder(prefs domain.Preferences) *Builder {
	return &Builder{prefs: prefs}
}

// Build creates the Input for one asset from its latest signal snapshot.
// The snapshot must come from SignalSet.Latest with ok=true.
func (b *Builder) Build(snap domain.SignalSnapshot, volatility, beta float64) Input {
	return Input{
		Symbol:              snap.Symbol,
		MomentumSignal:      snap.Momentum,
		MeanReversionSignal: snap.MeanReversion,
		Volatility:          volatility,
		Beta:                beta,
		RiskTolerance:       b.prefs.RiskTolerance,
		TimeHorizon:         b.prefs.TimeHorizon,
	}
}
