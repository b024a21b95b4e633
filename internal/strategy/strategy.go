// Package strategy defines signal-generation policies for the backtester.
package strategy

import "github.com/HiNala/stock-agents/internal/domain"

// Strategy turns a close series into per-bar target signals.
type Strategy interface {
	// Signals returns one value per close in {-1, 0, +1}.
	// Bars without enough history are NaN.
	Signals(closes []float64) ([]float64, error)

	// Type returns the policy kind.
	Type() domain.StrategyType

	// Config returns the parameters the strategy was built from.
	Config() domain.StrategyConfig

	// ID returns strategy identifier (includes parameters).
	ID() string
}
