// Package signals computes technical indicators and discrete trading
// signals from a single price series.
package signals

import (
	"fmt"
	"math"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/observability"
)

// Params configures indicator windows and thresholds.
type Params struct {
	MAFast           int     // fast moving average window (20)
	MASlow           int     // slow moving average window (50)
	RSIWindow        int     // Wilder RSI window (14)
	BollingerWindow  int     // band window (20)
	BollingerStdDevs float64 // band width in sample standard deviations (2.0)
	Oversold         float64 // RSI below this is a long signal (30)
	Overbought       float64 // RSI above this is a short signal (70)
}

// DefaultParams returns the standard indicator settings.
func DefaultParams() Params {
	return Params{
		MAFast:           20,
		MASlow:           50,
		RSIWindow:        14,
		BollingerWindow:  20,
		BollingerStdDevs: 2.0,
		Oversold:         30,
		Overbought:       70,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.MAFast <= 0 || p.MASlow <= 0:
		return fmt.Errorf("%w: moving average windows must be positive (fast=%d slow=%d)", domain.ErrInvalidParameter, p.MAFast, p.MASlow)
	case p.RSIWindow <= 0:
		return fmt.Errorf("%w: rsi window must be positive, got %d", domain.ErrInvalidParameter, p.RSIWindow)
	case p.BollingerWindow < 2:
		return fmt.Errorf("%w: bollinger window must be at least 2, got %d", domain.ErrInvalidParameter, p.BollingerWindow)
	case p.BollingerStdDevs <= 0:
		return fmt.Errorf("%w: bollinger std devs must be positive, got %v", domain.ErrInvalidParameter, p.BollingerStdDevs)
	case p.Oversold < 0 || p.Overbought > 100 || p.Oversold >= p.Overbought:
		return fmt.Errorf("%w: rsi thresholds must satisfy 0 <= oversold < overbought <= 100 (got %v/%v)", domain.ErrInvalidParameter, p.Oversold, p.Overbought)
	}
	return nil
}

// MinBars returns the number of bars needed for every signal to be defined
// on the latest bar.
func (p Params) MinBars() int {
	n := p.MASlow
	if p.MAFast > n {
		n = p.MAFast
	}
	if p.RSIWindow+1 > n {
		n = p.RSIWindow + 1
	}
	if p.BollingerWindow > n {
		n = p.BollingerWindow
	}
	return n
}

// Engine computes SignalSets. It holds no state between calls.
type Engine struct {
	params Params
	sink   observability.Sink
}

// NewEngine creates a signal engine. A nil sink discards events.
func NewEngine(params Params, sink observability.Sink) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: params, sink: observability.OrNop(sink)}, nil
}

// Params returns the engine parameters.
func (e *Engine) Params() Params { return e.params }

// Compute produces the SignalSet for series. Bars before a window fills
// carry NaN; a series shorter than the windows is not an error.
func (e *Engine) Compute(series *domain.PriceSeries) (*domain.SignalSet, error) {
	if series.Len() == 0 {
		return nil, fmt.Errorf("%w: series %q has no bars", domain.ErrInsufficientData, series.Symbol)
	}
	p := e.params
	closes := series.Closes()

	maFast, err := SMA(closes, p.MAFast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidParameter, err)
	}
	maSlow, err := SMA(closes, p.MASlow)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidParameter, err)
	}
	rsi, err := RSI(closes, p.RSIWindow)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidParameter, err)
	}
	bands, err := Bollinger(closes, p.BollingerWindow, p.BollingerStdDevs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidParameter, err)
	}

	n := len(closes)
	set := &domain.SignalSet{
		Symbol:        series.Symbol,
		TimestampsMs:  series.Timestamps(),
		Closes:        closes,
		MAFast:        maFast,
		MASlow:        maSlow,
		RSI:           rsi,
		BandMiddle:    bands.Middle,
		BandUpper:     bands.Upper,
		BandLower:     bands.Lower,
		Momentum:      make([]float64, n),
		MeanReversion: make([]float64, n),
		Bollinger:     make([]float64, n),
	}
	for i := 0; i < n; i++ {
		set.Momentum[i] = MomentumSignal(closes[i], maFast[i], maSlow[i])
		set.MeanReversion[i] = RSISignal(rsi[i], p.Oversold, p.Overbought)
		set.Bollinger[i] = BandSignal(closes[i], bands.Lower[i], bands.Upper[i])
	}

	if n < p.MinBars() {
		e.sink.Emit(observability.Event{
			Component: "signals",
			Name:      "insufficient_history",
			Level:     observability.LevelDebug,
			Symbol:    series.Symbol,
			Attrs:     map[string]any{"bars": n, "required": p.MinBars()},
		})
	}
	return set, nil
}

// MomentumSignal is +1 when close > fast > slow, -1 when close < fast < slow,
// else 0. NaN when either average is undefined.
func MomentumSignal(close, fast, slow float64) float64 {
	if math.IsNaN(fast) || math.IsNaN(slow) {
		return math.NaN()
	}
	switch {
	case close > fast && fast > slow:
		return domain.SignalLong
	case close < fast && fast < slow:
		return domain.SignalShort
	default:
		return domain.SignalFlat
	}
}

// RSISignal is +1 below oversold, -1 above overbought, else 0.
// NaN when RSI is undefined.
func RSISignal(rsi, oversold, overbought float64) float64 {
	if math.IsNaN(rsi) {
		return math.NaN()
	}
	switch {
	case rsi < oversold:
		return domain.SignalLong
	case rsi > overbought:
		return domain.SignalShort
	default:
		return domain.SignalFlat
	}
}
