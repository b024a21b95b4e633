package domain

import "fmt"

// PriceBar represents one OHLCV observation.
// Corresponds to price_bars table in ClickHouse.
type PriceBar struct {
	TimestampMs int64   `json:"timestamp_ms"` // bar open time, Unix milliseconds
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
}

// PriceSeries is an ordered run of bars for one symbol.
// Bars are strictly increasing in time; gaps are allowed and never filled.
type PriceSeries struct {
	Symbol   string     `json:"symbol"`
	Interval string     `json:"interval"` // "1d", "1h", ...
	Bars     []PriceBar `json:"bars"`
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// Closes returns a fresh slice of close prices.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns a fresh slice of volumes.
func (s *PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// Timestamps returns a fresh slice of bar timestamps.
func (s *PriceSeries) Timestamps() []int64 {
	out := make([]int64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.TimestampMs
	}
	return out
}

// Last returns the latest bar. The series must not be empty.
func (s *PriceSeries) Last() PriceBar { return s.Bars[len(s.Bars)-1] }

// Validate checks the series invariants: at least one bar,
// strictly increasing timestamps, positive closes.
func (s *PriceSeries) Validate() error {
	if len(s.Bars) == 0 {
		return fmt.Errorf("%w: series %q has no bars", ErrInsufficientData, s.Symbol)
	}
	for i, b := range s.Bars {
		if b.Close <= 0 {
			return fmt.Errorf("%w: series %q bar %d has non-positive close %v", ErrInvalidParameter, s.Symbol, i, b.Close)
		}
		if i > 0 && b.TimestampMs <= s.Bars[i-1].TimestampMs {
			return fmt.Errorf("%w: series %q timestamps not strictly increasing at bar %d", ErrInvalidParameter, s.Symbol, i)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s *PriceSeries) Clone() PriceSeries {
	bars := make([]PriceBar, len(s.Bars))
	copy(bars, s.Bars)
	return PriceSeries{Symbol: s.Symbol, Interval: s.Interval, Bars: bars}
}

// CurvePoint is one timestamped value of an equity, drawdown or position curve.
type CurvePoint struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Value       float64 `json:"value"`
}

// EquityCurvePoint is a persisted equity curve row.
// Corresponds to equity_curves table in ClickHouse.
type EquityCurvePoint struct {
	RunID       string  // backtest run identifier
	TimestampMs int64   // bar timestamp
	Equity      float64 // equity after this bar
	Drawdown    float64 // (equity - peak) / peak, <= 0
	Position    float64 // held position during this bar
}
