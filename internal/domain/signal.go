package domain

import "math"

// Signal values. Per-bar signal slices use float64 so that NaN can mark
// bars without enough history.
const (
	SignalShort = -1.0
	SignalFlat  = 0.0
	SignalLong  = 1.0
)

// SignalSet holds indicator values and discrete signals for one series.
// Every slice has one entry per bar; NaN marks bars before the window fills.
type SignalSet struct {
	Symbol       string
	TimestampsMs []int64
	Closes       []float64

	MAFast     []float64 // simple moving average, fast window (20)
	MASlow     []float64 // simple moving average, slow window (50)
	RSI        []float64 // Wilder RSI
	BandMiddle []float64 // Bollinger middle band
	BandUpper  []float64 // Bollinger upper band
	BandLower  []float64 // Bollinger lower band

	Momentum      []float64 // close vs MAFast vs MASlow
	MeanReversion []float64 // RSI oversold / overbought
	Bollinger     []float64 // close vs bands
}

// SignalSnapshot is the latest bar of a SignalSet.
type SignalSnapshot struct {
	Symbol        string
	TimestampMs   int64
	Close         float64
	MAFast        float64
	MASlow        float64
	RSI           float64
	BandUpper     float64
	BandLower     float64
	Momentum      int
	MeanReversion int
	Bollinger     int
}

// Latest returns the snapshot of the final bar and whether the momentum and
// mean-reversion signals are both defined there.
func (s *SignalSet) Latest() (SignalSnapshot, bool) {
	n := len(s.Closes)
	if n == 0 {
		return SignalSnapshot{Symbol: s.Symbol}, false
	}
	i := n - 1
	snap := SignalSnapshot{
		Symbol:      s.Symbol,
		TimestampMs: s.TimestampsMs[i],
		Close:       s.Closes[i],
		MAFast:      s.MAFast[i],
		MASlow:      s.MASlow[i],
		RSI:         s.RSI[i],
		BandUpper:   s.BandUpper[i],
		BandLower:   s.BandLower[i],
	}
	ok := !math.IsNaN(s.Momentum[i]) && !math.IsNaN(s.MeanReversion[i])
	if ok {
		snap.Momentum = int(s.Momentum[i])
		snap.MeanReversion = int(s.MeanReversion[i])
	}
	if !math.IsNaN(s.Bollinger[i]) {
		snap.Bollinger = int(s.Bollinger[i])
	}
	return snap, ok
}
