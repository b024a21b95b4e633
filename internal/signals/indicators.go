package signals

import (
	"errors"
	"math"
)

// SMA computes the simple moving average over window bars.
// out[i] is NaN for i < window-1.
func SMA(values []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		out[i] = windowMean(values[i-window+1 : i+1])
	}
	return out, nil
}

// RollingStd computes the sample standard deviation over window bars.
// out[i] is NaN for i < window-1. window must be at least 2.
func RollingStd(values []float64, window int) ([]float64, error) {
	if window < 2 {
		return nil, errors.New("window must be at least 2 for sample standard deviation")
	}
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		m := windowMean(w)
		ss := 0.0
		for _, v := range w {
			d := v - m
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out, nil
}

// RSI computes the Wilder-smoothed relative strength index.
// The first value is at index window (window price changes are needed).
// With no losses in the smoothed window RSI is 100; with neither gains
// nor losses (flat prices) it is 50.
func RSI(closes []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	out := nanSlice(len(closes))
	if len(closes) < window+1 {
		return out, nil
	}

	// Initial average gain/loss over the first `window` changes
	var avgGain, avgLoss float64
	for i := 1; i <= window; i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(window)
	avgLoss /= float64(window)
	out[window] = rsiValue(avgGain, avgLoss)

	// Wilder smoothing for remaining bars
	for i := window + 1; i < len(closes); i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain = (avgGain*float64(window-1) + gain) / float64(window)
		avgLoss = (avgLoss*float64(window-1) + loss) / float64(window)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

// Bands holds Bollinger band series.
type Bands struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bollinger computes bands of stdDevs sample standard deviations around the SMA.
func Bollinger(closes []float64, window int, stdDevs float64) (Bands, error) {
	if stdDevs <= 0 {
		return Bands{}, errors.New("std devs must be positive")
	}
	mid, err := SMA(closes, window)
	if err != nil {
		return Bands{}, err
	}
	sd, err := RollingStd(closes, window)
	if err != nil {
		return Bands{}, err
	}
	b := Bands{Middle: mid, Upper: nanSlice(len(closes)), Lower: nanSlice(len(closes))}
	for i := range closes {
		if math.IsNaN(mid[i]) || math.IsNaN(sd[i]) {
			continue
		}
		b.Upper[i] = mid[i] + stdDevs*sd[i]
		b.Lower[i] = mid[i] - stdDevs*sd[i]
	}
	return b, nil
}

// BandSignal maps a close against its bands: +1 below lower, -1 above upper.
func BandSignal(close, lower, upper float64) float64 {
	if math.IsNaN(lower) || math.IsNaN(upper) {
		return math.NaN()
	}
	switch {
	case close < lower:
		return 1
	case close > upper:
		return -1
	default:
		return 0
	}
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

// windowMean averages deviations from the first element so that a flat
// window returns its value exactly.
func windowMean(w []float64) float64 {
	base := w[0]
	sum := 0.0
	for _, v := range w {
		sum += v - base
	}
	return base + sum/float64(len(w))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
