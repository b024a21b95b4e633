package signals

import (
	"errors"
	"math"
	"testing"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/observability"
)

func makeSeries(closes []float64) *domain.PriceSeries {
	s := &domain.PriceSeries{Symbol: "TEST", Interval: "1d"}
	for i, c := range closes {
		s.Bars = append(s.Bars, domain.PriceBar{TimestampMs: int64(i+1) * 86400000, Close: c, Open: c, High: c, Low: c, Volume: 1e6})
	}
	return s
}

func geometric(n int, start, step float64) []float64 {
	out := make([]float64, n)
	v := start
	for i := range out {
		out[i] = v
		v *= 1 + step
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultParams(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestRSI_HandComputed(t *testing.T) {
	rsi, err := RSI([]float64{1, 2, 1, 2}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(rsi[0]) || !math.IsNaN(rsi[1]) {
		t.Errorf("expected NaN before window, got %v", rsi[:2])
	}
	if rsi[2] != 50 {
		t.Errorf("rsi[2] = %v, want 50", rsi[2])
	}
	// avgGain = (0.5*1 + 1)/2 = 0.75, avgLoss = 0.25, RS = 3
	if math.Abs(rsi[3]-75) > 1e-9 {
		t.Errorf("rsi[3] = %v, want 75", rsi[3])
	}
}

func TestRSI_NoLossesClampsTo100(t *testing.T) {
	rsi, _ := RSI(geometric(30, 100, 0.01), 14)
	for i := 14; i < 30; i++ {
		if rsi[i] != 100 {
			t.Fatalf("rsi[%d] = %v, want 100", i, rsi[i])
		}
	}
}

func TestRSI_FlatIsNeutral(t *testing.T) {
	rsi, _ := RSI(constant(30, 42.1), 14)
	for i := 14; i < 30; i++ {
		if rsi[i] != 50 {
			t.Fatalf("rsi[%d] = %v, want 50", i, rsi[i])
		}
	}
}

func TestSMA_LeadingNaN(t *testing.T) {
	ma, err := SMA([]float64{1, 2, 3, 4}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(ma[0]) || !math.IsNaN(ma[1]) {
		t.Errorf("expected NaN before window")
	}
	if ma[2] != 2 || ma[3] != 3 {
		t.Errorf("ma = %v", ma)
	}
}

func TestSMA_InvalidWindow(t *testing.T) {
	if _, err := SMA([]float64{1}, 0); err == nil {
		t.Error("expected error for zero window")
	}
}

func TestBollinger_SampleStd(t *testing.T) {
	b, err := Bollinger([]float64{1, 2, 3}, 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// mean 2, sample std 1
	if b.Middle[2] != 2 || math.Abs(b.Upper[2]-4) > 1e-12 || math.Abs(b.Lower[2]) > 1e-12 {
		t.Errorf("bands = %v/%v/%v", b.Lower[2], b.Middle[2], b.Upper[2])
	}
}

func TestCompute_ConstantSeriesIsNeutral(t *testing.T) {
	e := newEngine(t)
	set, err := e.Compute(makeSeries(constant(80, 10.1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 60; i < 80; i++ {
		if set.Momentum[i] != 0 {
			t.Errorf("momentum[%d] = %v, want 0", i, set.Momentum[i])
		}
		if set.MeanReversion[i] != 0 {
			t.Errorf("mean reversion[%d] = %v, want 0", i, set.MeanReversion[i])
		}
		if set.Bollinger[i] != 0 {
			t.Errorf("bollinger[%d] = %v, want 0", i, set.Bollinger[i])
		}
		if math.IsNaN(set.RSI[i]) || math.IsInf(set.RSI[i], 0) {
			t.Errorf("rsi[%d] not finite: %v", i, set.RSI[i])
		}
	}
}

func TestCompute_TrendingSeries(t *testing.T) {
	e := newEngine(t)

	up, err := e.Compute(makeSeries(geometric(60, 100, 0.01)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, ok := up.Latest()
	if !ok {
		t.Fatal("expected defined latest signals")
	}
	if snap.Momentum != 1 {
		t.Errorf("rising momentum = %d, want 1", snap.Momentum)
	}
	if snap.MeanReversion != -1 {
		t.Errorf("rising mean reversion = %d, want -1 (RSI 100 is overbought)", snap.MeanReversion)
	}

	down, _ := e.Compute(makeSeries(geometric(60, 100, -0.01)))
	snap, _ = down.Latest()
	if snap.Momentum != -1 {
		t.Errorf("falling momentum = %d, want -1", snap.Momentum)
	}
	if snap.MeanReversion != 1 {
		t.Errorf("falling mean reversion = %d, want 1", snap.MeanReversion)
	}
}

func TestCompute_UndefinedBeforeWindows(t *testing.T) {
	e := newEngine(t)
	set, _ := e.Compute(makeSeries(geometric(60, 100, 0.01)))

	if !math.IsNaN(set.Momentum[48]) {
		t.Errorf("momentum[48] should be NaN before MA50 fills")
	}
	if math.IsNaN(set.Momentum[49]) {
		t.Errorf("momentum[49] should be defined")
	}
	if !math.IsNaN(set.MeanReversion[13]) || math.IsNaN(set.MeanReversion[14]) {
		t.Errorf("mean reversion should start at index 14")
	}
	if !math.IsNaN(set.Bollinger[18]) || math.IsNaN(set.Bollinger[19]) {
		t.Errorf("bollinger should start at index 19")
	}
}

func TestCompute_ShortSeriesEmitsEvent(t *testing.T) {
	rec := observability.NewRecorder()
	e, _ := NewEngine(DefaultParams(), rec)

	set, err := e.Compute(makeSeries(geometric(10, 100, 0.01)))
	if err != nil {
		t.Fatalf("short series must not be an error: %v", err)
	}
	if _, ok := set.Latest(); ok {
		t.Error("expected undefined latest signals")
	}
	if rec.Count("signals", "insufficient_history") != 1 {
		t.Errorf("expected insufficient_history event")
	}
}

func TestCompute_EmptySeries(t *testing.T) {
	e := newEngine(t)
	_, err := e.Compute(&domain.PriceSeries{Symbol: "X"})
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero fast", func(p *Params) { p.MAFast = 0 }},
		{"zero rsi", func(p *Params) { p.RSIWindow = 0 }},
		{"bollinger window 1", func(p *Params) { p.BollingerWindow = 1 }},
		{"negative std devs", func(p *Params) { p.BollingerStdDevs = -1 }},
		{"inverted thresholds", func(p *Params) { p.Oversold = 80 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, domain.ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}
