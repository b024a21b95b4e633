package backtest

import (
	"errors"
	"math"
	"testing"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/observability"
	"github.com/HiNala/stock-agents/internal/strategy"
)

const dayMs = int64(86_400_000)

func makeSeries(symbol string, closes []float64) *domain.PriceSeries {
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{
			TimestampMs: 1_700_000_000_000 + int64(i)*dayMs,
			Open:        c, High: c, Low: c, Close: c,
			Volume: 2_000_000,
		}
	}
	return &domain.PriceSeries{Symbol: symbol, Interval: "1d", Bars: bars}
}

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	v := start
	for i := range out {
		out[i] = v
		v *= 1 + step
	}
	return out
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i%7)
	}
	return out
}

func TestRun_ConstantSeries(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 50
	}
	series := makeSeries("FLAT", closes)

	strategies := []strategy.Strategy{
		strategy.NewMomentumStrategy(5, 1),
		strategy.NewMeanReversionStrategy(10, 2),
	}
	for _, s := range strategies {
		t.Run(s.ID(), func(t *testing.T) {
			res, err := NewEngine(nil).Run(series, s, domain.DefaultCostModel)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.AnnualizedVolatility != 0 {
				t.Errorf("AnnualizedVolatility = %v, want 0", res.AnnualizedVolatility)
			}
			if res.SharpeRatio != 0 {
				t.Errorf("SharpeRatio = %v, want 0", res.SharpeRatio)
			}
			if res.TotalReturn != 0 || res.MaxDrawdown != 0 || res.TradeCount != 0 {
				t.Errorf("expected flat result, got return=%v dd=%v trades=%d", res.TotalReturn, res.MaxDrawdown, res.TradeCount)
			}
		})
	}
}

func TestRun_RisingMomentumScenario(t *testing.T) {
	closes := rising(60, 100, 0.01)
	series := makeSeries("UP", closes)
	costs := domain.CostModel{CommissionRate: 0.001, InitialCapital: 100000}

	res, err := NewEngine(nil).Run(series, strategy.NewMomentumStrategy(20, 1), costs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, p := range res.PositionCurve {
		want := 0.0
		if i > 20 {
			want = 1
		}
		if p.Value != want {
			t.Errorf("position[%d] = %v, want %v", i, p.Value, want)
		}
	}

	buyAndHold := closes[59]/closes[0] - 1
	if res.TotalReturn <= 0 || res.TotalReturn >= buyAndHold {
		t.Errorf("TotalReturn = %v, want in (0, %v)", res.TotalReturn, buyAndHold)
	}
	if res.TradeCount != 1 {
		t.Errorf("TradeCount = %d, want 1", res.TradeCount)
	}
	if res.WinRate != 1 {
		t.Errorf("WinRate = %v, want 1", res.WinRate)
	}
	if res.MaxDrawdown != 0 {
		t.Errorf("MaxDrawdown = %v, want 0 for non-decreasing equity", res.MaxDrawdown)
	}
	if res.SharpeRatio <= 0 {
		t.Errorf("SharpeRatio = %v, want positive", res.SharpeRatio)
	}
	if math.Abs(res.FinalEquity()-costs.InitialCapital*(1+res.TotalReturn)) > 1e-6 {
		t.Errorf("FinalEquity %v inconsistent with TotalReturn %v", res.FinalEquity(), res.TotalReturn)
	}
}

func TestRun_NoLookAhead(t *testing.T) {
	base := wave(80)
	const changed = 50

	strategies := []strategy.Strategy{
		strategy.NewMomentumStrategy(5, 1),
		strategy.NewMomentumStrategy(10, 4),
		strategy.NewMeanReversionStrategy(10, 1.5),
	}
	for _, s := range strategies {
		t.Run(s.ID(), func(t *testing.T) {
			engine := NewEngine(nil)
			before, err := engine.Run(makeSeries("W", base), s, domain.DefaultCostModel)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			mutated := append([]float64(nil), base...)
			mutated[changed] *= 3
			after, err := engine.Run(makeSeries("W", mutated), s, domain.DefaultCostModel)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for i := 0; i <= changed; i++ {
				if before.PositionCurve[i].Value != after.PositionCurve[i].Value {
					t.Fatalf("position[%d] changed after modifying bar %d", i, changed)
				}
			}
		})
	}
}

func TestRun_MaxDrawdownNonPositive(t *testing.T) {
	series := makeSeries("W", wave(120))
	for _, cfg := range append(strategy.MomentumGrid(), strategy.MeanReversionGrid()...) {
		s, err := strategy.FromConfig(cfg)
		if err != nil {
			t.Fatalf("FromConfig(%s): %v", cfg, err)
		}
		res, err := NewEngine(nil).Run(series, s, domain.DefaultCostModel)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", cfg, err)
		}
		if res.MaxDrawdown > 0 {
			t.Errorf("%s: MaxDrawdown = %v > 0", cfg, res.MaxDrawdown)
		}
		for _, p := range res.DrawdownCurve {
			if p.Value > 0 {
				t.Fatalf("%s: drawdown point %v > 0", cfg, p.Value)
			}
		}
	}
}

func TestRun_CommissionReducesReturn(t *testing.T) {
	series := makeSeries("W", wave(100))
	s := strategy.NewMomentumStrategy(3, 1)

	free, err := NewEngine(nil).Run(series, s, domain.CostModel{CommissionRate: 0, InitialCapital: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	costly, err := NewEngine(nil).Run(series, s, domain.CostModel{CommissionRate: 0.01, InitialCapital: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if free.TradeCount == 0 {
		t.Fatal("expected trades on a waving series")
	}
	if costly.TotalReturn >= free.TotalReturn {
		t.Errorf("commission did not reduce return: %v >= %v", costly.TotalReturn, free.TotalReturn)
	}
	if costly.TradeCount != free.TradeCount {
		t.Errorf("commission changed trade count: %d vs %d", costly.TradeCount, free.TradeCount)
	}
}

func TestRun_Errors(t *testing.T) {
	s := strategy.NewMomentumStrategy(1, 1)

	_, err := NewEngine(nil).Run(makeSeries("S", []float64{1, 2}), s, domain.DefaultCostModel)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("short series: expected ErrInsufficientData, got %v", err)
	}

	_, err = NewEngine(nil).Run(makeSeries("S", []float64{1, 2, 3}), s, domain.CostModel{InitialCapital: 0})
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("zero capital: expected ErrInvalidParameter, got %v", err)
	}

	_, err = NewEngine(nil).Run(makeSeries("S", []float64{1, 2, 3}), strategy.NewMomentumStrategy(0, 1), domain.DefaultCostModel)
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("bad strategy: expected ErrInvalidParameter, got %v", err)
	}
}

func TestRun_ShortSeriesBelowLookback(t *testing.T) {
	res, err := NewEngine(nil).Run(makeSeries("S", rising(10, 10, 0.02)), strategy.NewMomentumStrategy(20, 1), domain.DefaultCostModel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TradeCount != 0 || res.WinRate != 0 || res.TotalReturn != 0 {
		t.Errorf("expected no activity, got trades=%d win=%v ret=%v", res.TradeCount, res.WinRate, res.TotalReturn)
	}
}

func TestRun_EmitsEvent(t *testing.T) {
	rec := observability.NewRecorder()
	if _, err := NewEngine(rec).Run(makeSeries("S", wave(30)), strategy.NewMomentumStrategy(5, 1), domain.DefaultCostModel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Count("backtest", "completed"); got != 1 {
		t.Errorf("expected 1 completed event, got %d", got)
	}
}
