package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/metrics"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func table(t *testing.T, symbols []string, cols ...[]float64) domain.ReturnTable {
	t.Helper()
	tbl, err := domain.NewReturnTable(symbols, cols)
	if err != nil {
		t.Fatalf("NewReturnTable failed: %v", err)
	}
	return tbl
}

var (
	colA = []float64{0.010, -0.020, 0.015, 0.005, -0.010, 0.020, -0.005, 0.012}
	colB = []float64{0.004, 0.010, -0.008, 0.006, 0.002, -0.012, 0.009, -0.001}
	colC = []float64{-0.015, 0.020, 0.001, -0.004, 0.018, -0.006, 0.003, 0.007}
)

func TestNewEngine_Validation(t *testing.T) {
	if _, err := NewEngine(Config{ConfidenceLevel: 0.95, VaRMethod: "cornish_fisher"}, nil); !errors.Is(err, ErrUnknownVaRMethod) {
		t.Errorf("expected ErrUnknownVaRMethod, got %v", err)
	}
	if _, err := NewEngine(Config{ConfidenceLevel: 1.2, VaRMethod: domain.VaRHistorical}, nil); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestCorrelation_AntiCorrelated(t *testing.T) {
	neg := make([]float64, len(colA))
	for i, r := range colA {
		neg[i] = -r
	}
	m := Correlation(table(t, []string{"A", "B"}, colA, neg))

	c, ok := m.Get("A", "B")
	if !ok || math.Abs(c-(-1)) > 1e-12 {
		t.Errorf("corr(A, -A) = %v, want -1", c)
	}
	if d, _ := m.Get("A", "A"); d != 1 {
		t.Errorf("diagonal = %v, want 1", d)
	}
	if m.Values[0][1] != m.Values[1][0] {
		t.Error("matrix is not symmetric")
	}

	e := newEngine(t)
	pr, err := e.PortfolioRisk(table(t, []string{"A", "B"}, colA, neg), nil)
	if err != nil {
		t.Fatalf("PortfolioRisk failed: %v", err)
	}
	volA := metrics.AnnualizedVolatility(colA)
	if !(pr.AnnualizedVolatility < volA) {
		t.Errorf("portfolio vol %v not below asset vol %v", pr.AnnualizedVolatility, volA)
	}
	if pr.SharpeRatio != 0 {
		t.Errorf("zero-vol portfolio Sharpe = %v, want 0", pr.SharpeRatio)
	}
}

func TestCorrelation_ZeroVarianceIsNaN(t *testing.T) {
	flat := make([]float64, len(colA))
	m := Correlation(table(t, []string{"A", "F"}, colA, flat))
	if c, _ := m.Get("A", "F"); !math.IsNaN(c) {
		t.Errorf("corr with flat series = %v, want NaN", c)
	}
	if d, _ := m.Get("F", "F"); d != 1 {
		t.Errorf("diagonal of flat series = %v, want 1", d)
	}
}

func TestBeta(t *testing.T) {
	market := []float64{0.01, -0.02, 0.03, 0.00, -0.01}
	asset := make([]float64, len(market))
	for i, m := range market {
		asset[i] = 1.5*m + 0.001
	}
	b, err := Beta(asset, market)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(b-1.5) > 1e-9 {
		t.Errorf("beta = %v, want 1.5", b)
	}

	b, err = Beta(asset, make([]float64, len(asset)))
	if err != nil || !math.IsNaN(b) {
		t.Errorf("zero-variance market: got %v, %v; want NaN, nil", b, err)
	}
	if _, err := Beta(asset, market[:3]); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("length mismatch: expected ErrInvalidParameter, got %v", err)
	}
}

func TestMarketProxy(t *testing.T) {
	proxy := MarketProxy(table(t, []string{"A", "B"}, []float64{0.02, -0.04}, []float64{0.00, 0.02}))
	if math.Abs(proxy[0]-0.01) > 1e-12 || math.Abs(proxy[1]-(-0.01)) > 1e-12 {
		t.Errorf("proxy = %v, want [0.01 -0.01]", proxy)
	}
}

func TestPortfolioRisk_Bundle(t *testing.T) {
	e := newEngine(t)
	tbl := table(t, []string{"A", "B", "C"}, colA, colB, colC)

	pr, err := e.PortfolioRisk(tbl, nil)
	if err != nil {
		t.Fatalf("PortfolioRisk failed: %v", err)
	}
	for _, w := range pr.Weights {
		if math.Abs(w-1.0/3) > 1e-12 {
			t.Errorf("default weight = %v, want 1/3", w)
		}
	}
	if pr.Observations != len(colA) {
		t.Errorf("Observations = %d", pr.Observations)
	}
	if pr.MaxDrawdown > 0 {
		t.Errorf("MaxDrawdown = %v > 0", pr.MaxDrawdown)
	}
	if pr.ExpectedShortfall > pr.VaR {
		t.Errorf("ES %v above VaR %v", pr.ExpectedShortfall, pr.VaR)
	}
	if pr.AnnualizedVolatility <= 0 {
		t.Errorf("AnnualizedVolatility = %v", pr.AnnualizedVolatility)
	}
	if pr.VaRMethod != domain.VaRHistorical || pr.Confidence != 0.95 {
		t.Errorf("bundle did not record its VaR settings: %+v", pr)
	}

	if _, err := e.PortfolioRisk(tbl, []float64{0.5, 0.5}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("weight mismatch: expected ErrInvalidParameter, got %v", err)
	}
}

func TestPortfolioRisk_FirstBarLossIsDrawdown(t *testing.T) {
	e := newEngine(t)
	pr, err := e.PortfolioRisk(table(t, []string{"A"}, []float64{-0.10, 0.05, 0.05}), nil)
	if err != nil {
		t.Fatalf("PortfolioRisk failed: %v", err)
	}
	if math.Abs(pr.MaxDrawdown-(-0.10)) > 1e-12 {
		t.Errorf("MaxDrawdown = %v, want -0.10", pr.MaxDrawdown)
	}
}

func TestStressTest_CrashOnPositiveReturns(t *testing.T) {
	e := newEngine(t)
	up := []float64{0.010, 0.020, 0.005, 0.015, 0.012, 0.008}
	up2 := []float64{0.004, 0.011, 0.007, 0.002, 0.009, 0.006}
	tbl := table(t, []string{"A", "B"}, up, up2)

	base, err := e.PortfolioRisk(tbl, nil)
	if err != nil {
		t.Fatalf("PortfolioRisk failed: %v", err)
	}
	stressed, err := e.StressTest(tbl, nil, domain.DefaultStressScenarios())
	if err != nil {
		t.Fatalf("StressTest failed: %v", err)
	}
	if len(stressed) != 3 {
		t.Fatalf("expected 3 scenarios, got %d", len(stressed))
	}
	crash := stressed[domain.ScenarioMarketCrash]
	if crash.VaR > base.VaR {
		t.Errorf("crash VaR %v above baseline %v", crash.VaR, base.VaR)
	}
	spike := stressed[domain.ScenarioVolatilitySpike]
	if math.Abs(spike.AnnualizedVolatility-1.5*base.AnnualizedVolatility) > 1e-9 {
		t.Errorf("spike vol %v, want 1.5x baseline %v", spike.AnnualizedVolatility, base.AnnualizedVolatility)
	}

	dup := []domain.StressScenario{{Name: "x", Impact: 0.1}, {Name: "x", Impact: 0.2}}
	if _, err := e.StressTest(tbl, nil, dup); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("duplicate scenario: expected ErrInvalidParameter, got %v", err)
	}
}

func TestRiskContributions_SumToOne(t *testing.T) {
	e := newEngine(t)
	tbl := table(t, []string{"A", "B", "C"}, colA, colB, colC)

	for _, weights := range [][]float64{nil, {0.5, 0.3, 0.2}, {0.7, 0.1, 0.2}} {
		rc, err := e.RiskContributions(tbl, weights)
		if err != nil {
			t.Fatalf("weights %v: unexpected error: %v", weights, err)
		}
		sum := 0.0
		for _, v := range rc {
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("weights %v: contributions sum to %v", weights, sum)
		}
	}
}

func TestRiskContributions_NegativeNotClamped(t *testing.T) {
	e := newEngine(t)
	hedge := make([]float64, len(colA))
	for i, r := range colA {
		hedge[i] = -0.5 * r
	}
	rc, err := e.RiskContributions(table(t, []string{"A", "H"}, colA, hedge), []float64{0.7, 0.3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc["H"] >= 0 {
		t.Errorf("hedge contribution = %v, want negative", rc["H"])
	}
}

func TestRiskContributions_ZeroVolatility(t *testing.T) {
	e := newEngine(t)
	flat := make([]float64, 6)
	_, err := e.RiskContributions(table(t, []string{"A", "B"}, flat, flat), nil)
	if !errors.Is(err, domain.ErrDegenerateInput) {
		t.Errorf("expected ErrDegenerateInput, got %v", err)
	}
}
