package reporting

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/HiNala/stock-agents/internal/decision"
	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/narrative"
	"github.com/HiNala/stock-agents/internal/storage/memory"
)

var fixedTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func setupTestData(t *testing.T) (*memory.BacktestRunStore, *memory.StrategyAggregateStore) {
	ctx := context.Background()

	runStore := memory.NewBacktestRunStore()
	aggStore := memory.NewStrategyAggregateStore()

	runs := []*domain.BacktestRun{
		{RunID: "r1", Symbol: "MSFT", StrategyID: "momentum_lb20_h5", StrategyType: domain.StrategyTypeMomentum,
			StartMs: 2000, EndMs: 9000, BarCount: 250, TotalReturn: 0.10, SharpeRatio: 1.2, MaxDrawdown: -0.05,
			WinRate: 0.55, TradeCount: 12, InitialCapital: 100000, FinalEquity: 110000},
		{RunID: "r2", Symbol: "AAPL", StrategyID: "momentum_lb20_h5", StrategyType: domain.StrategyTypeMomentum,
			StartMs: 1000, EndMs: 9000, BarCount: 250, TotalReturn: -0.02, SharpeRatio: -0.3, MaxDrawdown: -0.12,
			WinRate: 0.45, TradeCount: 10, InitialCapital: 100000, FinalEquity: 98000},
		{RunID: "r3", Symbol: "AAPL", StrategyID: "mean_reversion_lb20_sd2.0", StrategyType: domain.StrategyTypeMeanReversion,
			StartMs: 1000, EndMs: 10000, BarCount: 250, TotalReturn: 0.04, SharpeRatio: 0.8, MaxDrawdown: -0.03,
			WinRate: 0.6, TradeCount: 4, InitialCapital: 100000, FinalEquity: 104000},
	}
	for _, r := range runs {
		if err := runStore.Insert(ctx, r); err != nil {
			t.Fatalf("Insert run failed: %v", err)
		}
	}

	aggs := []*domain.StrategyAggregate{
		{StrategyID: "momentum_lb20_h5", StrategyType: domain.StrategyTypeMomentum, TotalRuns: 2, TotalSymbols: 2,
			Profitable: 1, ReturnMean: 0.04, ReturnMedian: 0.04, ReturnP10: -0.008, ReturnP90: 0.088,
			SharpeMean: 0.45, WinRateMean: 0.5, WorstDrawdown: -0.12},
		{StrategyID: "mean_reversion_lb20_sd2.0", StrategyType: domain.StrategyTypeMeanReversion, TotalRuns: 1, TotalSymbols: 1,
			Profitable: 1, ReturnMean: 0.04, ReturnMedian: 0.04, ReturnP10: 0.04, ReturnP90: 0.04,
			SharpeMean: 0.8, WinRateMean: 0.6, WorstDrawdown: -0.03},
	}
	for _, a := range aggs {
		if err := aggStore.Insert(ctx, a); err != nil {
			t.Fatalf("Insert aggregate failed: %v", err)
		}
	}
	return runStore, aggStore
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()
	runStore, aggStore := setupTestData(t)
	gen := NewGenerator(runStore, aggStore).WithClock(func() time.Time { return fixedTime })

	r1, err := gen.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	r2, err := gen.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md1, md2 := RenderMarkdown(r1), RenderMarkdown(r2)
	if md1 != md2 {
		t.Error("markdown output is not deterministic")
	}
	if RenderCSV(r1.StrategyMetrics) != RenderCSV(r2.StrategyMetrics) {
		t.Error("CSV output is not deterministic")
	}
	if !strings.Contains(md1, "Generated: 2024-01-15T12:00:00Z") {
		t.Error("markdown does not carry the injected clock")
	}
}

func TestGenerate_Summary(t *testing.T) {
	runStore, aggStore := setupTestData(t)
	report, err := NewGenerator(runStore, aggStore).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.StrategyCount != 2 || report.SymbolCount != 2 {
		t.Errorf("counts = %d strategies, %d symbols, want 2, 2", report.StrategyCount, report.SymbolCount)
	}
	s := report.DataSummary
	if s.TotalRuns != 3 || s.ProfitableRuns != 2 {
		t.Errorf("runs = %d (profitable %d), want 3 (2)", s.TotalRuns, s.ProfitableRuns)
	}
	if s.DateRangeStart != 1000 || s.DateRangeEnd != 10000 {
		t.Errorf("date range = [%d, %d], want [1000, 10000]", s.DateRangeStart, s.DateRangeEnd)
	}
}

func TestGenerate_Sorting(t *testing.T) {
	runStore, aggStore := setupTestData(t)
	report, err := NewGenerator(runStore, aggStore).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	wantRuns := []string{"r3", "r2", "r1"} // mean_reversion first, then momentum AAPL, MSFT
	for i, want := range wantRuns {
		if report.Runs[i].RunID != want {
			t.Errorf("Runs[%d] = %s, want %s", i, report.Runs[i].RunID, want)
		}
	}

	if report.StrategyMetrics[0].StrategyID != "mean_reversion_lb20_sd2.0" {
		t.Errorf("first aggregate = %s, want mean_reversion_lb20_sd2.0", report.StrategyMetrics[0].StrategyID)
	}

	if len(report.BestBySymbol) != 2 {
		t.Fatalf("BestBySymbol has %d rows, want 2", len(report.BestBySymbol))
	}
	if b := report.BestBySymbol[0]; b.Symbol != "AAPL" || b.StrategyID != "mean_reversion_lb20_sd2.0" {
		t.Errorf("best AAPL = %+v", b)
	}
	if b := report.BestBySymbol[1]; b.Symbol != "MSFT" || b.StrategyID != "momentum_lb20_h5" {
		t.Errorf("best MSFT = %+v", b)
	}
}

func TestGenerate_Empty(t *testing.T) {
	gen := NewGenerator(memory.NewBacktestRunStore(), memory.NewStrategyAggregateStore())
	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	md := RenderMarkdown(report)
	if !strings.Contains(md, "No strategy metrics available.") {
		t.Error("empty report should say no strategy metrics")
	}
	if !strings.Contains(md, "No backtest runs available.") {
		t.Error("empty report should say no runs")
	}
}

func TestRenderCSV_Header(t *testing.T) {
	csv := RenderCSV([]StrategyMetricRow{{StrategyID: "momentum_lb10_h1", StrategyType: "momentum", TotalRuns: 1}})
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "strategy_id,strategy_type,total_runs") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "momentum_lb10_h1,momentum,1,") {
		t.Errorf("unexpected row %q", lines[1])
	}
}

func TestRenderRunsCSV(t *testing.T) {
	csv := RenderRunsCSV([]RunRow{{RunID: "r1", Symbol: "AAPL", StrategyID: "s", FinalEquity: 101234.5}})
	if !strings.Contains(csv, "r1,AAPL,s,0,") || !strings.HasSuffix(strings.TrimSpace(csv), ",101234.50") {
		t.Errorf("unexpected csv %q", csv)
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{12.345, "12.35"},
		{1234.5, "1,234.50"},
		{100000, "100,000.00"},
		{-9876543.21, "-9,876,543.21"},
		{math.NaN(), "n/a"},
		{math.Inf(1), "n/a"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.in); got != tt.want {
			t.Errorf("FormatMoney(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPct(t *testing.T) {
	if got := FormatPct(0.1234); got != "12.34%" {
		t.Errorf("FormatPct(0.1234) = %q", got)
	}
	if got := FormatPct(math.NaN()); got != "n/a" {
		t.Errorf("FormatPct(NaN) = %q", got)
	}
}

func sampleRecommendationInput() RecommendationInput {
	run := &domain.RecommendationRun{
		RunID:         "run-1",
		RiskTolerance: domain.RiskMedium,
		TimeHorizon:   domain.HorizonMedium,
		Recommendations: []domain.Recommendation{
			{Symbol: "AAPL", Action: domain.ActionBuy, LastPrice: 185.5, Volatility: 0.25, Beta: math.NaN(),
				RSI: 40, CombinedSignal: 1, PositionSize: 0.08, Rationale: "momentum up"},
		},
		PortfolioRisk: domain.PortfolioRisk{
			AnnualizedVolatility: 0.2, VaR: -0.02, ExpectedShortfall: math.NaN(), MaxDrawdown: -0.1,
			SharpeRatio: 1.1, Confidence: 0.95, VaRMethod: domain.VaRHistorical, Observations: 250,
			Symbols: []string{"AAPL", "MSFT"}, Weights: []float64{0.5, 0.5},
		},
		CorrelationMatrix: domain.CorrelationMatrix{
			Symbols: []string{"AAPL", "MSFT"},
			Values:  [][]float64{{1, 0.6}, {0.6, 1}},
		},
		Evaluated: 2,
		Skipped:   []domain.Failure{{Symbol: "XYZ", Kind: domain.FailureInsufficientData, Reason: "10 bars"}},
	}
	return RecommendationInput{
		Run: run,
		Scenarios: []domain.StressScenario{
			{Name: "market_crash", Impact: -0.2},
			{Name: "missing", Impact: 0.1},
		},
		Stress: map[string]domain.PortfolioRisk{
			"market_crash": {AnnualizedVolatility: 0.2, VaR: -0.22, ExpectedShortfall: -0.23, MaxDrawdown: -0.9},
		},
		Contributions: map[string]float64{"MSFT": 0.4, "AAPL": 0.6},
		Decisions: []*decision.Result{{
			Symbol: "AAPL", RawSignal: 1, CombinedSignal: 1, Action: domain.ActionBuy,
			Gates: []decision.CriterionResult{{Name: "volatility_cap", Threshold: "<= 0.40", Actual: "0.25", Pass: true}},
		}},
		Narrative: narrative.ParseReport("1. Market Analysis\nStocks rose.\n2. Trends\nUp.\n"),
	}
}

func TestBuildRecommendationReport_Ordering(t *testing.T) {
	gen := NewGenerator(memory.NewBacktestRunStore(), memory.NewStrategyAggregateStore()).
		WithClock(func() time.Time { return fixedTime })
	r := gen.BuildRecommendationReport(sampleRecommendationInput())

	if len(r.Stress) != 1 || r.Stress[0].Scenario.Name != "market_crash" {
		t.Errorf("stress rows = %+v, want only market_crash", r.Stress)
	}
	if len(r.Contributions) != 2 || r.Contributions[0].Symbol != "AAPL" || r.Contributions[1].Symbol != "MSFT" {
		t.Errorf("contributions not in portfolio order: %+v", r.Contributions)
	}
	if r.Contributions[0].Weight != 0.5 {
		t.Errorf("AAPL weight = %v, want 0.5", r.Contributions[0].Weight)
	}
}

func TestRenderRecommendationMarkdown(t *testing.T) {
	gen := NewGenerator(memory.NewBacktestRunStore(), memory.NewStrategyAggregateStore()).
		WithClock(func() time.Time { return fixedTime })
	md := RenderRecommendationMarkdown(gen.BuildRecommendationReport(sampleRecommendationInput()))

	for _, want := range []string{
		"# Recommendation Report",
		"Run: run-1 | Risk tolerance: medium | Time horizon: medium",
		"| 1 | AAPL | BUY | 185.50 | 25.00% | n/a | 40.0000 | +1 | 8.00% | momentum up |",
		"| Expected Shortfall | n/a |",
		"| AAPL | 1.0000 | 0.6000 |",
		"| market_crash | -20.00% |",
		"| AAPL | 50.00% | 60.00% |",
		"| XYZ | INSUFFICIENT_DATA | 10 bars |",
		"## Decision Checklist",
		"### Overall market analysis",
		"Stocks rose.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderRecommendationMarkdown_NoRun(t *testing.T) {
	md := RenderRecommendationMarkdown(&RecommendationReport{GeneratedAt: fixedTime})
	if !strings.Contains(md, "No recommendation run available.") {
		t.Error("expected empty-run message")
	}
}
