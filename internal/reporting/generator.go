package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/HiNala/stock-agents/internal/decision"
	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/narrative"
	"github.com/HiNala/stock-agents/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	runStore       storage.BacktestRunStore
	aggregateStore storage.StrategyAggregateStore
	now            func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.BacktestRunStore, aggStore storage.StrategyAggregateStore) *Generator {
	return &Generator{
		runStore:       runStore,
		aggregateStore: aggStore,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the backtest report from every stored run.
func (g *Generator) Generate(ctx context.Context) (*BacktestReport, error) {
	strategyIDs, err := g.runStore.ListStrategyIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}

	var runs []*domain.BacktestRun
	for _, id := range strategyIDs {
		rs, err := g.runStore.GetByStrategy(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load runs for %s: %w", id, err)
		}
		runs = append(runs, rs...)
	}

	aggs, err := g.aggregateStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}

	rows, quality := g.generateRunRows(runs)

	symbolSet := make(map[string]struct{})
	for _, r := range runs {
		symbolSet[r.Symbol] = struct{}{}
	}

	return &BacktestReport{
		GeneratedAt:     g.now(),
		StrategyCount:   len(strategyIDs),
		SymbolCount:     len(symbolSet),
		DataSummary:     generateDataSummary(runs),
		DataQuality:     quality,
		Runs:            rows,
		StrategyMetrics: generateStrategyMetrics(aggs),
		BestBySymbol:    generateBestBySymbol(runs),
	}, nil
}

// generateRunRows sorts runs by strategy_id, symbol and flags runs whose
// statistics are not finite.
func (g *Generator) generateRunRows(runs []*domain.BacktestRun) ([]RunRow, DataQualitySection) {
	var quality DataQualitySection
	rows := make([]RunRow, 0, len(runs))
	for _, r := range runs {
		if math.IsNaN(r.TotalReturn) || math.IsInf(r.TotalReturn, 0) {
			quality.IntegrityErrors = append(quality.IntegrityErrors,
				fmt.Sprintf("run %s (%s, %s): non-finite total return", r.RunID, r.Symbol, r.StrategyID))
		}
		rows = append(rows, RunRow{
			RunID:          r.RunID,
			Symbol:         r.Symbol,
			StrategyID:     r.StrategyID,
			BarCount:       r.BarCount,
			TotalReturn:    r.TotalReturn,
			SharpeRatio:    r.SharpeRatio,
			MaxDrawdown:    r.MaxDrawdown,
			WinRate:        r.WinRate,
			TradeCount:     r.TradeCount,
			InitialCapital: r.InitialCapital,
			FinalEquity:    r.FinalEquity,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].StrategyID != rows[j].StrategyID {
			return rows[i].StrategyID < rows[j].StrategyID
		}
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].RunID < rows[j].RunID
	})
	return rows, quality
}

func generateDataSummary(runs []*domain.BacktestRun) DataSummary {
	s := DataSummary{TotalRuns: len(runs)}
	for i, r := range runs {
		if r.TotalReturn > 0 {
			s.ProfitableRuns++
		}
		if i == 0 || r.StartMs < s.DateRangeStart {
			s.DateRangeStart = r.StartMs
		}
		if i == 0 || r.EndMs > s.DateRangeEnd {
			s.DateRangeEnd = r.EndMs
		}
	}
	return s
}

// generateStrategyMetrics builds rows sorted by strategy_id.
func generateStrategyMetrics(aggs []*domain.StrategyAggregate) []StrategyMetricRow {
	rows := make([]StrategyMetricRow, len(aggs))
	for i, agg := range aggs {
		rows[i] = StrategyMetricRow{
			StrategyID:    agg.StrategyID,
			StrategyType:  string(agg.StrategyType),
			TotalRuns:     agg.TotalRuns,
			TotalSymbols:  agg.TotalSymbols,
			Profitable:    agg.Profitable,
			ReturnMean:    agg.ReturnMean,
			ReturnMedian:  agg.ReturnMedian,
			ReturnP10:     agg.ReturnP10,
			ReturnP90:     agg.ReturnP90,
			SharpeMean:    agg.SharpeMean,
			WinRateMean:   agg.WinRateMean,
			WorstDrawdown: agg.WorstDrawdown,
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].StrategyID < rows[j].StrategyID
	})
	return rows
}

// generateBestBySymbol keeps the first run with maximal Sharpe per symbol,
// visiting runs in strategy_id order.
func generateBestBySymbol(runs []*domain.BacktestRun) []BestStrategyRow {
	sorted := make([]*domain.BacktestRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StrategyID < sorted[j].StrategyID
	})

	best := make(map[string]*domain.BacktestRun)
	for _, r := range sorted {
		if cur, ok := best[r.Symbol]; !ok || r.SharpeRatio > cur.SharpeRatio {
			best[r.Symbol] = r
		}
	}

	rows := make([]BestStrategyRow, 0, len(best))
	for sym, r := range best {
		rows = append(rows, BestStrategyRow{
			Symbol:      sym,
			StrategyID:  r.StrategyID,
			SharpeRatio: r.SharpeRatio,
			TotalReturn: r.TotalReturn,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}

// RecommendationInput carries a finished run and its supporting analysis.
type RecommendationInput struct {
	Run           *domain.RecommendationRun
	Scenarios     []domain.StressScenario
	Stress        map[string]domain.PortfolioRisk
	Contributions map[string]float64
	Decisions     []*decision.Result
	Narrative     *narrative.Report
}

// BuildRecommendationReport orders the analysis for rendering. Scenarios
// missing from Stress are left out.
func (g *Generator) BuildRecommendationReport(in RecommendationInput) *RecommendationReport {
	r := &RecommendationReport{
		GeneratedAt: g.now(),
		Run:         in.Run,
		Decisions:   in.Decisions,
		Narrative:   in.Narrative,
	}
	for _, sc := range in.Scenarios {
		if res, ok := in.Stress[sc.Name]; ok {
			r.Stress = append(r.Stress, StressRow{Scenario: sc, Risk: res})
		}
	}
	if in.Run != nil && len(in.Contributions) > 0 {
		pr := in.Run.PortfolioRisk
		for i, sym := range pr.Symbols {
			c, ok := in.Contributions[sym]
			if !ok {
				continue
			}
			w := math.NaN()
			if i < len(pr.Weights) {
				w = pr.Weights[i]
			}
			r.Contributions = append(r.Contributions, ContributionRow{Symbol: sym, Weight: w, Contribution: c})
		}
	}
	return r
}
