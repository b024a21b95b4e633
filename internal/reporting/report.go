package reporting

import (
	"time"

	"github.com/HiNala/stock-agents/internal/decision"
	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/narrative"
)

// BacktestReport summarises stored backtest runs and strategy aggregates.
type BacktestReport struct {
	// Metadata
	GeneratedAt   time.Time
	StrategyCount int
	SymbolCount   int

	// Data Summary
	DataSummary DataSummary

	// Data Quality (runs excluded from aggregation)
	DataQuality DataQualitySection

	// Runs sorted by strategy_id, symbol
	Runs []RunRow

	// Aggregates sorted by strategy_id
	StrategyMetrics []StrategyMetricRow

	// Best strategy per symbol by Sharpe ratio, sorted by symbol
	BestBySymbol []BestStrategyRow
}

// DataQualitySection lists integrity problems found while loading runs.
type DataQualitySection struct {
	IntegrityErrors []string
}

// DataSummary contains data description.
type DataSummary struct {
	TotalRuns      int
	ProfitableRuns int
	DateRangeStart int64 // Unix ms, earliest bar across runs
	DateRangeEnd   int64 // Unix ms, latest bar across runs
}

// RunRow is one backtest run.
type RunRow struct {
	RunID          string
	Symbol         string
	StrategyID     string
	BarCount       int
	TotalReturn    float64
	SharpeRatio    float64
	MaxDrawdown    float64
	WinRate        float64
	TradeCount     int
	InitialCapital float64
	FinalEquity    float64
}

// StrategyMetricRow represents one row in strategy metrics table.
type StrategyMetricRow struct {
	StrategyID    string
	StrategyType  string
	TotalRuns     int
	TotalSymbols  int
	Profitable    int
	ReturnMean    float64
	ReturnMedian  float64
	ReturnP10     float64
	ReturnP90     float64
	SharpeMean    float64
	WinRateMean   float64
	WorstDrawdown float64
}

// BestStrategyRow names the highest-Sharpe strategy for a symbol.
type BestStrategyRow struct {
	Symbol      string
	StrategyID  string
	SharpeRatio float64
	TotalReturn float64
}

// RecommendationReport is a recommendation run with its supporting analysis.
type RecommendationReport struct {
	GeneratedAt time.Time
	Run         *domain.RecommendationRun

	// Stress results in scenario order
	Stress []StressRow

	// Risk contribution per portfolio symbol, in portfolio order
	Contributions []ContributionRow

	Decisions []*decision.Result

	// Nil when no narrative was generated
	Narrative *narrative.Report
}

// StressRow is the portfolio bundle under one shock.
type StressRow struct {
	Scenario domain.StressScenario
	Risk     domain.PortfolioRisk
}

// ContributionRow is one asset's share of portfolio volatility.
type ContributionRow struct {
	Symbol       string
	Weight       float64
	Contribution float64
}
