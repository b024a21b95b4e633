package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/HiNala/stock-agents/internal/decision"
	"github.com/HiNala/stock-agents/internal/narrative"
)

// RenderMarkdown renders a backtest report as Markdown string.
func RenderMarkdown(r *BacktestReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategies: %d | Symbols: %d\n\n", r.StrategyCount, r.SymbolCount))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Runs | %d |\n", r.DataSummary.TotalRuns))
	sb.WriteString(fmt.Sprintf("| Profitable Runs | %d |\n", r.DataSummary.ProfitableRuns))
	sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.DataSummary.DateRangeStart))
	sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.DataSummary.DateRangeEnd))
	sb.WriteString("\n")

	// Integrity errors only shown if present
	if len(r.DataQuality.IntegrityErrors) > 0 {
		sb.WriteString("## Data Quality\n\n")
		for _, err := range r.DataQuality.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", err))
		}
		sb.WriteString("\n")
	}

	// Strategy Metrics
	sb.WriteString("## Strategy Metrics\n\n")
	if len(r.StrategyMetrics) > 0 {
		sb.WriteString("| Strategy | Runs | Symbols | Profitable | Mean | Median | P10 | P90 | Sharpe | WinRate | WorstDD |\n")
		sb.WriteString("|----------|------|---------|------------|------|--------|-----|-----|--------|---------|---------|\n")
		for _, m := range r.StrategyMetrics {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
				m.StrategyID, m.TotalRuns, m.TotalSymbols, m.Profitable,
				m.ReturnMean, m.ReturnMedian, m.ReturnP10, m.ReturnP90,
				m.SharpeMean, m.WinRateMean, m.WorstDrawdown))
		}
	} else {
		sb.WriteString("No strategy metrics available.\n")
	}
	sb.WriteString("\n")

	// Best per symbol
	sb.WriteString("## Best Strategy per Symbol\n\n")
	if len(r.BestBySymbol) > 0 {
		sb.WriteString("| Symbol | Strategy | Sharpe | Return |\n")
		sb.WriteString("|--------|----------|--------|--------|\n")
		for _, b := range r.BestBySymbol {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f | %s |\n",
				b.Symbol, b.StrategyID, b.SharpeRatio, FormatPct(b.TotalReturn)))
		}
	} else {
		sb.WriteString("No backtest runs available.\n")
	}
	sb.WriteString("\n")

	// Runs
	sb.WriteString("## Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Strategy | Symbol | Bars | Return | Sharpe | MaxDD | WinRate | Trades | Final Equity |\n")
		sb.WriteString("|----------|--------|------|--------|--------|-------|---------|--------|--------------|\n")
		for _, run := range r.Runs {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %.4f | %s | %s | %d | %s |\n",
				run.StrategyID, run.Symbol, run.BarCount,
				FormatPct(run.TotalReturn), run.SharpeRatio, FormatPct(run.MaxDrawdown),
				FormatPct(run.WinRate), run.TradeCount, FormatMoney(run.FinalEquity)))
		}
	} else {
		sb.WriteString("No backtest runs available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderRecommendationMarkdown renders a recommendation run as Markdown string.
func RenderRecommendationMarkdown(r *RecommendationReport) string {
	var sb strings.Builder
	run := r.Run

	sb.WriteString("# Recommendation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if run == nil {
		sb.WriteString("No recommendation run available.\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("Run: %s | Risk tolerance: %s | Time horizon: %s\n\n",
		run.RunID, run.RiskTolerance, run.TimeHorizon))
	sb.WriteString(fmt.Sprintf("Evaluated: %d | Recommended: %d | Skipped: %d\n\n",
		run.Evaluated, len(run.Recommendations), len(run.Skipped)))

	// Recommendations
	sb.WriteString("## Recommendations\n\n")
	if len(run.Recommendations) > 0 {
		sb.WriteString("| # | Symbol | Action | Price | Volatility | Beta | RSI | Signal | Position | Rationale |\n")
		sb.WriteString("|---|--------|--------|-------|------------|------|-----|--------|----------|-----------|\n")
		for i, rec := range run.Recommendations {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s | %+d | %s | %s |\n",
				i+1, rec.Symbol, rec.Action, FormatMoney(rec.LastPrice),
				FormatPct(rec.Volatility), formatFloat(rec.Beta), formatFloat(rec.RSI),
				rec.CombinedSignal, FormatPct(rec.PositionSize), rec.Rationale))
		}
	} else {
		sb.WriteString("No actionable recommendations.\n")
	}
	sb.WriteString("\n")

	// Portfolio risk
	pr := run.PortfolioRisk
	sb.WriteString("## Portfolio Risk\n\n")
	if pr.Observations > 0 {
		sb.WriteString(fmt.Sprintf("Method: %s at %s confidence over %d observations\n\n",
			pr.VaRMethod, FormatPct(pr.Confidence), pr.Observations))
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Annualized Volatility | %s |\n", FormatPct(pr.AnnualizedVolatility)))
		sb.WriteString(fmt.Sprintf("| VaR | %s |\n", FormatPct(pr.VaR)))
		sb.WriteString(fmt.Sprintf("| Expected Shortfall | %s |\n", FormatPct(pr.ExpectedShortfall)))
		sb.WriteString(fmt.Sprintf("| Max Drawdown | %s |\n", FormatPct(pr.MaxDrawdown)))
		sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %s |\n", formatFloat(pr.SharpeRatio)))
	} else {
		sb.WriteString("No portfolio risk available.\n")
	}
	sb.WriteString("\n")

	// Correlation
	cm := run.CorrelationMatrix
	sb.WriteString("## Correlation Matrix\n\n")
	if len(cm.Symbols) > 0 {
		sb.WriteString("| |")
		for _, s := range cm.Symbols {
			sb.WriteString(" " + s + " |")
		}
		sb.WriteString("\n|---|")
		sb.WriteString(strings.Repeat("---|", len(cm.Symbols)))
		sb.WriteString("\n")
		for i, a := range cm.Symbols {
			sb.WriteString("| " + a + " |")
			for j := range cm.Symbols {
				sb.WriteString(" " + formatFloat(cm.Values[i][j]) + " |")
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("No correlation matrix available.\n")
	}
	sb.WriteString("\n")

	// Stress
	sb.WriteString("## Stress Tests\n\n")
	if len(r.Stress) > 0 {
		sb.WriteString("| Scenario | Impact | Volatility | VaR | Expected Shortfall | Max Drawdown |\n")
		sb.WriteString("|----------|--------|------------|-----|--------------------|--------------|\n")
		for _, s := range r.Stress {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				s.Scenario.Name, FormatPct(s.Scenario.Impact),
				FormatPct(s.Risk.AnnualizedVolatility), FormatPct(s.Risk.VaR),
				FormatPct(s.Risk.ExpectedShortfall), FormatPct(s.Risk.MaxDrawdown)))
		}
	} else {
		sb.WriteString("No stress results available.\n")
	}
	sb.WriteString("\n")

	// Contributions
	sb.WriteString("## Risk Contributions\n\n")
	if len(r.Contributions) > 0 {
		sb.WriteString("| Symbol | Weight | Contribution |\n")
		sb.WriteString("|--------|--------|--------------|\n")
		for _, c := range r.Contributions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
				c.Symbol, FormatPct(c.Weight), FormatPct(c.Contribution)))
		}
	} else {
		sb.WriteString("No risk contributions available.\n")
	}
	sb.WriteString("\n")

	// Skipped
	if len(run.Skipped) > 0 {
		sb.WriteString("## Skipped Symbols\n\n")
		sb.WriteString("| Symbol | Kind | Reason |\n")
		sb.WriteString("|--------|------|--------|\n")
		for _, f := range run.Skipped {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", f.Symbol, f.Kind, f.Reason))
		}
		sb.WriteString("\n")
	}

	if len(r.Decisions) > 0 {
		sb.WriteString(decision.RenderMarkdown(r.Decisions))
		sb.WriteString("\n")
	}

	if r.Narrative != nil {
		sb.WriteString("## Market Research\n\n")
		for _, s := range narrative.Sections() {
			text := strings.TrimSpace(r.Narrative.Text(s))
			if text == "" {
				continue
			}
			sb.WriteString(fmt.Sprintf("### %s\n\n%s\n\n", s.Title(), text))
		}
	}

	return sb.String()
}
