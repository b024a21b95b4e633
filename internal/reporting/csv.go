package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders strategy aggregates as CSV string.
func RenderCSV(metrics []StrategyMetricRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("strategy_id,strategy_type,total_runs,total_symbols,profitable,")
	sb.WriteString("return_mean,return_median,return_p10,return_p90,")
	sb.WriteString("sharpe_mean,win_rate_mean,worst_drawdown\n")

	// Rows
	for _, m := range metrics {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f\n",
			m.StrategyID,
			m.StrategyType,
			m.TotalRuns,
			m.TotalSymbols,
			m.Profitable,
			m.ReturnMean,
			m.ReturnMedian,
			m.ReturnP10,
			m.ReturnP90,
			m.SharpeMean,
			m.WinRateMean,
			m.WorstDrawdown,
		))
	}

	return sb.String()
}

// RenderRunsCSV renders backtest runs as CSV string.
func RenderRunsCSV(runs []RunRow) string {
	var sb strings.Builder

	sb.WriteString("run_id,symbol,strategy_id,bar_count,total_return,sharpe_ratio,")
	sb.WriteString("max_drawdown,win_rate,trade_count,initial_capital,final_equity\n")

	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%.6f,%.6f,%.6f,%.6f,%d,%.2f,%.2f\n",
			r.RunID,
			r.Symbol,
			r.StrategyID,
			r.BarCount,
			r.TotalReturn,
			r.SharpeRatio,
			r.MaxDrawdown,
			r.WinRate,
			r.TradeCount,
			r.InitialCapital,
			r.FinalEquity,
		))
	}

	return sb.String()
}
