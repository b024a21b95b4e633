package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/HiNala/stock-agents/internal/reporting"
)

// Output file names
const (
	RecommendationReportFile = "RECOMMENDATIONS.md"
	RecommendationRunFile    = "recommendation_run.json"
	BacktestRunsFile         = "backtest_runs.csv"
	ManifestFile             = "manifest.json"
)

// Manifest describes the files written for one run.
type Manifest struct {
	RunID       string   `json:"run_id"`
	DataVersion string   `json:"data_version"`
	Files       []string `json:"files"`
	Errors      []string `json:"errors,omitempty"`
}

// WriteOutputs writes the report, the run as JSON, the backtest runs as CSV
// and a manifest into dir.
func WriteOutputs(dir string, result *RunResult) (*Manifest, error) {
	if result == nil || result.Output == nil {
		return nil, errors.New("no run to write")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	run := result.Output.Run

	files := map[string][]byte{}
	if result.Report != nil {
		files[RecommendationReportFile] = []byte(reporting.RenderRecommendationMarkdown(result.Report))
	}

	runJSON, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal run: %w", err)
	}
	files[RecommendationRunFile] = runJSON

	if len(result.Backtests) > 0 {
		rows := make([]reporting.RunRow, len(result.Backtests))
		for i, r := range result.Backtests {
			rows[i] = reporting.RunRow{
				RunID: r.RunID, Symbol: r.Symbol, StrategyID: r.StrategyID, BarCount: r.BarCount,
				TotalReturn: r.TotalReturn, SharpeRatio: r.SharpeRatio, MaxDrawdown: r.MaxDrawdown,
				WinRate: r.WinRate, TradeCount: r.TradeCount,
				InitialCapital: r.InitialCapital, FinalEquity: r.FinalEquity,
			}
		}
		files[BacktestRunsFile] = []byte(reporting.RenderRunsCSV(rows))
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), files[name], 0644); err != nil {
			return nil, err
		}
	}

	m := &Manifest{
		RunID:       run.RunID,
		DataVersion: dataVersion(result),
		Files:       names,
		Errors:      result.Errors,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return nil, err
	}
	return m, nil
}

// dataVersion hashes the recommendations and backtest summaries so that
// identical inputs give the same short version regardless of run ID.
func dataVersion(result *RunResult) string {
	h := sha256.New()

	var recParts []string
	for _, r := range result.Output.Run.Recommendations {
		recParts = append(recParts, fmt.Sprintf("%s|%s|%.6f|%.6f", r.Symbol, r.Action, r.LastPrice, r.PositionSize))
	}
	h.Write([]byte("RECOMMENDATIONS\n"))
	h.Write([]byte(strings.Join(recParts, "\n")))

	var runParts []string
	for _, r := range result.Backtests {
		runParts = append(runParts, fmt.Sprintf("%s|%.6f", r.RunID, r.TotalReturn))
	}
	sort.Strings(runParts)
	h.Write([]byte("\nBACKTESTS\n"))
	h.Write([]byte(strings.Join(runParts, "\n")))

	return hex.EncodeToString(h.Sum(nil))[:12] // short hash
}
