// Package export writes equity curves to CSV, JSON or Parquet files.
package export

import (
	"strings"

	"github.com/HiNala/stock-agents/internal/domain"
)

// Row is one exported equity-curve point.
type Row struct {
	RunID       string  `json:"run_id" parquet:"run_id"`
	TimestampMs int64   `json:"timestamp_ms" parquet:"timestamp_ms"`
	Equity      float64 `json:"equity" parquet:"equity"`
	Drawdown    float64 `json:"drawdown" parquet:"drawdown"`
	Position    float64 `json:"position" parquet:"position"`
}

// Saver writes rows to a file.
type Saver interface {
	Save(rows []Row, path string) error
	Extension() string
}

// NewSaver returns the saver for format (csv, json, parquet), or nil.
func NewSaver(format string) Saver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "json":
		return JSONSaver{}
	case "parquet":
		return ParquetSaver{}
	default:
		return nil
	}
}

// RowsFromPoints converts stored curve points.
func RowsFromPoints(points []*domain.EquityCurvePoint) []Row {
	rows := make([]Row, len(points))
	for i, p := range points {
		rows[i] = Row{
			RunID:       p.RunID,
			TimestampMs: p.TimestampMs,
			Equity:      p.Equity,
			Drawdown:    p.Drawdown,
			Position:    p.Position,
		}
	}
	return rows
}

// RowsFromResult zips the equity, drawdown and position curves of a result.
func RowsFromResult(runID string, r *domain.BacktestResult) []Row {
	rows := make([]Row, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		rows[i] = Row{RunID: runID, TimestampMs: p.TimestampMs, Equity: p.Value}
		if i < len(r.DrawdownCurve) {
			rows[i].Drawdown = r.DrawdownCurve[i].Value
		}
		if i < len(r.PositionCurve) {
			rows[i].Position = r.PositionCurve[i].Value
		}
	}
	return rows
}
