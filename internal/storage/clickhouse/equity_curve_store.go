package clickhouse

import (
	"context"
	"fmt"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

// EquityCurveStore implements storage.EquityCurveStore using ClickHouse.
type EquityCurveStore struct {
	conn *Conn
}

// NewEquityCurveStore creates a new EquityCurveStore.
func NewEquityCurveStore(conn *Conn) *EquityCurveStore {
	return &EquityCurveStore{conn: conn}
}

var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (run_id, timestamp_ms).
func (s *EquityCurveStore) InsertBulk(ctx context.Context, points []*domain.EquityCurvePoint) error {
	if len(points) == 0 {
		return nil
	}

	type key struct {
		runID       string
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(points))
	runs := make(map[string]struct{})
	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.RunID, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[p.RunID] = struct{}{}
	}

	// a run's curve is written once, so any stored point for the run is a clash
	for runID := range runs {
		n, err := s.conn.count(ctx, `SELECT count(*) FROM equity_curves WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_curves (run_id, timestamp_ms, equity, drawdown, position)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.RunID, p.TimestampMs, p.Equity, p.Drawdown, p.Position); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves the curve of a run, ordered by timestamp ASC.
func (s *EquityCurveStore) GetByRunID(ctx context.Context, runID string) ([]*domain.EquityCurvePoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT run_id, timestamp_ms, equity, drawdown, position
		FROM equity_curves FINAL
		WHERE run_id = ?
		ORDER BY timestamp_ms ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	var points []*domain.EquityCurvePoint
	for rows.Next() {
		var p domain.EquityCurvePoint
		if err := rows.Scan(&p.RunID, &p.TimestampMs, &p.Equity, &p.Drawdown, &p.Position); err != nil {
			return nil, fmt.Errorf("scan equity curve row: %w", err)
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity curve rows: %w", err)
	}
	return points, nil
}
