package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/HiNala/stock-agents/internal/storage"
)

// IngestProgressStore is a PostgreSQL implementation of storage.IngestProgressStore.
// One row per (symbol, interval) holds the newest stored bar timestamp.
type IngestProgressStore struct {
	pool *Pool
}

// NewIngestProgressStore creates a new PostgreSQL ingest progress store.
func NewIngestProgressStore(pool *Pool) *IngestProgressStore {
	return &IngestProgressStore{pool: pool}
}

var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)

// Get returns the progress for (symbol, interval).
func (s *IngestProgressStore) Get(ctx context.Context, symbol, interval string) (*storage.IngestProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT symbol, interval, last_timestamp_ms, updated_at_ms
		FROM ingest_progress
		WHERE symbol = $1 AND interval = $2
	`, symbol, interval)

	var p storage.IngestProgress
	if err := row.Scan(&p.Symbol, &p.Interval, &p.LastTimestampMs, &p.UpdatedAtMs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Set saves the progress, replacing any previous value for the pair.
func (s *IngestProgressStore) Set(ctx context.Context, progress *storage.IngestProgress) error {
	if progress == nil || progress.Symbol == "" || progress.Interval == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_progress (symbol, interval, last_timestamp_ms, updated_at_ms)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, interval) DO UPDATE
		SET last_timestamp_ms = EXCLUDED.last_timestamp_ms,
		    updated_at_ms = EXCLUDED.updated_at_ms
	`, progress.Symbol, progress.Interval, progress.LastTimestampMs, progress.UpdatedAtMs)

	return err
}

// List returns all progress rows ordered by symbol, interval.
func (s *IngestProgressStore) List(ctx context.Context) ([]*storage.IngestProgress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, interval, last_timestamp_ms, updated_at_ms
		FROM ingest_progress
		ORDER BY symbol ASC, interval ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.IngestProgress
	for rows.Next() {
		var p storage.IngestProgress
		if err := rows.Scan(&p.Symbol, &p.Interval, &p.LastTimestampMs, &p.UpdatedAtMs); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
