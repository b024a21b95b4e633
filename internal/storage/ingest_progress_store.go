package storage

import "context"

// IngestProgress represents the newest bar ingested for a symbol.
type IngestProgress struct {
	Symbol          string // ticker
	Interval        string // bar interval, e.g. "1d"
	LastTimestampMs int64  // newest stored bar
	UpdatedAtMs     int64  // when progress was last written
}

// IngestProgressStore provides persistence for ingestion state.
// This enables incremental ingestion after restarts without duplicate bars.
type IngestProgressStore interface {
	// Get returns the progress for (symbol, interval).
	// Returns ErrNotFound if nothing has been ingested yet.
	Get(ctx context.Context, symbol, interval string) (*IngestProgress, error)

	// Set saves the progress for (symbol, interval), replacing any previous value.
	Set(ctx context.Context, progress *IngestProgress) error

	// List returns all progress rows ordered by symbol ASC, interval ASC.
	List(ctx context.Context) ([]*IngestProgress, error)
}
