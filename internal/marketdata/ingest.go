package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

// Ingester copies bars from a source into a PriceBarStore, appending only
// bars newer than the recorded progress of each (symbol, interval).
type Ingester struct {
	src      Source
	bars     storage.PriceBarStore
	progress storage.IngestProgressStore
	now      func() time.Time
}

// NewIngester creates a new Ingester.
func NewIngester(src Source, bars storage.PriceBarStore, progress storage.IngestProgressStore) *Ingester {
	return &Ingester{src: src, bars: bars, progress: progress, now: time.Now}
}

// WithClock overrides the progress timestamp source.
func (i *Ingester) WithClock(now func() time.Time) *Ingester {
	i.now = now
	return i
}

// IngestStats summarizes one ingest call.
type IngestStats struct {
	Symbols  int              // symbols fetched successfully
	Inserted int              // bars appended
	Skipped  int              // bars at or before recorded progress
	Failures []domain.Failure // symbols that could not be fetched or stored
}

// Ingest fetches every symbol and appends its new bars. A symbol that
// fails is reported and does not stop the others; only cancellation of
// ctx aborts the call.
func (i *Ingester) Ingest(ctx context.Context, symbols []string, period, interval string, concurrency int) (*IngestStats, error) {
	fr, err := FetchUniverse(ctx, i.src, symbols, period, interval, concurrency)
	if err != nil {
		return nil, err
	}

	stats := &IngestStats{Failures: fr.Failures}
	for _, s := range fr.Series {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		inserted, skipped, err := i.append(ctx, s)
		if err != nil {
			stats.Failures = append(stats.Failures, domain.NewFailure(s.Symbol, err))
			continue
		}
		stats.Symbols++
		stats.Inserted += inserted
		stats.Skipped += skipped
	}
	return stats, nil
}

func (i *Ingester) append(ctx context.Context, s *domain.PriceSeries) (inserted, skipped int, err error) {
	var last int64 = -1
	p, err := i.progress.Get(ctx, s.Symbol, s.Interval)
	switch {
	case err == nil:
		last = p.LastTimestampMs
	case !errors.Is(err, storage.ErrNotFound):
		return 0, 0, fmt.Errorf("get progress: %w", err)
	}

	fresh := &domain.PriceSeries{Symbol: s.Symbol, Interval: s.Interval}
	for _, b := range s.Bars {
		if b.TimestampMs <= last {
			skipped++
			continue
		}
		fresh.Bars = append(fresh.Bars, b)
	}
	if len(fresh.Bars) == 0 {
		return 0, skipped, nil
	}

	if err := i.bars.InsertBulk(ctx, fresh); err != nil {
		return 0, skipped, fmt.Errorf("insert bars: %w", err)
	}
	err = i.progress.Set(ctx, &storage.IngestProgress{
		Symbol:          s.Symbol,
		Interval:        s.Interval,
		LastTimestampMs: fresh.Bars[len(fresh.Bars)-1].TimestampMs,
		UpdatedAtMs:     i.now().UnixMilli(),
	})
	if err != nil {
		return 0, skipped, fmt.Errorf("set progress: %w", err)
	}
	return len(fresh.Bars), skipped, nil
}
