package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

// StoreSource serves series from a price-bar store filled by ingestion.
type StoreSource struct {
	store storage.PriceBarStore
	now   func() time.Time
}

// NewStoreSource creates a source over store.
func NewStoreSource(store storage.PriceBarStore) *StoreSource {
	return &StoreSource{store: store, now: time.Now}
}

// WithClock overrides the clock used to resolve periods.
func (s *StoreSource) WithClock(now func() time.Time) *StoreSource {
	s.now = now
	return s
}

// Name implements Source.
func (s *StoreSource) Name() string { return "store" }

// Fetch implements Source.
func (s *StoreSource) Fetch(ctx context.Context, symbol, period, interval string) (*domain.PriceSeries, error) {
	now := s.now()
	start, err := ParsePeriod(period, now)
	if err != nil {
		return nil, err
	}
	series, err := s.store.GetByTimeRange(ctx, symbol, interval, start.UnixMilli(), now.UnixMilli())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return series, err
}
