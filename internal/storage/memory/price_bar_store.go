package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

// PriceBarStore is an in-memory implementation of storage.PriceBarStore.
type PriceBarStore struct {
	mu   sync.RWMutex
	data map[string]domain.PriceBar // keyed by (symbol, interval, timestamp_ms)
	keys map[string]seriesKey       // same key -> owning series
}

type seriesKey struct {
	symbol   string
	interval string
}

// NewPriceBarStore creates a new in-memory price bar store.
func NewPriceBarStore() *PriceBarStore {
	return &PriceBarStore{
		data: make(map[string]domain.PriceBar),
		keys: make(map[string]seriesKey),
	}
}

// barKey generates a unique key for a bar.
func barKey(symbol, interval string, timestampMs int64) string {
	return fmt.Sprintf("%s|%s|%d", symbol, interval, timestampMs)
}

// InsertBulk adds the bars of a series. Fails entire batch on duplicate.
func (s *PriceBarStore) InsertBulk(_ context.Context, series *domain.PriceSeries) error {
	if series == nil || series.Symbol == "" || series.Interval == "" {
		return storage.ErrInvalidInput
	}
	if len(series.Bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(series.Bars))

	// First pass: check for duplicates (existing + intra-batch)
	for _, b := range series.Bars {
		key := barKey(series.Symbol, series.Interval, b.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	sk := seriesKey{symbol: series.Symbol, interval: series.Interval}
	for _, b := range series.Bars {
		key := barKey(series.Symbol, series.Interval, b.TimestampMs)
		s.data[key] = b
		s.keys[key] = sk
	}

	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by timestamp ASC.
func (s *PriceBarStore) GetBySymbol(_ context.Context, symbol, interval string) (*domain.PriceSeries, error) {
	return s.collect(symbol, interval, func(int64) bool { return true })
}

// GetByTimeRange retrieves bars within [start, end] (inclusive).
func (s *PriceBarStore) GetByTimeRange(_ context.Context, symbol, interval string, start, end int64) (*domain.PriceSeries, error) {
	return s.collect(symbol, interval, func(ts int64) bool { return ts >= start && ts <= end })
}

func (s *PriceBarStore) collect(symbol, interval string, keep func(int64) bool) (*domain.PriceSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := seriesKey{symbol: symbol, interval: interval}
	var bars []domain.PriceBar
	for key, b := range s.data {
		if s.keys[key] == want && keep(b.TimestampMs) {
			bars = append(bars, b)
		}
	}
	if len(bars) == 0 {
		return nil, storage.ErrNotFound
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].TimestampMs < bars[j].TimestampMs
	})

	return &domain.PriceSeries{Symbol: symbol, Interval: interval, Bars: bars}, nil
}

// ListSymbols returns all symbols with bars at the interval.
func (s *PriceBarStore) ListSymbols(_ context.Context, interval string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, sk := range s.keys {
		if sk.interval == interval {
			seen[sk.symbol] = struct{}{}
		}
	}

	result := make([]string, 0, len(seen))
	for sym := range seen {
		result = append(result, sym)
	}
	sort.Strings(result)
	return result, nil
}

var _ storage.PriceBarStore = (*PriceBarStore)(nil)
