package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/HiNala/stock-agents/internal/storage"
)

// IngestProgressStore is an in-memory implementation of storage.IngestProgressStore.
type IngestProgressStore struct {
	mu   sync.RWMutex
	data map[string]storage.IngestProgress // keyed by (symbol, interval)
}

// NewIngestProgressStore creates a new in-memory ingest progress store.
func NewIngestProgressStore() *IngestProgressStore {
	return &IngestProgressStore{
		data: make(map[string]storage.IngestProgress),
	}
}

func progressKey(symbol, interval string) string {
	return symbol + "|" + interval
}

// Get returns the progress for (symbol, interval).
func (s *IngestProgressStore) Get(_ context.Context, symbol, interval string) (*storage.IngestProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[progressKey(symbol, interval)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// Set saves the progress for (symbol, interval).
func (s *IngestProgressStore) Set(_ context.Context, progress *storage.IngestProgress) error {
	if progress == nil || progress.Symbol == "" || progress.Interval == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[progressKey(progress.Symbol, progress.Interval)] = *progress
	return nil
}

// List returns all progress rows ordered by symbol, interval.
func (s *IngestProgressStore) List(_ context.Context) ([]*storage.IngestProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.IngestProgress, 0, len(s.data))
	for _, p := range s.data {
		pc := p
		result = append(result, &pc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Symbol != result[j].Symbol {
			return result[i].Symbol < result[j].Symbol
		}
		return result[i].Interval < result[j].Interval
	})
	return result, nil
}

var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)
