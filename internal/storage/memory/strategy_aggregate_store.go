package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

// StrategyAggregateStore is an in-memory implementation of storage.StrategyAggregateStore.
type StrategyAggregateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.StrategyAggregate // keyed by strategy_id
}

// NewStrategyAggregateStore creates a new in-memory strategy aggregate store.
func NewStrategyAggregateStore() *StrategyAggregateStore {
	return &StrategyAggregateStore{
		data: make(map[string]*domain.StrategyAggregate),
	}
}

// Insert adds a new aggregate. Returns ErrDuplicateKey if strategy_id exists.
func (s *StrategyAggregateStore) Insert(ctx context.Context, a *domain.StrategyAggregate) error {
	return s.InsertBulk(ctx, []*domain.StrategyAggregate{a})
}

// InsertBulk stores every aggregate or none of them.
func (s *StrategyAggregateStore) InsertBulk(_ context.Context, aggregates []*domain.StrategyAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make(map[string]*domain.StrategyAggregate, len(aggregates))
	for _, a := range aggregates {
		if a == nil || a.StrategyID == "" {
			return storage.ErrInvalidInput
		}
		if _, stored := s.data[a.StrategyID]; stored {
			return storage.ErrDuplicateKey
		}
		if _, queued := pending[a.StrategyID]; queued {
			return storage.ErrDuplicateKey
		}
		c := *a
		pending[a.StrategyID] = &c
	}
	for id, a := range pending {
		s.data[id] = a
	}
	return nil
}

// Upsert stores a, replacing any aggregate with the same strategy_id.
func (s *StrategyAggregateStore) Upsert(_ context.Context, a *domain.StrategyAggregate) error {
	if a == nil || a.StrategyID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *a
	s.data[a.StrategyID] = &c
	return nil
}

// GetByStrategyID retrieves an aggregate. Returns ErrNotFound if not exists.
func (s *StrategyAggregateStore) GetByStrategyID(_ context.Context, strategyID string) (*domain.StrategyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[strategyID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	aggCopy := *a
	return &aggCopy, nil
}

// GetAll retrieves all aggregates ordered by strategy_id.
func (s *StrategyAggregateStore) GetAll(_ context.Context) ([]*domain.StrategyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.StrategyAggregate, 0, len(s.data))
	for _, a := range s.data {
		aggCopy := *a
		result = append(result, &aggCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StrategyID < result[j].StrategyID
	})

	return result, nil
}

var _ storage.StrategyAggregateStore = (*StrategyAggregateStore)(nil)
