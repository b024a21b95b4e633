package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

// EquityCurveStore is an in-memory implementation of storage.EquityCurveStore.
type EquityCurveStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EquityCurvePoint // keyed by (run_id, timestamp_ms)
}

// NewEquityCurveStore creates a new in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{
		data: make(map[string]*domain.EquityCurvePoint),
	}
}

func curveKey(runID string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", runID, timestampMs)
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *EquityCurveStore) InsertBulk(_ context.Context, points []*domain.EquityCurvePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}
		key := curveKey(p.RunID, p.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[curveKey(p.RunID, p.TimestampMs)] = &pointCopy
	}

	return nil
}

// GetByRunID retrieves the curve of a run, ordered by timestamp ASC.
func (s *EquityCurveStore) GetByRunID(_ context.Context, runID string) ([]*domain.EquityCurvePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EquityCurvePoint
	for _, p := range s.data {
		if p.RunID == runID {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)
