package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

func TestEquityCurveStore_InsertAndGet(t *testing.T) {
	store := NewEquityCurveStore()
	ctx := context.Background()

	points := []*domain.EquityCurvePoint{
		{RunID: "r1", TimestampMs: 2000, Equity: 101},
		{RunID: "r1", TimestampMs: 1000, Equity: 100},
		{RunID: "r2", TimestampMs: 1000, Equity: 50},
	}
	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 2 || got[0].TimestampMs != 1000 || got[1].Equity != 101 {
		t.Errorf("unexpected curve: %+v", got)
	}
}

func TestEquityCurveStore_Duplicate(t *testing.T) {
	store := NewEquityCurveStore()
	ctx := context.Background()

	p := []*domain.EquityCurvePoint{{RunID: "r1", TimestampMs: 1000}}
	if err := store.InsertBulk(ctx, p); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := store.InsertBulk(ctx, p); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestIngestProgressStore_SetOverwrites(t *testing.T) {
	store := NewIngestProgressStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "AAPL", "1d"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	for _, ts := range []int64{1000, 5000} {
		if err := store.Set(ctx, &storage.IngestProgress{Symbol: "AAPL", Interval: "1d", LastTimestampMs: ts}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	got, err := store.Get(ctx, "AAPL", "1d")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.LastTimestampMs != 5000 {
		t.Errorf("LastTimestampMs = %d, want 5000", got.LastTimestampMs)
	}

	all, _ := store.List(ctx)
	if len(all) != 1 {
		t.Errorf("Expected 1 progress row, got %d", len(all))
	}
}
