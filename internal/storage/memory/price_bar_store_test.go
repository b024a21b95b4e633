package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

func series(symbol string, ts ...int64) *domain.PriceSeries {
	s := &domain.PriceSeries{Symbol: symbol, Interval: "1d"}
	for i, t := range ts {
		c := 100 + float64(i)
		s.Bars = append(s.Bars, domain.PriceBar{TimestampMs: t, Open: c, High: c, Low: c, Close: c, Volume: 1000})
	}
	return s
}

func TestPriceBarStore_InsertBulkAndGet(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, series("AAPL", 3000, 1000, 2000)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetBySymbol(ctx, "AAPL", "1d")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}

	if len(result.Bars) != 3 {
		t.Fatalf("Expected 3 bars, got %d", len(result.Bars))
	}
	for i := 1; i < len(result.Bars); i++ {
		if result.Bars[i].TimestampMs <= result.Bars[i-1].TimestampMs {
			t.Errorf("bars not sorted at %d", i)
		}
	}
}

func TestPriceBarStore_DuplicateKey(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, series("AAPL", 1000)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, series("AAPL", 1000))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPriceBarStore_IntraBatchDuplicate(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, series("AAPL", 1000, 1000))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	// Verify nothing was inserted
	_, err = store.GetBySymbol(ctx, "AAPL", "1d")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after rollback, got %v", err)
	}
}

func TestPriceBarStore_GetByTimeRange(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, series("AAPL", 1000, 2000, 3000, 4000)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, "AAPL", "1d", 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result.Bars) != 2 {
		t.Errorf("Expected 2 bars in range, got %d", len(result.Bars))
	}
}

func TestPriceBarStore_IntervalsAreSeparate(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	hourly := series("AAPL", 1000)
	hourly.Interval = "1h"
	if err := store.InsertBulk(ctx, series("AAPL", 1000)); err != nil {
		t.Fatalf("daily insert failed: %v", err)
	}
	if err := store.InsertBulk(ctx, hourly); err != nil {
		t.Fatalf("hourly insert with same timestamp should succeed: %v", err)
	}
}

func TestPriceBarStore_ListSymbols(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	for _, sym := range []string{"MSFT", "AAPL", "GOOG"} {
		if err := store.InsertBulk(ctx, series(sym, 1000)); err != nil {
			t.Fatalf("InsertBulk %s failed: %v", sym, err)
		}
	}

	syms, err := store.ListSymbols(ctx, "1d")
	if err != nil {
		t.Fatalf("ListSymbols failed: %v", err)
	}
	want := []string{"AAPL", "GOOG", "MSFT"}
	if len(syms) != len(want) {
		t.Fatalf("Expected %v, got %v", want, syms)
	}
	for i := range want {
		if syms[i] != want[i] {
			t.Errorf("syms[%d] = %s, want %s", i, syms[i], want[i])
		}
	}
}

func TestPriceBarStore_InvalidInput(t *testing.T) {
	store := NewPriceBarStore()
	err := store.InsertBulk(context.Background(), &domain.PriceSeries{Interval: "1d"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
