package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

func run(id, symbol, strategyID string, totalReturn float64) *domain.BacktestRun {
	return &domain.BacktestRun{
		RunID:        id,
		Symbol:       symbol,
		StrategyID:   strategyID,
		StrategyType: domain.StrategyTypeMomentum,
		Lookback:     20,
		TotalReturn:  totalReturn,
	}
}

func TestBacktestRunStore_InsertAndGet(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	if err := store.Insert(ctx, run("r1", "AAPL", "momentum_lb20_h5", 0.12)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.TotalReturn != 0.12 {
		t.Errorf("TotalReturn mismatch: got %f, want %f", got.TotalReturn, 0.12)
	}

	// Mutating the returned copy must not affect the store
	got.TotalReturn = 99
	again, _ := store.GetByID(ctx, "r1")
	if again.TotalReturn != 0.12 {
		t.Errorf("store returned a shared pointer")
	}
}

func TestBacktestRunStore_Duplicate(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	if err := store.Insert(ctx, run("r1", "AAPL", "s", 0)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, run("r1", "AAPL", "s", 0)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestBacktestRunStore_NotFound(t *testing.T) {
	store := NewBacktestRunStore()
	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBacktestRunStore_Queries(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	runs := []*domain.BacktestRun{
		run("r3", "MSFT", "momentum_lb20_h5", 0.1),
		run("r1", "AAPL", "momentum_lb20_h5", 0.2),
		run("r2", "AAPL", "mean_reversion_lb20_sd2.0", -0.1),
	}
	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	bySymbol, err := store.GetBySymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(bySymbol) != 2 || bySymbol[0].RunID != "r2" {
		t.Errorf("GetBySymbol order wrong: %+v", bySymbol)
	}

	byStrategy, err := store.GetByStrategy(ctx, "momentum_lb20_h5")
	if err != nil {
		t.Fatalf("GetByStrategy failed: %v", err)
	}
	if len(byStrategy) != 2 || byStrategy[0].Symbol != "AAPL" || byStrategy[1].Symbol != "MSFT" {
		t.Errorf("GetByStrategy order wrong")
	}

	ids, err := store.ListStrategyIDs(ctx)
	if err != nil {
		t.Fatalf("ListStrategyIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "mean_reversion_lb20_sd2.0" {
		t.Errorf("ListStrategyIDs = %v", ids)
	}
}
