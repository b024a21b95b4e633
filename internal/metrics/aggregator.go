package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

// ErrNoRuns is returned when no backtest runs are available for aggregation.
var ErrNoRuns = errors.New("no backtest runs available for aggregation")

// Aggregator computes strategy aggregates from stored backtest runs.
type Aggregator struct {
	runStore storage.BacktestRunStore
	aggStore storage.StrategyAggregateStore

	// InvalidRuns tracks runs excluded for non-finite statistics (for data quality reporting).
	// Key: run_id, Value: strategy_id.
	InvalidRuns map[string]string
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(runStore storage.BacktestRunStore, aggStore storage.StrategyAggregateStore) *Aggregator {
	return &Aggregator{
		runStore:    runStore,
		aggStore:    aggStore,
		InvalidRuns: make(map[string]string),
	}
}

// ComputeAggregate computes the aggregate for one strategy_id.
// Returns ErrNoRuns if no usable runs exist.
func (a *Aggregator) ComputeAggregate(ctx context.Context, strategyID string) (*domain.StrategyAggregate, error) {
	runs, err := a.runStore.GetByStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}

	usable := runs[:0:0]
	for _, r := range runs {
		if !isFinite(r.TotalReturn) || !isFinite(r.SharpeRatio) {
			a.InvalidRuns[r.RunID] = r.StrategyID
			continue
		}
		usable = append(usable, r)
	}

	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: strategy %s", ErrNoRuns, strategyID)
	}

	agg := computeFromRuns(usable)
	agg.StrategyID = strategyID
	return agg, nil
}

// ComputeAndStore computes the aggregate and replaces the stored one.
func (a *Aggregator) ComputeAndStore(ctx context.Context, strategyID string) (*domain.StrategyAggregate, error) {
	agg, err := a.ComputeAggregate(ctx, strategyID)
	if err != nil {
		return nil, err
	}

	if err := a.aggStore.Upsert(ctx, agg); err != nil {
		return nil, err
	}

	return agg, nil
}

// ComputeAll computes aggregates for every strategy present in the run store,
// sorted by strategy_id. Strategies without usable runs are skipped.
func (a *Aggregator) ComputeAll(ctx context.Context) ([]*domain.StrategyAggregate, error) {
	ids, err := a.runStore.ListStrategyIDs(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	var out []*domain.StrategyAggregate
	for _, id := range ids {
		agg, err := a.ComputeAggregate(ctx, id)
		if errors.Is(err, ErrNoRuns) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, nil
}

// GetInvalidRunErrors returns data quality errors for excluded runs,
// sorted by run_id for deterministic output.
func (a *Aggregator) GetInvalidRunErrors() []string {
	if len(a.InvalidRuns) == 0 {
		return nil
	}

	keys := make([]string, 0, len(a.InvalidRuns))
	for k := range a.InvalidRuns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	errs := make([]string, len(keys))
	for i, runID := range keys {
		errs[i] = fmt.Sprintf("run %s of strategy %s has non-finite statistics", runID, a.InvalidRuns[runID])
	}
	return errs
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
