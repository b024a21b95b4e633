package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

// StrategyAggregateStore implements storage.StrategyAggregateStore using ClickHouse.
type StrategyAggregateStore struct {
	conn *Conn
}

// NewStrategyAggregateStore creates a new StrategyAggregateStore.
func NewStrategyAggregateStore(conn *Conn) *StrategyAggregateStore {
	return &StrategyAggregateStore{conn: conn}
}

var _ storage.StrategyAggregateStore = (*StrategyAggregateStore)(nil)

const aggregateColumns = `
	strategy_id, strategy_type,
	total_runs, total_symbols, profitable,
	return_mean, return_median, return_p10, return_p90,
	return_min, return_max, return_stddev,
	sharpe_mean, win_rate_mean, trades_mean,
	worst_drawdown`

// Insert adds a new aggregate. Returns ErrDuplicateKey if strategy_id exists.
func (s *StrategyAggregateStore) Insert(ctx context.Context, a *domain.StrategyAggregate) error {
	return s.InsertBulk(ctx, []*domain.StrategyAggregate{a})
}

// InsertBulk adds multiple aggregates. Fails entire batch on any duplicate.
func (s *StrategyAggregateStore) InsertBulk(ctx context.Context, aggregates []*domain.StrategyAggregate) (err error) {
	if len(aggregates) == 0 {
		return nil
	}
	defer observeQuery("insert_strategy_aggregates", time.Now(), &err)

	seen := make(map[string]struct{}, len(aggregates))
	for _, a := range aggregates {
		if a == nil || a.StrategyID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[a.StrategyID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[a.StrategyID] = struct{}{}
	}

	for _, a := range aggregates {
		n, err := s.conn.count(ctx, `SELECT count(*) FROM strategy_aggregates FINAL WHERE strategy_id = ?`, a.StrategyID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	return s.write(ctx, aggregates)
}

// Upsert stores a, replacing any aggregate with the same strategy_id.
// The ReplacingMergeTree keeps the last inserted row and reads use FINAL.
func (s *StrategyAggregateStore) Upsert(ctx context.Context, a *domain.StrategyAggregate) (err error) {
	if a == nil || a.StrategyID == "" {
		return storage.ErrInvalidInput
	}
	defer observeQuery("upsert_strategy_aggregate", time.Now(), &err)
	return s.write(ctx, []*domain.StrategyAggregate{a})
}

func (s *StrategyAggregateStore) write(ctx context.Context, aggregates []*domain.StrategyAggregate) error {
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO strategy_aggregates (`+aggregateColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, a := range aggregates {
		err = batch.Append(
			a.StrategyID, string(a.StrategyType),
			int32(a.TotalRuns), int32(a.TotalSymbols), int32(a.Profitable),
			a.ReturnMean, a.ReturnMedian, a.ReturnP10, a.ReturnP90,
			a.ReturnMin, a.ReturnMax, a.ReturnStddev,
			a.SharpeMean, a.WinRateMean, a.TradesMean,
			a.WorstDrawdown,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByStrategyID retrieves an aggregate. Returns ErrNotFound if not exists.
func (s *StrategyAggregateStore) GetByStrategyID(ctx context.Context, strategyID string) (*domain.StrategyAggregate, error) {
	rows, err := s.conn.Query(ctx, `SELECT `+aggregateColumns+`
		FROM strategy_aggregates FINAL
		WHERE strategy_id = ?
		LIMIT 1`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("query by strategy id: %w", err)
	}
	defer rows.Close()

	aggs, err := scanStrategyAggregates(rows)
	if err != nil {
		return nil, err
	}
	if len(aggs) == 0 {
		return nil, storage.ErrNotFound
	}
	return aggs[0], nil
}

// GetAll retrieves all aggregates ordered by strategy_id ASC.
func (s *StrategyAggregateStore) GetAll(ctx context.Context) (_ []*domain.StrategyAggregate, err error) {
	defer observeQuery("select_strategy_aggregates", time.Now(), &err)
	rows, err := s.conn.Query(ctx, `SELECT `+aggregateColumns+`
		FROM strategy_aggregates FINAL
		ORDER BY strategy_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanStrategyAggregates(rows)
}

func scanStrategyAggregates(rows chRows) ([]*domain.StrategyAggregate, error) {
	var aggregates []*domain.StrategyAggregate

	for rows.Next() {
		var a domain.StrategyAggregate
		var strategyType string
		var totalRuns, totalSymbols, profitable int32
		err := rows.Scan(
			&a.StrategyID, &strategyType,
			&totalRuns, &totalSymbols, &profitable,
			&a.ReturnMean, &a.ReturnMedian, &a.ReturnP10, &a.ReturnP90,
			&a.ReturnMin, &a.ReturnMax, &a.ReturnStddev,
			&a.SharpeMean, &a.WinRateMean, &a.TradesMean,
			&a.WorstDrawdown,
		)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		a.StrategyType = domain.StrategyType(strategyType)
		a.TotalRuns = int(totalRuns)
		a.TotalSymbols = int(totalSymbols)
		a.Profitable = int(profitable)
		aggregates = append(aggregates, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}

	return aggregates, nil
}
