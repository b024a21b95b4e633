package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

const backtestRunColumns = `
	run_id, symbol, strategy_id, strategy_type,
	lookback, holding_period, std_devs, commission_rate, initial_capital,
	start_ms, end_ms, bar_count,
	total_return, annualized_return, annualized_volatility, sharpe_ratio,
	max_drawdown, win_rate, trade_count, final_equity,
	created_at_ms`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.BacktestRun) (err error) {
	defer observeQuery("insert_backtest_run", time.Now(), &err)

	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO backtest_runs (` + backtestRunColumns + `) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8, $9,
		$10, $11, $12,
		$13, $14, $15, $16,
		$17, $18, $19, $20,
		$21
	)`

	_, err = s.pool.Exec(ctx, query,
		r.RunID, r.Symbol, r.StrategyID, string(r.StrategyType),
		r.Lookback, r.HoldingPeriod, r.StdDevs, r.CommissionRate, r.InitialCapital,
		r.StartMs, r.EndMs, r.BarCount,
		r.TotalReturn, r.AnnualizedReturn, r.AnnualizedVolatility, r.SharpeRatio,
		r.MaxDrawdown, r.WinRate, r.TradeCount, r.FinalEquity,
		r.CreatedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `SELECT ` + backtestRunColumns + ` FROM backtest_runs WHERE run_id = $1`

	r, err := scanBacktestRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// GetBySymbol retrieves all runs for a symbol, ordered by strategy_id, run_id.
func (s *BacktestRunStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.BacktestRun, error) {
	query := `SELECT ` + backtestRunColumns + ` FROM backtest_runs
		WHERE symbol = $1
		ORDER BY strategy_id ASC, run_id ASC`
	return s.queryRuns(ctx, "get backtest runs by symbol", query, symbol)
}

// GetByStrategy retrieves all runs for a strategy, ordered by symbol, run_id.
func (s *BacktestRunStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.BacktestRun, error) {
	query := `SELECT ` + backtestRunColumns + ` FROM backtest_runs
		WHERE strategy_id = $1
		ORDER BY symbol ASC, run_id ASC`
	return s.queryRuns(ctx, "get backtest runs by strategy", query, strategyID)
}

// ListStrategyIDs returns the distinct strategy IDs, sorted ASC.
func (s *BacktestRunStore) ListStrategyIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT strategy_id FROM backtest_runs ORDER BY strategy_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list strategy ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan strategy id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *BacktestRunStore) queryRuns(ctx context.Context, op, query string, arg string) (_ []*domain.BacktestRun, err error) {
	defer observeQuery("select_backtest_runs", time.Now(), &err)

	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return runs, nil
}

func scanBacktestRun(row pgx.Row) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	var strategyType string
	err := row.Scan(
		&r.RunID, &r.Symbol, &r.StrategyID, &strategyType,
		&r.Lookback, &r.HoldingPeriod, &r.StdDevs, &r.CommissionRate, &r.InitialCapital,
		&r.StartMs, &r.EndMs, &r.BarCount,
		&r.TotalReturn, &r.AnnualizedReturn, &r.AnnualizedVolatility, &r.SharpeRatio,
		&r.MaxDrawdown, &r.WinRate, &r.TradeCount, &r.FinalEquity,
		&r.CreatedAtMs,
	)
	if err != nil {
		return nil, err
	}
	r.StrategyType = domain.StrategyType(strategyType)
	return &r, nil
}
