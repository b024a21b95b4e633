package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/storage"
)

// PriceBarStore implements storage.PriceBarStore using ClickHouse.
type PriceBarStore struct {
	conn *Conn
}

// NewPriceBarStore creates a new PriceBarStore.
func NewPriceBarStore(conn *Conn) *PriceBarStore {
	return &PriceBarStore{conn: conn}
}

var _ storage.PriceBarStore = (*PriceBarStore)(nil)

// InsertBulk adds the bars of a series. Fails entire batch on a duplicate
// (symbol, interval, timestamp_ms), in the batch or already stored.
func (s *PriceBarStore) InsertBulk(ctx context.Context, series *domain.PriceSeries) (err error) {
	defer observeQuery("insert_price_bars", time.Now(), &err)

	if series == nil || series.Symbol == "" || series.Interval == "" {
		return storage.ErrInvalidInput
	}
	if len(series.Bars) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(series.Bars))
	minTs, maxTs := series.Bars[0].TimestampMs, series.Bars[0].TimestampMs
	for _, b := range series.Bars {
		if _, exists := seen[b.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		seen[b.TimestampMs] = struct{}{}
		minTs = min(minTs, b.TimestampMs)
		maxTs = max(maxTs, b.TimestampMs)
	}

	// one range query instead of one lookup per bar
	existing, err := s.timestamps(ctx, series.Symbol, series.Interval, minTs, maxTs)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, ts := range existing {
		if _, clash := seen[ts]; clash {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_bars (
			symbol, interval, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range series.Bars {
		err = batch.Append(
			series.Symbol, series.Interval, b.TimestampMs,
			b.Open, b.High, b.Low, b.Close, b.Volume,
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

// GetBySymbol retrieves all bars for a symbol, ordered by timestamp ASC.
func (s *PriceBarStore) GetBySymbol(ctx context.Context, symbol, interval string) (*domain.PriceSeries, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM price_bars FINAL
		WHERE symbol = ? AND interval = ?
		ORDER BY timestamp_ms ASC
	`
	return s.query(ctx, symbol, interval, query, symbol, interval)
}

// GetByTimeRange retrieves bars within [start, end] (inclusive).
func (s *PriceBarStore) GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) (*domain.PriceSeries, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM price_bars FINAL
		WHERE symbol = ? AND interval = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`
	return s.query(ctx, symbol, interval, query, symbol, interval, start, end)
}

// ListSymbols returns all symbols with bars at the interval, sorted ASC.
func (s *PriceBarStore) ListSymbols(ctx context.Context, interval string) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT symbol FROM price_bars
		WHERE interval = ?
		ORDER BY symbol ASC
	`, interval)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *PriceBarStore) query(ctx context.Context, symbol, interval, query string, args ...any) (_ *domain.PriceSeries, err error) {
	defer observeQuery("select_price_bars", time.Now(), &err)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query price bars: %w", err)
	}
	defer rows.Close()

	bars, err := scanPriceBars(rows)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, storage.ErrNotFound
	}
	return &domain.PriceSeries{Symbol: symbol, Interval: interval, Bars: bars}, nil
}

func (s *PriceBarStore) timestamps(ctx context.Context, symbol, interval string, start, end int64) ([]int64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT timestamp_ms FROM price_bars
		WHERE symbol = ? AND interval = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
	`, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func scanPriceBars(rows chRows) ([]domain.PriceBar, error) {
	var bars []domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		if err := rows.Scan(&b.TimestampMs, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price bar row: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price bar rows: %w", err)
	}
	return bars, nil
}
