package marketdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/observability"
)

// SQLiteCache is a read-through cache in front of another Source.
// Entries are keyed by (symbol, period, interval) and expire after ttl.
type SQLiteCache struct {
	db   *sql.DB
	next Source
	ttl  time.Duration
	now  func() time.Time

	mu sync.Mutex // serialises writes
}

// NewSQLiteCache opens (or creates) the cache database at path.
func NewSQLiteCache(path string, next Source, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS price_cache (
			symbol        TEXT NOT NULL,
			period        TEXT NOT NULL,
			interval      TEXT NOT NULL,
			fetched_at_ms INTEGER NOT NULL,
			bars          TEXT NOT NULL,
			PRIMARY KEY (symbol, period, interval)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create price_cache: %w", err)
	}

	return &SQLiteCache{db: db, next: next, ttl: ttl, now: time.Now}, nil
}

// WithClock overrides the clock used for expiry.
func (c *SQLiteCache) WithClock(now func() time.Time) *SQLiteCache {
	c.now = now
	return c
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Name implements Source.
func (c *SQLiteCache) Name() string { return "cache(" + c.next.Name() + ")" }

// Fetch implements Source.
func (c *SQLiteCache) Fetch(ctx context.Context, symbol, period, interval string) (*domain.PriceSeries, error) {
	if bars, ok, err := c.lookup(ctx, symbol, period, interval); err != nil {
		return nil, err
	} else if ok {
		observability.DefaultMetrics.CacheHits.Inc()
		return &domain.PriceSeries{Symbol: symbol, Interval: interval, Bars: bars}, nil
	}
	observability.DefaultMetrics.CacheMisses.Inc()

	series, err := c.next.Fetch(ctx, symbol, period, interval)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, series, period); err != nil {
		return nil, err
	}
	return series, nil
}

func (c *SQLiteCache) lookup(ctx context.Context, symbol, period, interval string) ([]domain.PriceBar, bool, error) {
	var fetchedAt int64
	var payload string
	err := c.db.QueryRowContext(ctx, `
		SELECT fetched_at_ms, bars FROM price_cache
		WHERE symbol = ? AND period = ? AND interval = ?
	`, symbol, period, interval).Scan(&fetchedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache: %w", err)
	}
	if c.now().Sub(time.UnixMilli(fetchedAt)) > c.ttl {
		return nil, false, nil
	}

	var bars []domain.PriceBar
	if err := json.Unmarshal([]byte(payload), &bars); err != nil {
		return nil, false, fmt.Errorf("decode cached bars: %w", err)
	}
	return bars, true, nil
}

func (c *SQLiteCache) store(ctx context.Context, series *domain.PriceSeries, period string) error {
	payload, err := json.Marshal(series.Bars)
	if err != nil {
		return fmt.Errorf("encode bars: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO price_cache (symbol, period, interval, fetched_at_ms, bars)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (symbol, period, interval) DO UPDATE
		SET fetched_at_ms = excluded.fetched_at_ms,
		    bars = excluded.bars
	`, series.Symbol, period, series.Interval, c.now().UnixMilli(), string(payload))
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}
