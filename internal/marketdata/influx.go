package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/observability"
)

// InfluxConfig locates OHLCV points in InfluxDB. Each point carries the
// fields open, high, low, close and volume, tagged with the ticker.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string // default "stock_prices"
	TickerTag   string // default "ticker"
}

// InfluxSource reads bars with a Flux pivot query.
type InfluxSource struct {
	client influxdb2.Client
	cfg    InfluxConfig
	now    func() time.Time
}

// NewInfluxSource creates a source backed by a new InfluxDB client.
func NewInfluxSource(cfg InfluxConfig) (*InfluxSource, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: influx url, org and bucket are required", domain.ErrInvalidParameter)
	}
	if cfg.Measurement == "" {
		cfg.Measurement = "stock_prices"
	}
	if cfg.TickerTag == "" {
		cfg.TickerTag = "ticker"
	}
	return &InfluxSource{
		client: influxdb2.NewClient(cfg.URL, cfg.Token),
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// Name implements Source.
func (s *InfluxSource) Name() string { return "influx" }

// Close releases the client.
func (s *InfluxSource) Close() {
	s.client.Close()
}

// Fetch implements Source. Points are returned at their stored resolution;
// interval only labels the series.
func (s *InfluxSource) Fetch(ctx context.Context, symbol, period, interval string) (series *domain.PriceSeries, err error) {
	started := time.Now()
	defer func() {
		observability.RecordFetch(s.Name(), time.Since(started).Seconds(), err)
	}()

	now := s.now()
	start, err := ParsePeriod(period, now)
	if err != nil {
		return nil, err
	}

	result, err := s.client.QueryAPI(s.cfg.Org).Query(ctx, s.query(symbol, start, now))
	if err != nil {
		return nil, fmt.Errorf("influx query %s: %w", symbol, err)
	}
	defer result.Close()

	var bars []domain.PriceBar
	for result.Next() {
		rec := result.Record()
		vals := make([]float64, 0, 5)
		for _, field := range []string{"open", "high", "low", "close", "volume"} {
			v, ok := rec.ValueByKey(field).(float64)
			if !ok {
				break
			}
			vals = append(vals, v)
		}
		if len(vals) != 5 || vals[3] <= 0 {
			continue
		}
		bars = append(bars, domain.PriceBar{
			TimestampMs: rec.Time().UnixMilli(),
			Open:        vals[0],
			High:        vals[1],
			Low:         vals[2],
			Close:       vals[3],
			Volume:      vals[4],
		})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("influx read %s: %w", symbol, result.Err())
	}

	bars = sortedBars(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return &domain.PriceSeries{Symbol: symbol, Interval: interval, Bars: bars}, nil
}

func (s *InfluxSource) query(symbol string, start, stop time.Time) string {
	return fmt.Sprintf(`
		from(bucket: %s)
		  |> range(start: %s, stop: %s)
		  |> filter(fn: (r) => r._measurement == %s)
		  |> filter(fn: (r) => r[%s] == %s)
		  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
		  |> sort(columns: ["_time"], desc: false)
	`,
		strconv.Quote(s.cfg.Bucket),
		start.UTC().Format(time.RFC3339), stop.UTC().Format(time.RFC3339),
		strconv.Quote(s.cfg.Measurement),
		strconv.Quote(s.cfg.TickerTag), strconv.Quote(symbol),
	)
}
