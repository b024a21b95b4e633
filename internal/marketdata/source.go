// Package marketdata provides price series sources: an HTTP chart API,
// InfluxDB, the local price-bar store and a SQLite read-through cache.
package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/HiNala/stock-agents/internal/domain"
)

// Source fetches an OHLCV series for one symbol.
type Source interface {
	// Fetch returns the bars of symbol covering period at the given interval.
	// Bars are strictly increasing in time.
	Fetch(ctx context.Context, symbol, period, interval string) (*domain.PriceSeries, error)

	// Name identifies the source in metrics and logs.
	Name() string
}

// ErrNoData is returned when a source has no bars for the request.
var ErrNoData = fmt.Errorf("%w: no bars returned", domain.ErrInsufficientData)

// ParsePeriod returns the start of a lookback period ending at now.
// Accepted forms: Nd, Nwk, Nmo, Ny, ytd, max.
func ParsePeriod(period string, now time.Time) (time.Time, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	switch p {
	case "ytd":
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), nil
	case "max":
		return time.Unix(0, 0).UTC(), nil
	}

	for _, unit := range []string{"wk", "mo", "d", "y"} {
		if !strings.HasSuffix(p, unit) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(p, unit))
		if err != nil || n <= 0 {
			break
		}
		switch unit {
		case "d":
			return now.AddDate(0, 0, -n), nil
		case "wk":
			return now.AddDate(0, 0, -7*n), nil
		case "mo":
			return now.AddDate(0, -n, 0), nil
		default:
			return now.AddDate(-n, 0, 0), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised period %q", domain.ErrInvalidParameter, period)
}

// sortedBars drops bars whose timestamp does not advance,
// keeping the series strictly increasing.
func sortedBars(bars []domain.PriceBar) []domain.PriceBar {
	out := bars[:0]
	for _, b := range bars {
		if len(out) > 0 && b.TimestampMs <= out[len(out)-1].TimestampMs {
			continue
		}
		out = append(out, b)
	}
	return out
}
