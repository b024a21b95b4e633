// Package universe selects tradeable symbols from fetched price series.
package universe

import (
	"fmt"
	"math"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/signals"
)

// MomentumFilter keeps liquid, fairly priced symbols with positive
// momentum on the latest bar.
type MomentumFilter struct {
	MinVolume float64 // minimum Lookback-bar average volume
	MinPrice  float64
	MaxPrice  float64 // 0 disables the cap
	Lookback  int
}

// DefaultMomentumFilter returns the standard filter settings.
func DefaultMomentumFilter() MomentumFilter {
	return MomentumFilter{
		MinVolume: 1_000_000,
		MinPrice:  5.0,
		Lookback:  20,
	}
}

// Rejection explains why a symbol was filtered out.
type Rejection struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Validate checks filter parameters.
func (f MomentumFilter) Validate() error {
	switch {
	case f.Lookback <= 0:
		return fmt.Errorf("%w: lookback must be positive, got %d", domain.ErrInvalidParameter, f.Lookback)
	case f.MinVolume < 0 || f.MinPrice < 0:
		return fmt.Errorf("%w: minimums must be non-negative", domain.ErrInvalidParameter)
	case f.MaxPrice != 0 && f.MaxPrice < f.MinPrice:
		return fmt.Errorf("%w: max price %v below min price %v", domain.ErrInvalidParameter, f.MaxPrice, f.MinPrice)
	}
	return nil
}

// Qualifies reports whether series passes the filter, with the reason
// when it does not.
func (f MomentumFilter) Qualifies(series *domain.PriceSeries) (bool, string) {
	n := series.Len()
	if n < f.Lookback+1 {
		return false, fmt.Sprintf("%d bars, need %d", n, f.Lookback+1)
	}

	volMA, err := signals.SMA(series.Volumes(), f.Lookback)
	if err != nil {
		return false, err.Error()
	}
	last := series.Last()
	avgVolume := volMA[n-1]
	if math.IsNaN(avgVolume) || avgVolume < f.MinVolume {
		return false, fmt.Sprintf("average volume %.0f below %.0f", avgVolume, f.MinVolume)
	}
	if last.Close < f.MinPrice {
		return false, fmt.Sprintf("close %.2f below %.2f", last.Close, f.MinPrice)
	}
	if f.MaxPrice > 0 && last.Close > f.MaxPrice {
		return false, fmt.Sprintf("close %.2f above %.2f", last.Close, f.MaxPrice)
	}

	momentum := last.Close/series.Bars[n-1-f.Lookback].Close - 1
	if !(momentum > 0) {
		return false, fmt.Sprintf("%d-bar momentum %.4f not positive", f.Lookback, momentum)
	}
	return true, ""
}

// Apply partitions the universe, preserving input order.
func (f MomentumFilter) Apply(series []*domain.PriceSeries) ([]*domain.PriceSeries, []Rejection, error) {
	if err := f.Validate(); err != nil {
		return nil, nil, err
	}
	var kept []*domain.PriceSeries
	var rejected []Rejection
	for _, s := range series {
		if ok, reason := f.Qualifies(s); ok {
			kept = append(kept, s)
		} else {
			rejected = append(rejected, Rejection{Symbol: s.Symbol, Reason: reason})
		}
	}
	return kept, rejected, nil
}
