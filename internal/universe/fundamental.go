package universe

import (
	"context"
	"fmt"

	"github.com/HiNala/stock-agents/internal/domain"
)

// FundamentalsFetcher returns the valuation figures of one symbol.
type FundamentalsFetcher interface {
	Fundamentals(ctx context.Context, symbol string) (*domain.Fundamentals, error)
}

// FundamentalFilter screens a symbol on its fundamentals.
type FundamentalFilter interface {
	Validate() error
	// Accepts reports whether f passes, with the reason when it does not.
	Accepts(f *domain.Fundamentals) (bool, string)
}

// ValueFilter keeps cheap, dividend paying symbols. All three figures
// must be reported.
type ValueFilter struct {
	MaxPE            float64
	MaxPriceToBook   float64
	MinDividendYield float64
}

// DefaultValueFilter returns the standard value screen.
func DefaultValueFilter() ValueFilter {
	return ValueFilter{MaxPE: 30, MaxPriceToBook: 3, MinDividendYield: 0.02}
}

// Validate checks filter parameters.
func (v ValueFilter) Validate() error {
	if v.MaxPE <= 0 || v.MaxPriceToBook <= 0 {
		return fmt.Errorf("%w: value ceilings must be positive", domain.ErrInvalidParameter)
	}
	if v.MinDividendYield < 0 {
		return fmt.Errorf("%w: min dividend yield must be non-negative, got %v", domain.ErrInvalidParameter, v.MinDividendYield)
	}
	return nil
}

// Accepts implements FundamentalFilter.
func (v ValueFilter) Accepts(f *domain.Fundamentals) (bool, string) {
	switch {
	case f.TrailingPE == nil || f.PriceToBook == nil || f.DividendYield == nil:
		return false, "value metrics not reported"
	case *f.TrailingPE > v.MaxPE:
		return false, fmt.Sprintf("P/E %.2f above %.2f", *f.TrailingPE, v.MaxPE)
	case *f.PriceToBook > v.MaxPriceToBook:
		return false, fmt.Sprintf("P/B %.2f above %.2f", *f.PriceToBook, v.MaxPriceToBook)
	case *f.DividendYield < v.MinDividendYield:
		return false, fmt.Sprintf("dividend yield %.4f below %.4f", *f.DividendYield, v.MinDividendYield)
	}
	return true, ""
}

// GrowthFilter keeps symbols growing revenue and earnings fast enough.
type GrowthFilter struct {
	MinRevenueGrowth  float64
	MinEarningsGrowth float64
}

// DefaultGrowthFilter returns the standard growth screen.
func DefaultGrowthFilter() GrowthFilter {
	return GrowthFilter{MinRevenueGrowth: 0.15, MinEarningsGrowth: 0.10}
}

// Validate accepts any floors; negative ones admit shrinking companies.
func (g GrowthFilter) Validate() error { return nil }

// Accepts implements FundamentalFilter.
func (g GrowthFilter) Accepts(f *domain.Fundamentals) (bool, string) {
	switch {
	case f.RevenueGrowth == nil || f.EarningsGrowth == nil:
		return false, "growth metrics not reported"
	case *f.RevenueGrowth < g.MinRevenueGrowth:
		return false, fmt.Sprintf("revenue growth %.4f below %.4f", *f.RevenueGrowth, g.MinRevenueGrowth)
	case *f.EarningsGrowth < g.MinEarningsGrowth:
		return false, fmt.Sprintf("earnings growth %.4f below %.4f", *f.EarningsGrowth, g.MinEarningsGrowth)
	}
	return true, ""
}

// Screen applies filter to each series' fundamentals, preserving input
// order. A symbol whose fundamentals cannot be fetched is rejected; only
// a cancelled ctx or an invalid filter fails the screen.
func Screen(ctx context.Context, src FundamentalsFetcher, filter FundamentalFilter, series []*domain.PriceSeries) ([]*domain.PriceSeries, []Rejection, error) {
	if err := filter.Validate(); err != nil {
		return nil, nil, err
	}
	var kept []*domain.PriceSeries
	var rejected []Rejection
	for _, s := range series {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		f, err := src.Fundamentals(ctx, s.Symbol)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			rejected = append(rejected, Rejection{Symbol: s.Symbol, Reason: "fundamentals: " + err.Error()})
			continue
		}
		if ok, reason := filter.Accepts(f); ok {
			kept = append(kept, s)
		} else {
			rejected = append(rejected, Rejection{Symbol: s.Symbol, Reason: reason})
		}
	}
	return kept, rejected, nil
}
