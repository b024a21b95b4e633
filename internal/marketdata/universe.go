package marketdata

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/HiNala/stock-agents/internal/domain"
)

// DefaultConcurrency bounds parallel fetches.
const DefaultConcurrency = 4

// FetchResult is the outcome of fetching a universe.
type FetchResult struct {
	Series   []*domain.PriceSeries // in symbol input order, failures omitted
	Failures []domain.Failure      // in symbol input order
}

// FetchUniverse fetches every symbol with at most concurrency requests in
// flight. A failed symbol becomes a Failure and never aborts the batch;
// only cancellation of ctx does.
func FetchUniverse(ctx context.Context, src Source, symbols []string, period, interval string, concurrency int) (*FetchResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	series := make([]*domain.PriceSeries, len(symbols))
	errs := make([]error, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := src.Fetch(gctx, sym, period, interval)
			if err == nil {
				err = s.Validate()
			}
			series[i], errs[i] = s, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &FetchResult{}
	for i, sym := range symbols {
		if errs[i] != nil {
			out.Failures = append(out.Failures, domain.NewFailure(sym, errs[i]))
			continue
		}
		out.Series = append(out.Series, series[i])
	}
	return out, nil
}
