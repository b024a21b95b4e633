package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/observability"
)

// FundamentalsSource reports valuation figures and dividend history.
type FundamentalsSource interface {
	Fundamentals(ctx context.Context, symbol string) (*domain.Fundamentals, error)

	// Dividends returns the distributions paid within period, oldest first.
	Dividends(ctx context.Context, symbol, period string) ([]domain.Dividend, error)
}

var _ FundamentalsSource = (*YahooSource)(nil)

type yahooValue struct {
	Raw *float64 `json:"raw"`
}

type yahooSummary struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				TrailingPE    yahooValue `json:"trailingPE"`
				DividendYield yahooValue `json:"dividendYield"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				PriceToBook yahooValue `json:"priceToBook"`
			} `json:"defaultKeyStatistics"`
			FinancialData struct {
				RevenueGrowth  yahooValue `json:"revenueGrowth"`
				EarningsGrowth yahooValue `json:"earningsGrowth"`
			} `json:"financialData"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Fundamentals implements FundamentalsSource with the quoteSummary endpoint.
func (s *YahooSource) Fundamentals(ctx context.Context, symbol string) (f *domain.Fundamentals, err error) {
	started := time.Now()
	defer func() {
		observability.RecordFetch("yahoo_summary", time.Since(started).Seconds(), err)
	}()

	q := url.Values{}
	q.Set("modules", "summaryDetail,defaultKeyStatistics,financialData")

	var summary yahooSummary
	if err := s.get(ctx, s.SummaryURL, symbol, q, &summary); err != nil {
		return nil, err
	}
	if e := summary.QuoteSummary.Error; e != nil {
		return nil, fmt.Errorf("yahoo api error for %s: %s", symbol, e.Description)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: no fundamentals for %s", domain.ErrInsufficientData, symbol)
	}

	r := summary.QuoteSummary.Result[0]
	return &domain.Fundamentals{
		Symbol:         symbol,
		TrailingPE:     r.SummaryDetail.TrailingPE.Raw,
		PriceToBook:    r.DefaultKeyStatistics.PriceToBook.Raw,
		DividendYield:  r.SummaryDetail.DividendYield.Raw,
		RevenueGrowth:  r.FinancialData.RevenueGrowth.Raw,
		EarningsGrowth: r.FinancialData.EarningsGrowth.Raw,
	}, nil
}

// Dividends implements FundamentalsSource with the chart endpoint's dividend events.
func (s *YahooSource) Dividends(ctx context.Context, symbol, period string) (divs []domain.Dividend, err error) {
	started := time.Now()
	defer func() {
		observability.RecordFetch("yahoo_dividends", time.Since(started).Seconds(), err)
	}()

	now := s.now()
	start, err := ParsePeriod(period, now)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("events", "div")
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(now.Unix(), 10))

	var chart yahooChart
	if err := s.get(ctx, s.BaseURL, symbol, q, &chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error for %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, nil
	}

	for _, d := range chart.Chart.Result[0].Events.Dividends {
		if d.Amount <= 0 {
			continue
		}
		divs = append(divs, domain.Dividend{TimestampMs: d.Date * 1000, Amount: d.Amount})
	}
	sort.Slice(divs, func(i, j int) bool { return divs[i].TimestampMs < divs[j].TimestampMs })
	return divs, nil
}
