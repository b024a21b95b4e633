package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/observability"
)

// Endpoint roots of the Yahoo Finance API.
const (
	DefaultYahooBaseURL    = "https://query1.finance.yahoo.com/v8/finance/chart"
	DefaultYahooSummaryURL = "https://query2.finance.yahoo.com/v10/finance/quoteSummary"
)

// YahooSource fetches bars from the Yahoo Finance chart API.
type YahooSource struct {
	BaseURL    string
	SummaryURL string
	Client     *http.Client
	SymbolMap  map[string]string // internal symbol -> Yahoo ticker

	limiter *rate.Limiter
	now     func() time.Time
}

// YahooOptions configures a YahooSource. Zero values pick defaults.
type YahooOptions struct {
	BaseURL           string
	SummaryURL        string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewYahooSource creates a rate-limited Yahoo chart source.
func NewYahooSource(opts YahooOptions) *YahooSource {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultYahooBaseURL
	}
	if opts.SummaryURL == "" {
		opts.SummaryURL = DefaultYahooSummaryURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &YahooSource{
		BaseURL:    opts.BaseURL,
		SummaryURL: opts.SummaryURL,
		Client:     &http.Client{Timeout: opts.Timeout},
		SymbolMap: map[string]string{
			"SPX":   "^GSPC",
			"SP500": "^GSPC",
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		now:     time.Now,
	}
}

// WithClock overrides the clock used to resolve periods.
func (s *YahooSource) WithClock(now func() time.Time) *YahooSource {
	s.now = now
	return s
}

// Name implements Source.
func (s *YahooSource) Name() string { return "yahoo" }

type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
			Events struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
			} `json:"events"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch implements Source.
func (s *YahooSource) Fetch(ctx context.Context, symbol, period, interval string) (series *domain.PriceSeries, err error) {
	started := time.Now()
	defer func() {
		observability.RecordFetch(s.Name(), time.Since(started).Seconds(), err)
	}()

	now := s.now()
	start, err := ParsePeriod(period, now)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("interval", interval)
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(now.Unix(), 10))

	var chart yahooChart
	if err := s.get(ctx, s.BaseURL, symbol, q, &chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error for %s: %s", symbol, chart.Chart.Error.Description)
	}

	bars := chartBars(chart)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return &domain.PriceSeries{Symbol: symbol, Interval: interval, Bars: bars}, nil
}

func (s *YahooSource) ticker(symbol string) string {
	if mapped, ok := s.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// get waits for the limiter, requests root/ticker?q and decodes the JSON body into v.
func (s *YahooSource) get(ctx context.Context, root, symbol string, q url.Values, v any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("yahoo rate limit: %w", err)
	}

	u := fmt.Sprintf("%s/%s?%s", root, url.PathEscape(s.ticker(symbol)), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yahoo %s: status %d", symbol, resp.StatusCode)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("yahoo decode: %w", err)
	}
	return nil
}

// chartBars converts the first chart result, dropping rows with any missing value.
func chartBars(chart yahooChart) []domain.PriceBar {
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil
	}
	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	at := func(vals []*float64, i int) (float64, bool) {
		if i >= len(vals) || vals[i] == nil {
			return 0, false
		}
		return *vals[i], true
	}

	bars := make([]domain.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, ok1 := at(quote.Open, i)
		h, ok2 := at(quote.High, i)
		l, ok3 := at(quote.Low, i)
		c, ok4 := at(quote.Close, i)
		v, ok5 := at(quote.Volume, i)
		if !(ok1 && ok2 && ok3 && ok4 && ok5) || c <= 0 {
			continue
		}
		bars = append(bars, domain.PriceBar{
			TimestampMs: ts * 1000,
			Open:        o,
			High:        h,
			Low:         l,
			Close:       c,
			Volume:      v,
		})
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].TimestampMs < bars[j].TimestampMs })
	return sortedBars(bars)
}
