package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HiNala/stock-agents/internal/domain"
)

const chartBody = `{"chart":{"result":[{
	"timestamp":[1700000000,1700086400,1700172800],
	"indicators":{"quote":[{
		"open":[10,11,null],
		"high":[10.5,11.5,12.5],
		"low":[9.5,10.5,11.5],
		"close":[10.2,11.2,12.2],
		"volume":[1000,2000,3000]
	}]}
}],"error":null}}`

func TestYahooSource_Fetch(t *testing.T) {
	var gotPath, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	now := time.Unix(1700200000, 0)
	src := NewYahooSource(YahooOptions{BaseURL: srv.URL, RequestsPerSecond: 100}).
		WithClock(func() time.Time { return now })

	series, err := src.Fetch(context.Background(), "SPX", "1mo", "1d")
	require.NoError(t, err)

	assert.Equal(t, "/^GSPC", gotPath)
	assert.Equal(t, "1d", gotInterval)
	assert.Equal(t, "SPX", series.Symbol)
	require.Len(t, series.Bars, 2, "row with a null open is dropped")
	assert.Equal(t, int64(1700000000000), series.Bars[0].TimestampMs)
	assert.InDelta(t, 11.2, series.Bars[1].Close, 1e-12)
	assert.InDelta(t, 2000.0, series.Bars[1].Volume, 1e-12)
}

func TestYahooSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "http status",
			status: http.StatusNotFound,
			body:   `{}`,
			check:  func(t *testing.T, err error) { assert.Contains(t, err.Error(), "status 404") },
		},
		{
			name:   "api error",
			status: http.StatusOK,
			body:   `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`,
			check:  func(t *testing.T, err error) { assert.Contains(t, err.Error(), "No data found") },
		},
		{
			name:   "empty result",
			status: http.StatusOK,
			body:   `{"chart":{"result":[{"timestamp":[],"indicators":{"quote":[{}]}}],"error":null}}`,
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, domain.ErrInsufficientData))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewYahooSource(YahooOptions{BaseURL: srv.URL, RequestsPerSecond: 100}).
				Fetch(context.Background(), "AAPL", "1y", "1d")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestYahooSource_InvalidPeriod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	_, err := NewYahooSource(YahooOptions{BaseURL: srv.URL}).Fetch(context.Background(), "AAPL", "forever", "1d")
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestChartBars_SkipsNonPositiveClose(t *testing.T) {
	body := strings.Replace(chartBody, `"close":[10.2,11.2,12.2]`, `"close":[10.2,0,12.2]`, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	series, err := NewYahooSource(YahooOptions{BaseURL: srv.URL, RequestsPerSecond: 100}).
		Fetch(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	assert.Len(t, series.Bars, 1)
}
