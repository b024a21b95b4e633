package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/pipeline"
	"github.com/HiNala/stock-agents/internal/recommend"
	"github.com/HiNala/stock-agents/internal/storage"
	"github.com/HiNala/stock-agents/internal/storage/memory"
)

type fakePipeline struct {
	mu    sync.Mutex
	calls []domain.Preferences
	block chan struct{}
	err   error
}

func (f *fakePipeline) Run(ctx context.Context, prefs domain.Preferences) (*pipeline.RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prefs)
	n := len(f.calls)
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	run := &domain.RecommendationRun{
		RunID:         fmt.Sprintf("run-%d", n),
		Timestamp:     time.Date(2024, 1, 2, 16, 30, 0, 0, time.UTC),
		RiskTolerance: prefs.RiskTolerance,
		TimeHorizon:   prefs.TimeHorizon,
		Evaluated:     2,
	}
	return &pipeline.RunResult{Output: &recommend.Output{Run: run}}, nil
}

type fakeBacktests struct {
	symbol   string
	interval string
	cfg      domain.StrategyConfig
	costs    domain.CostModel
	err      error
}

func (f *fakeBacktests) Run(ctx context.Context, symbol, interval string, cfg domain.StrategyConfig, costs domain.CostModel) (*domain.BacktestRun, *domain.BacktestResult, error) {
	f.symbol, f.interval, f.cfg, f.costs = symbol, interval, cfg, costs
	if f.err != nil {
		return nil, nil, f.err
	}
	run := &domain.BacktestRun{RunID: "bt-1", Symbol: symbol, StrategyID: cfg.String(), StrategyType: cfg.StrategyType}
	return run, &domain.BacktestResult{}, nil
}

func newTestHandler(p PipelineRunner, bt BacktestRunner, runs storage.BacktestRunStore, hub *Hub) *Handler {
	return NewHandler(Options{
		Pipeline:    p,
		Backtests:   bt,
		Runs:        runs,
		Hub:         hub,
		Preferences: domain.DefaultPreferences,
		Costs:       domain.DefaultCostModel,
	})
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	router := SetupRoutes(newTestHandler(&fakePipeline{}, nil, nil, nil))

	rec := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestLatestRecommendations_NoneYet(t *testing.T) {
	router := SetupRoutes(newTestHandler(&fakePipeline{}, nil, nil, nil))

	rec := do(t, router, http.MethodGet, "/api/v1/recommendations/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestCreateRecommendations_DefaultsAndLatest(t *testing.T) {
	fp := &fakePipeline{}
	router := SetupRoutes(newTestHandler(fp, nil, nil, nil))

	rec := do(t, router, http.MethodPost, "/api/v1/recommendations", `{"risk_tolerance":"high"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, fp.calls, 1)
	assert.Equal(t, domain.RiskHigh, fp.calls[0].RiskTolerance)
	assert.Equal(t, domain.DefaultPreferences.TimeHorizon, fp.calls[0].TimeHorizon)
	assert.Equal(t, domain.DefaultPreferences.MaxPositions, fp.calls[0].MaxPositions)

	rec = do(t, router, http.MethodGet, "/api/v1/recommendations/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, "high", body["risk_tolerance"])
}

func TestCreateRecommendations_EmptyBodyUsesDefaults(t *testing.T) {
	fp := &fakePipeline{}
	router := SetupRoutes(newTestHandler(fp, nil, nil, nil))

	rec := do(t, router, http.MethodPost, "/api/v1/recommendations", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, fp.calls, 1)
	assert.Equal(t, domain.DefaultPreferences, fp.calls[0])
}

func TestCreateRecommendations_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed body", `{"risk_tolerance":`, nil, http.StatusBadRequest},
		{"unknown field", `{"tolerance":"low"}`, nil, http.StatusBadRequest},
		{"invalid preferences", `{}`, fmt.Errorf("%w: risk tolerance", domain.ErrInvalidParameter), http.StatusBadRequest},
		{"empty universe", `{}`, fmt.Errorf("filter: %w", domain.ErrInsufficientData), http.StatusUnprocessableEntity},
		{"source outage", `{}`, fmt.Errorf("phase 1 (fetch) failed: boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := SetupRoutes(newTestHandler(&fakePipeline{err: tt.err}, nil, nil, nil))

			rec := do(t, router, http.MethodPost, "/api/v1/recommendations", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRunRecommendations_RejectsConcurrentRun(t *testing.T) {
	fp := &fakePipeline{block: make(chan struct{})}
	h := newTestHandler(fp, nil, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := h.RunRecommendations(context.Background(), domain.DefaultPreferences)
		done <- err
	}()

	require.Eventually(t, func() bool {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		return len(fp.calls) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := h.RunRecommendations(context.Background(), domain.DefaultPreferences)
	assert.ErrorIs(t, err, ErrRunInProgress)

	rec := do(t, SetupRoutes(h), http.MethodPost, "/api/v1/recommendations", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(fp.block)
	require.NoError(t, <-done)
	require.NotNil(t, h.Latest())
	assert.Equal(t, "run-1", h.Latest().RunID)
}

func TestStatus(t *testing.T) {
	h := newTestHandler(&fakePipeline{}, nil, nil, NewHub(nil))
	_, err := h.RunRecommendations(context.Background(), domain.DefaultPreferences)
	require.NoError(t, err)

	rec := do(t, SetupRoutes(h), http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, 1, resp.PipelineRuns)
	assert.False(t, resp.PipelineRunning)
	assert.Equal(t, "run-1", resp.LatestRunID)
	assert.Equal(t, 0, resp.WebsocketClients)
}

func TestCreateBacktest(t *testing.T) {
	bt := &fakeBacktests{}
	router := SetupRoutes(newTestHandler(&fakePipeline{}, bt, nil, nil))

	body := `{"symbol":" aapl ","strategy":{"strategy_type":"momentum","lookback":20,"holding_period":5}}`
	rec := do(t, router, http.MethodPost, "/api/v1/backtests", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "AAPL", bt.symbol)
	assert.Equal(t, "1d", bt.interval)
	assert.Equal(t, domain.DefaultCostModel, bt.costs)
	assert.Equal(t, "momentum_lb20_h5", bt.cfg.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "run")
	assert.Contains(t, resp, "result")
}

func TestCreateBacktest_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"missing symbol", `{"strategy":{"strategy_type":"momentum","lookback":20}}`, nil, http.StatusBadRequest},
		{"no bars", `{"symbol":"ZZZ"}`, fmt.Errorf("load ZZZ/1d: %w", storage.ErrNotFound), http.StatusNotFound},
		{"bad strategy", `{"symbol":"AAPL"}`, fmt.Errorf("%w: lookback", domain.ErrInvalidParameter), http.StatusBadRequest},
		{"short history", `{"symbol":"AAPL"}`, fmt.Errorf("%w: need 21 bars", domain.ErrInsufficientData), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := SetupRoutes(newTestHandler(&fakePipeline{}, &fakeBacktests{err: tt.err}, nil, nil))

			rec := do(t, router, http.MethodPost, "/api/v1/backtests", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateBacktest_NotConfigured(t *testing.T) {
	router := SetupRoutes(newTestHandler(&fakePipeline{}, nil, nil, nil))

	rec := do(t, router, http.MethodPost, "/api/v1/backtests", `{"symbol":"AAPL"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetBacktests(t *testing.T) {
	runs := memory.NewBacktestRunStore()
	ctx := context.Background()
	require.NoError(t, runs.Insert(ctx, &domain.BacktestRun{RunID: "r2", Symbol: "AAPL", StrategyID: "momentum_lb20_h5"}))
	require.NoError(t, runs.Insert(ctx, &domain.BacktestRun{RunID: "r1", Symbol: "AAPL", StrategyID: "mean_reversion_lb20_sd2.0"}))
	require.NoError(t, runs.Insert(ctx, &domain.BacktestRun{RunID: "r3", Symbol: "MSFT", StrategyID: "momentum_lb20_h5"}))

	router := SetupRoutes(newTestHandler(&fakePipeline{}, nil, runs, nil))

	rec := do(t, router, http.MethodGet, "/api/v1/backtests/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []domain.BacktestRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].RunID)
	assert.Equal(t, "r2", got[1].RunID)

	rec = do(t, router, http.MethodGet, "/api/v1/backtests/NONE", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

type fakeFundamentals struct {
	period string
}

func (f *fakeFundamentals) Fundamentals(_ context.Context, symbol string) (*domain.Fundamentals, error) {
	if symbol != "KO" {
		return nil, fmt.Errorf("%w: no fundamentals for %s", domain.ErrInsufficientData, symbol)
	}
	pe := 22.5
	return &domain.Fundamentals{Symbol: symbol, TrailingPE: &pe}, nil
}

func (f *fakeFundamentals) Dividends(_ context.Context, _, period string) ([]domain.Dividend, error) {
	f.period = period
	return []domain.Dividend{{TimestampMs: 1_700_000_000_000, Amount: 0.46}}, nil
}

func TestGetFundamentals(t *testing.T) {
	src := &fakeFundamentals{}
	router := SetupRoutes(NewHandler(Options{Pipeline: &fakePipeline{}, Fundamentals: src}))

	rec := do(t, router, http.MethodGet, "/api/v1/fundamentals/ko?period=5y", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got FundamentalsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "5y", src.period)
	require.NotNil(t, got.Fundamentals.TrailingPE)
	assert.Equal(t, 22.5, *got.Fundamentals.TrailingPE)
	assert.Nil(t, got.Fundamentals.PriceToBook)
	require.Len(t, got.Dividends, 1)
	assert.Equal(t, 0.46, got.Dividends[0].Amount)

	rec = do(t, router, http.MethodGet, "/api/v1/fundamentals/ZZZ", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetFundamentals_NotConfigured(t *testing.T) {
	router := SetupRoutes(newTestHandler(&fakePipeline{}, nil, nil, nil))

	rec := do(t, router, http.MethodGet, "/api/v1/fundamentals/KO", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	router := SetupRoutes(newTestHandler(&fakePipeline{}, nil, nil, nil))

	rec := do(t, router, http.MethodDelete, "/api/v1/recommendations", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebsocket_ReceivesCompletedRun(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	h := newTestHandler(&fakePipeline{}, nil, nil, hub)

	server := httptest.NewServer(SetupRoutes(h))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	_, err = h.RunRecommendations(context.Background(), domain.DefaultPreferences)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type string `json:"type"`
		Run  struct {
			RunID string `json:"run_id"`
		} `json:"run"`
	}
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "recommendation_run", got.Type)
	assert.Equal(t, "run-1", got.Run.RunID)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.NoError(t, hub.Broadcast(RunMessage{Type: "noop"}))
}
