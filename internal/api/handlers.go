package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/pipeline"
	"github.com/HiNala/stock-agents/internal/storage"
)

// ErrRunInProgress is returned when a recommendation run is requested
// while another one is still executing.
var ErrRunInProgress = errors.New("recommendation run already in progress")

// PipelineRunner executes one full analysis run.
type PipelineRunner interface {
	Run(ctx context.Context, prefs domain.Preferences) (*pipeline.RunResult, error)
}

// BacktestRunner backtests one stored symbol.
type BacktestRunner interface {
	Run(ctx context.Context, symbol, interval string, cfg domain.StrategyConfig, costs domain.CostModel) (*domain.BacktestRun, *domain.BacktestResult, error)
}

// FundamentalsSource reports valuation figures and dividend history.
type FundamentalsSource interface {
	Fundamentals(ctx context.Context, symbol string) (*domain.Fundamentals, error)
	Dividends(ctx context.Context, symbol, period string) ([]domain.Dividend, error)
}

// Options configures a Handler.
type Options struct {
	Pipeline     PipelineRunner
	Backtests    BacktestRunner           // nil disables POST /backtests
	Runs         storage.BacktestRunStore // nil disables GET /backtests/{symbol}
	Fundamentals FundamentalsSource       // nil disables GET /fundamentals/{symbol}
	Hub          *Hub                     // nil skips websocket push

	Preferences domain.Preferences // defaults for POST /recommendations
	Costs       domain.CostModel   // defaults for POST /backtests
	Interval    string
	Logger      *slog.Logger
}

// Handler serves the HTTP API and tracks the latest recommendation run.
type Handler struct {
	pipeline     PipelineRunner
	backtests    BacktestRunner
	runs         storage.BacktestRunStore
	fundamentals FundamentalsSource
	hub          *Hub
	prefs        domain.Preferences
	costs        domain.CostModel
	interval     string
	logger       *slog.Logger
	started      time.Time

	mu       sync.Mutex
	running  bool
	latest   *domain.RecommendationRun
	lastRun  time.Time
	runCount int
	failures int
}

// NewHandler creates a new API handler.
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Interval == "" {
		opts.Interval = "1d"
	}
	return &Handler{
		pipeline:     opts.Pipeline,
		backtests:    opts.Backtests,
		runs:         opts.Runs,
		fundamentals: opts.Fundamentals,
		hub:          opts.Hub,
		prefs:        opts.Preferences,
		costs:        opts.Costs,
		interval:     opts.Interval,
		logger:       opts.Logger,
		started:      time.Now(),
	}
}

// RunMessage is pushed to websocket clients after each completed run.
type RunMessage struct {
	Type string                    `json:"type"`
	Run  *domain.RecommendationRun `json:"run"`
}

// RunRecommendations executes the pipeline, records the result as the
// latest run and pushes it to websocket clients. Only one run executes
// at a time; a concurrent call returns ErrRunInProgress.
func (h *Handler) RunRecommendations(ctx context.Context, prefs domain.Preferences) (*pipeline.RunResult, error) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil, ErrRunInProgress
	}
	h.running = true
	h.mu.Unlock()

	result, err := h.pipeline.Run(ctx, prefs)

	h.mu.Lock()
	h.running = false
	h.lastRun = time.Now()
	if err != nil {
		h.failures++
		h.mu.Unlock()
		return nil, err
	}
	h.runCount++
	var run *domain.RecommendationRun
	if result.Output != nil {
		run = result.Output.Run
		h.latest = run
	}
	h.mu.Unlock()

	if run != nil && h.hub != nil {
		if err := h.hub.Broadcast(RunMessage{Type: "recommendation_run", Run: run}); err != nil {
			h.logger.Warn("broadcast run failed", "run_id", run.RunID, "error", err)
		}
	}
	return result, nil
}

// Latest returns the most recent completed run, or nil.
func (h *Handler) Latest() *domain.RecommendationRun {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StatusResponse represents the server status.
type StatusResponse struct {
	Status           string    `json:"status"`
	Uptime           string    `json:"uptime"`
	LastPipelineRun  time.Time `json:"last_pipeline_run,omitempty"`
	PipelineRuns     int       `json:"pipeline_runs"`
	PipelineFailures int       `json:"pipeline_failures"`
	PipelineRunning  bool      `json:"pipeline_running"`
	LatestRunID      string    `json:"latest_run_id,omitempty"`
	WebsocketClients int       `json:"websocket_clients"`
}

// Status returns server status as JSON.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	resp := StatusResponse{
		Status:           "running",
		Uptime:           time.Since(h.started).Round(time.Second).String(),
		LastPipelineRun:  h.lastRun,
		PipelineRuns:     h.runCount,
		PipelineFailures: h.failures,
		PipelineRunning:  h.running,
	}
	if h.latest != nil {
		resp.LatestRunID = h.latest.RunID
	}
	h.mu.Unlock()

	if h.hub != nil {
		resp.WebsocketClients = h.hub.Clients()
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetLatestRecommendations returns the most recent run.
func (h *Handler) GetLatestRecommendations(w http.ResponseWriter, r *http.Request) {
	run := h.Latest()
	if run == nil {
		respondError(w, http.StatusNotFound, "no recommendation run yet")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// CreateRecommendations runs the pipeline with the posted preferences.
// Fields missing from the body keep the configured defaults.
func (h *Handler) CreateRecommendations(w http.ResponseWriter, r *http.Request) {
	prefs := h.prefs
	if err := decodeBody(r, &prefs); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.RunRecommendations(r.Context(), prefs)
	if err != nil {
		h.logger.Warn("recommendation run failed", "error", err)
		respondError(w, statusFor(err), err.Error())
		return
	}
	if result.Output == nil {
		respondError(w, http.StatusInternalServerError, "run produced no output")
		return
	}
	respondJSON(w, http.StatusCreated, result.Output.Run)
}

// BacktestRequest is the body of POST /backtests.
type BacktestRequest struct {
	Symbol   string                `json:"symbol"`
	Interval string                `json:"interval,omitempty"`
	Strategy domain.StrategyConfig `json:"strategy"`
	Costs    *domain.CostModel     `json:"costs,omitempty"`
}

// BacktestResponse is the stored run plus its summary result.
type BacktestResponse struct {
	Run    *domain.BacktestRun    `json:"run"`
	Result *domain.BacktestResult `json:"result"`
}

// CreateBacktest runs one backtest over stored bars.
func (h *Handler) CreateBacktest(w http.ResponseWriter, r *http.Request) {
	if h.backtests == nil {
		respondError(w, http.StatusServiceUnavailable, "backtests are not configured")
		return
	}

	var req BacktestRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if req.Interval == "" {
		req.Interval = h.interval
	}
	costs := h.costs
	if req.Costs != nil {
		costs = *req.Costs
	}

	run, result, err := h.backtests.Run(r.Context(), req.Symbol, req.Interval, req.Strategy, costs)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, BacktestResponse{Run: run, Result: result})
}

// GetBacktests lists the stored runs of one symbol.
func (h *Handler) GetBacktests(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "backtest storage is not configured")
		return
	}
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	runs, err := h.runs.GetBySymbol(r.Context(), symbol)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	if runs == nil {
		runs = []*domain.BacktestRun{}
	}
	respondJSON(w, http.StatusOK, runs)
}

// FundamentalsResponse is the body of GET /fundamentals/{symbol}.
type FundamentalsResponse struct {
	Fundamentals *domain.Fundamentals `json:"fundamentals"`
	Dividends    []domain.Dividend    `json:"dividends"`
}

// GetFundamentals returns the valuation figures and the dividends paid
// over ?period (default 1y) of one symbol.
func (h *Handler) GetFundamentals(w http.ResponseWriter, r *http.Request) {
	if h.fundamentals == nil {
		respondError(w, http.StatusServiceUnavailable, "fundamentals are not configured")
		return
	}
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1y"
	}

	f, err := h.fundamentals.Fundamentals(r.Context(), symbol)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	divs, err := h.fundamentals.Dividends(r.Context(), symbol, period)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	if divs == nil {
		divs = []domain.Dividend{}
	}
	respondJSON(w, http.StatusOK, FundamentalsResponse{Fundamentals: f, Dividends: divs})
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientData), errors.Is(err, domain.ErrDegenerateInput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON body into v. An empty body leaves v unchanged.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, ErrorResponse{Error: msg})
}
