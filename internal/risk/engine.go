package risk

import (
	"fmt"
	"math"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/metrics"
	"github.com/HiNala/stock-agents/internal/observability"
)

// Config selects the VaR model and confidence used by an Engine.
type Config struct {
	ConfidenceLevel float64
	VaRMethod       domain.VaRMethod
}

// DefaultConfig is 95% historical VaR.
func DefaultConfig() Config {
	return Config{ConfidenceLevel: 0.95, VaRMethod: domain.VaRHistorical}
}

// Engine evaluates risk measures with a fixed VaR model and confidence.
// It holds no state between calls.
type Engine struct {
	cfg   Config
	model VaRModel
	sink  observability.Sink
}

// NewEngine validates cfg and creates an engine. A nil sink discards events.
func NewEngine(cfg Config, sink observability.Sink) (*Engine, error) {
	if err := checkConfidence(cfg.ConfidenceLevel); err != nil {
		return nil, err
	}
	model, err := NewVaRModel(cfg.VaRMethod)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, model: model, sink: observability.OrNop(sink)}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// VaR evaluates the configured model at the configured confidence.
func (e *Engine) VaR(returns []float64) (float64, error) {
	return e.model.Compute(returns, e.cfg.ConfidenceLevel)
}

// ExpectedShortfall evaluates expected shortfall at the configured confidence.
func (e *Engine) ExpectedShortfall(returns []float64) (float64, error) {
	return ExpectedShortfall(returns, e.cfg.ConfidenceLevel)
}

// Correlation returns the pairwise correlation matrix of table.
func (e *Engine) Correlation(table domain.ReturnTable) domain.CorrelationMatrix {
	m := Correlation(table)
	for i := range m.Symbols {
		for j := i + 1; j < len(m.Symbols); j++ {
			if math.IsNaN(m.Values[i][j]) {
				e.sink.Emit(observability.Event{
					Component: "risk",
					Name:      "undefined_correlation",
					Level:     observability.LevelDebug,
					Attrs:     map[string]any{"a": m.Symbols[i], "b": m.Symbols[j]},
				})
			}
		}
	}
	return m
}

// Beta is cov(asset, market) / var(market); NaN when var(market) is 0.
func (e *Engine) Beta(asset, market []float64) (float64, error) {
	return Beta(asset, market)
}

// PortfolioRisk computes the risk bundle of the weighted portfolio.
// Empty weights mean equal weights. A failed expected shortfall leaves
// that field NaN without failing the bundle.
func (e *Engine) PortfolioRisk(table domain.ReturnTable, weights []float64) (domain.PortfolioRisk, error) {
	w, err := ResolveWeights(table, weights)
	if err != nil {
		return domain.PortfolioRisk{}, err
	}
	if table.Rows() < 2 {
		return domain.PortfolioRisk{}, fmt.Errorf("%w: portfolio risk needs 2 aligned returns, got %d", domain.ErrInsufficientData, table.Rows())
	}

	returns := PortfolioReturns(table, w)
	std := metrics.Stddev(returns)

	v, err := e.VaR(returns)
	if err != nil {
		return domain.PortfolioRisk{}, err
	}
	es, err := e.ExpectedShortfall(returns)
	if err != nil {
		e.sink.Emit(observability.Event{
			Component: "risk",
			Name:      "undefined_expected_shortfall",
			Level:     observability.LevelWarn,
			Err:       err,
		})
		es = math.NaN()
	}

	// wealth starts at 1 so a loss on the first bar counts as drawdown
	wealth := append([]float64{1}, metrics.Compound(1, returns)...)

	return domain.PortfolioRisk{
		AnnualizedVolatility: std * math.Sqrt(metrics.TradingDaysPerYear),
		VaR:                  v,
		ExpectedShortfall:    es,
		MaxDrawdown:          metrics.MaxDrawdown(wealth),
		SharpeRatio:          metrics.SafeRatio(metrics.Mean(returns), std) * math.Sqrt(metrics.TradingDaysPerYear),
		Confidence:           e.cfg.ConfidenceLevel,
		VaRMethod:            e.model.Method(),
		Observations:         len(returns),
		Symbols:              append([]string(nil), table.Symbols...),
		Weights:              w,
	}, nil
}

// StressTest recomputes the portfolio bundle with every return shocked by
// each scenario. Results are keyed by scenario name.
func (e *Engine) StressTest(table domain.ReturnTable, weights []float64, scenarios []domain.StressScenario) (map[string]domain.PortfolioRisk, error) {
	out := make(map[string]domain.PortfolioRisk, len(scenarios))
	for _, sc := range scenarios {
		if sc.Name == "" {
			return nil, fmt.Errorf("%w: stress scenario without a name", domain.ErrInvalidParameter)
		}
		if _, dup := out[sc.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate stress scenario %q", domain.ErrInvalidParameter, sc.Name)
		}
		res, err := e.PortfolioRisk(Shocked(table, sc.Impact), weights)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		out[sc.Name] = res
	}
	return out, nil
}

// RiskContributions decomposes portfolio volatility by asset:
// w_i * cov(r_i, r_p) / sigma_p, normalized to sum to 1. Negative
// contributions are kept.
func (e *Engine) RiskContributions(table domain.ReturnTable, weights []float64) (map[string]float64, error) {
	w, err := ResolveWeights(table, weights)
	if err != nil {
		return nil, err
	}
	if table.Rows() < 2 {
		return nil, fmt.Errorf("%w: risk contribution needs 2 aligned returns, got %d", domain.ErrInsufficientData, table.Rows())
	}

	portfolio := PortfolioReturns(table, w)
	vol := metrics.AnnualizedVolatility(portfolio)
	if vol == 0 || math.IsNaN(vol) {
		return nil, fmt.Errorf("%w: portfolio volatility is zero", domain.ErrDegenerateInput)
	}

	marginal := make([]float64, len(w))
	total := 0.0
	for j, col := range table.Columns {
		marginal[j] = w[j] * metrics.Covariance(col, portfolio) / vol
		total += marginal[j]
	}
	if total == 0 || math.IsNaN(total) {
		return nil, fmt.Errorf("%w: marginal contributions sum to %v", domain.ErrDegenerateInput, total)
	}

	out := make(map[string]float64, len(w))
	for j, sym := range table.Symbols {
		out[sym] = marginal[j] / total
	}
	return out, nil
}
