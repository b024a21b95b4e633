// Package recommend fuses per-asset signals with risk measures and user
// preferences into ranked, sized trade recommendations.
package recommend

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/HiNala/stock-agents/internal/decision"
	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/metrics"
	"github.com/HiNala/stock-agents/internal/observability"
	"github.com/HiNala/stock-agents/internal/risk"
	"github.com/HiNala/stock-agents/internal/signals"
)

// Output is a recommendation run together with the intermediate values
// reports and stress tests build on.
type Output struct {
	Run *domain.RecommendationRun

	// Decisions holds the verdict of every evaluated asset, in universe order.
	Decisions []*decision.Result

	// Returns is the aligned return table of the evaluated assets.
	Returns domain.ReturnTable
}

// Engine produces recommendation runs. It holds no state between calls.
type Engine struct {
	signals   *signals.Engine
	risk      *risk.Engine
	evaluator *decision.Evaluator
	sink      observability.Sink
	now       func() time.Time
	newID     func() string
}

// NewEngine creates a recommendation engine. A nil sink discards events.
func NewEngine(sig *signals.Engine, rk *risk.Engine, sink observability.Sink) *Engine {
	return &Engine{
		signals:   sig,
		risk:      rk,
		evaluator: decision.NewEvaluator(),
		sink:      observability.OrNop(sink),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// WithClock overrides the run timestamp source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithIDs overrides the run identifier source.
func (e *Engine) WithIDs(newID func() string) *Engine {
	e.newID = newID
	return e
}

// ValidatePreferences rejects preferences the rule cannot be evaluated with.
func ValidatePreferences(p domain.Preferences) error {
	switch {
	case !p.RiskTolerance.IsValid():
		return fmt.Errorf("%w: risk tolerance %q", domain.ErrInvalidParameter, p.RiskTolerance)
	case !p.TimeHorizon.IsValid():
		return fmt.Errorf("%w: time horizon %q", domain.ErrInvalidParameter, p.TimeHorizon)
	case p.MaxPositions < 1:
		return fmt.Errorf("%w: max positions must be at least 1, got %d", domain.ErrInvalidParameter, p.MaxPositions)
	case !(p.RiskPerTrade > 0):
		return fmt.Errorf("%w: risk per trade must be positive, got %v", domain.ErrInvalidParameter, p.RiskPerTrade)
	}
	return nil
}

type candidate struct {
	series  *domain.PriceSeries
	snap    domain.SignalSnapshot
	returns domain.ReturnSeries
}

// Recommend evaluates the universe under prefs.
//
// Assets without enough history or with otherwise unusable data are
// skipped and listed in Run.Skipped. Invalid preferences and a universe
// with no usable assets fail the whole call.
func (e *Engine) Recommend(universe []*domain.PriceSeries, prefs domain.Preferences) (*Output, error) {
	if err := ValidatePreferences(prefs); err != nil {
		return nil, err
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("%w: empty universe", domain.ErrInsufficientData)
	}

	var skipped []domain.Failure
	skip := func(symbol string, err error) {
		f := domain.NewFailure(symbol, err)
		skipped = append(skipped, f)
		e.sink.Emit(observability.Event{
			Component: "recommend",
			Name:      observability.EventSymbolSkipped,
			Level:     observability.LevelWarn,
			Symbol:    symbol,
			Attrs:     map[string]any{"kind": string(f.Kind)},
			Err:       err,
		})
	}

	// Phase 1: per-asset signals and returns
	seen := make(map[string]bool, len(universe))
	var cands []candidate
	for _, s := range universe {
		if s == nil {
			continue
		}
		if seen[s.Symbol] {
			skip(s.Symbol, fmt.Errorf("%w: duplicate symbol in universe", domain.ErrInvalidParameter))
			continue
		}
		seen[s.Symbol] = true

		c, err := e.prepare(s)
		if err != nil {
			skip(s.Symbol, err)
			continue
		}
		cands = append(cands, c)
	}
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: no usable assets among %d", domain.ErrInsufficientData, len(universe))
	}

	// Phase 2: cross-asset risk over aligned returns
	cands, unaligned := alignable(cands)
	for _, c := range unaligned {
		skip(c.series.Symbol, fmt.Errorf("%w: shares fewer than %d return timestamps with the rest of the universe",
			domain.ErrInsufficientData, minAlignedReturns))
	}
	rs := make([]domain.ReturnSeries, len(cands))
	for i, c := range cands {
		rs[i] = c.returns
	}
	table, err := domain.AlignReturns(rs)
	if err != nil {
		return nil, err
	}
	portfolio, err := e.risk.PortfolioRisk(table, nil)
	if err != nil {
		return nil, err
	}
	correlation := e.risk.Correlation(table)
	proxy := risk.MarketProxy(table)

	// Phase 3: decision rule and sizing
	builder := decision.NewBuilder(prefs)
	var recs []domain.Recommendation
	var decisions []*decision.Result
	for _, c := range cands {
		vol := metrics.AnnualizedVolatility(c.returns.Values)
		if math.IsNaN(vol) {
			skip(c.series.Symbol, fmt.Errorf("%w: volatility needs 2 returns", domain.ErrInsufficientData))
			continue
		}

		col, _ := table.Column(c.series.Symbol)
		beta, err := e.risk.Beta(col, proxy)
		if err != nil {
			skip(c.series.Symbol, err)
			continue
		}
		if math.IsNaN(beta) && prefs.TimeHorizon != domain.HorizonMedium {
			skip(c.series.Symbol, fmt.Errorf("%w: beta undefined for %s horizon", domain.ErrDegenerateInput, prefs.TimeHorizon))
			continue
		}

		res, err := e.evaluator.Evaluate(builder.Build(c.snap, vol, beta))
		if err != nil {
			skip(c.series.Symbol, err)
			continue
		}
		decisions = append(decisions, res)
		if res.Action == domain.ActionHold {
			continue
		}

		size, err := PositionSize(prefs, vol)
		if err != nil {
			skip(c.series.Symbol, err)
			continue
		}
		recs = append(recs, domain.Recommendation{
			Symbol:              c.series.Symbol,
			Action:              res.Action,
			Rationale:           res.Rationale,
			LastPrice:           c.snap.Close,
			Volatility:          vol,
			Beta:                beta,
			RSI:                 c.snap.RSI,
			MomentumSignal:      c.snap.Momentum,
			MeanReversionSignal: c.snap.MeanReversion,
			CombinedSignal:      res.CombinedSignal,
			PositionSize:        size,
		})
	}

	Rank(recs, prefs.RiskTolerance)
	if len(recs) > prefs.MaxPositions {
		recs = recs[:prefs.MaxPositions]
	}
	for _, r := range recs {
		e.sink.Emit(observability.Event{
			Component: "recommend",
			Name:      observability.EventRecommendation,
			Level:     observability.LevelInfo,
			Symbol:    r.Symbol,
			Attrs:     map[string]any{"action": string(r.Action), "position_size": r.PositionSize},
		})
	}

	run := &domain.RecommendationRun{
		RunID:             e.newID(),
		Timestamp:         e.now().UTC(),
		RiskTolerance:     prefs.RiskTolerance,
		TimeHorizon:       prefs.TimeHorizon,
		Recommendations:   recs,
		PortfolioRisk:     portfolio,
		CorrelationMatrix: correlation,
		Evaluated:         len(decisions),
		Skipped:           skipped,
	}
	e.sink.Emit(observability.Event{
		Component: "recommend",
		Name:      "run_completed",
		Level:     observability.LevelInfo,
		Attrs: map[string]any{
			"run_id":          run.RunID,
			"universe":        len(universe),
			"evaluated":       run.Evaluated,
			"recommendations": len(recs),
			"skipped":         len(skipped),
		},
	})
	return &Output{Run: run, Decisions: decisions, Returns: table}, nil
}

// minAlignedReturns is the fewest common rows the portfolio bundle accepts.
const minAlignedReturns = 2

// alignable drops candidates until the rest share at least
// minAlignedReturns return timestamps. Each step drops the candidate whose
// removal leaves the most common timestamps; the later one loses a tie.
func alignable(cands []candidate) (kept, dropped []candidate) {
	kept = append([]candidate(nil), cands...)
	for len(kept) > 1 && commonCount(kept, -1) < minAlignedReturns {
		worst, best := -1, -1
		for i := range kept {
			if n := commonCount(kept, i); n >= best {
				worst, best = i, n
			}
		}
		dropped = append(dropped, kept[worst])
		kept = append(kept[:worst], kept[worst+1:]...)
	}
	return kept, dropped
}

// commonCount counts the return timestamps shared by every candidate
// except the one at index skip.
func commonCount(cands []candidate, skip int) int {
	counts := make(map[int64]int)
	members := 0
	for i, c := range cands {
		if i == skip {
			continue
		}
		members++
		for _, ts := range c.returns.TimestampsMs {
			counts[ts]++
		}
	}
	n := 0
	for _, c := range counts {
		if c == members {
			n++
		}
	}
	return n
}

func (e *Engine) prepare(s *domain.PriceSeries) (candidate, error) {
	if err := s.Validate(); err != nil {
		return candidate{}, err
	}
	set, err := e.signals.Compute(s)
	if err != nil {
		return candidate{}, err
	}
	snap, ok := set.Latest()
	if !ok {
		return candidate{}, fmt.Errorf("%w: %d bars, latest signals need %d", domain.ErrInsufficientData, s.Len(), e.signals.Params().MinBars())
	}
	returns, err := domain.ReturnsFromSeries(s)
	if err != nil {
		return candidate{}, err
	}
	return candidate{series: s, snap: snap, returns: returns}, nil
}

// PositionSize is min(risk_per_trade * tolerance multiplier / volatility, 1).
func PositionSize(prefs domain.Preferences, volatility float64) (float64, error) {
	if !(volatility > 0) {
		return math.NaN(), fmt.Errorf("%w: cannot size a position with volatility %v", domain.ErrInvalidParameter, volatility)
	}
	adjusted := prefs.RiskPerTrade * prefs.RiskTolerance.SizeMultiplier()
	return math.Min(adjusted/volatility, 1), nil
}

// Rank orders BUY before SELL, then by volatility: ascending for low
// tolerance, descending otherwise. Symbol breaks ties.
func Rank(recs []domain.Recommendation, tolerance domain.RiskTolerance) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Action != b.Action {
			return a.Action == domain.ActionBuy
		}
		if a.Volatility != b.Volatility {
			if tolerance == domain.RiskLow {
				return a.Volatility < b.Volatility
			}
			return a.Volatility > b.Volatility
		}
		return a.Symbol < b.Symbol
	})
}
