// Package pipeline runs a full universe analysis.
// It coordinates: fetch → filter → backtests → aggregates → recommendations → risk → narrative → publish
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HiNala/stock-agents/internal/backtest"
	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/events"
	"github.com/HiNala/stock-agents/internal/marketdata"
	"github.com/HiNala/stock-agents/internal/metrics"
	"github.com/HiNala/stock-agents/internal/narrative"
	"github.com/HiNala/stock-agents/internal/observability"
	"github.com/HiNala/stock-agents/internal/recommend"
	"github.com/HiNala/stock-agents/internal/reporting"
	"github.com/HiNala/stock-agents/internal/risk"
	"github.com/HiNala/stock-agents/internal/storage"
	"github.com/HiNala/stock-agents/internal/strategy"
	"github.com/HiNala/stock-agents/internal/universe"
)

// Pipeline coordinates one analysis run over a symbol universe.
type Pipeline struct {
	// Data
	source      marketdata.Source
	symbols     []string
	period      string
	interval    string
	concurrency int
	filter      *universe.MomentumFilter
	screen      universe.FundamentalFilter
	screenSrc   universe.FundamentalsFetcher
	barStore    storage.PriceBarStore

	// Backtests
	runner     *backtest.Runner
	optimizer  *backtest.Optimizer
	strategies []domain.StrategyConfig
	costs      domain.CostModel
	aggregator *metrics.Aggregator
	aggStore   storage.StrategyAggregateStore

	// Recommendations
	recommender *recommend.Engine
	risk        *risk.Engine
	scenarios   []domain.StressScenario
	reports     *reporting.Generator

	// Optional collaborators
	researcher *narrative.Researcher
	publisher  events.Publisher

	sink    observability.Sink
	verbose bool
}

// Options for creating a Pipeline.
type Options struct {
	// Required
	Source      marketdata.Source
	Symbols     []string
	Period      string
	Interval    string
	Recommender *recommend.Engine
	Risk        *risk.Engine

	Concurrency int                      // parallel fetches and backtests, default 4
	Filter      *universe.MomentumFilter // nil keeps every fetched symbol
	BarStore    storage.PriceBarStore    // nil skips persisting fetched bars

	// Fundamental screen, applied after the momentum filter when both are set
	Screen       universe.FundamentalFilter
	Fundamentals universe.FundamentalsFetcher

	// Backtests run only with a Runner
	Runner     *backtest.Runner
	Optimizer  *backtest.Optimizer // nil skips grid search
	Strategies []domain.StrategyConfig
	Costs      domain.CostModel

	// Aggregates are computed only with both set
	Aggregator     *metrics.Aggregator
	AggregateStore storage.StrategyAggregateStore

	StressScenarios []domain.StressScenario
	Reports         *reporting.Generator // nil uses a generator without stores

	Researcher *narrative.Researcher // nil skips the narrative
	Publisher  events.Publisher      // nil skips publishing

	Sink    observability.Sink
	Verbose bool
}

// New creates a new Pipeline.
func New(opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = marketdata.DefaultConcurrency
	}
	if opts.Reports == nil {
		opts.Reports = reporting.NewGenerator(nil, nil)
	}
	return &Pipeline{
		source:      opts.Source,
		symbols:     opts.Symbols,
		period:      opts.Period,
		interval:    opts.Interval,
		concurrency: opts.Concurrency,
		filter:      opts.Filter,
		screen:      opts.Screen,
		screenSrc:   opts.Fundamentals,
		barStore:    opts.BarStore,
		runner:      opts.Runner,
		optimizer:   opts.Optimizer,
		strategies:  opts.Strategies,
		costs:       opts.Costs,
		aggregator:  opts.Aggregator,
		aggStore:    opts.AggregateStore,
		recommender: opts.Recommender,
		risk:        opts.Risk,
		scenarios:   opts.StressScenarios,
		reports:     opts.Reports,
		researcher:  opts.Researcher,
		publisher:   opts.Publisher,
		sink:        observability.OrNop(opts.Sink),
		verbose:     opts.Verbose,
	}
}

// RunResult contains results from pipeline execution.
type RunResult struct {
	Fetched  int
	Rejected []universe.Rejection

	Backtests     []*domain.BacktestRun        // in universe, then strategy order
	Optimizations []*domain.OptimizationResult // in universe order
	Aggregates    []*domain.StrategyAggregate

	Output        *recommend.Output
	Stress        map[string]domain.PortfolioRisk
	Contributions map[string]float64
	Narrative     *narrative.Report
	Report        *reporting.RecommendationReport
	Published     bool

	// Non-fatal problems, in phase order
	Errors []string
}

// Run executes the full pipeline with prefs.
// Phases:
//  1. Fetch the universe (and persist bars)
//  2. Apply the momentum filter and fundamental screen
//  3. Backtest and optimise each symbol in parallel
//  4. Aggregate strategy results
//  5. Recommend
//  6. Stress tests and risk contributions
//  7. Narrative
//  8. Publish
//
// Per-symbol failures are recorded and skipped. Only an unusable universe,
// invalid preferences or cancellation fail the run.
func (p *Pipeline) Run(ctx context.Context, prefs domain.Preferences) (result *RunResult, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		} else {
			observability.DefaultMetrics.LastSuccessfulPipeline.SetToCurrentTime()
		}
		observability.RecordPipelineRun("total", status, time.Since(start).Seconds())
	}()

	if err := recommend.ValidatePreferences(prefs); err != nil {
		return nil, err
	}
	result = &RunResult{}

	// Phase 1: Fetch
	p.log("Phase 1: Fetching %d symbols (%s, %s)...", len(p.symbols), p.period, p.interval)
	var fetchFailures []domain.Failure
	series, err := timed("fetch", func() ([]*domain.PriceSeries, error) {
		fr, err := marketdata.FetchUniverse(ctx, p.source, p.symbols, p.period, p.interval, p.concurrency)
		if err != nil {
			return nil, err
		}
		fetchFailures = fr.Failures
		return fr.Series, nil
	})
	if err != nil {
		return nil, fmt.Errorf("phase 1 (fetch) failed: %w", err)
	}
	for _, f := range fetchFailures {
		p.emitSkip(f)
	}
	result.Fetched = len(series)
	p.log("  Fetched %d series (%d failed)", len(series), len(fetchFailures))
	result.Errors = append(result.Errors, p.storeBars(ctx, series)...)

	// Phase 2: Filter
	if p.filter != nil {
		p.log("Phase 2: Applying momentum filter...")
		kept, rejected, err := p.filter.Apply(series)
		if err != nil {
			return nil, fmt.Errorf("phase 2 (filter) failed: %w", err)
		}
		series, result.Rejected = kept, rejected
		p.log("  Kept %d, rejected %d", len(kept), len(rejected))
	} else {
		p.log("Phase 2: Skipping momentum filter")
	}
	if p.screen != nil && p.screenSrc != nil {
		p.log("Phase 2: Screening fundamentals...")
		kept, rejected, err := universe.Screen(ctx, p.screenSrc, p.screen, series)
		if err != nil {
			return nil, fmt.Errorf("phase 2 (screen) failed: %w", err)
		}
		series = kept
		result.Rejected = append(result.Rejected, rejected...)
		p.log("  Kept %d, rejected %d", len(kept), len(rejected))
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no symbols left after fetch and filter", domain.ErrInsufficientData)
	}

	// Phase 3: Backtests
	if p.runner != nil {
		p.log("Phase 3: Running backtests...")
		phaseStart := time.Now()
		runs, opts, errs, err := p.runBacktests(ctx, series)
		observability.RecordPipelineRun("backtest", statusOf(err), time.Since(phaseStart).Seconds())
		if err != nil {
			return nil, fmt.Errorf("phase 3 (backtest) failed: %w", err)
		}
		result.Backtests, result.Optimizations = runs, opts
		result.Errors = append(result.Errors, errs...)
		p.log("  Recorded %d runs (%d errors)", len(runs), len(errs))
	} else {
		p.log("Phase 3: Skipping backtests (no runner)")
	}

	// Phase 4: Aggregates
	if p.aggregator != nil && p.aggStore != nil && len(result.Backtests) > 0 {
		p.log("Phase 4: Computing aggregates...")
		aggs, errs := p.runAggregation(ctx)
		result.Aggregates = aggs
		result.Errors = append(result.Errors, errs...)
		p.log("  Computed %d aggregates (%d errors)", len(aggs), len(errs))
	}

	// Phase 5: Recommend
	p.log("Phase 5: Generating recommendations...")
	out, err := timed("recommend", func() (*recommend.Output, error) {
		return p.recommender.Recommend(series, prefs)
	})
	if err != nil {
		return nil, fmt.Errorf("phase 5 (recommend) failed: %w", err)
	}
	out.Run.Skipped = append(append([]domain.Failure(nil), fetchFailures...), out.Run.Skipped...)
	result.Output = out
	p.log("  %d recommendations from %d evaluated assets", len(out.Run.Recommendations), out.Run.Evaluated)

	// Phase 6: Risk
	p.log("Phase 6: Stress tests and risk contributions...")
	if len(p.scenarios) > 0 {
		stress, err := p.risk.StressTest(out.Returns, nil, p.scenarios)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("stress test: %v", err))
		}
		result.Stress = stress
	}
	contrib, err := p.risk.RiskContributions(out.Returns, nil)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("risk contributions: %v", err))
	}
	result.Contributions = contrib

	// Phase 7: Narrative
	if p.researcher != nil {
		p.log("Phase 7: Generating narrative...")
		report, err := p.researcher.Research(ctx, series)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("narrative: %v", err))
		}
		result.Narrative = report
	}

	result.Report = p.reports.BuildRecommendationReport(reporting.RecommendationInput{
		Run:           out.Run,
		Scenarios:     p.scenarios,
		Stress:        result.Stress,
		Contributions: result.Contributions,
		Decisions:     out.Decisions,
		Narrative:     result.Narrative,
	})

	// Phase 8: Publish
	if p.publisher != nil {
		p.log("Phase 8: Publishing run %s...", out.Run.RunID)
		if err := p.publisher.PublishRun(ctx, out.Run); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("publish: %v", err))
		} else {
			result.Published = true
		}
	}

	p.log("Pipeline completed: %d fetched, %d backtests, %d recommendations, %d errors",
		result.Fetched, len(result.Backtests), len(out.Run.Recommendations), len(result.Errors))
	p.sink.Emit(observability.Event{
		Component: "pipeline",
		Name:      "run_completed",
		Level:     observability.LevelInfo,
		Attrs: map[string]any{
			"run_id":    out.Run.RunID,
			"fetched":   result.Fetched,
			"backtests": len(result.Backtests),
			"errors":    len(result.Errors),
			"duration":  time.Since(start).String(),
		},
	})
	return result, nil
}

// storeBars persists fetched series. Already stored bars are not an error.
func (p *Pipeline) storeBars(ctx context.Context, series []*domain.PriceSeries) []string {
	if p.barStore == nil {
		return nil
	}
	var errs []string
	for _, s := range series {
		if err := p.barStore.InsertBulk(ctx, s); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			errs = append(errs, fmt.Sprintf("store bars %s: %v", s.Symbol, err))
		}
	}
	return errs
}

type symbolOutcome struct {
	runs []*domain.BacktestRun
	opt  *domain.OptimizationResult
	errs []string
}

// runBacktests backtests every configured strategy per symbol and, with an
// optimizer, records the best grid candidate as an extra run. Results keep
// universe order regardless of completion order.
func (p *Pipeline) runBacktests(ctx context.Context, series []*domain.PriceSeries) ([]*domain.BacktestRun, []*domain.OptimizationResult, []string, error) {
	outcomes := make([]symbolOutcome, len(series))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, s := range series {
		g.Go(func() error {
			o, err := p.backtestSymbol(gctx, s)
			outcomes[i] = o
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	var runs []*domain.BacktestRun
	var opts []*domain.OptimizationResult
	var errs []string
	for _, o := range outcomes {
		runs = append(runs, o.runs...)
		if o.opt != nil {
			opts = append(opts, o.opt)
		}
		errs = append(errs, o.errs...)
	}
	return runs, opts, errs, nil
}

func (p *Pipeline) backtestSymbol(ctx context.Context, s *domain.PriceSeries) (symbolOutcome, error) {
	var o symbolOutcome
	seen := make(map[string]bool)
	record := func(cfg domain.StrategyConfig) error {
		if seen[cfg.String()] {
			return nil
		}
		seen[cfg.String()] = true
		run, _, err := p.runner.RunSeries(ctx, s, cfg, p.costs)
		if err != nil {
			if isSymbolError(err) {
				o.errs = append(o.errs, fmt.Sprintf("backtest %s/%s: %v", s.Symbol, cfg, err))
				return nil
			}
			return fmt.Errorf("backtest %s/%s: %w", s.Symbol, cfg, err)
		}
		o.runs = append(o.runs, run)
		return nil
	}

	for _, cfg := range p.strategies {
		if err := ctx.Err(); err != nil {
			return o, err
		}
		if err := record(cfg); err != nil {
			return o, err
		}
	}

	if p.optimizer != nil {
		grid := append(strategy.MomentumGrid(), strategy.MeanReversionGrid()...)
		opt, err := p.optimizer.Optimize(s, grid, p.costs)
		if err != nil {
			o.errs = append(o.errs, fmt.Sprintf("optimize %s: %v", s.Symbol, err))
			return o, nil
		}
		o.opt = opt
		if err := record(opt.Best); err != nil {
			return o, err
		}
	}
	return o, nil
}

// runAggregation recomputes every strategy aggregate and replaces the
// stored ones.
func (p *Pipeline) runAggregation(ctx context.Context) ([]*domain.StrategyAggregate, []string) {
	aggs, err := p.aggregator.ComputeAll(ctx)
	if err != nil {
		return nil, []string{fmt.Sprintf("aggregate: %v", err)}
	}

	var errs []string
	for _, agg := range aggs {
		if err := p.aggStore.Upsert(ctx, agg); err != nil {
			errs = append(errs, fmt.Sprintf("store aggregate %s: %v", agg.StrategyID, err))
		}
	}
	errs = append(errs, p.aggregator.GetInvalidRunErrors()...)
	return aggs, errs
}

func (p *Pipeline) emitSkip(f domain.Failure) {
	p.sink.Emit(observability.Event{
		Component: "pipeline",
		Name:      observability.EventSymbolSkipped,
		Level:     observability.LevelWarn,
		Symbol:    f.Symbol,
		Attrs:     map[string]any{"kind": string(f.Kind), "reason": f.Reason},
	})
}

func (p *Pipeline) log(format string, args ...interface{}) {
	if p.verbose {
		log.Printf("[pipeline] "+format, args...)
	}
}

// timed runs fn and records its duration under phase.
func timed[T any](phase string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	observability.RecordPipelineRun(phase, statusOf(err), time.Since(start).Seconds())
	return v, err
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// isSymbolError reports whether err concerns one symbol's data or
// parameters rather than the run as a whole.
func isSymbolError(err error) bool {
	return errors.Is(err, domain.ErrInsufficientData) ||
		errors.Is(err, domain.ErrInvalidParameter) ||
		errors.Is(err, domain.ErrDegenerateInput)
}
