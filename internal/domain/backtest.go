package domain

import "encoding/json"

// BacktestResult is the outcome of one simulated strategy over one series.
type BacktestResult struct {
	Symbol   string         `json:"symbol"`
	Strategy StrategyConfig `json:"strategy"`
	Costs    CostModel      `json:"costs"`

	TotalReturn          float64 `json:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"` // 0 when volatility is 0
	MaxDrawdown          float64 `json:"max_drawdown"` // <= 0
	WinRate              float64 `json:"win_rate"`     // winning trade bars / trade bars
	TradeCount           int     `json:"trade_count"`
	BarCount             int     `json:"bar_count"`

	EquityCurve   []CurvePoint `json:"equity_curve"`
	DrawdownCurve []CurvePoint `json:"drawdown_curve"`
	PositionCurve []CurvePoint `json:"position_curve"`
}

// FinalEquity returns the last equity value, or initial capital for an empty curve.
func (r *BacktestResult) FinalEquity() float64 {
	if len(r.EquityCurve) == 0 {
		return r.Costs.InitialCapital
	}
	return r.EquityCurve[len(r.EquityCurve)-1].Value
}

// MarshalJSON writes non-finite statistics as null.
func (r BacktestResult) MarshalJSON() ([]byte, error) {
	type alias BacktestResult
	return json.Marshal(struct {
		alias
		TotalReturn          *float64 `json:"total_return"`
		AnnualizedReturn     *float64 `json:"annualized_return"`
		AnnualizedVolatility *float64 `json:"annualized_volatility"`
	}{
		alias:                alias(r),
		TotalReturn:          FiniteOrNil(r.TotalReturn),
		AnnualizedReturn:     FiniteOrNil(r.AnnualizedReturn),
		AnnualizedVolatility: FiniteOrNil(r.AnnualizedVolatility),
	})
}

// BacktestRun is a persisted backtest summary without curves.
// Corresponds to backtest_runs table in PostgreSQL.
type BacktestRun struct {
	RunID          string       `json:"run_id"`      // deterministic, see idhash.BacktestRunID
	Symbol         string       `json:"symbol"`      // ticker
	StrategyID     string       `json:"strategy_id"` // StrategyConfig.String()
	StrategyType   StrategyType `json:"strategy_type"`
	Lookback       int          `json:"lookback"`
	HoldingPeriod  int          `json:"holding_period"`
	StdDevs        float64      `json:"std_devs"`
	CommissionRate float64      `json:"commission_rate"`
	InitialCapital float64      `json:"initial_capital"`

	StartMs  int64 `json:"start_ms"` // first bar timestamp
	EndMs    int64 `json:"end_ms"`   // last bar timestamp
	BarCount int   `json:"bar_count"`

	TotalReturn          float64 `json:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	WinRate              float64 `json:"win_rate"`
	TradeCount           int     `json:"trade_count"`
	FinalEquity          float64 `json:"final_equity"`

	CreatedAtMs int64 `json:"created_at_ms"` // when the run was recorded
}

// MarshalJSON writes non-finite statistics as null.
func (r BacktestRun) MarshalJSON() ([]byte, error) {
	type alias BacktestRun
	return json.Marshal(struct {
		alias
		TotalReturn          *float64 `json:"total_return"`
		AnnualizedReturn     *float64 `json:"annualized_return"`
		AnnualizedVolatility *float64 `json:"annualized_volatility"`
		FinalEquity          *float64 `json:"final_equity"`
	}{
		alias:                alias(r),
		TotalReturn:          FiniteOrNil(r.TotalReturn),
		AnnualizedReturn:     FiniteOrNil(r.AnnualizedReturn),
		AnnualizedVolatility: FiniteOrNil(r.AnnualizedVolatility),
		FinalEquity:          FiniteOrNil(r.FinalEquity),
	})
}

// ParamResult is one evaluated grid candidate.
type ParamResult struct {
	Strategy    StrategyConfig `json:"strategy"`
	SharpeRatio float64        `json:"sharpe_ratio"`
	TotalReturn float64        `json:"total_return"`
	Err         string         `json:"error,omitempty"` // non-empty when the candidate failed
}

// MarshalJSON writes the statistics of failed candidates as null.
func (p ParamResult) MarshalJSON() ([]byte, error) {
	type alias ParamResult
	return json.Marshal(struct {
		alias
		SharpeRatio *float64 `json:"sharpe_ratio"`
		TotalReturn *float64 `json:"total_return"`
	}{
		alias:       alias(p),
		SharpeRatio: FiniteOrNil(p.SharpeRatio),
		TotalReturn: FiniteOrNil(p.TotalReturn),
	})
}

// OptimizationResult is the outcome of a parameter grid search.
type OptimizationResult struct {
	Symbol     string          `json:"symbol"`
	Best       StrategyConfig  `json:"best"`
	BestResult *BacktestResult `json:"best_result"`
	Candidates []ParamResult   `json:"candidates"` // in enumeration order
	Failed     int             `json:"failed"`
}
