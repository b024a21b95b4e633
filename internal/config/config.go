// Package config loads service configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/risk"
	"github.com/HiNala/stock-agents/internal/signals"
	"github.com/HiNala/stock-agents/internal/universe"
)

// Data source kinds
const (
	SourceYahoo  = "yahoo"
	SourceInflux = "influx"
	SourceStore  = "store"
)

// Fundamental screens
const (
	ScreenValue  = "value"
	ScreenGrowth = "growth"
)

// Config holds all application configuration.
type Config struct {
	Analysis        Analysis                `yaml:"analysis"`
	Signals         Signals                 `yaml:"signals"`
	Universe        Universe                `yaml:"universe"`
	StressScenarios []domain.StressScenario `yaml:"stress_scenarios" validate:"dive"`
	DataSource      DataSource              `yaml:"data_source"`
	Storage         Storage                 `yaml:"storage"`
	LLM             LLM                     `yaml:"llm"`
	Kafka           Kafka                   `yaml:"kafka"`
	Schedule        Schedule                `yaml:"schedule"`
	Server          Server                  `yaml:"server"`
	Log             Log                     `yaml:"log"`
}

// Analysis holds backtest, risk and recommendation parameters.
type Analysis struct {
	ConfidenceLevel float64 `yaml:"confidence_level" validate:"gt=0,lt=1"`
	VaRMethod       string  `yaml:"var_method" validate:"oneof=historical parametric"`
	StrategyType    string  `yaml:"strategy_type" validate:"oneof=momentum mean_reversion"`
	LookbackPeriod  int     `yaml:"lookback_period" validate:"gte=1"`
	HoldingPeriod   int     `yaml:"holding_period" validate:"gte=1"`
	StdDevs         float64 `yaml:"std_devs" validate:"gt=0"`
	CommissionRate  float64 `yaml:"commission_rate" validate:"gte=0,lt=1"`
	InitialCapital  float64 `yaml:"initial_capital" validate:"gt=0"`
	RiskPerTrade    float64 `yaml:"risk_per_trade" validate:"gt=0,lte=1"`
	MaxPositions    int     `yaml:"max_positions" validate:"gte=1"`
	RiskTolerance   string  `yaml:"risk_tolerance" validate:"oneof=low medium high"`
	TimeHorizon     string  `yaml:"time_horizon" validate:"oneof=short medium long"`
	Optimize        bool    `yaml:"optimize"`
}

// Signals holds indicator windows.
type Signals struct {
	MAFast           int     `yaml:"ma_fast" validate:"gte=1"`
	MASlow           int     `yaml:"ma_slow" validate:"gte=1"`
	RSIWindow        int     `yaml:"rsi_window" validate:"gte=1"`
	BollingerWindow  int     `yaml:"bollinger_window" validate:"gte=2"`
	BollingerStdDevs float64 `yaml:"bollinger_std_devs" validate:"gt=0"`
}

// Universe selects and filters the analysed symbols.
type Universe struct {
	Symbols          []string `yaml:"symbols" validate:"required,min=1,dive,required"`
	Period           string   `yaml:"period" validate:"required"`
	Interval         string   `yaml:"interval" validate:"required"`
	MinVolume        float64  `yaml:"min_volume" validate:"gte=0"`
	MinPrice         float64  `yaml:"min_price" validate:"gte=0"`
	MaxPrice         float64  `yaml:"max_price" validate:"gte=0"`
	MomentumLookback int      `yaml:"momentum_lookback" validate:"gte=1"`
	FilterMomentum   bool     `yaml:"filter_momentum"`
	Concurrency      int      `yaml:"concurrency" validate:"gte=1"`

	// Screen picks a fundamental screen: "", "value" or "growth".
	Screen            string  `yaml:"screen" validate:"omitempty,oneof=value growth"`
	MaxPE             float64 `yaml:"max_pe" validate:"gte=0"`
	MaxPriceToBook    float64 `yaml:"max_price_to_book" validate:"gte=0"`
	MinDividendYield  float64 `yaml:"min_dividend_yield" validate:"gte=0"`
	MinRevenueGrowth  float64 `yaml:"min_revenue_growth"`
	MinEarningsGrowth float64 `yaml:"min_earnings_growth"`
}

// DataSource selects where price series come from.
type DataSource struct {
	Kind      string `yaml:"kind" validate:"oneof=yahoo influx store"`
	Yahoo     Yahoo  `yaml:"yahoo"`
	Influx    Influx `yaml:"influx"`
	CachePath string `yaml:"cache_path"` // empty disables the cache
	CacheTTL  string `yaml:"cache_ttl"`
}

// Yahoo configures the chart API client.
type Yahoo struct {
	BaseURL           string  `yaml:"base_url"`
	SummaryURL        string  `yaml:"summary_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

// Influx configures the InfluxDB source.
type Influx struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// Storage holds database DSNs. Empty DSNs select in-memory stores.
type Storage struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

// LLM configures the narrative generator.
type LLM struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens" validate:"gte=0"`
}

// Kafka configures run publishing.
type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Schedule holds cron expressions with a leading seconds field.
type Schedule struct {
	RecommendCron string `yaml:"recommend_cron"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Log configures structured logging.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

var validate = validator.New()

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv() error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"INITIAL_CAPITAL", &c.Analysis.InitialCapital},
		{"COMMISSION_RATE", &c.Analysis.CommissionRate},
		{"RISK_PER_TRADE", &c.Analysis.RiskPerTrade},
	}
	for _, f := range floats {
		v := os.Getenv(f.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("env %s: %w", f.key, err)
		}
		*f.dst = parsed
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"POSTGRES_DSN", &c.Storage.PostgresDSN},
		{"CLICKHOUSE_DSN", &c.Storage.ClickHouseDSN},
		{"INFLUX_URL", &c.DataSource.Influx.URL},
		{"INFLUX_TOKEN", &c.DataSource.Influx.Token},
		{"INFLUX_ORG", &c.DataSource.Influx.Org},
		{"INFLUX_BUCKET", &c.DataSource.Influx.Bucket},
		{"OPENAI_API_KEY", &c.LLM.APIKey},
		{"OPENAI_BASE_URL", &c.LLM.BaseURL},
		{"OPENAI_MODEL", &c.LLM.Model},
		{"LOG_LEVEL", &c.Log.Level},
		{"SERVER_ADDR", &c.Server.Addr},
	}
	for _, s := range strs {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Universe.Symbols = splitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	return nil
}

func (c *Config) applyDefaults() {
	a := &c.Analysis
	if a.ConfidenceLevel == 0 {
		a.ConfidenceLevel = 0.95
	}
	if a.VaRMethod == "" {
		a.VaRMethod = string(domain.VaRHistorical)
	}
	if a.StrategyType == "" {
		a.StrategyType = string(domain.StrategyTypeMomentum)
	}
	if a.LookbackPeriod == 0 {
		a.LookbackPeriod = 20
	}
	if a.HoldingPeriod == 0 {
		a.HoldingPeriod = 5
	}
	if a.StdDevs == 0 {
		a.StdDevs = 2.0
	}
	if a.CommissionRate == 0 {
		a.CommissionRate = domain.DefaultCostModel.CommissionRate
	}
	if a.InitialCapital == 0 {
		a.InitialCapital = domain.DefaultCostModel.InitialCapital
	}
	if a.RiskPerTrade == 0 {
		a.RiskPerTrade = 0.02
	}
	if a.MaxPositions == 0 {
		a.MaxPositions = 5
	}
	if a.RiskTolerance == "" {
		a.RiskTolerance = string(domain.RiskMedium)
	}
	if a.TimeHorizon == "" {
		a.TimeHorizon = string(domain.HorizonMedium)
	}

	sp := signals.DefaultParams()
	s := &c.Signals
	if s.MAFast == 0 {
		s.MAFast = sp.MAFast
	}
	if s.MASlow == 0 {
		s.MASlow = sp.MASlow
	}
	if s.RSIWindow == 0 {
		s.RSIWindow = sp.RSIWindow
	}
	if s.BollingerWindow == 0 {
		s.BollingerWindow = sp.BollingerWindow
	}
	if s.BollingerStdDevs == 0 {
		s.BollingerStdDevs = sp.BollingerStdDevs
	}

	mf := universe.DefaultMomentumFilter()
	u := &c.Universe
	if len(u.Symbols) == 0 {
		u.Symbols = []string{"AAPL", "MSFT", "GOOGL"}
	}
	if u.Period == "" {
		u.Period = "1y"
	}
	if u.Interval == "" {
		u.Interval = "1d"
	}
	if u.MinVolume == 0 {
		u.MinVolume = mf.MinVolume
	}
	if u.MinPrice == 0 {
		u.MinPrice = mf.MinPrice
	}
	if u.MomentumLookback == 0 {
		u.MomentumLookback = mf.Lookback
	}
	if u.Concurrency == 0 {
		u.Concurrency = 4
	}
	vf, gf := universe.DefaultValueFilter(), universe.DefaultGrowthFilter()
	if u.MaxPE == 0 {
		u.MaxPE = vf.MaxPE
	}
	if u.MaxPriceToBook == 0 {
		u.MaxPriceToBook = vf.MaxPriceToBook
	}
	if u.MinDividendYield == 0 {
		u.MinDividendYield = vf.MinDividendYield
	}
	if u.MinRevenueGrowth == 0 {
		u.MinRevenueGrowth = gf.MinRevenueGrowth
	}
	if u.MinEarningsGrowth == 0 {
		u.MinEarningsGrowth = gf.MinEarningsGrowth
	}

	if len(c.StressScenarios) == 0 {
		c.StressScenarios = domain.DefaultStressScenarios()
	}

	if c.DataSource.Kind == "" {
		c.DataSource.Kind = SourceYahoo
	}
	if c.DataSource.CacheTTL == "" {
		c.DataSource.CacheTTL = "1h"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1500
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "stock-recommendations"
	}
	if c.Schedule.RecommendCron == "" {
		c.Schedule.RecommendCron = "0 30 16 * * 1-5"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks struct tags and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []string
	if c.Signals.MAFast >= c.Signals.MASlow {
		errs = append(errs, "signals.ma_fast must be below signals.ma_slow")
	}
	if c.Universe.MaxPrice > 0 && c.Universe.MaxPrice < c.Universe.MinPrice {
		errs = append(errs, "universe.max_price must not be below universe.min_price")
	}
	seen := make(map[string]bool, len(c.StressScenarios))
	for _, sc := range c.StressScenarios {
		if sc.Name == "" {
			errs = append(errs, "stress_scenarios: name is required")
		} else if seen[sc.Name] {
			errs = append(errs, fmt.Sprintf("stress_scenarios: duplicate name %q", sc.Name))
		}
		seen[sc.Name] = true
	}
	if c.DataSource.Kind == SourceInflux && (c.DataSource.Influx.URL == "" || c.DataSource.Influx.Bucket == "") {
		errs = append(errs, "data_source.influx.url and bucket are required for the influx source")
	}
	if c.DataSource.Kind == SourceStore && c.Storage.ClickHouseDSN == "" {
		errs = append(errs, "storage.clickhouse_dsn is required for the store source")
	}
	if _, err := time.ParseDuration(c.DataSource.CacheTTL); err != nil {
		errs = append(errs, fmt.Sprintf("data_source.cache_ttl: %v", err))
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		errs = append(errs, "llm.api_key is required when llm is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, "kafka.brokers is required when kafka is enabled")
	}

	if len(errs) > 0 {
		return errors.New("invalid config: " + strings.Join(errs, "; "))
	}
	return nil
}

// CacheTTL returns the parsed cache TTL.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.DataSource.CacheTTL)
	return d
}

// Preferences returns the configured recommendation preferences.
func (c *Config) Preferences() domain.Preferences {
	return domain.Preferences{
		RiskTolerance: domain.RiskTolerance(c.Analysis.RiskTolerance),
		TimeHorizon:   domain.TimeHorizon(c.Analysis.TimeHorizon),
		MaxPositions:  c.Analysis.MaxPositions,
		RiskPerTrade:  c.Analysis.RiskPerTrade,
	}
}

// CostModel returns the backtest execution assumptions.
func (c *Config) CostModel() domain.CostModel {
	return domain.CostModel{
		CommissionRate: c.Analysis.CommissionRate,
		InitialCapital: c.Analysis.InitialCapital,
	}
}

// StrategyConfig returns the default backtest strategy.
func (c *Config) StrategyConfig() domain.StrategyConfig {
	cfg := domain.StrategyConfig{
		StrategyType: domain.StrategyType(c.Analysis.StrategyType),
		Lookback:     c.Analysis.LookbackPeriod,
	}
	if cfg.StrategyType == domain.StrategyTypeMomentum {
		cfg.HoldingPeriod = c.Analysis.HoldingPeriod
	} else {
		cfg.StdDevs = c.Analysis.StdDevs
	}
	return cfg
}

// RiskConfig returns the risk engine settings.
func (c *Config) RiskConfig() risk.Config {
	return risk.Config{
		ConfidenceLevel: c.Analysis.ConfidenceLevel,
		VaRMethod:       domain.VaRMethod(c.Analysis.VaRMethod),
	}
}

// SignalParams returns indicator settings; RSI thresholds keep their defaults.
func (c *Config) SignalParams() signals.Params {
	p := signals.DefaultParams()
	p.MAFast = c.Signals.MAFast
	p.MASlow = c.Signals.MASlow
	p.RSIWindow = c.Signals.RSIWindow
	p.BollingerWindow = c.Signals.BollingerWindow
	p.BollingerStdDevs = c.Signals.BollingerStdDevs
	return p
}

// MomentumFilter returns the universe filter settings.
func (c *Config) MomentumFilter() universe.MomentumFilter {
	return universe.MomentumFilter{
		MinVolume: c.Universe.MinVolume,
		MinPrice:  c.Universe.MinPrice,
		MaxPrice:  c.Universe.MaxPrice,
		Lookback:  c.Universe.MomentumLookback,
	}
}

// FundamentalFilter returns the configured fundamental screen, or nil
// when none is selected.
func (c *Config) FundamentalFilter() universe.FundamentalFilter {
	u := c.Universe
	switch u.Screen {
	case ScreenValue:
		return universe.ValueFilter{MaxPE: u.MaxPE, MaxPriceToBook: u.MaxPriceToBook, MinDividendYield: u.MinDividendYield}
	case ScreenGrowth:
		return universe.GrowthFilter{MinRevenueGrowth: u.MinRevenueGrowth, MinEarningsGrowth: u.MinEarningsGrowth}
	}
	return nil
}

// LoadEnvFile loads environment variables from a .env file if it exists.
// Variables already set in the environment win.
func LoadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
