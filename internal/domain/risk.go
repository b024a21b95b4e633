package domain

import (
	"encoding/json"
	"math"
)

// VaRMethod selects how Value at Risk is estimated.
type VaRMethod string

const (
	VaRHistorical VaRMethod = "historical"
	VaRParametric VaRMethod = "parametric"
)

// IsValid reports whether m is a known method.
func (m VaRMethod) IsValid() bool {
	return m == VaRHistorical || m == VaRParametric
}

// PortfolioRisk is the risk bundle for a weighted combination of assets.
// VaR and ExpectedShortfall are evaluated at Confidence (0.95 unless
// configured otherwise). ExpectedShortfall is NaN when no return falls
// at or below VaR.
type PortfolioRisk struct {
	AnnualizedVolatility float64   `json:"annualized_volatility"`
	VaR                  float64   `json:"var"`
	ExpectedShortfall    float64   `json:"expected_shortfall"`
	MaxDrawdown          float64   `json:"max_drawdown"`
	SharpeRatio          float64   `json:"sharpe_ratio"` // 0 when volatility is 0
	Confidence           float64   `json:"confidence"`
	VaRMethod            VaRMethod `json:"var_method"`
	Observations         int       `json:"observations"`
	Symbols              []string  `json:"symbols"`
	Weights              []float64 `json:"weights"`
}

// MarshalJSON writes undefined measures as null.
func (p PortfolioRisk) MarshalJSON() ([]byte, error) {
	type alias PortfolioRisk
	return json.Marshal(struct {
		alias
		AnnualizedVolatility *float64 `json:"annualized_volatility"`
		VaR                  *float64 `json:"var"`
		ExpectedShortfall    *float64 `json:"expected_shortfall"`
		MaxDrawdown          *float64 `json:"max_drawdown"`
		SharpeRatio          *float64 `json:"sharpe_ratio"`
	}{
		alias:                alias(p),
		AnnualizedVolatility: FiniteOrNil(p.AnnualizedVolatility),
		VaR:                  FiniteOrNil(p.VaR),
		ExpectedShortfall:    FiniteOrNil(p.ExpectedShortfall),
		MaxDrawdown:          FiniteOrNil(p.MaxDrawdown),
		SharpeRatio:          FiniteOrNil(p.SharpeRatio),
	})
}

// CorrelationMatrix is a symmetric symbol x symbol Pearson matrix.
// Values[i][j] is NaN only when symbol i or j has zero return variance;
// the diagonal is always 1.
type CorrelationMatrix struct {
	Symbols []string
	Values  [][]float64
}

// Get returns the coefficient for a symbol pair.
func (m *CorrelationMatrix) Get(a, b string) (float64, bool) {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return math.NaN(), false
	}
	return m.Values[i][j], true
}

func (m *CorrelationMatrix) index(symbol string) int {
	for i, s := range m.Symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

// MarshalJSON renders the matrix as a nested symbol mapping with null for NaN.
func (m CorrelationMatrix) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]*float64, len(m.Symbols))
	for i, a := range m.Symbols {
		row := make(map[string]*float64, len(m.Symbols))
		for j, b := range m.Symbols {
			row[b] = FiniteOrNil(m.Values[i][j])
		}
		out[a] = row
	}
	return json.Marshal(out)
}

// FiniteOrNil returns nil for NaN and infinities, else a pointer to v.
func FiniteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
