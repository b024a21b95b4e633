package domain

// Fundamentals holds the valuation and growth figures of one symbol.
// A nil field means the provider did not report it.
type Fundamentals struct {
	Symbol         string   `json:"symbol"`
	TrailingPE     *float64 `json:"trailing_pe"`
	PriceToBook    *float64 `json:"price_to_book"`
	DividendYield  *float64 `json:"dividend_yield"` // fraction, 0.02 = 2%
	RevenueGrowth  *float64 `json:"revenue_growth"` // year over year fraction
	EarningsGrowth *float64 `json:"earnings_growth"`
}

// Dividend is one cash distribution per share.
type Dividend struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Amount      float64 `json:"amount"`
}
