package narrative

import (
	"fmt"
	"math"
	"strings"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/metrics"
)

// ReturnWindow is the bar count behind the trailing return in the prompt.
const ReturnWindow = 30

// UniverseMetrics are the per-symbol figures given to the model.
type UniverseMetrics struct {
	Symbol        string
	LastPrice     float64
	VolatilityPct float64 // sample std of bar-to-bar change, in percent
	ReturnPct     float64 // change over the last ReturnWindow bars, NaN when shorter
}

// ComputeMetrics derives prompt figures for one series.
func ComputeMetrics(s *domain.PriceSeries) UniverseMetrics {
	m := UniverseMetrics{Symbol: s.Symbol, VolatilityPct: math.NaN(), ReturnPct: math.NaN()}
	closes := s.Closes()
	if len(closes) == 0 {
		m.LastPrice = math.NaN()
		return m
	}
	m.LastPrice = closes[len(closes)-1]

	if len(closes) >= 2 {
		changes := make([]float64, len(closes)-1)
		for i := 1; i < len(closes); i++ {
			changes[i-1] = closes[i]/closes[i-1] - 1
		}
		m.VolatilityPct = metrics.Stddev(changes) * 100
	}
	if len(closes) >= ReturnWindow {
		m.ReturnPct = (m.LastPrice/closes[len(closes)-ReturnWindow] - 1) * 100
	}
	return m
}

// BuildResearchPrompt renders the research request for a universe.
func BuildResearchPrompt(universe []*domain.PriceSeries) string {
	var b strings.Builder
	b.WriteString("Analyze the following stock universe and generate a comprehensive research report.\n\n")
	b.WriteString("Universe Metrics:\n")
	for _, s := range universe {
		m := ComputeMetrics(s)
		fmt.Fprintf(&b, "\n%s:\n", m.Symbol)
		fmt.Fprintf(&b, "  - Current Price: %s\n", fmtNum(m.LastPrice, ""))
		fmt.Fprintf(&b, "  - Volatility: %s\n", fmtNum(m.VolatilityPct, "%"))
		fmt.Fprintf(&b, "  - %d-bar Return: %s\n", ReturnWindow, fmtNum(m.ReturnPct, "%"))
	}
	b.WriteString("\nPlease provide:\n")
	for i, sec := range sectionOrder {
		fmt.Fprintf(&b, "%d. %s\n", i+1, sectionTitles[sec])
	}
	return b.String()
}

func fmtNum(v float64, suffix string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%s", v, suffix)
}
