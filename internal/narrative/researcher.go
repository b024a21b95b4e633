package narrative

import (
	"context"
	"fmt"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/observability"
)

// Researcher produces a research report for a universe.
type Researcher struct {
	gen  Generator
	sink observability.Sink
}

// NewResearcher creates a researcher over gen.
func NewResearcher(gen Generator, sink observability.Sink) *Researcher {
	return &Researcher{gen: gen, sink: observability.OrNop(sink)}
}

// Research builds the prompt, generates the narrative and parses it.
func (r *Researcher) Research(ctx context.Context, universe []*domain.PriceSeries) (*Report, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("%w: empty universe", domain.ErrInsufficientData)
	}

	text, err := r.gen.Generate(ctx, BuildResearchPrompt(universe))
	if err != nil {
		r.sink.Emit(observability.Event{
			Component: "narrative", Name: "generate_failed", Level: observability.LevelWarn, Err: err,
		})
		return nil, fmt.Errorf("generate research report: %w", err)
	}

	report := ParseReport(text)
	filled := 0
	for _, s := range sectionOrder {
		if report.Sections[s] != "" {
			filled++
		}
	}
	r.sink.Emit(observability.Event{
		Component: "narrative",
		Name:      "report_generated",
		Level:     observability.LevelInfo,
		Attrs:     map[string]any{"symbols": len(universe), "sections": filled},
	})
	return report, nil
}
