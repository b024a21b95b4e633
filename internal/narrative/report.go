package narrative

import (
	"strings"
	"unicode"
)

// Section names a part of the research report.
type Section string

const (
	SectionMarketAnalysis  Section = "market_analysis"
	SectionTrends          Section = "trends"
	SectionRiskFactors     Section = "risk_factors"
	SectionOpportunities   Section = "opportunities"
	SectionRecommendations Section = "recommendations"
)

var sectionOrder = []Section{
	SectionMarketAnalysis,
	SectionTrends,
	SectionRiskFactors,
	SectionOpportunities,
	SectionRecommendations,
}

var sectionTitles = map[Section]string{
	SectionMarketAnalysis:  "Overall market analysis",
	SectionTrends:          "Key trends and patterns",
	SectionRiskFactors:     "Risk factors",
	SectionOpportunities:   "Investment opportunities",
	SectionRecommendations: "Recommendations",
}

// Sections returns the report sections in numbered order.
func Sections() []Section {
	out := make([]Section, len(sectionOrder))
	copy(out, sectionOrder)
	return out
}

// Title returns the heading of s.
func (s Section) Title() string { return sectionTitles[s] }

// Report is a parsed research report.
type Report struct {
	Sections map[Section]string `json:"sections"`
	Raw      string             `json:"raw"`
}

// Text returns the body of one section, empty when missing.
func (r *Report) Text(s Section) string { return r.Sections[s] }

// ParseReport splits model output into sections. A section starts at a line
// whose leading marker is "N." for N in 1..5, after any markdown heading or
// emphasis characters; the marker line itself is not part of the body.
// Text before the first marker is dropped.
func ParseReport(text string) *Report {
	r := &Report{Sections: make(map[Section]string, len(sectionOrder)), Raw: text}
	for _, s := range sectionOrder {
		r.Sections[s] = ""
	}

	var current Section
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if n, ok := sectionMarker(line); ok {
			current = sectionOrder[n-1]
			continue
		}
		if current != "" {
			r.Sections[current] += line + "\n"
		}
	}
	return r
}

// sectionMarker reports the section number when line begins with "N.".
func sectionMarker(line string) (int, bool) {
	trimmed := strings.TrimLeftFunc(line, func(r rune) bool {
		return r == '#' || r == '*' || r == '_' || unicode.IsSpace(r)
	})
	if len(trimmed) < 2 || trimmed[1] != '.' {
		return 0, false
	}
	n := int(trimmed[0] - '0')
	if n < 1 || n > len(sectionOrder) {
		return 0, false
	}
	// "1.5%" is a number, not a marker
	if len(trimmed) > 2 && unicode.IsDigit(rune(trimmed[2])) {
		return 0, false
	}
	return n, true
}
