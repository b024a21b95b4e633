package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders verdicts as a per-asset gate checklist.
func RenderMarkdown(results []*Result) string {
	var sb strings.Builder

	sb.WriteString("## Decision Checklist\n\n")
	if len(results) == 0 {
		sb.WriteString("No assets evaluated.\n")
		return sb.String()
	}

	for _, r := range results {
		sb.WriteString(fmt.Sprintf("### %s: %s\n\n", r.Symbol, r.Action))
		sb.WriteString(fmt.Sprintf("Raw signal %+d, combined %+d\n\n", r.RawSignal, r.CombinedSignal))
		sb.WriteString("| # | Gate | Threshold | Actual | Status |\n")
		sb.WriteString("|---|------|-----------|--------|--------|\n")
		for i, g := range r.Gates {
			status := "PASS"
			if !g.Pass {
				status = "VETO"
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
				i+1, g.Name, g.Threshold, g.Actual, status))
		}
		sb.WriteString("\n")
	}

	// Summary
	vetoed := 0
	for _, r := range results {
		if r.Vetoed() {
			vetoed++
		}
	}
	sb.WriteString(fmt.Sprintf("Gates vetoed %d/%d assets\n", vetoed, len(results)))
	return sb.String()
}
