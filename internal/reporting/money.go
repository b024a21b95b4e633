package reporting

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const notAvailable = "n/a"

// FormatMoney renders v with two decimals and thousands separators,
// e.g. "-1,234.50". Non-finite values render as "n/a".
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notAvailable
	}
	s := decimal.NewFromFloat(v).Round(2).StringFixed(2)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var sb strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(c)
	}
	if sign == "-" && sb.String() == "0" && strings.Trim(frac, "0") == "" {
		sign = ""
	}
	return sign + sb.String() + "." + frac
}

// FormatPct renders a fraction as a percentage with two decimals.
func FormatPct(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notAvailable
	}
	return decimal.NewFromFloat(v).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

// formatFloat renders a ratio with four decimals.
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notAvailable
	}
	return decimal.NewFromFloat(v).StringFixed(4)
}
