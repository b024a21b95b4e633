package domain

import (
	"fmt"
	"sort"
)

// ReturnSeries holds simple returns derived from a PriceSeries close column.
// Values[i] is the return from bar i to bar i+1, stamped with bar i+1's time.
type ReturnSeries struct {
	Symbol       string
	TimestampsMs []int64
	Values       []float64
}

// Len returns the number of returns.
func (r *ReturnSeries) Len() int { return len(r.Values) }

// ReturnsFromSeries computes close-to-close simple returns.
// The first bar has no prior close and is dropped.
func ReturnsFromSeries(s *PriceSeries) (ReturnSeries, error) {
	if len(s.Bars) < 2 {
		return ReturnSeries{}, fmt.Errorf("%w: %q needs at least 2 bars for returns, got %d", ErrInsufficientData, s.Symbol, len(s.Bars))
	}
	n := len(s.Bars) - 1
	out := ReturnSeries{
		Symbol:       s.Symbol,
		TimestampsMs: make([]int64, n),
		Values:       make([]float64, n),
	}
	for i := 1; i < len(s.Bars); i++ {
		prev := s.Bars[i-1].Close
		if prev == 0 {
			return ReturnSeries{}, fmt.Errorf("%w: %q has zero close at bar %d", ErrInvalidParameter, s.Symbol, i-1)
		}
		out.TimestampsMs[i-1] = s.Bars[i].TimestampMs
		out.Values[i-1] = s.Bars[i].Close/prev - 1
	}
	return out, nil
}

// ReturnTable is a set of ReturnSeries aligned on common timestamps.
// Columns[j][i] is the return of Symbols[j] at TimestampsMs[i].
type ReturnTable struct {
	Symbols      []string
	TimestampsMs []int64
	Columns      [][]float64
}

// Rows returns the number of aligned observations.
func (t *ReturnTable) Rows() int { return len(t.TimestampsMs) }

// Column returns the returns for symbol, or false if absent.
func (t *ReturnTable) Column(symbol string) ([]float64, bool) {
	for j, s := range t.Symbols {
		if s == symbol {
			return t.Columns[j], true
		}
	}
	return nil, false
}

// AlignReturns joins return series on the timestamps present in every series.
// Symbols keep their input order. Duplicate symbols are rejected.
func AlignReturns(series []ReturnSeries) (ReturnTable, error) {
	if len(series) == 0 {
		return ReturnTable{}, fmt.Errorf("%w: no return series to align", ErrInsufficientData)
	}

	seen := make(map[string]bool, len(series))
	counts := make(map[int64]int)
	for _, rs := range series {
		if seen[rs.Symbol] {
			return ReturnTable{}, fmt.Errorf("%w: duplicate symbol %q", ErrInvalidParameter, rs.Symbol)
		}
		seen[rs.Symbol] = true
		for _, ts := range rs.TimestampsMs {
			counts[ts]++
		}
	}

	common := make([]int64, 0, len(counts))
	for ts, c := range counts {
		if c == len(series) {
			common = append(common, ts)
		}
	}
	sort.Slice(common, func(i, j int) bool { return common[i] < common[j] })
	if len(common) == 0 {
		return ReturnTable{}, fmt.Errorf("%w: return series share no timestamps", ErrInsufficientData)
	}

	table := ReturnTable{
		Symbols:      make([]string, len(series)),
		TimestampsMs: common,
		Columns:      make([][]float64, len(series)),
	}
	for j, rs := range series {
		byTs := make(map[int64]float64, len(rs.Values))
		for i, ts := range rs.TimestampsMs {
			byTs[ts] = rs.Values[i]
		}
		col := make([]float64, len(common))
		for i, ts := range common {
			col[i] = byTs[ts]
		}
		table.Symbols[j] = rs.Symbol
		table.Columns[j] = col
	}
	return table, nil
}

// NewReturnTable builds a table directly from equal-length columns.
// Timestamps are synthesised as row indexes.
func NewReturnTable(symbols []string, columns [][]float64) (ReturnTable, error) {
	if len(symbols) == 0 || len(symbols) != len(columns) {
		return ReturnTable{}, fmt.Errorf("%w: %d symbols for %d columns", ErrInvalidParameter, len(symbols), len(columns))
	}
	n := len(columns[0])
	for j, c := range columns {
		if len(c) != n {
			return ReturnTable{}, fmt.Errorf("%w: column %q has %d rows, want %d", ErrInvalidParameter, symbols[j], len(c), n)
		}
	}
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = int64(i)
	}
	cols := make([][]float64, len(columns))
	for j, c := range columns {
		cols[j] = append([]float64(nil), c...)
	}
	return ReturnTable{Symbols: append([]string(nil), symbols...), TimestampsMs: ts, Columns: cols}, nil
}
