package metrics

import (
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) <= eps }

func TestStddev_Sample(t *testing.T) {
	// values 2,4,4,4,5,5,7,9: sum of squared deviations 32, n-1 = 7
	got := Stddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := math.Sqrt(32.0 / 7.0)
	if !approx(got, want) {
		t.Errorf("Stddev = %v, want %v", got, want)
	}
}

func TestStddev_TooFew(t *testing.T) {
	if !math.IsNaN(Stddev([]float64{1})) {
		t.Error("expected NaN for a single value")
	}
}

func TestStddev_Constant(t *testing.T) {
	if got := Stddev([]float64{0, 0, 0, 0}); got != 0 {
		t.Errorf("expected exactly 0, got %v", got)
	}
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{0.05, 1.2},
		{0.25, 2},
		{0.5, 3},
		{0.9, 4.6},
		{1, 5},
	}
	for _, tt := range tests {
		if got := Percentile(sorted, tt.p); !approx(got, tt.want) {
			t.Errorf("Percentile(p=%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestPercentileOf_DoesNotMutate(t *testing.T) {
	values := []float64{5, 1, 3}
	_ = PercentileOf(values, 0.5)
	if values[0] != 5 || values[1] != 1 || values[2] != 3 {
		t.Errorf("input mutated: %v", values)
	}
}

func TestCorrelation(t *testing.T) {
	a := []float64{0.01, -0.02, 0.03, -0.01}
	neg := []float64{-0.01, 0.02, -0.03, 0.01}
	if got := Correlation(a, a); !approx(got, 1) {
		t.Errorf("self correlation = %v, want 1", got)
	}
	if got := Correlation(a, neg); !approx(got, -1) {
		t.Errorf("anti correlation = %v, want -1", got)
	}
	if got := Correlation(a, []float64{0.01, 0.01, 0.01, 0.01}); !math.IsNaN(got) {
		t.Errorf("zero-variance correlation = %v, want NaN", got)
	}
}

func TestDrawdowns(t *testing.T) {
	equity := []float64{100, 110, 99, 121, 110}
	dd := Drawdowns(equity)
	want := []float64{0, 0, -0.1, 0, -1.0 / 11.0}
	for i := range want {
		if !approx(dd[i], want[i]) {
			t.Errorf("dd[%d] = %v, want %v", i, dd[i], want[i])
		}
	}
	if got := MaxDrawdown(equity); !approx(got, -0.1) {
		t.Errorf("MaxDrawdown = %v, want -0.1", got)
	}
}

func TestMaxDrawdown_NonDecreasingIsZero(t *testing.T) {
	if got := MaxDrawdown([]float64{1, 1, 2, 3, 3}); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestCompound(t *testing.T) {
	got := Compound(100, []float64{0.1, -0.5})
	if !approx(got[0], 110) || !approx(got[1], 55) {
		t.Errorf("Compound = %v", got)
	}
}

func TestSafeRatio(t *testing.T) {
	if SafeRatio(1, 0) != 0 {
		t.Error("expected 0 for zero denominator")
	}
	if SafeRatio(1, 2) != 0.5 {
		t.Error("expected 0.5")
	}
}

func TestSign(t *testing.T) {
	if Sign(3) != 1 || Sign(-0.1) != -1 || Sign(0) != 0 {
		t.Error("unexpected sign")
	}
}
