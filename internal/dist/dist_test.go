package dist

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arabica/risk-engine/internal/series"
)

func seriesFromReturns(t *testing.T, returns []float64) *series.ReturnSeries {
	t.Helper()
	obs := make([]series.Observation, 0, len(returns)+1)
	price := 100.0
	obs = append(obs, series.Observation{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Price:     decimal.NewFromFloat(price),
	})
	for i, r := range returns {
		price *= 1 + r
		obs = append(obs, series.Observation{
			Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i+1),
			Price:     decimal.NewFromFloat(price),
		})
	}
	s, err := series.New(obs, series.Simple)
	if err != nil {
		t.Fatalf("failed to build series: %v", err)
	}
	return s
}

// --- Empirical ---

func TestNewEmpirical_Empty(t *testing.T) {
	_, err := NewEmpirical(nil)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestEmpirical_Quantile(t *testing.T) {
	// Returns -0.05..0.04 give losses -0.04..0.05; the 95% loss quantile
	// with linear interpolation over 10 points sits between the two largest.
	returns := []float64{-0.05, -0.04, -0.03, -0.02, -0.01, 0, 0.01, 0.02, 0.03, 0.04}
	e, err := NewEmpirical(returns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := e.Quantile(0.95)
	want := 0.0455 // 0.04 + 0.55*(0.05-0.04)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected quantile %g, got %g", want, got)
	}
}

func TestEmpirical_ESAtLeastVaR(t *testing.T) {
	returns := []float64{-0.08, -0.03, -0.01, 0.005, 0.01, 0.02, 0.025, -0.02, 0.015, -0.005}
	e, _ := NewEmpirical(returns)
	for _, c := range []float64{0.9, 0.95, 0.99} {
		v := e.Quantile(c)
		es := e.ExpectedShortfall(c)
		if es < v {
			t.Errorf("c=%g: ES %g below VaR %g", c, es, v)
		}
	}
}

func TestEmpirical_EmptyTailDegradesToQuantile(t *testing.T) {
	// Tied worst losses leave no observation strictly beyond the quantile.
	e, _ := NewEmpirical([]float64{0.005, -0.01, -0.01})
	v := e.Quantile(0.95)
	es := e.ExpectedShortfall(0.95)
	if es != v {
		t.Errorf("empty tail: expected ES == VaR (%g), got %g", v, es)
	}
	if math.Abs(v-0.01) > 1e-12 {
		t.Errorf("expected quantile 0.01, got %g", v)
	}
}

func TestEmpirical_Scaled(t *testing.T) {
	e, _ := NewEmpirical([]float64{-0.02, 0.01, -0.01, 0.02})
	k := math.Sqrt(10)
	s := e.Scaled(k)
	if got, want := s.Quantile(0.95), e.Quantile(0.95)*k; math.Abs(got-want) > 1e-12 {
		t.Errorf("scaled quantile: expected %g, got %g", want, got)
	}
}

func TestPercentile_Bounds(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	if got := percentile(sorted, 0); got != 1 {
		t.Errorf("p=0: expected 1, got %g", got)
	}
	if got := percentile(sorted, 1); got != 4 {
		t.Errorf("p=1: expected 4, got %g", got)
	}
	if got := percentile(sorted, 0.5); got != 2.5 {
		t.Errorf("p=0.5: expected 2.5, got %g", got)
	}
	if got := percentile([]float64{7}, 0.5); got != 7 {
		t.Errorf("single element: expected 7, got %g", got)
	}
}

// --- Parametric ---

func flatReturns(n int, r float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r
	}
	return out
}

func alternatingReturns(n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amp
		} else {
			out[i] = -amp
		}
	}
	return out
}

func TestFitParametric_InsufficientData(t *testing.T) {
	s := seriesFromReturns(t, alternatingReturns(10, 0.01))
	_, err := FitParametric(s, FamilyNormal, 30)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestFitParametric_UnknownFamily(t *testing.T) {
	s := seriesFromReturns(t, alternatingReturns(40, 0.01))
	_, err := FitParametric(s, "cauchy", 0)
	if !errors.Is(err, ErrUnknownFamily) {
		t.Errorf("expected ErrUnknownFamily, got %v", err)
	}
}

func TestParametric_NormalQuantile(t *testing.T) {
	// mu=0, sigma=0.02 at 95%: VaR = 1.6449 * 0.02 ≈ 0.0329.
	p := &Parametric{Mean: 0, StdDev: 0.02, Family: FamilyNormal}
	got := p.Quantile(0.95)
	if math.Abs(got-0.0329) > 0.0002 {
		t.Errorf("expected ~0.0329, got %g", got)
	}
}

func TestParametric_NormalESExceedsVaR(t *testing.T) {
	p := &Parametric{Mean: 0.0002, StdDev: 0.015, Family: FamilyNormal}
	for _, c := range []float64{0.9, 0.95, 0.99} {
		if es, v := p.ExpectedShortfall(c), p.Quantile(c); es < v {
			t.Errorf("c=%g: ES %g below VaR %g", c, es, v)
		}
	}
}

func TestParametric_StudentTFatterTail(t *testing.T) {
	n := &Parametric{Mean: 0, StdDev: 0.02, Family: FamilyNormal}
	st := &Parametric{Mean: 0, StdDev: 0.02, Family: FamilyStudentT, Nu: 5}
	// At 99% the t quantile exceeds the normal one for the same sample sigma.
	if st.Quantile(0.99) <= n.Quantile(0.99) {
		t.Errorf("student-t 99%% quantile %g should exceed normal %g",
			st.Quantile(0.99), n.Quantile(0.99))
	}
}

func TestFitParametric_NuClamped(t *testing.T) {
	// Alternating returns have negative excess kurtosis, which maps to the
	// thin-tailed ceiling.
	s := seriesFromReturns(t, alternatingReturns(60, 0.01))
	p, err := FitParametric(s, FamilyStudentT, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Nu < 4.5 || p.Nu > 100 {
		t.Errorf("nu %g outside [4.5, 100]", p.Nu)
	}
}

func TestParametric_WithHorizon(t *testing.T) {
	p := &Parametric{Mean: 0.001, StdDev: 0.02, Family: FamilyNormal}
	h := p.WithHorizon(10)
	if math.Abs(h.Mean-0.01) > 1e-12 {
		t.Errorf("expected mean 0.01, got %g", h.Mean)
	}
	if math.Abs(h.StdDev-0.02*math.Sqrt(10)) > 1e-12 {
		t.Errorf("expected stddev %g, got %g", 0.02*math.Sqrt(10), h.StdDev)
	}
	// Original untouched.
	if p.Mean != 0.001 || p.StdDev != 0.02 {
		t.Error("WithHorizon mutated the receiver")
	}
}

// --- Simulation ---

func TestSimulate_Deterministic(t *testing.T) {
	p := &Parametric{Mean: 0.0001, StdDev: 0.02, Family: FamilyNormal}

	a, err := Simulate(p, 10000, 5, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Simulate(p, 10000, 5, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same seed must be bit-identical, not approximately equal.
	for _, c := range []float64{0.9, 0.95, 0.99} {
		if a.Quantile(c) != b.Quantile(c) {
			t.Errorf("c=%g: same seed gave %v and %v", c, a.Quantile(c), b.Quantile(c))
		}
		if a.ExpectedShortfall(c) != b.ExpectedShortfall(c) {
			t.Errorf("c=%g: same seed gave different ES", c)
		}
	}
}

func TestSimulate_DifferentSeedsDiffer(t *testing.T) {
	p := &Parametric{Mean: 0, StdDev: 0.02, Family: FamilyNormal}
	a, _ := Simulate(p, 5000, 1, 1)
	b, _ := Simulate(p, 5000, 1, 2)
	if a.Quantile(0.95) == b.Quantile(0.95) {
		t.Error("different seeds should give different samples")
	}
}

func TestSimulate_ConvergesToNormal(t *testing.T) {
	p := &Parametric{Mean: 0, StdDev: 0.02, Family: FamilyNormal}
	sim, err := Simulate(p, 200000, 1, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	analytic := p.Quantile(0.95)
	if math.Abs(sim.Quantile(0.95)-analytic) > 0.002 {
		t.Errorf("simulated quantile %g too far from analytic %g",
			sim.Quantile(0.95), analytic)
	}
}

func TestSimulate_InvalidParameters(t *testing.T) {
	p := &Parametric{Mean: 0, StdDev: 0.02, Family: FamilyNormal}
	if _, err := Simulate(p, 0, 1, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("pathCount=0: expected ErrInvalidParameter, got %v", err)
	}
	if _, err := Simulate(p, 100, 0, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("horizon=0: expected ErrInvalidParameter, got %v", err)
	}
	bad := &Parametric{Mean: 0, StdDev: 0.02, Family: FamilyEmpirical}
	if _, err := Simulate(bad, 100, 1, 1); !errors.Is(err, ErrUnknownFamily) {
		t.Errorf("empirical family: expected ErrUnknownFamily, got %v", err)
	}
}

func TestSimulateBootstrap_Deterministic(t *testing.T) {
	s := seriesFromReturns(t, alternatingReturns(50, 0.015))
	a, err := SimulateBootstrap(s, 8000, 3, 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := SimulateBootstrap(s, 8000, 3, 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Quantile(0.95) != b.Quantile(0.95) {
		t.Error("bootstrap with same seed should be bit-identical")
	}
}

func TestSimulateBootstrap_StaysInObservedRange(t *testing.T) {
	// With a single repeated return every bootstrap path compounds exactly it.
	s := seriesFromReturns(t, flatReturns(20, -0.01))
	sim, err := SimulateBootstrap(s, 1000, 2, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := -(math.Pow(0.99, 2) - 1) // loss of the compounded 2-day move
	if got := sim.Quantile(0.5); math.Abs(got-want) > 1e-12 {
		t.Errorf("expected every path loss %g, got %g", want, got)
	}
}
