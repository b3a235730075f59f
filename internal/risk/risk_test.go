package risk

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arabica/risk-engine/internal/dist"
	"github.com/arabica/risk-engine/internal/series"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedPtr(s int64) *int64 { return &s }

// seriesFromReturns rebuilds a price path realizing the given simple returns.
func seriesFromReturns(t *testing.T, returns []float64) *series.ReturnSeries {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := []series.Observation{{Timestamp: start, Price: d(100)}}
	price := 100.0
	for i, r := range returns {
		price *= 1 + r
		obs = append(obs, series.Observation{
			Timestamp: start.AddDate(0, 0, i+1),
			Price:     d(price),
		})
	}
	s, err := series.New(obs, series.Simple)
	if err != nil {
		t.Fatalf("failed to build series: %v", err)
	}
	return s
}

// mixedReturns is a fixed pseudo-sample with both tails populated.
func mixedReturns(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.018 * math.Sin(float64(i)*1.7) // deterministic, mean ~0
	}
	return out
}

// --- Config validation ---

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"valid historical", Config{Confidence: 0.95, HorizonDays: 1, Method: MethodHistorical}, nil},
		{"confidence zero", Config{Confidence: 0, HorizonDays: 1, Method: MethodHistorical}, ErrInvalidParameter},
		{"confidence one", Config{Confidence: 1, HorizonDays: 1, Method: MethodHistorical}, ErrInvalidParameter},
		{"confidence above one", Config{Confidence: 1.5, HorizonDays: 1, Method: MethodHistorical}, ErrInvalidParameter},
		{"zero horizon", Config{Confidence: 0.95, HorizonDays: 0, Method: MethodHistorical}, ErrInvalidParameter},
		{"unknown method", Config{Confidence: 0.95, HorizonDays: 1, Method: "delta-normal"}, ErrInvalidParameter},
		{"mc without seed", Config{Confidence: 0.95, HorizonDays: 1, Method: MethodMonteCarlo, PathCount: 1000}, ErrMissingSeed},
		{"mc zero paths", Config{Confidence: 0.95, HorizonDays: 1, Method: MethodMonteCarlo, PathCount: 0, Seed: seedPtr(1)}, ErrInvalidParameter},
		{"mc valid", Config{Confidence: 0.95, HorizonDays: 1, Method: MethodMonteCarlo, PathCount: 1000, Seed: seedPtr(1)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// --- Historical ---

func TestCompute_Historical_ZeroReturnsZeroVaR(t *testing.T) {
	s := seriesFromReturns(t, make([]float64, 50))
	res, err := Compute(s, d(1_000_000), "USD", Config{
		Confidence: 0.95, HorizonDays: 1, Method: MethodHistorical,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.VaR.IsZero() || !res.ES.IsZero() {
		t.Errorf("constant prices should give zero VaR/ES, got %s / %s", res.VaR, res.ES)
	}
}

func TestCompute_Historical_MonotoneInConfidence(t *testing.T) {
	s := seriesFromReturns(t, mixedReturns(250))
	var prev float64
	for i, c := range []float64{0.90, 0.95, 0.99} {
		res, err := Compute(s, d(1_000_000), "USD", Config{
			Confidence: c, HorizonDays: 1, Method: MethodHistorical,
		})
		if err != nil {
			t.Fatalf("c=%g: unexpected error: %v", c, err)
		}
		if i > 0 && res.VaRPct < prev {
			t.Errorf("VaR must not decrease with confidence: %g at c=%g after %g", res.VaRPct, c, prev)
		}
		if res.ESPct < res.VaRPct {
			t.Errorf("c=%g: ES %g below VaR %g", c, res.ESPct, res.VaRPct)
		}
		prev = res.VaRPct
	}
}

func TestCompute_Historical_HorizonScaling(t *testing.T) {
	s := seriesFromReturns(t, mixedReturns(250))
	one, err := Compute(s, d(1), "USD", Config{Confidence: 0.95, HorizonDays: 1, Method: MethodHistorical})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ten, err := Compute(s, d(1), "USD", Config{Confidence: 0.95, HorizonDays: 10, Method: MethodHistorical})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := one.VaRPct * math.Sqrt(10)
	if math.Abs(ten.VaRPct-want) > 1e-9 {
		t.Errorf("expected sqrt-horizon scaling to %g, got %g", want, ten.VaRPct)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	s := seriesFromReturns(t, mixedReturns(120))
	cfg := Config{Confidence: 0.95, HorizonDays: 1, Method: MethodHistorical}
	a, err := Compute(s, d(500_000), "USD", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Compute(s, d(500_000), "USD", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.VaR.Equal(b.VaR) || !a.ES.Equal(b.ES) || !a.AsOf.Equal(b.AsOf) {
		t.Errorf("identical inputs should give identical results: %+v vs %+v", a, b)
	}
	if !a.AsOf.Equal(s.Last()) {
		t.Errorf("AsOf should be the last observation, got %s", a.AsOf)
	}
}

// --- Parametric ---

func TestCompute_Parametric_NormalReference(t *testing.T) {
	// mu ~0, sigma ~0.02 at 95% 1-day should give VaR ≈ 3.29% of notional.
	returns := alternating(60, 0.02) // sample stddev slightly above 0.02
	s := seriesFromReturns(t, returns)

	res, err := Compute(s, d(1_000_000), "USD", Config{
		Confidence: 0.95, HorizonDays: 1, Method: MethodParametric,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sigma := s.StdDev()
	mu := s.Mean()
	want := -(mu + sigma*(-1.6448536269514722))
	if math.Abs(res.VaRPct-want) > 1e-9 {
		t.Errorf("expected VaRPct %g, got %g", want, res.VaRPct)
	}
	// Sanity against the textbook 0.0329 figure.
	if math.Abs(res.VaRPct-0.0329) > 0.002 {
		t.Errorf("expected VaRPct near 0.0329, got %g", res.VaRPct)
	}
}

func alternating(n int, amp float64) []float64 {
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

func TestCompute_Parametric_InsufficientData(t *testing.T) {
	s := seriesFromReturns(t, alternating(10, 0.01))
	_, err := Compute(s, d(1), "USD", Config{
		Confidence: 0.95, HorizonDays: 1, Method: MethodParametric,
	})
	if !errors.Is(err, dist.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestCompute_Parametric_EmpiricalFamilyRejected(t *testing.T) {
	s := seriesFromReturns(t, alternating(60, 0.01))
	_, err := Compute(s, d(1), "USD", Config{
		Confidence: 0.95, HorizonDays: 1, Method: MethodParametric, Family: dist.FamilyEmpirical,
	})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

// --- Monte Carlo ---

func TestCompute_MonteCarlo_SeedDeterminism(t *testing.T) {
	s := seriesFromReturns(t, mixedReturns(120))
	cfg := Config{
		Confidence: 0.95, HorizonDays: 5, Method: MethodMonteCarlo,
		PathCount: 20000, Seed: seedPtr(42),
	}
	a, err := Compute(s, d(1_000_000), "USD", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Compute(s, d(1_000_000), "USD", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Bit-identical, not approximately equal.
	if a.VaRPct != b.VaRPct || a.ESPct != b.ESPct {
		t.Errorf("same seed gave different results: %g/%g vs %g/%g",
			a.VaRPct, a.ESPct, b.VaRPct, b.ESPct)
	}
	if a.Seed != 42 || a.PathCount != 20000 {
		t.Errorf("result should record seed and paths, got seed=%d paths=%d", a.Seed, a.PathCount)
	}
}

func TestCompute_MonteCarlo_LowPrecisionFlag(t *testing.T) {
	s := seriesFromReturns(t, mixedReturns(120))
	res, err := Compute(s, d(1), "USD", Config{
		Confidence: 0.95, HorizonDays: 1, Method: MethodMonteCarlo,
		PathCount: 500, Seed: seedPtr(7),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.LowPrecision {
		t.Error("500 paths should be flagged low-precision")
	}

	res, err = Compute(s, d(1), "USD", Config{
		Confidence: 0.95, HorizonDays: 1, Method: MethodMonteCarlo,
		PathCount: 5000, Seed: seedPtr(7),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.LowPrecision {
		t.Error("5000 paths should not be flagged low-precision")
	}
}

func TestCompute_MonteCarlo_EmpiricalBootstrap(t *testing.T) {
	s := seriesFromReturns(t, mixedReturns(120))
	res, err := Compute(s, d(1_000_000), "USD", Config{
		Confidence: 0.95, HorizonDays: 3, Method: MethodMonteCarlo,
		Family: dist.FamilyEmpirical, PathCount: 10000, Seed: seedPtr(11),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.VaRPct <= 0 {
		t.Errorf("bootstrap over a two-sided sample should give positive VaR, got %g", res.VaRPct)
	}
	if res.ESPct < res.VaRPct {
		t.Errorf("ES %g below VaR %g", res.ESPct, res.VaRPct)
	}
}

// --- Notional conversion ---

func TestCompute_NotionalConversion(t *testing.T) {
	s := seriesFromReturns(t, mixedReturns(120))
	res, err := Compute(s, d(2_000_000), "USD", Config{
		Confidence: 0.95, HorizonDays: 1, Method: MethodHistorical,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := d(2_000_000).Mul(d(res.VaRPct)).Round(2)
	if !res.VaR.Equal(want) {
		t.Errorf("expected VaR %s, got %s", want, res.VaR)
	}
	if res.Currency != "USD" {
		t.Errorf("expected currency USD, got %s", res.Currency)
	}
}

// --- Backtesting ---

func TestRolling_WarmupNaN(t *testing.T) {
	s := seriesFromReturns(t, mixedReturns(60))
	vars, err := Rolling(s, 20, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vars) != s.NumReturns() {
		t.Fatalf("expected %d entries, got %d", s.NumReturns(), len(vars))
	}
	for i := 0; i < 20; i++ {
		if !math.IsNaN(vars[i]) {
			t.Errorf("entry %d should be NaN during warm-up", i)
		}
	}
	if math.IsNaN(vars[20]) {
		t.Error("entry 20 should hold the first prediction")
	}
}

func TestBacktest_TrafficLight(t *testing.T) {
	tests := []struct {
		name       string
		exceptions int
		total      int
		want       string
	}{
		{"green at expected rate", 5, 100, StatusGreen},   // rate 0.05 < 0.075
		{"yellow above 1.5x", 8, 100, StatusYellow},       // rate 0.08 in [0.075, 0.1)
		{"red at 2x and beyond", 12, 100, StatusRed},      // rate 0.12 >= 0.1
		{"green with zero exceptions", 0, 50, StatusGreen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			returns := make([]float64, tt.total)
			vars := make([]float64, tt.total)
			for i := range returns {
				vars[i] = 0.02
				if i < tt.exceptions {
					returns[i] = -0.03 // breaches -VaR
				}
			}
			res, err := Backtest(returns, vars, 0.95)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("expected %s, got %s (rate %g)", tt.want, res.Status, res.ExceptionRate)
			}
			if res.Exceptions != tt.exceptions {
				t.Errorf("expected %d exceptions, got %d", tt.exceptions, res.Exceptions)
			}
		})
	}
}

func TestBacktest_SkipsNaN(t *testing.T) {
	returns := []float64{-0.05, -0.05, 0.01}
	vars := []float64{math.NaN(), 0.02, 0.02}
	res, err := Backtest(returns, vars, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalDays != 2 {
		t.Errorf("expected 2 usable days, got %d", res.TotalDays)
	}
	if res.Exceptions != 1 {
		t.Errorf("expected 1 exception, got %d", res.Exceptions)
	}
}

func TestBacktest_LengthMismatch(t *testing.T) {
	_, err := Backtest([]float64{0.01}, []float64{0.02, 0.02}, 0.95)
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}
