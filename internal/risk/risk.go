// Package risk implements the VaR engine: Value-at-Risk and Expected
// Shortfall over a return series via historical, parametric, and Monte Carlo
// methods.
//
// All figures follow the loss convention (losses positive) established by
// the dist package; RiskResult carries both the currency amount and the
// fraction of notional. Horizon scaling uses the i.i.d. square-root-of-time
// approximation: single-period returns scaled by sqrt(horizonDays), means by
// horizonDays — an approximation, not a re-derivation from multi-day data.
//
// Historical and parametric computations are pure functions of their inputs.
// Monte Carlo is deterministic only given an explicit seed; a missing seed
// is a caller error so backtests stay reproducible.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/arabica/risk-engine/internal/dist"
	"github.com/arabica/risk-engine/internal/model"
	"github.com/arabica/risk-engine/internal/series"
)

// VaR methods.
const (
	MethodHistorical = "historical"
	MethodParametric = "parametric"
	MethodMonteCarlo = "monte-carlo"
)

// LowPrecisionPaths is the Monte Carlo path count below which results are
// flagged low-precision instead of rejected, so callers decide tolerance.
const LowPrecisionPaths = 1000

var (
	// ErrInvalidParameter is returned for out-of-range confidence levels,
	// horizons, path counts, or unknown methods.
	ErrInvalidParameter = errors.New("risk: parameter out of range")

	// ErrMissingSeed is returned for a Monte Carlo request without an
	// explicit seed. Implicit seeding would make backtests irreproducible.
	ErrMissingSeed = errors.New("risk: monte carlo requires an explicit seed")
)

// Config is the explicit per-computation configuration. There are no
// process-wide defaults; every entry point receives its own Config so
// concurrent report requests cannot interfere.
type Config struct {
	Confidence      float64 // in (0,1) exclusive
	HorizonDays     int     // >= 1
	Method          string  // historical | parametric | monte-carlo
	Family          string  // normal | student-t | empirical; empty = normal
	PathCount       int     // Monte Carlo only
	Seed            *int64  // Monte Carlo only; nil = not supplied
	MinObservations int     // parametric fits; 0 = dist.DefaultMinObservations
}

// Validate checks the configuration ranges shared by all methods.
func (c Config) Validate() error {
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return fmt.Errorf("%w: confidence must be in (0,1) exclusive, got %g",
			ErrInvalidParameter, c.Confidence)
	}
	if c.HorizonDays < 1 {
		return fmt.Errorf("%w: horizonDays must be >= 1, got %d",
			ErrInvalidParameter, c.HorizonDays)
	}
	switch c.Method {
	case MethodHistorical, MethodParametric:
	case MethodMonteCarlo:
		if c.PathCount < 1 {
			return fmt.Errorf("%w: pathCount must be >= 1, got %d",
				ErrInvalidParameter, c.PathCount)
		}
		if c.Seed == nil {
			return ErrMissingSeed
		}
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidParameter, c.Method)
	}
	return nil
}

// family returns the effective distribution family.
func (c Config) family() string {
	if c.Family == "" {
		return dist.FamilyNormal
	}
	return c.Family
}

// Compute runs one VaR/ES computation over the series and converts the
// fractional figures into currency amounts on the given gross notional.
// The result's AsOf is the series' last observation, so recomputing with
// identical inputs yields an identical result.
func Compute(s *series.ReturnSeries, notional decimal.Decimal, currency string, cfg Config) (*model.RiskResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := &model.RiskResult{
		Method:      cfg.Method,
		Confidence:  cfg.Confidence,
		HorizonDays: cfg.HorizonDays,
		Currency:    currency,
		AsOf:        s.Last(),
	}

	var m dist.Model
	switch cfg.Method {
	case MethodHistorical:
		emp, err := dist.NewEmpirical(s.Returns())
		if err != nil {
			return nil, err
		}
		m = emp.Scaled(math.Sqrt(float64(cfg.HorizonDays)))

	case MethodParametric:
		if cfg.family() == dist.FamilyEmpirical {
			return nil, fmt.Errorf("%w: parametric method cannot use the empirical family",
				ErrInvalidParameter)
		}
		p, err := dist.FitParametric(s, cfg.family(), cfg.MinObservations)
		if err != nil {
			return nil, err
		}
		m = p.WithHorizon(cfg.HorizonDays)

	case MethodMonteCarlo:
		sim, err := simulate(s, cfg)
		if err != nil {
			return nil, err
		}
		m = sim
		res.PathCount = sim.Paths
		res.Seed = sim.Seed
		res.LowPrecision = sim.Paths < LowPrecisionPaths
	}

	res.VaRPct = m.Quantile(cfg.Confidence)
	res.ESPct = m.ExpectedShortfall(cfg.Confidence)

	gross := notional.Abs()
	res.VaR = gross.Mul(decimal.NewFromFloat(res.VaRPct)).Round(2)
	res.ES = gross.Mul(decimal.NewFromFloat(res.ESPct)).Round(2)

	return res, nil
}

// simulate builds the horizon-baked simulated distribution for the Monte
// Carlo method: bootstrap for the empirical family, parametric draws
// otherwise.
func simulate(s *series.ReturnSeries, cfg Config) (*dist.Simulated, error) {
	if cfg.family() == dist.FamilyEmpirical {
		return dist.SimulateBootstrap(s, cfg.PathCount, cfg.HorizonDays, *cfg.Seed)
	}
	p, err := dist.FitParametric(s, cfg.family(), cfg.MinObservations)
	if err != nil {
		return nil, err
	}
	return dist.Simulate(p, cfg.PathCount, cfg.HorizonDays, *cfg.Seed)
}
