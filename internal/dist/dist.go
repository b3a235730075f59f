// Package dist fits return distributions and exposes them behind a single
// quantile/expected-shortfall contract consumed by the VaR engine.
//
// Every Model variant works in the loss convention: losses are positive
// numbers (loss = -return), so a large negative return is a large positive
// loss. Quantile(c) is the loss not exceeded with probability c — the (1-c)
// quantile of the return distribution, negated. ExpectedShortfall(c) is the
// average loss conditional on exceeding Quantile(c). Each variant implements
// its numeric method explicitly; there are no fallback defaults that could
// silently misestimate a tail.
//
// Internals are float64 (transcendental math); monetary conversion happens
// upstream in the risk engine.
package dist

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/arabica/risk-engine/internal/series"
)

// Distribution families.
const (
	FamilyNormal    = "normal"
	FamilyStudentT  = "student-t"
	FamilyEmpirical = "empirical" // bootstrap with replacement when simulating
)

// DefaultMinObservations is the minimum sample size for parametric fits
// when the caller does not configure one.
const DefaultMinObservations = 30

var (
	// ErrInsufficientData is returned when too few observations are
	// available to fit or estimate a distribution.
	ErrInsufficientData = errors.New("dist: insufficient observations")

	// ErrInvalidParameter is returned for out-of-range fit or simulation
	// parameters (non-positive path counts or horizons).
	ErrInvalidParameter = errors.New("dist: parameter out of range")

	// ErrUnknownFamily is returned for an unrecognized distribution family.
	ErrUnknownFamily = errors.New("dist: unknown distribution family")
)

// Model is the shared contract across all distribution variants.
// Both methods take a confidence level in (0,1); validation is the caller's
// responsibility (the risk engine rejects out-of-range levels up front).
type Model interface {
	// Quantile returns the loss not exceeded with probability c.
	Quantile(c float64) float64

	// ExpectedShortfall returns the mean loss conditional on the loss
	// exceeding Quantile(c).
	ExpectedShortfall(c float64) float64
}

// --- Empirical ---

// Empirical wraps an observed return sample directly; no fitting.
type Empirical struct {
	losses []float64 // sorted ascending
}

// NewEmpirical builds an empirical distribution from raw returns.
// Requires at least one return.
func NewEmpirical(returns []float64) (*Empirical, error) {
	if len(returns) == 0 {
		return nil, fmt.Errorf("%w: empirical distribution needs at least 1 return", ErrInsufficientData)
	}
	losses := make([]float64, len(returns))
	for i, r := range returns {
		losses[i] = -r
	}
	sort.Float64s(losses)
	return &Empirical{losses: losses}, nil
}

// Quantile returns the empirical loss quantile at confidence c, with linear
// interpolation between order statistics.
func (e *Empirical) Quantile(c float64) float64 {
	return percentile(e.losses, c)
}

// ExpectedShortfall averages the losses strictly beyond Quantile(c).
// An empty tail (e.g. c beyond the largest observed loss) degrades to the
// quantile itself rather than guessing beyond the data.
func (e *Empirical) ExpectedShortfall(c float64) float64 {
	return tailMean(e.losses, percentile(e.losses, c))
}

// Scaled returns a new empirical distribution with every loss multiplied
// by k. Used for √horizon scaling; k must be positive to preserve order.
func (e *Empirical) Scaled(k float64) *Empirical {
	scaled := make([]float64, len(e.losses))
	for i, l := range e.losses {
		scaled[i] = l * k
	}
	return &Empirical{losses: scaled}
}

// --- Parametric ---

// Parametric is a fitted location/scale distribution. For the student-t
// family, Nu holds the degrees of freedom and StdDev remains the sample
// standard deviation (the t scale parameter is derived internally).
type Parametric struct {
	Mean   float64
	StdDev float64
	Family string
	Nu     float64 // student-t degrees of freedom; 0 for normal
}

// FitParametric estimates mean and sample standard deviation (ddof=1) from
// the series. For the student-t family the degrees of freedom are estimated
// by method of moments from the sample excess kurtosis: nu = 4 + 6/k,
// clamped to [4.5, 100] so variance and kurtosis stay defined.
//
// minObs <= 0 selects DefaultMinObservations.
func FitParametric(s *series.ReturnSeries, family string, minObs int) (*Parametric, error) {
	if minObs <= 0 {
		minObs = DefaultMinObservations
	}
	if s.NumReturns() < minObs {
		return nil, fmt.Errorf("%w: parametric fit needs %d returns, got %d",
			ErrInsufficientData, minObs, s.NumReturns())
	}

	returns := s.Returns()
	p := &Parametric{
		Mean:   stat.Mean(returns, nil),
		StdDev: stat.StdDev(returns, nil),
		Family: family,
	}

	switch family {
	case FamilyNormal:
	case FamilyStudentT:
		k := stat.ExKurtosis(returns, nil)
		nu := 100.0 // thin-tailed sample: effectively normal
		if k > 0 {
			nu = 4 + 6/k
		}
		p.Nu = math.Min(100, math.Max(4.5, nu))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	return p, nil
}

// tScale converts the sample standard deviation into the t distribution's
// scale parameter: sigma_t = s * sqrt((nu-2)/nu).
func (p *Parametric) tScale() float64 {
	return p.StdDev * math.Sqrt((p.Nu-2)/p.Nu)
}

// Quantile returns the closed-form loss quantile.
func (p *Parametric) Quantile(c float64) float64 {
	switch p.Family {
	case FamilyStudentT:
		t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: p.Nu}.Quantile(1 - c)
		return -(p.Mean + t*p.tScale())
	default:
		z := distuv.UnitNormal.Quantile(1 - c)
		return -(p.Mean + z*p.StdDev)
	}
}

// ExpectedShortfall returns the closed-form conditional tail expectation.
//
// Normal:    ES(c) = -mu + sigma * phi(z_alpha) / alpha,          alpha = 1-c
// Student-t: ES(c) = -mu + scale * f(t_alpha)/alpha * (nu + t_alpha^2)/(nu - 1)
func (p *Parametric) ExpectedShortfall(c float64) float64 {
	alpha := 1 - c
	switch p.Family {
	case FamilyStudentT:
		std := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: p.Nu}
		t := std.Quantile(alpha)
		es := std.Prob(t) / alpha * (p.Nu + t*t) / (p.Nu - 1)
		return -p.Mean + p.tScale()*es
	default:
		z := distuv.UnitNormal.Quantile(alpha)
		return -p.Mean + p.StdDev*distuv.UnitNormal.Prob(z)/alpha
	}
}

// WithHorizon returns a copy with mean scaled by h and standard deviation
// by sqrt(h) — the i.i.d. square-root-of-time approximation.
func (p *Parametric) WithHorizon(horizonDays int) *Parametric {
	h := float64(horizonDays)
	out := *p
	out.Mean = p.Mean * h
	out.StdDev = p.StdDev * math.Sqrt(h)
	return &out
}

// --- Simulated ---

// Simulated holds an ordered sample of simulated horizon returns together
// with the parameters that reproduce it.
type Simulated struct {
	losses      []float64 // sorted ascending
	Seed        int64
	Paths       int
	HorizonDays int
}

// Quantile returns the empirical loss quantile of the simulated sample.
func (s *Simulated) Quantile(c float64) float64 {
	return percentile(s.losses, c)
}

// ExpectedShortfall averages simulated losses strictly beyond Quantile(c).
func (s *Simulated) ExpectedShortfall(c float64) float64 {
	return tailMean(s.losses, percentile(s.losses, c))
}

// --- shared numeric helpers ---

// percentile computes the p-th quantile (p in [0,1]) of a sorted sample
// with linear interpolation between closest ranks — the same definition
// numpy's percentile uses, so historical figures match the reference
// research notebooks.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// tailMean averages the values strictly greater than threshold.
// Empty tail degrades to the threshold.
func tailMean(sorted []float64, threshold float64) float64 {
	// Tail starts after the last value <= threshold.
	i := sort.SearchFloat64s(sorted, threshold)
	for i < len(sorted) && sorted[i] <= threshold {
		i++
	}
	if i >= len(sorted) {
		return threshold
	}
	var sum float64
	for _, v := range sorted[i:] {
		sum += v
	}
	return sum / float64(len(sorted)-i)
}
