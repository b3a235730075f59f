// Package series implements the immutable return series that feeds every
// risk computation: an ordered sequence of (timestamp, price) observations
// and the simple or log returns derived from them.
//
// Prices use shopspring/decimal — never float64 for money. Returns are
// dimensionless float64, converted once at construction so the statistical
// layers never touch decimal arithmetic.
//
// Invariants: timestamps strictly increase, gaps are preserved (never
// interpolated), and at least two observations are required to derive one
// return. A series is immutable once constructed; windowing produces a new
// instance.
package series

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Return derivation methods.
const (
	Simple = "simple" // p1/p0 - 1
	Log    = "log"    // ln(p1/p0)
)

var (
	// ErrTooFewObservations is returned when fewer than two observations
	// are supplied, or a window narrows the series below that minimum.
	ErrTooFewObservations = errors.New("series: at least two observations are required")

	// ErrNonMonotonic is returned when timestamps are not strictly increasing.
	ErrNonMonotonic = errors.New("series: timestamps must be strictly increasing")

	// ErrNonPositivePrice is returned when a price is zero or negative.
	ErrNonPositivePrice = errors.New("series: prices must be positive")

	// ErrUnknownMethod is returned for a return method other than simple/log.
	ErrUnknownMethod = errors.New("series: unknown return method")

	// ErrWindowNotCovered is returned when a requested date range falls
	// outside the observed series. Callers must not substitute a proxy
	// period: missing data has to surface.
	ErrWindowNotCovered = errors.New("series: requested window not covered by observations")
)

// Observation is one (timestamp, price) sample.
type Observation struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// ReturnSeries is an immutable ordered price series with derived returns.
type ReturnSeries struct {
	obs     []Observation
	returns []float64
	method  string
}

// New validates the observations and derives returns. The input slice is
// copied; the caller keeps ownership of its slice.
func New(obs []Observation, method string) (*ReturnSeries, error) {
	if method != Simple && method != Log {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	if len(obs) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewObservations, len(obs))
	}

	own := make([]Observation, len(obs))
	copy(own, obs)

	returns := make([]float64, 0, len(own)-1)
	for i, o := range own {
		if o.Price.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: %s at %s", ErrNonPositivePrice,
				o.Price, o.Timestamp.Format(time.RFC3339))
		}
		if i == 0 {
			continue
		}
		if !o.Timestamp.After(own[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: %s does not follow %s", ErrNonMonotonic,
				o.Timestamp.Format(time.RFC3339), own[i-1].Timestamp.Format(time.RFC3339))
		}
		ratio := o.Price.InexactFloat64() / own[i-1].Price.InexactFloat64()
		if method == Log {
			returns = append(returns, math.Log(ratio))
		} else {
			returns = append(returns, ratio-1)
		}
	}

	return &ReturnSeries{obs: own, returns: returns, method: method}, nil
}

// Method returns the return derivation method ("simple" or "log").
func (s *ReturnSeries) Method() string { return s.method }

// Len returns the number of price observations.
func (s *ReturnSeries) Len() int { return len(s.obs) }

// NumReturns returns the number of derived returns (Len - 1).
func (s *ReturnSeries) NumReturns() int { return len(s.returns) }

// First returns the timestamp of the earliest observation.
func (s *ReturnSeries) First() time.Time { return s.obs[0].Timestamp }

// Last returns the timestamp of the latest observation. This is the natural
// as-of time for any risk figure computed from the series.
func (s *ReturnSeries) Last() time.Time { return s.obs[len(s.obs)-1].Timestamp }

// Returns returns a copy of the derived returns, oldest first.
func (s *ReturnSeries) Returns() []float64 {
	out := make([]float64, len(s.returns))
	copy(out, s.returns)
	return out
}

// Observations returns a copy of the underlying observations.
func (s *ReturnSeries) Observations() []Observation {
	out := make([]Observation, len(s.obs))
	copy(out, s.obs)
	return out
}

// Mean returns the sample mean of the returns.
func (s *ReturnSeries) Mean() float64 {
	return stat.Mean(s.returns, nil)
}

// StdDev returns the sample standard deviation of the returns (ddof=1).
func (s *ReturnSeries) StdDev() float64 {
	return stat.StdDev(s.returns, nil)
}

// Covers reports whether the series has observations on or before from and
// on or after to.
func (s *ReturnSeries) Covers(from, to time.Time) bool {
	return !s.First().After(from) && !s.Last().Before(to)
}

// Window returns a new series restricted to observations in [from, to].
// Fails with ErrWindowNotCovered when the range lies outside the series and
// with ErrTooFewObservations when fewer than two observations fall inside.
func (s *ReturnSeries) Window(from, to time.Time) (*ReturnSeries, error) {
	if !s.Covers(from, to) {
		return nil, fmt.Errorf("%w: [%s, %s] vs observed [%s, %s]",
			ErrWindowNotCovered,
			from.Format("2006-01-02"), to.Format("2006-01-02"),
			s.First().Format("2006-01-02"), s.Last().Format("2006-01-02"))
	}

	var inside []Observation
	for _, o := range s.obs {
		if !o.Timestamp.Before(from) && !o.Timestamp.After(to) {
			inside = append(inside, o)
		}
	}
	return New(inside, s.method)
}

// CompoundedReturn returns the cumulative compounded simple return over
// [from, to]: the fractional price move an instrument realized across the
// window. Log returns are summed and exponentiated so both methods agree.
func (s *ReturnSeries) CompoundedReturn(from, to time.Time) (float64, error) {
	w, err := s.Window(from, to)
	if err != nil {
		return 0, err
	}

	if w.method == Log {
		var sum float64
		for _, r := range w.returns {
			sum += r
		}
		return math.Exp(sum) - 1, nil
	}

	acc := 1.0
	for _, r := range w.returns {
		acc *= 1 + r
	}
	return acc - 1, nil
}
