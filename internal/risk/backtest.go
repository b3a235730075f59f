package risk

import (
	"fmt"
	"math"

	"github.com/arabica/risk-engine/internal/dist"
	"github.com/arabica/risk-engine/internal/series"
)

// Backtest statuses follow the Basel traffic-light convention.
const (
	StatusGreen  = "GREEN"
	StatusYellow = "YELLOW"
	StatusRed    = "RED"
)

// BacktestResult summarizes how often realized losses exceeded predicted VaR.
type BacktestResult struct {
	Exceptions    int     `json:"exceptions"`
	TotalDays     int     `json:"total_days"`
	ExceptionRate float64 `json:"exception_rate"`
	ExpectedRate  float64 `json:"expected_rate"`
	Status        string  `json:"status"`
}

// Rolling computes 1-day historical VaR over a sliding window of returns.
// The first `window` entries are NaN (not enough history yet); entry i is
// the VaR predicted for day i from the preceding window.
func Rolling(s *series.ReturnSeries, window int, confidence float64) ([]float64, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, fmt.Errorf("%w: confidence must be in (0,1) exclusive, got %g",
			ErrInvalidParameter, confidence)
	}
	if window < 2 {
		return nil, fmt.Errorf("%w: window must be >= 2, got %d", ErrInvalidParameter, window)
	}
	returns := s.Returns()
	if window >= len(returns) {
		return nil, fmt.Errorf("%w: rolling window %d needs more than %d returns",
			dist.ErrInsufficientData, window, len(returns))
	}

	out := make([]float64, len(returns))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := window; i < len(returns); i++ {
		emp, err := dist.NewEmpirical(returns[i-window : i])
		if err != nil {
			return nil, err
		}
		out[i] = emp.Quantile(confidence)
	}
	return out, nil
}

// Backtest counts the days where the realized loss exceeded the predicted
// VaR and grades the exception rate: under 1.5x the expected rate is GREEN,
// under 2x YELLOW, beyond that RED. NaN predictions (warm-up period) are
// skipped. varSeries must align index-for-index with returns.
func Backtest(returns, varSeries []float64, confidence float64) (*BacktestResult, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, fmt.Errorf("%w: confidence must be in (0,1) exclusive, got %g",
			ErrInvalidParameter, confidence)
	}
	if len(returns) != len(varSeries) {
		return nil, fmt.Errorf("%w: returns and varSeries lengths differ (%d vs %d)",
			ErrInvalidParameter, len(returns), len(varSeries))
	}

	var exceptions, total int
	for i, v := range varSeries {
		if math.IsNaN(v) {
			continue
		}
		total++
		if returns[i] < -v {
			exceptions++
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: no usable VaR predictions", dist.ErrInsufficientData)
	}

	rate := float64(exceptions) / float64(total)
	expected := 1 - confidence

	status := StatusRed
	switch {
	case rate < expected*1.5:
		status = StatusGreen
	case rate < expected*2:
		status = StatusYellow
	}

	return &BacktestResult{
		Exceptions:    exceptions,
		TotalDays:     total,
		ExceptionRate: rate,
		ExpectedRate:  expected,
		Status:        status,
	}, nil
}
