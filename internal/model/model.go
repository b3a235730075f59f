// Package model defines the core domain types shared across the risk engine.
// All monetary values use shopspring/decimal — never float64 for money.
// Dimensionless statistics (returns, probabilities, quantiles) are float64.
//
// Sign convention, load-bearing for every downstream package: VaR and ES are
// losses expressed as positive numbers (loss = -return). Scenario P&L is the
// opposite: signed, negative means the portfolio lost money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position sides.
const (
	SideLong  = "LONG"
	SideShort = "SHORT"
)

// Scenario kinds.
const (
	KindHistorical   = "historical"
	KindHypothetical = "hypothetical"
)

// Position is an immutable futures position in a single instrument.
// Notional is always positive; direction is carried by Side.
type Position struct {
	Instrument     string          `json:"instrument"` // risk-factor name, e.g. "coffee"
	Side           string          `json:"side"`       // "LONG" or "SHORT"
	Notional       decimal.Decimal `json:"notional"`
	Currency       string          `json:"currency"`
	CounterpartyID string          `json:"counterparty_id,omitempty"`
}

// SignedNotional returns the notional with direction applied:
// positive for long, negative for short.
func (p Position) SignedNotional() decimal.Decimal {
	if p.Side == SideShort {
		return p.Notional.Neg()
	}
	return p.Notional
}

// RiskResult is the immutable output of one VaR/ES computation.
// VaR and ES are positive loss amounts in Currency; VaRPct and ESPct are
// the same figures as fractions of gross notional. AsOf is the timestamp
// of the last price observation, so identical inputs always produce
// identical results.
type RiskResult struct {
	Method       string          `json:"method"`
	Confidence   float64         `json:"confidence"`
	HorizonDays  int             `json:"horizon_days"`
	VaR          decimal.Decimal `json:"var"`
	ES           decimal.Decimal `json:"es"`
	VaRPct       float64         `json:"var_pct"`
	ESPct        float64         `json:"es_pct"`
	Currency     string          `json:"currency"`
	AsOf         time.Time       `json:"as_of"`
	PathCount    int             `json:"path_count,omitempty"`    // Monte Carlo only
	Seed         int64           `json:"seed,omitempty"`          // Monte Carlo only
	LowPrecision bool            `json:"low_precision,omitempty"` // Monte Carlo with few paths
}

// Scenario is a named stress scenario. Historical scenarios either replay a
// source date range against the return series (Start/End set) or carry fixed
// per-factor shocks calibrated from a past crisis. Hypothetical scenarios
// always use the declared Shocks map. Scenarios are configuration data:
// loaded once, read-only during evaluation.
type Scenario struct {
	Label       string             `json:"label"`
	Kind        string             `json:"kind"` // "historical" or "hypothetical"
	Description string             `json:"description,omitempty"`
	Shocks      map[string]float64 `json:"shocks,omitempty"` // risk factor → fractional price move
	Start       *time.Time         `json:"start,omitempty"`  // historical replay window
	End         *time.Time         `json:"end,omitempty"`
}

// PositionImpact is the per-position breakdown inside a ScenarioResult.
type PositionImpact struct {
	Instrument string          `json:"instrument"`
	Side       string          `json:"side"`
	Notional   decimal.Decimal `json:"notional"`
	Shock      float64         `json:"shock"` // fractional move applied
	PnL        decimal.Decimal `json:"pnl"`   // signed
}

// ScenarioResult is the immutable outcome of applying one scenario.
// PnL is signed (negative = loss); PnLPct is PnL over gross notional.
type ScenarioResult struct {
	Scenario  string           `json:"scenario"`
	Kind      string           `json:"kind"`
	PnL       decimal.Decimal  `json:"pnl"`
	PnLPct    float64          `json:"pnl_pct"`
	Breakdown []PositionImpact `json:"breakdown"`
}

// ScenarioFailure records one scenario that could not be evaluated.
// Failures never abort sibling scenarios.
type ScenarioFailure struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// Counterparty holds the credit attributes of one trading counterparty.
type Counterparty struct {
	ID         string          `json:"id"`
	Rating     string          `json:"rating,omitempty"`
	PD         float64         `json:"pd"`  // probability of default, [0,1]
	LGD        float64         `json:"lgd"` // loss given default, [0,1]
	Collateral decimal.Decimal `json:"collateral"`
	Netting    bool            `json:"netting"` // netting agreement in place
}

// ExposureResult is the immutable credit exposure figure for one counterparty.
// PFE is derived from a market-risk VaR figure; NetExposure is PFE after
// netting and collateral, floored at zero; ExpectedLoss = PD × LGD × NetExposure.
type ExposureResult struct {
	CounterpartyID  string          `json:"counterparty_id"`
	CurrentExposure decimal.Decimal `json:"current_exposure"`
	PFE             decimal.Decimal `json:"pfe"`
	NetExposure     decimal.Decimal `json:"net_exposure"`
	ExpectedLoss    decimal.Decimal `json:"expected_loss"`
	Netted          bool            `json:"netted"`
}

// RiskReport is the result bundle produced by one facade computation.
// Everything inside is immutable; a recomputation yields a fresh report.
type RiskReport struct {
	ID                string            `json:"id"`
	AsOf              time.Time         `json:"as_of"`
	CreatedAt         time.Time         `json:"created_at"`
	Currency          string            `json:"currency"`
	Risk              *RiskResult       `json:"risk"`
	Scenarios         []ScenarioResult  `json:"scenarios"`
	ScenarioFailures  []ScenarioFailure `json:"scenario_failures,omitempty"`
	Exposures         []ExposureResult  `json:"exposures"`
	TotalExpectedLoss decimal.Decimal   `json:"total_expected_loss"`
}
