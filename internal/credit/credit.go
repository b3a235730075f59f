// Package credit implements the counterparty exposure aggregator: it turns a
// market-risk VaR figure into potential-future-exposure and expected-loss
// numbers per counterparty.
//
// The aggregator never computes its own VaR — it consumes a RiskResult from
// the risk engine, keeping market-risk estimation separate from its credit
// use. Totals are plain sums: no correlation or concentration adjustment.
package credit

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arabica/risk-engine/internal/model"
)

var (
	// ErrInvalidCounterparty is returned when PD or LGD fall outside [0,1].
	ErrInvalidCounterparty = errors.New("credit: PD and LGD must lie in [0,1]")

	// ErrMissingRiskResult is returned when no VaR figure is supplied to
	// derive potential future exposure from.
	ErrMissingRiskResult = errors.New("credit: a RiskResult is required to derive PFE")
)

// ComputeExposure aggregates the positions facing one counterparty into an
// exposure-at-default style figure.
//
// Each position contributes a signed exposure of signedNotional × VaRPct.
// With a netting agreement, offsetting contributions cancel first and the
// netted total is floored at zero; without one, only positive contributions
// count (gross). Collateral is applied after netting, and
// expectedLoss = PD × LGD × max(0, exposure − collateral).
func ComputeExposure(positions []model.Position, cp model.Counterparty, rr *model.RiskResult) (*model.ExposureResult, error) {
	if cp.PD < 0 || cp.PD > 1 || cp.LGD < 0 || cp.LGD > 1 {
		return nil, fmt.Errorf("%w: counterparty %q has PD=%g LGD=%g",
			ErrInvalidCounterparty, cp.ID, cp.PD, cp.LGD)
	}
	if rr == nil {
		return nil, fmt.Errorf("%w: counterparty %q", ErrMissingRiskResult, cp.ID)
	}

	varPct := decimal.NewFromFloat(rr.VaRPct)

	current := decimal.Zero // positive-side notional, pre-haircut
	grossPFE := decimal.Zero
	nettedPFE := decimal.Zero
	for _, pos := range positions {
		signed := pos.SignedNotional()
		if signed.IsPositive() {
			current = current.Add(signed)
		}
		contribution := signed.Mul(varPct)
		nettedPFE = nettedPFE.Add(contribution)
		if contribution.IsPositive() {
			grossPFE = grossPFE.Add(contribution)
		}
	}

	pfe := grossPFE
	if cp.Netting {
		pfe = nettedPFE
		if pfe.IsNegative() {
			pfe = decimal.Zero // netted exposure never goes negative
		}
	}

	net := pfe.Sub(cp.Collateral)
	if net.IsNegative() {
		net = decimal.Zero
	}

	el := net.
		Mul(decimal.NewFromFloat(cp.PD)).
		Mul(decimal.NewFromFloat(cp.LGD)).
		Round(2)

	return &model.ExposureResult{
		CounterpartyID:  cp.ID,
		CurrentExposure: current.Round(2),
		PFE:             pfe.Round(2),
		NetExposure:     net.Round(2),
		ExpectedLoss:    el,
		Netted:          cp.Netting,
	}, nil
}

// TotalExpectedLoss sums expected losses across counterparties.
func TotalExpectedLoss(results []model.ExposureResult) decimal.Decimal {
	total := decimal.Zero
	for _, r := range results {
		total = total.Add(r.ExpectedLoss)
	}
	return total
}

// NettingBenefit quantifies how much a set of netting agreements reduces
// gross exposure: benefit = 1 - net/gross. Exposures are grouped by netting
// set, each set nets internally and floors at zero.
type NettingBenefit struct {
	Gross   decimal.Decimal `json:"gross_exposure"`
	Net     decimal.Decimal `json:"net_exposure"`
	Benefit float64         `json:"netting_benefit"` // fraction of gross removed
}

// ComputeNettingBenefit nets the signed exposures within each netting set.
// exposures and sets must align index-for-index.
func ComputeNettingBenefit(exposures []decimal.Decimal, sets []string) (*NettingBenefit, error) {
	if len(exposures) != len(sets) {
		return nil, fmt.Errorf("%w: exposures and sets lengths differ (%d vs %d)",
			ErrInvalidCounterparty, len(exposures), len(sets))
	}

	gross := decimal.Zero
	bySet := make(map[string]decimal.Decimal)
	for i, e := range exposures {
		gross = gross.Add(e.Abs())
		bySet[sets[i]] = bySet[sets[i]].Add(e)
	}

	net := decimal.Zero
	for _, v := range bySet {
		if v.IsPositive() {
			net = net.Add(v)
		}
	}

	out := &NettingBenefit{Gross: gross, Net: net}
	if gross.IsPositive() {
		out.Benefit = decimal.NewFromInt(1).Sub(net.Div(gross)).InexactFloat64()
	}
	return out, nil
}
