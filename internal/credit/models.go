package credit

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Altman Z-score zones.
const (
	ZoneSafe     = "Safe"
	ZoneGrey     = "Grey"
	ZoneDistress = "Distress"
)

// vasicekCorrelation is the Basel asset-correlation assumption used by
// UnexpectedLoss.
const vasicekCorrelation = 0.12

// AltmanInputs are the balance-sheet figures feeding the Z-score.
type AltmanInputs struct {
	WorkingCapital   decimal.Decimal
	TotalAssets      decimal.Decimal
	RetainedEarnings decimal.Decimal
	EBIT             decimal.Decimal
	MarketEquity     decimal.Decimal
	TotalLiabilities decimal.Decimal
	Sales            decimal.Decimal
}

// AltmanZScore computes the classic five-factor Z-score and its zone.
// Higher score means lower default risk: above 2.99 Safe, above 1.81 Grey,
// otherwise Distress.
func AltmanZScore(in AltmanInputs) (float64, string, error) {
	if in.TotalAssets.LessThanOrEqual(decimal.Zero) || in.TotalLiabilities.LessThanOrEqual(decimal.Zero) {
		return 0, "", fmt.Errorf("%w: total assets and liabilities must be positive", ErrInvalidCounterparty)
	}

	assets := in.TotalAssets.InexactFloat64()
	x1 := in.WorkingCapital.InexactFloat64() / assets
	x2 := in.RetainedEarnings.InexactFloat64() / assets
	x3 := in.EBIT.InexactFloat64() / assets
	x4 := in.MarketEquity.InexactFloat64() / in.TotalLiabilities.InexactFloat64()
	x5 := in.Sales.InexactFloat64() / assets

	z := 1.2*x1 + 1.4*x2 + 3.3*x3 + 0.6*x4 + 0.999*x5

	zone := ZoneDistress
	switch {
	case z > 2.99:
		zone = ZoneSafe
	case z > 1.81:
		zone = ZoneGrey
	}
	return z, zone, nil
}

// PDFromZScore maps a Z-score to a default probability through a logistic
// transformation centred at 2.5. A simplification, not a calibrated model.
func PDFromZScore(z float64) float64 {
	return 1 / (1 + math.Exp(z-2.5))
}

// ratingPD maps agency ratings to approximate annual default probabilities,
// based on long-run historical default rates.
var ratingPD = map[string]float64{
	"AAA": 0.0001,
	"AA":  0.0003,
	"A":   0.001,
	"BBB": 0.003,
	"BB":  0.01,
	"B":   0.04,
	"CCC": 0.15,
	"CC":  0.30,
	"C":   0.50,
	"D":   1.0,
}

// unratedPD is the conservative fallback for unknown ratings.
const unratedPD = 0.05

// RatingPD returns the approximate PD for a credit rating.
func RatingPD(rating string) float64 {
	if pd, ok := ratingPD[rating]; ok {
		return pd
	}
	return unratedPD
}

// marginRates are required collateral margins by rating, with a 50%
// fallback below CCC or for unknown ratings.
var marginRates = map[string]float64{
	"AAA": 0.02,
	"AA":  0.05,
	"A":   0.08,
	"BBB": 0.12,
	"BB":  0.18,
	"B":   0.25,
	"CCC": 0.35,
}

// CollateralRequirement returns the collateral demanded for an exposure
// given the counterparty rating, grossed up for a haircut in [0,1).
func CollateralRequirement(exposure decimal.Decimal, rating string, haircut float64) (decimal.Decimal, error) {
	if haircut < 0 || haircut >= 1 {
		return decimal.Zero, fmt.Errorf("%w: haircut %g outside [0,1)", ErrInvalidCounterparty, haircut)
	}
	rate, ok := marginRates[rating]
	if !ok {
		rate = 0.50
	}
	return exposure.
		Mul(decimal.NewFromFloat(rate)).
		Div(decimal.NewFromFloat(1 - haircut)).
		Round(2), nil
}

// CDSSpreadBps estimates a CDS spread in basis points from PD and LGD
// using the flat hazard-rate approximation spread ≈ pd × lgd.
func CDSSpreadBps(pd, lgd float64) (float64, error) {
	if pd < 0 || pd > 1 || lgd < 0 || lgd > 1 {
		return 0, fmt.Errorf("%w: pd=%g lgd=%g", ErrInvalidCounterparty, pd, lgd)
	}
	return pd * lgd * 10000, nil
}

// UnexpectedLoss computes the Vasicek one-factor unexpected loss at a
// confidence level: LGD × EAD × (conditionalPD − PD), with the Basel asset
// correlation of 0.12.
func UnexpectedLoss(pd, lgd float64, ead decimal.Decimal, confidence float64) (decimal.Decimal, error) {
	if pd < 0 || pd > 1 || lgd < 0 || lgd > 1 {
		return decimal.Zero, fmt.Errorf("%w: pd=%g lgd=%g", ErrInvalidCounterparty, pd, lgd)
	}
	if confidence <= 0 || confidence >= 1 {
		return decimal.Zero, fmt.Errorf("%w: confidence %g outside (0,1)", ErrInvalidCounterparty, confidence)
	}

	rho := vasicekCorrelation
	z := distuv.UnitNormal.Quantile(confidence)
	conditionalPD := distuv.UnitNormal.CDF(
		(distuv.UnitNormal.Quantile(pd) + math.Sqrt(rho)*z) / math.Sqrt(1-rho),
	)

	ul := lgd * (conditionalPD - pd)
	return ead.Mul(decimal.NewFromFloat(ul)).Round(2), nil
}

// CreditVaRResult bundles the portfolio credit loss distribution summary.
type CreditVaRResult struct {
	ExpectedLoss decimal.Decimal `json:"expected_loss"` // mean simulated loss
	CreditVaR    decimal.Decimal `json:"credit_var"`    // loss quantile at confidence
	WorstCase    decimal.Decimal `json:"worst_case"`    // max simulated loss
	Simulations  int             `json:"simulations"`
	Seed         int64           `json:"seed"`
}

// PortfolioCreditVaR simulates correlated counterparty defaults with a
// one-factor Gaussian copula: asset_i = √ρ·Z + √(1−ρ)·ε_i defaults when it
// falls below Φ⁻¹(pd_i), losing exposure_i × lgd_i. Deterministic given the
// seed. exposures, pds, and lgds must align index-for-index.
func PortfolioCreditVaR(
	exposures []decimal.Decimal,
	pds, lgds []float64,
	correlation float64,
	nSims int,
	confidence float64,
	seed int64,
) (*CreditVaRResult, error) {
	if len(exposures) == 0 || len(exposures) != len(pds) || len(exposures) != len(lgds) {
		return nil, fmt.Errorf("%w: exposures/pds/lgds must be equal-length and non-empty",
			ErrInvalidCounterparty)
	}
	if nSims < 1 {
		return nil, fmt.Errorf("%w: nSims must be >= 1, got %d", ErrInvalidCounterparty, nSims)
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, fmt.Errorf("%w: confidence %g outside (0,1)", ErrInvalidCounterparty, confidence)
	}
	if correlation < 0 || correlation >= 1 {
		return nil, fmt.Errorf("%w: correlation %g outside [0,1)", ErrInvalidCounterparty, correlation)
	}

	thresholds := make([]float64, len(pds))
	lossGiven := make([]float64, len(pds))
	for i, pd := range pds {
		if pd < 0 || pd > 1 || lgds[i] < 0 || lgds[i] > 1 {
			return nil, fmt.Errorf("%w: pd=%g lgd=%g at index %d", ErrInvalidCounterparty, pd, lgds[i], i)
		}
		thresholds[i] = distuv.UnitNormal.Quantile(pd)
		lossGiven[i] = exposures[i].InexactFloat64() * lgds[i]
	}

	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: xrand.NewSource(uint64(seed))}
	sqrtRho := math.Sqrt(correlation)
	sqrtRest := math.Sqrt(1 - correlation)

	losses := make([]float64, nSims)
	var sum float64
	for s := range losses {
		z := norm.Rand()
		var loss float64
		for i := range thresholds {
			asset := sqrtRho*z + sqrtRest*norm.Rand()
			if asset < thresholds[i] {
				loss += lossGiven[i]
			}
		}
		losses[s] = loss
		sum += loss
	}
	sort.Float64s(losses)

	quantile := losses[int(math.Min(float64(nSims-1), math.Floor(confidence*float64(nSims))))]

	return &CreditVaRResult{
		ExpectedLoss: decimal.NewFromFloat(sum / float64(nSims)).Round(2),
		CreditVaR:    decimal.NewFromFloat(quantile).Round(2),
		WorstCase:    decimal.NewFromFloat(losses[nSims-1]).Round(2),
		Simulations:  nSims,
		Seed:         seed,
	}, nil
}
