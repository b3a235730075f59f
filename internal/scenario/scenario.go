// Package scenario implements the stress-testing engine: historical replay
// against the observed return series and hypothetical spot shocks applied to
// positions.
//
// Scenarios are evaluated independently — one ScenarioResult per scenario,
// input order preserved, and a failed scenario never aborts its siblings.
// The engine does not rank results; severity ordering is the facade's job.
package scenario

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/arabica/risk-engine/internal/model"
	"github.com/arabica/risk-engine/internal/series"
)

var (
	// ErrDataUnavailable is returned when a historical scenario's source
	// date range is not covered by the return series. There is no fallback
	// to a proxy period: missing data must surface, never mask.
	ErrDataUnavailable = errors.New("scenario: historical window not covered by return series")

	// ErrUnknownKind is returned for a scenario kind other than
	// historical/hypothetical.
	ErrUnknownKind = errors.New("scenario: unknown kind")

	// ErrNoShock is returned when a scenario declares neither shocks nor a
	// replay window.
	ErrNoShock = errors.New("scenario: no shocks and no replay window declared")
)

// Sensitivity carries pre-computed option greeks for positions whose P&L is
// not linear in the underlying move. The engine itself has no greeks model;
// delta/gamma come from an external pricing collaborator.
type Sensitivity struct {
	Delta float64
	Gamma float64
}

// linear is the default sensitivity for futures positions.
var linear = Sensitivity{Delta: 1}

// Apply evaluates one scenario against the positions. The reference series
// is only consulted for historical replay; hypothetical scenarios shock the
// spot directly. Positions whose instrument has no shock in the scenario are
// left out of the breakdown (zero impact).
func Apply(positions []model.Position, sc model.Scenario, s *series.ReturnSeries) (*model.ScenarioResult, error) {
	return ApplyWithSensitivity(positions, sc, s, nil)
}

// ApplyWithSensitivity is Apply with per-instrument delta/gamma overrides:
// pnlPct = delta*shock + gamma*shock²/2. Instruments absent from sens are
// treated as linear (delta 1), which is exact for futures.
func ApplyWithSensitivity(
	positions []model.Position,
	sc model.Scenario,
	s *series.ReturnSeries,
	sens map[string]Sensitivity,
) (*model.ScenarioResult, error) {
	shocks, err := resolveShocks(sc, s, positions)
	if err != nil {
		return nil, err
	}

	res := &model.ScenarioResult{
		Scenario: sc.Label,
		Kind:     sc.Kind,
		PnL:      decimal.Zero,
	}

	gross := decimal.Zero
	for _, pos := range positions {
		gross = gross.Add(pos.Notional.Abs())

		shock, ok := shocks[pos.Instrument]
		if !ok {
			continue
		}

		g := linear
		if sens != nil {
			if override, ok := sens[pos.Instrument]; ok {
				g = override
			}
		}
		pnlPct := g.Delta*shock + 0.5*g.Gamma*shock*shock
		pnl := pos.SignedNotional().Mul(decimal.NewFromFloat(pnlPct)).Round(2)

		res.Breakdown = append(res.Breakdown, model.PositionImpact{
			Instrument: pos.Instrument,
			Side:       pos.Side,
			Notional:   pos.Notional,
			Shock:      shock,
			PnL:        pnl,
		})
		res.PnL = res.PnL.Add(pnl)
	}

	if gross.IsPositive() {
		res.PnLPct = res.PnL.Div(gross).InexactFloat64()
	}
	return res, nil
}

// resolveShocks turns a scenario into a per-instrument shock map. Historical
// scenarios with a replay window derive one compounded move from the series
// and apply it to every position's instrument (single-underlying engine);
// otherwise the declared shock table is used as-is.
func resolveShocks(sc model.Scenario, s *series.ReturnSeries, positions []model.Position) (map[string]float64, error) {
	switch sc.Kind {
	case model.KindHistorical, model.KindHypothetical:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, sc.Kind)
	}

	if sc.Kind == model.KindHistorical && sc.Start != nil && sc.End != nil {
		if s == nil {
			return nil, fmt.Errorf("%w: no return series supplied for %q", ErrDataUnavailable, sc.Label)
		}
		move, err := s.CompoundedReturn(*sc.Start, *sc.End)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrDataUnavailable, sc.Label, err)
		}
		shocks := make(map[string]float64, len(positions))
		for _, pos := range positions {
			shocks[pos.Instrument] = move
		}
		return shocks, nil
	}

	if len(sc.Shocks) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoShock, sc.Label)
	}
	return sc.Shocks, nil
}

// RunAll evaluates every scenario concurrently (each one is a pure function
// of immutable inputs), preserving input order. Failures are returned in a
// parallel list keyed by scenario label; successes are never discarded
// because a sibling failed.
func RunAll(positions []model.Position, scenarios []model.Scenario, s *series.ReturnSeries) ([]model.ScenarioResult, []model.ScenarioFailure) {
	type outcome struct {
		res *model.ScenarioResult
		err error
	}
	outcomes := make([]outcome, len(scenarios))

	var wg sync.WaitGroup
	for i, sc := range scenarios {
		wg.Add(1)
		go func(i int, sc model.Scenario) {
			defer wg.Done()
			res, err := Apply(positions, sc, s)
			outcomes[i] = outcome{res: res, err: err}
		}(i, sc)
	}
	wg.Wait()

	var results []model.ScenarioResult
	var failures []model.ScenarioFailure
	for i, o := range outcomes {
		if o.err != nil {
			failures = append(failures, model.ScenarioFailure{
				Label:  scenarios[i].Label,
				Reason: o.err.Error(),
			})
			continue
		}
		results = append(results, *o.res)
	}
	return results, failures
}

// SweepPoint is one step of a sensitivity sweep.
type SweepPoint struct {
	Shock float64         `json:"shock"`
	PnL   decimal.Decimal `json:"pnl"`
}

// Sweep applies a range of shocks to a single position, one P&L per shock.
func Sweep(pos model.Position, shocks []float64) []SweepPoint {
	out := make([]SweepPoint, len(shocks))
	for i, shock := range shocks {
		out[i] = SweepPoint{
			Shock: shock,
			PnL:   pos.SignedNotional().Mul(decimal.NewFromFloat(shock)).Round(2),
		}
	}
	return out
}

// ReverseStress answers "what move would cause this loss": the fractional
// shock that produces targetLoss (negative = loss) on the position.
func ReverseStress(pos model.Position, targetPnL decimal.Decimal) (float64, error) {
	signed := pos.SignedNotional()
	if signed.IsZero() {
		return 0, fmt.Errorf("%w: position has zero notional", ErrNoShock)
	}
	return targetPnL.Div(signed).InexactFloat64(), nil
}
