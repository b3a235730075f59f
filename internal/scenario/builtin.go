package scenario

import "github.com/arabica/risk-engine/internal/model"

// Builtin returns the built-in crisis scenario catalogue: per-factor shocks
// calibrated from past market episodes relevant to a coffee-futures book.
// Each call returns fresh copies; callers may not mutate shared state.
func Builtin() []model.Scenario {
	return []model.Scenario{
		{
			Label:       "2008_crisis",
			Kind:        model.KindHistorical,
			Description: "Global Financial Crisis",
			Shocks: map[string]float64{
				"coffee":   -0.35,
				"equities": -0.50,
				"rates":    -0.02,
				"fx_em":    -0.25,
			},
		},
		{
			Label:       "2020_covid",
			Kind:        model.KindHistorical,
			Description: "COVID-19 Market Crash",
			Shocks: map[string]float64{
				"coffee":   -0.28,
				"equities": -0.34,
				"rates":    -0.015,
				"fx_em":    -0.18,
			},
		},
		{
			Label:       "2022_commodity_spike",
			Kind:        model.KindHistorical,
			Description: "Post-COVID Commodity Rally",
			Shocks: map[string]float64{
				"coffee":   0.45,
				"equities": -0.15,
				"rates":    0.03,
				"fx_em":    -0.10,
			},
		},
		{
			Label:       "brazil_drought",
			Kind:        model.KindHypothetical,
			Description: "Severe Brazil Drought",
			Shocks: map[string]float64{
				"coffee": 0.40,
				"fx_em":  -0.08,
			},
		},
		{
			Label:       "frost_event",
			Kind:        model.KindHypothetical,
			Description: "Major Frost in Coffee Regions",
			Shocks: map[string]float64{
				"coffee": 0.55,
				"fx_em":  -0.05,
			},
		},
	}
}
