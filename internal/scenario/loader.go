package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arabica/risk-engine/internal/model"
)

// scenarioFile is the on-disk YAML shape:
//
//	scenarios:
//	  - label: harvest_glut
//	    kind: hypothetical
//	    description: Record Brazilian harvest
//	    shocks:
//	      coffee: -0.22
//	  - label: covid_replay
//	    kind: historical
//	    start: 2020-02-20
//	    end: 2020-03-20
type scenarioFile struct {
	Scenarios []scenarioEntry `yaml:"scenarios"`
}

type scenarioEntry struct {
	Label       string             `yaml:"label"`
	Kind        string             `yaml:"kind"`
	Description string             `yaml:"description"`
	Shocks      map[string]float64 `yaml:"shocks"`
	Start       string             `yaml:"start"`
	End         string             `yaml:"end"`
}

const dateLayout = "2006-01-02"

// LoadFile reads scenario definitions from a YAML file. The engine only
// requires the in-memory Scenario shape; this loader is the file-format
// boundary for operators extending the built-in catalogue.
func LoadFile(path string) ([]model.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %q: %w", path, err)
	}

	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("scenario: parse %q: %w", path, err)
	}

	scenarios := make([]model.Scenario, 0, len(file.Scenarios))
	for _, e := range file.Scenarios {
		sc, err := e.toScenario()
		if err != nil {
			return nil, fmt.Errorf("scenario: %q: %w", path, err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func (e scenarioEntry) toScenario() (model.Scenario, error) {
	if e.Label == "" {
		return model.Scenario{}, fmt.Errorf("%w: entry without label", ErrNoShock)
	}
	switch e.Kind {
	case model.KindHistorical, model.KindHypothetical:
	default:
		return model.Scenario{}, fmt.Errorf("%w: %q in %q", ErrUnknownKind, e.Kind, e.Label)
	}

	sc := model.Scenario{
		Label:       e.Label,
		Kind:        e.Kind,
		Description: e.Description,
		Shocks:      e.Shocks,
	}

	if e.Start != "" || e.End != "" {
		start, err := time.Parse(dateLayout, e.Start)
		if err != nil {
			return model.Scenario{}, fmt.Errorf("invalid start date in %q: %w", e.Label, err)
		}
		end, err := time.Parse(dateLayout, e.End)
		if err != nil {
			return model.Scenario{}, fmt.Errorf("invalid end date in %q: %w", e.Label, err)
		}
		if end.Before(start) {
			return model.Scenario{}, fmt.Errorf("end before start in %q", e.Label)
		}
		sc.Start = &start
		sc.End = &end
	}

	if len(sc.Shocks) == 0 && sc.Start == nil {
		return model.Scenario{}, fmt.Errorf("%w: %q", ErrNoShock, e.Label)
	}
	return sc, nil
}
