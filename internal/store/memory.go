package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arabica/risk-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	reports   map[string]*model.RiskReport
	order     []string // report IDs, insertion order
	scenarios map[string]model.Scenario
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:   make(map[string]*model.RiskReport),
		scenarios: make(map[string]model.Scenario),
	}
}

func (s *MemoryStore) SaveReport(_ context.Context, r *model.RiskReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[r.ID]; exists {
		return fmt.Errorf("report %s already exists", r.ID)
	}

	// Store a copy to avoid external mutation.
	cp := *r
	s.reports[r.ID] = &cp
	s.order = append(s.order, r.ID)
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, id string) (*model.RiskReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("%w: report %s", ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListReports(_ context.Context, limit int) ([]model.RiskReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reports []model.RiskReport
	// Newest first.
	for i := len(s.order) - 1; i >= 0 && (limit <= 0 || len(reports) < limit); i-- {
		reports = append(reports, *s.reports[s.order[i]])
	}
	return reports, nil
}

func (s *MemoryStore) SaveScenario(_ context.Context, sc model.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scenarios[sc.Label] = sc
	return nil
}

func (s *MemoryStore) ListScenarios(_ context.Context) ([]model.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scenarios := make([]model.Scenario, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		scenarios = append(scenarios, sc)
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Label < scenarios[j].Label })
	return scenarios, nil
}
