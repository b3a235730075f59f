package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arabica/risk-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Reports are immutable so cached entries never go stale; the
// scenario list is invalidated on every save.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) SaveReport(ctx context.Context, r *model.RiskReport) error {
	if err := s.primary.SaveReport(ctx, r); err != nil {
		return err
	}
	s.cacheReport(ctx, r)
	return nil
}

func (s *CachedStore) GetReport(ctx context.Context, id string) (*model.RiskReport, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, reportKey(id)).Bytes()
	if err == nil {
		var r model.RiskReport
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	// Cache miss: read from primary.
	r, err := s.primary.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheReport(ctx, r)
	return r, nil
}

// ListReports is not cached; the listing is an operator view, not hot path.
func (s *CachedStore) ListReports(ctx context.Context, limit int) ([]model.RiskReport, error) {
	return s.primary.ListReports(ctx, limit)
}

func (s *CachedStore) SaveScenario(ctx context.Context, sc model.Scenario) error {
	if err := s.primary.SaveScenario(ctx, sc); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, scenariosKey)
	return nil
}

func (s *CachedStore) ListScenarios(ctx context.Context) ([]model.Scenario, error) {
	data, err := s.rdb.Get(ctx, scenariosKey).Bytes()
	if err == nil {
		var scenarios []model.Scenario
		if json.Unmarshal(data, &scenarios) == nil {
			return scenarios, nil
		}
	}

	scenarios, err := s.primary.ListScenarios(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(scenarios); err == nil {
		s.rdb.Set(ctx, scenariosKey, data, s.ttl)
	}
	return scenarios, nil
}

func (s *CachedStore) cacheReport(ctx context.Context, r *model.RiskReport) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, reportKey(r.ID), data, s.ttl)
	}
}

const scenariosKey = "scenarios:all"

func reportKey(id string) string { return fmt.Sprintf("report:%s", id) }
