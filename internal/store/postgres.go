package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arabica/risk-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Report and scenario bodies are stored as JSONB next to the columns the
// service queries on; monetary values inside the payload stay as decimal
// strings so no float rounding ever touches them.
//
// Schema:
//
//	CREATE TABLE reports (
//	    id         TEXT PRIMARY KEY,
//	    as_of      TIMESTAMPTZ NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    currency   TEXT NOT NULL,
//	    payload    JSONB NOT NULL
//	);
//	CREATE TABLE scenarios (
//	    label   TEXT PRIMARY KEY,
//	    kind    TEXT NOT NULL,
//	    payload JSONB NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) SaveReport(ctx context.Context, r *model.RiskReport) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", r.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, as_of, created_at, currency, payload)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.AsOf, r.CreatedAt, r.Currency, payload,
	)
	return err
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.RiskReport, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM reports WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: report %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}

	var r model.RiskReport
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, limit int) ([]model.RiskReport, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM reports ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []model.RiskReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r model.RiskReport
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode report payload: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) SaveScenario(ctx context.Context, sc model.Scenario) error {
	payload, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshal scenario %s: %w", sc.Label, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO scenarios (label, kind, payload)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (label) DO UPDATE SET kind = $2, payload = $3`,
		sc.Label, sc.Kind, payload,
	)
	return err
}

func (s *PostgresStore) ListScenarios(ctx context.Context) ([]model.Scenario, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM scenarios ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenarios []model.Scenario
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var sc model.Scenario
		if err := json.Unmarshal(payload, &sc); err != nil {
			return nil, fmt.Errorf("decode scenario payload: %w", err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}
