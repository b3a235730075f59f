// Package store defines persistence for computed risk reports and operator
// scenario definitions. Implementations include PostgreSQL (source of
// truth), Redis (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/arabica/risk-engine/internal/model"
)

// ErrNotFound is returned when a report or scenario does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Immutable report archive ---

	// SaveReport persists a computed risk report. Reports are never
	// updated or deleted; each computation yields a fresh one.
	SaveReport(ctx context.Context, r *model.RiskReport) error

	// GetReport retrieves a report by its ID.
	GetReport(ctx context.Context, id string) (*model.RiskReport, error)

	// ListReports returns the most recent reports, newest first.
	ListReports(ctx context.Context, limit int) ([]model.RiskReport, error)

	// --- Scenario catalogue ---

	// SaveScenario upserts an operator-defined scenario by label.
	SaveScenario(ctx context.Context, sc model.Scenario) error

	// ListScenarios returns all stored scenarios ordered by label.
	ListScenarios(ctx context.Context) ([]model.Scenario, error)
}
