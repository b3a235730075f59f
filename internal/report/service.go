package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arabica/risk-engine/internal/credit"
	"github.com/arabica/risk-engine/internal/metrics"
	"github.com/arabica/risk-engine/internal/model"
	"github.com/arabica/risk-engine/internal/risk"
	"github.com/arabica/risk-engine/internal/scenario"
	"github.com/arabica/risk-engine/internal/series"
	"github.com/arabica/risk-engine/internal/store"
)

const dateLayout = "2006-01-02"

// Service orchestrates the full report pipeline: price series in, risk
// estimate, scenario batch and counterparty exposures out, persisted as a
// single report.
type Service struct {
	store     store.Store
	hub       *Hub
	currency  string
	catalogue []model.Scenario
}

// NewService creates the report service. catalogue holds the scenarios that
// are always run (the built-in history plus anything loaded from file);
// stored scenarios are fetched per request.
func NewService(st store.Store, hub *Hub, currency string, catalogue []model.Scenario) *Service {
	return &Service{
		store:     st,
		hub:       hub,
		currency:  currency,
		catalogue: catalogue,
	}
}

// Routes mounts the service's HTTP handlers on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/reports", s.handleComputeReport)
	r.Get("/reports", s.handleListReports)
	r.Get("/reports/{id}", s.handleGetReport)
	r.Get("/scenarios", s.handleListScenarios)
	r.Post("/scenarios", s.handleCreateScenario)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
}

// PricePoint is one daily settlement observation in a compute request.
type PricePoint struct {
	Date  string          `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// RiskConfig is the wire form of the engine configuration.
type RiskConfig struct {
	Confidence      float64 `json:"confidence"`
	HorizonDays     int     `json:"horizon_days"`
	Method          string  `json:"method"`
	Family          string  `json:"family,omitempty"`
	PathCount       int     `json:"path_count,omitempty"`
	Seed            *int64  `json:"seed,omitempty"`
	MinObservations int     `json:"min_observations,omitempty"`
}

// ComputeRequest is the payload for POST /api/v1/reports.
type ComputeRequest struct {
	Prices         []PricePoint         `json:"prices"`
	ReturnMethod   string               `json:"return_method,omitempty"`
	Positions      []model.Position     `json:"positions"`
	Counterparties []model.Counterparty `json:"counterparties,omitempty"`
	Config         RiskConfig           `json:"config"`
	Scenarios      []model.Scenario     `json:"scenarios,omitempty"`
	Currency       string               `json:"currency,omitempty"`
}

func (s *Service) handleComputeReport(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	rs, err := buildSeries(req.Prices, req.ReturnMethod)
	if err != nil {
		metrics.ReportFailures.WithLabelValues("series").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Positions) == 0 {
		writeError(w, http.StatusBadRequest, "at least one position is required")
		return
	}
	gross := decimal.Zero
	for _, p := range req.Positions {
		gross = gross.Add(p.Notional.Abs())
	}

	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}

	cfg := risk.Config{
		Confidence:      req.Config.Confidence,
		HorizonDays:     req.Config.HorizonDays,
		Method:          req.Config.Method,
		Family:          req.Config.Family,
		PathCount:       req.Config.PathCount,
		Seed:            req.Config.Seed,
		MinObservations: req.Config.MinObservations,
	}

	start := time.Now()
	rr, err := risk.Compute(rs, gross, currency, cfg)
	metrics.ComputeLatency.WithLabelValues("var").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ReportFailures.WithLabelValues("var").Inc()
		writeError(w, statusFor(err), err.Error())
		return
	}
	if rr.PathCount > 0 {
		metrics.MonteCarloPaths.Observe(float64(rr.PathCount))
	}

	scenarios := s.collectScenarios(r, req.Scenarios)
	start = time.Now()
	results, failures := scenario.RunAll(req.Positions, scenarios, rs)
	metrics.ComputeLatency.WithLabelValues("scenarios").Observe(time.Since(start).Seconds())
	metrics.ScenarioFailures.Add(float64(len(failures)))

	start = time.Now()
	exposures, err := s.computeExposures(req.Positions, req.Counterparties, rr)
	metrics.ComputeLatency.WithLabelValues("credit").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ReportFailures.WithLabelValues("credit").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := model.RiskReport{
		ID:                uuid.New().String(),
		AsOf:              rr.AsOf,
		CreatedAt:         time.Now().UTC(),
		Currency:          currency,
		Risk:              rr,
		Scenarios:         results,
		ScenarioFailures:  failures,
		Exposures:         exposures,
		TotalExpectedLoss: credit.TotalExpectedLoss(exposures),
	}

	if err := s.store.SaveReport(r.Context(), &report); err != nil {
		metrics.ReportFailures.WithLabelValues("store").Inc()
		slog.Error("failed to save report", "id", report.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to save report")
		return
	}

	metrics.ReportsComputed.WithLabelValues(rr.Method).Inc()
	slog.Info("report computed",
		"id", report.ID,
		"method", rr.Method,
		"var", rr.VaR.String(),
		"scenarios", len(results),
		"scenario_failures", len(failures),
		"counterparties", len(exposures))

	if s.hub != nil {
		s.hub.Broadcast(Notification{
			Type:              "report_completed",
			ReportID:          report.ID,
			AsOf:              report.AsOf.Format(time.RFC3339),
			Method:            rr.Method,
			VaR:               rr.VaR.String(),
			ExpectedShortfall: rr.ES.String(),
			TotalExpectedLoss: report.TotalExpectedLoss.String(),
			Currency:          currency,
		})
	}

	writeJSON(w, http.StatusCreated, report)
}

func (s *Service) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := s.store.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		slog.Error("failed to get report", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Service) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	reports, err := s.store.ListReports(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list reports", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports, "count": len(reports)})
}

func (s *Service) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	stored, err := s.store.ListScenarios(r.Context())
	if err != nil {
		slog.Error("failed to list scenarios", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list scenarios")
		return
	}
	out := make([]model.Scenario, 0, len(s.catalogue)+len(stored))
	out = append(out, s.catalogue...)
	out = append(out, stored...)
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": out, "count": len(out)})
}

func (s *Service) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var sc model.Scenario
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := validateScenario(sc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SaveScenario(r.Context(), sc); err != nil {
		slog.Error("failed to save scenario", "label", sc.Label, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to save scenario")
		return
	}
	slog.Info("scenario created", "label", sc.Label, "kind", sc.Kind)
	writeJSON(w, http.StatusCreated, sc)
}

// collectScenarios assembles the batch for one request: catalogue first,
// then stored scenarios, then any inlined in the request itself.
func (s *Service) collectScenarios(r *http.Request, extra []model.Scenario) []model.Scenario {
	out := make([]model.Scenario, 0, len(s.catalogue)+len(extra))
	out = append(out, s.catalogue...)
	stored, err := s.store.ListScenarios(r.Context())
	if err != nil {
		slog.Warn("failed to load stored scenarios, continuing without", "err", err)
	} else {
		out = append(out, stored...)
	}
	return append(out, extra...)
}

func (s *Service) computeExposures(positions []model.Position, cps []model.Counterparty, rr *model.RiskResult) ([]model.ExposureResult, error) {
	if len(cps) == 0 {
		return nil, nil
	}
	byCounterparty := make(map[string][]model.Position)
	for _, p := range positions {
		if p.CounterpartyID != "" {
			byCounterparty[p.CounterpartyID] = append(byCounterparty[p.CounterpartyID], p)
		}
	}
	out := make([]model.ExposureResult, 0, len(cps))
	for _, cp := range cps {
		er, err := credit.ComputeExposure(byCounterparty[cp.ID], cp, rr)
		if err != nil {
			return nil, fmt.Errorf("counterparty %s: %w", cp.ID, err)
		}
		out = append(out, *er)
	}
	return out, nil
}

func buildSeries(prices []PricePoint, method string) (*series.ReturnSeries, error) {
	if method == "" {
		method = series.Simple
	}
	obs := make([]series.Observation, 0, len(prices))
	for i, p := range prices {
		ts, err := time.Parse(dateLayout, p.Date)
		if err != nil {
			return nil, fmt.Errorf("prices[%d]: invalid date %q (want YYYY-MM-DD)", i, p.Date)
		}
		obs = append(obs, series.Observation{Timestamp: ts, Price: p.Price})
	}
	return series.New(obs, method)
}

func validateScenario(sc model.Scenario) error {
	if sc.Label == "" {
		return errors.New("scenario label is required")
	}
	switch sc.Kind {
	case model.KindHistorical:
		if len(sc.Shocks) == 0 && (sc.Start == nil || sc.End == nil) {
			return errors.New("historical scenario requires shocks or a start/end window")
		}
		if sc.Start != nil && sc.End != nil && sc.End.Before(*sc.Start) {
			return errors.New("scenario window end precedes start")
		}
	case model.KindHypothetical:
		if len(sc.Shocks) == 0 {
			return errors.New("hypothetical scenario requires shocks")
		}
	default:
		return fmt.Errorf("unknown scenario kind %q", sc.Kind)
	}
	return nil
}

// statusFor maps engine validation errors to 400 and everything else to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, risk.ErrInvalidParameter),
		errors.Is(err, risk.ErrMissingSeed),
		errors.Is(err, series.ErrTooFewObservations),
		errors.Is(err, series.ErrNonMonotonic),
		errors.Is(err, series.ErrNonPositivePrice),
		errors.Is(err, series.ErrUnknownMethod):
		return http.StatusBadRequest
	default:
		// Insufficient data and unknown family come wrapped from dist.
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
