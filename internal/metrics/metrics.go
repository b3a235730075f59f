// Package metrics provides Prometheus instrumentation for the risk engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReportsComputed counts completed risk reports, partitioned by VaR method.
	ReportsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskengine_reports_computed_total",
		Help: "Total number of risk reports computed",
	}, []string{"method"})

	// ReportFailures counts report computations rejected with an error.
	ReportFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskengine_report_failures_total",
		Help: "Risk report computations that failed validation or estimation",
	}, []string{"stage"})

	// ComputeLatency tracks per-stage computation latency.
	ComputeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskengine_compute_latency_seconds",
		Help:    "Risk computation latency in seconds by stage",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
	}, []string{"stage"}) // var | scenarios | credit

	// ScenarioFailures counts scenarios that could not be evaluated.
	ScenarioFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskengine_scenario_failures_total",
		Help: "Stress scenarios skipped because evaluation failed",
	})

	// MonteCarloPaths observes the path counts of Monte Carlo runs.
	MonteCarloPaths = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskengine_monte_carlo_paths",
		Help:    "Path counts of Monte Carlo VaR simulations",
		Buckets: prometheus.ExponentialBuckets(100, 10, 5),
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskengine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
