// Package metrics provides Prometheus instrumentation for the simulator.
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
	// OrdersTotal counts executed orders by kind and outcome.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invsim_orders_total",
		Help: "Total orders processed",
	}, []string{"kind", "status"})

	// OrderLatency tracks end-to-end order execution latency.
	OrderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invsim_order_latency_seconds",
		Help:    "Order execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// RevisionConflicts counts conditional writes rejected by the store.
	// A high rate means heavy same-user contention.
	RevisionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invsim_revision_conflicts_total",
		Help: "Conditional ledger writes rejected due to revision mismatch",
	})

	// QuoteFetchLatency tracks quote provider round-trip time.
	QuoteFetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invsim_quote_fetch_latency_seconds",
		Help:    "Quote provider fetch latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// QuoteFetchErrors counts failed quote lookups.
	QuoteFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invsim_quote_fetch_errors_total",
		Help: "Failed quote provider lookups",
	})

	// WebSocketClients tracks connected streaming clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "invsim_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invsim_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invsim_http_request_duration_seconds",
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

		// Use the raw path for the label; routes here are low-cardinality.
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
