package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/nakshatra/pkg/metrics"
)

// ReadinessChecker reports whether the service can serve requests.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	metrics   http.Handler
	readiness ReadinessChecker
}

// NewHealthHandler creates a new health handler over the service registry.
func NewHealthHandler(readiness ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		metrics:   promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		readiness: readiness,
	}
}

// HandleHealth handles GET /healthz requests with the Prometheus exposition.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HandleReady handles GET /readyz requests by pinging the profile store.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	const op = "api.ready"
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeFailure(w, NewKind(op, ErrMethodNotAllowed))
		return
	}
	if err := h.readiness.Ready(r.Context()); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
