// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/nakshatra/internal/adapters/repository"
	"github.com/okian/nakshatra/internal/domain/chart"
	"github.com/okian/nakshatra/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ChartDependencies
	ProfileDependencies
	ReadinessChecker
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	chartsHandler  *ChartsHandler
	profileHandler *ProfileHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(statsProvider),
		chartsHandler:  NewChartsHandler(deps),
		profileHandler: NewProfileHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/charts", MetricsMiddleware(s.chartsHandler.HandlePostChart, "charts"))
	mux.HandleFunc("/transits", MetricsMiddleware(s.chartsHandler.HandleGetTransits, "transits"))
	mux.HandleFunc("/profiles", MetricsMiddleware(s.profileHandler.HandlePostProfile, "profiles"))
	mux.HandleFunc("/profiles/", MetricsMiddleware(s.profileHandler.HandleProfile, "profile"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a service error onto its HTTP status and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, chart.ErrUnsupportedBody):
		return http.StatusBadRequest, "unsupported_body"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidProfile),
		errors.Is(err, chart.ErrInvalidInstant),
		errors.Is(err, chart.ErrInvalidLocation):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict, "already_registered"
	case errors.Is(err, chart.ErrEphemerisProvider):
		return http.StatusBadGateway, "ephemeris_failure"
	case errors.Is(err, repository.ErrUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// instantParam parses an optional instant, returning the zero time when s is empty.
func instantParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return chart.ParseInstant(s)
}

// maxBodyBytes caps request bodies; every request shape is a few hundred bytes.
const maxBodyBytes = 64 << 10

// decode reads a JSON body of at most maxBodyBytes, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
