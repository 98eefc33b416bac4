package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/nakshatra/internal/domain/chart"
)

// ChartDependencies computes charts that are not tied to a profile.
type ChartDependencies interface {
	AdHocChart(ctx context.Context, instant time.Time, latitude, longitude float64) (chart.Chart, error)
	Transits(ctx context.Context, instant time.Time) (chart.Transits, error)
}

// chartRequest mirrors the OpenAPI schema for POST /charts.
type chartRequest struct {
	Instant   string   `json:"instant"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (c chartRequest) parse() (time.Time, float64, float64, error) {
	switch {
	case c.Instant == "":
		return time.Time{}, 0, 0, errors.New("missing instant")
	case c.Latitude == nil:
		return time.Time{}, 0, 0, errors.New("missing latitude")
	case c.Longitude == nil:
		return time.Time{}, 0, 0, errors.New("missing longitude")
	}
	t, err := chart.ParseInstant(c.Instant)
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	if err := chart.ValidateLocation(*c.Latitude, *c.Longitude); err != nil {
		return time.Time{}, 0, 0, err
	}
	return t, *c.Latitude, *c.Longitude, nil
}

// ChartsHandler handles ad hoc chart and transit requests.
type ChartsHandler struct {
	deps ChartDependencies
}

// NewChartsHandler creates a new charts handler.
func NewChartsHandler(deps ChartDependencies) *ChartsHandler {
	return &ChartsHandler{deps: deps}
}

// HandlePostChart handles POST /charts requests.
func (h *ChartsHandler) HandlePostChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_chart"
	if r.Method != http.MethodPost {
		writeFailure(w, NewKind(op, ErrMethodNotAllowed))
		return
	}
	var req chartRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	instant, lat, lon, err := req.parse()
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := h.deps.AdHocChart(r.Context(), instant, lat, lon)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleGetTransits handles GET /transits?at=<instant> requests.
func (h *ChartsHandler) HandleGetTransits(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_transits"
	if r.Method != http.MethodGet {
		writeFailure(w, NewKind(op, ErrMethodNotAllowed))
		return
	}
	at, err := instantParam(r.URL.Query().Get("at"))
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	t, err := h.deps.Transits(r.Context(), at)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, t)
}
