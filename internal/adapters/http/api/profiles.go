package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/nakshatra/internal/domain/chart"
	"github.com/okian/nakshatra/internal/domain/model"
)

// ProfileDependencies registers users and serves their natal data.
type ProfileDependencies interface {
	Register(ctx context.Context, p model.BirthProfile) (model.Registration, error)
	Profile(ctx context.Context, userID string) (model.BirthProfile, error)
	NatalChart(ctx context.Context, userID string) (chart.Chart, error)
	Context(ctx context.Context, userID string, instant time.Time) (string, error)
}

// profileRequest mirrors the OpenAPI schema for POST /profiles. The birth
// instant is either instant or the dob/tob pair.
type profileRequest struct {
	UserID    string   `json:"user_id"`
	Name      string   `json:"name"`
	Place     string   `json:"place"`
	DOB       string   `json:"dob"`
	TOB       string   `json:"tob"`
	Instant   string   `json:"instant"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (p profileRequest) profile(now time.Time) (model.BirthProfile, error) {
	if p.Latitude == nil || p.Longitude == nil {
		return model.BirthProfile{}, errors.New("latitude and longitude are required")
	}
	var (
		birth time.Time
		err   error
	)
	if strings.TrimSpace(p.Instant) != "" {
		birth, err = chart.ParseInstant(p.Instant)
	} else {
		birth, err = chart.ParseBirth(p.DOB, p.TOB)
	}
	if err != nil {
		return model.BirthProfile{}, err
	}
	return model.NewBirthProfile(p.UserID, p.Name, p.Place, birth, *p.Latitude, *p.Longitude, now)
}

type registrationResponse struct {
	Status string `json:"status"`
	UserID string `json:"user_id"`
	JobID  string `json:"job_id,omitempty"`
	Queued bool   `json:"queued"`
}

// ProfileHandler handles birth profile requests.
type ProfileHandler struct {
	deps ProfileDependencies
	now  func() time.Time
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps ProfileDependencies) *ProfileHandler {
	return &ProfileHandler{deps: deps, now: time.Now}
}

// HandlePostProfile handles POST /profiles requests.
func (h *ProfileHandler) HandlePostProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_profile"
	if r.Method != http.MethodPost {
		writeFailure(w, NewKind(op, ErrMethodNotAllowed))
		return
	}
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := req.profile(h.now())
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	reg, err := h.deps.Register(r.Context(), p)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, registrationResponse{
		Status: "accepted",
		UserID: reg.Profile.UserID,
		JobID:  reg.JobID,
		Queued: reg.Queued,
	})
}

// HandleProfile handles GET /profiles/{id}, /profiles/{id}/chart and
// /profiles/{id}/context requests.
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	if r.Method != http.MethodGet {
		writeFailure(w, NewKind(op, ErrMethodNotAllowed))
		return
	}
	userID, view, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/profiles/"), "/")
	if userID == "" || strings.Contains(view, "/") {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}

	switch view {
	case "":
		p, err := h.deps.Profile(r.Context(), userID)
		if err != nil {
			writeFailure(w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, p)
	case "chart":
		c, err := h.deps.NatalChart(r.Context(), userID)
		if err != nil {
			writeFailure(w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, c)
	case "context":
		at, err := instantParam(r.URL.Query().Get("at"))
		if err != nil {
			writeFailure(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		text, err := h.deps.Context(r.Context(), userID, at)
		if err != nil {
			writeFailure(w, Wrap(op, err))
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(text))
	default:
		http.NotFound(w, r)
	}
}
