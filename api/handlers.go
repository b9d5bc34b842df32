package api

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/seoulsafe/sinkhole-api/account"
	"github.com/seoulsafe/sinkhole-api/auth"
	"github.com/seoulsafe/sinkhole-api/errors"
	"github.com/seoulsafe/sinkhole-api/geo"
	"github.com/seoulsafe/sinkhole-api/hazard"
	apphttp "github.com/seoulsafe/sinkhole-api/http"
	"github.com/seoulsafe/sinkhole-api/logging"
	"github.com/seoulsafe/sinkhole-api/validation"
)

// PredictRiskRequest is the body of POST /predict-risk.
type PredictRiskRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Name      string   `json:"name,omitempty" validate:"max=200"`
}

// SafeRouteRequest is the body of POST /safe-route.
type SafeRouteRequest struct {
	StartLatitude  *float64 `json:"start_latitude" validate:"required,latitude"`
	StartLongitude *float64 `json:"start_longitude" validate:"required,longitude"`
	EndLatitude    *float64 `json:"end_latitude" validate:"required,latitude"`
	EndLongitude   *float64 `json:"end_longitude" validate:"required,longitude"`
}

// LoginRequest carries OAuth2 password-grant credentials. The username is
// the account email.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=320"`
	Password string `json:"password" validate:"required,max=72"`
}

// RiskZonesResponse is the body of GET /risk-zones.
type RiskZonesResponse struct {
	Zones      []hazard.Entry `json:"zones"`
	TotalCount int            `json:"total_count"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in account.RegisterInput
	if !validation.DecodeAndValidate(w, r, &in) {
		return
	}

	user, err := h.deps.Accounts.Register(r.Context(), in)
	if err != nil {
		h.audit(r, logging.AuditEventRegister, in.Email, logging.AuditOutcomeFailure,
			map[string]string{"reason": errors.Code(err)})
		apphttp.Error(w, r, err)
		return
	}

	h.audit(r, logging.AuditEventRegister, user.Email, logging.AuditOutcomeSuccess, nil)
	apphttp.OK(w, user.Profile())
}

func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeLogin(w, r)
	if !ok {
		return
	}

	token, user, err := h.deps.Accounts.Authenticate(r.Context(), creds.Username, creds.Password)
	if err != nil {
		switch {
		case user != nil && !user.IsActive:
			h.audit(r, logging.AuditEventInactiveLogin, creds.Username, logging.AuditOutcomeDenied, nil)
		case errors.IsUnauthorized(err):
			h.audit(r, logging.AuditEventLogin, creds.Username, logging.AuditOutcomeFailure, nil)
		}
		apphttp.Error(w, r, err)
		return
	}

	h.audit(r, logging.AuditEventLogin, user.Email, logging.AuditOutcomeSuccess, nil)
	apphttp.OK(w, token)
}

// decodeLogin accepts the OAuth2 form encoding as well as JSON.
func decodeLogin(w http.ResponseWriter, r *http.Request) (LoginRequest, bool) {
	var creds LoginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && err != http.ErrNotMultipart {
			errors.WriteError(w, errors.BadRequest("invalid form body"), middleware.GetReqID(r.Context()))
			return creds, false
		}
		creds.Username = strings.TrimSpace(r.PostFormValue("username"))
		creds.Password = r.PostFormValue("password")
	case "application/json":
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&creds); err != nil {
			errors.WriteError(w, errors.BadRequest("invalid JSON body"), middleware.GetReqID(r.Context()))
			return creds, false
		}
		creds.Username = strings.TrimSpace(creds.Username)
	default:
		errors.WriteErrorWithStatus(w, http.StatusUnsupportedMediaType,
			errors.CodeBadRequest, "Content-Type must be a form or application/json")
		return creds, false
	}

	if err := validation.Validate(&creds); err != nil {
		errors.WriteError(w, validation.AsAppError(err), middleware.GetReqID(r.Context()))
		return creds, false
	}
	return creds, true
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.deps.Accounts.CurrentUser(r.Context(), auth.GetClaims(r.Context()))
	if err != nil {
		if errors.IsUnauthorized(err) {
			h.audit(r, logging.AuditEventTokenRejected, "", logging.AuditOutcomeDenied, nil)
		}
		apphttp.Error(w, r, err)
		return
	}
	apphttp.OK(w, user.Profile())
}

func (h *Handler) predictRisk(w http.ResponseWriter, r *http.Request) {
	var req PredictRiskRequest
	if !validation.DecodeAndValidate(w, r, &req) {
		return
	}

	assessment, err := h.deps.Estimator.Estimate(geo.NewPoint(*req.Latitude, *req.Longitude))
	if err != nil {
		apphttp.Error(w, r, err)
		return
	}
	h.deps.Metrics.RecordAssessment(r.Context(), string(assessment.RiskLevel), assessment.RiskScore)

	logging.FromContext(r.Context()).Debug("risk assessed",
		"name", req.Name,
		"risk_score", assessment.RiskScore,
		"nearest_zone", assessment.NearestZone.Name,
		"distance_km", assessment.DistanceKm,
	)
	apphttp.OK(w, assessment)
}

func (h *Handler) riskZones(w http.ResponseWriter, r *http.Request) {
	entries := h.deps.Table.Entries()
	apphttp.OK(w, RiskZonesResponse{Zones: entries, TotalCount: len(entries)})
}

func (h *Handler) safeRoute(w http.ResponseWriter, r *http.Request) {
	var req SafeRouteRequest
	if !validation.DecodeAndValidate(w, r, &req) {
		return
	}

	route, err := h.deps.Advisor.PlanRoute(
		geo.NewPoint(*req.StartLatitude, *req.StartLongitude),
		geo.NewPoint(*req.EndLatitude, *req.EndLongitude),
	)
	if err != nil {
		apphttp.Error(w, r, err)
		return
	}
	h.deps.Metrics.RecordRoute(r.Context(), string(route.RouteType), len(route.AvoidedZones))

	apphttp.OK(w, route)
}

func (h *Handler) searchLocation(w http.ResponseWriter, r *http.Request) {
	apphttp.OK(w, h.deps.Places.Search(r.Context(), r.URL.Query().Get("query")))
}

func (h *Handler) audit(r *http.Request, event logging.AuditEventType, actor string, outcome logging.AuditOutcome, details map[string]string) {
	if h.deps.Audit == nil {
		return
	}
	h.deps.Audit.LogFromRequest(r, event, actor, outcome, details)
}
