package screening

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	appscreening "amlchecker/internal/application/screening"
	"amlchecker/internal/core/domainerrors"
	"amlchecker/internal/core/identity"
	corescreening "amlchecker/internal/core/screening"
	ctxutil "amlchecker/internal/infrastructure/context"
	httperrors "amlchecker/internal/infrastructure/http"
	"amlchecker/internal/infrastructure/logger"
)

// Source names the provider in every screening response.
const Source = "OpenSanctions"

// Checker is the screening use case the handler drives.
type Checker interface {
	Check(ctx context.Context, who identity.Identity, req corescreening.Request) (*appscreening.Result, error)
}

// Handler bridges HTTP traffic with the screening application service.
type Handler struct {
	service Checker
	log     *slog.Logger
}

// NewHandler creates a new screening HTTP handler.
func NewHandler(service Checker, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Meta describes where and when a screening result was produced.
type Meta struct {
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"requestId"`
	DurationMs int64     `json:"durationMs"`
}

// Response is the body of a successful screening call.
type Response struct {
	Meta         Meta                  `json:"meta"`
	Query        string                `json:"query"`
	SearchParams appscreening.Params   `json:"search_params"`
	HitsCount    int                   `json:"hits_count"`
	Data         []corescreening.Match `json:"data"`
}

type checkBody struct {
	Name    string  `json:"name"`
	Limit   *int    `json:"limit"`
	Fuzzy   bool    `json:"fuzzy"`
	Schema  *string `json:"schema"`
	Country *string `json:"country"`
}

// Check handles GET /check with query parameters.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fuzzy, _ := strconv.ParseBool(strings.TrimSpace(q.Get("fuzzy")))

	h.check(w, r, corescreening.Request{
		Name:    q.Get("name"),
		Limit:   corescreening.ParseLimit(q.Get("limit")),
		Fuzzy:   fuzzy,
		Schema:  optionalParam(q.Get("schema")),
		Country: optionalParam(q.Get("country")),
	})
}

// CheckJSON handles POST /check with a JSON body carrying the same fields.
func (h *Handler) CheckJSON(w http.ResponseWriter, r *http.Request) {
	var body checkBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{"request body must be valid JSON"}, h.log)
		return
	}

	limit := corescreening.DefaultLimit
	if body.Limit != nil {
		limit = *body.Limit
	}
	h.check(w, r, corescreening.Request{
		Name:    body.Name,
		Limit:   limit,
		Fuzzy:   body.Fuzzy,
		Schema:  body.Schema,
		Country: body.Country,
	})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request, req corescreening.Request) {
	who, ok := ctxutil.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, http.StatusForbidden, "Forbidden", []string{"organization id is required"}, h.log)
		return
	}

	result, err := h.service.Check(r.Context(), who, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	data := result.Matches
	if data == nil {
		data = []corescreening.Match{}
	}
	httperrors.WriteJSON(w, http.StatusOK, Response{
		Meta: Meta{
			Source:     Source,
			Timestamp:  result.Timestamp,
			RequestID:  result.RequestID,
			DurationMs: result.DurationMs,
		},
		Query:        result.Query,
		SearchParams: result.Params,
		HitsCount:    result.HitsCount,
		Data:         data,
	}, h.log)
}

// handleError maps domain errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *domainerrors.ValidationError
		upstream   *domainerrors.UpstreamError
	)
	switch {
	case errors.As(err, &validation):
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{validation.Message}, h.log)
	case errors.As(err, &upstream):
		logger.FromContext(r.Context(), h.log).Error("screening provider unavailable",
			"error", err,
			"status_code", upstream.StatusCode,
			"attempts", upstream.Attempts,
		)
		httperrors.WriteError(w, http.StatusBadGateway, "Screening provider unavailable", []string{"the screening provider could not be reached"}, h.log)
	default:
		logger.FromContext(r.Context(), h.log).Error("screening failed", "error", err)
		httperrors.WriteError(w, http.StatusInternalServerError, "Internal server error", []string{"an internal error occurred"}, h.log)
	}
}

func optionalParam(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}
