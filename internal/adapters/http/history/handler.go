package history

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apphistory "amlchecker/internal/application/history"
	"amlchecker/internal/core/audit"
	"amlchecker/internal/core/domainerrors"
	ctxutil "amlchecker/internal/infrastructure/context"
	httperrors "amlchecker/internal/infrastructure/http"
	"amlchecker/internal/infrastructure/logger"
)

const dateOnly = "2006-01-02"

// Reader is the history use case the handler drives.
type Reader interface {
	List(ctx context.Context, scope audit.Scope, filter audit.Filter, page audit.Page) (*apphistory.ListResult, error)
	Get(ctx context.Context, scope audit.Scope, id string) (*audit.Record, error)
	Stats(ctx context.Context, scope audit.Scope, orgFilter *string) (*apphistory.Stats, error)
}

// Handler serves the audit history endpoints.
type Handler struct {
	service Reader
	log     *slog.Logger
}

// NewHandler creates a new history HTTP handler.
func NewHandler(service Reader, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// List handles GET /history.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter, err := ParseFilter(q)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	page := audit.NewPage(intParam(q, "page"), intParam(q, "limit"))

	result, err := h.service.List(r.Context(), scope, filter, page)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, result, h.log)
}

// Stats handles GET /history/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), scope, stringParam(r.URL.Query(), "orgId"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, stats, h.log)
}

// Get handles GET /history/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	record, err := h.service.Get(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, record, h.log)
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (audit.Scope, bool) {
	who, ok := ctxutil.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, http.StatusForbidden, "Forbidden", []string{"organization id is required"}, h.log)
		return audit.Scope{}, false
	}
	return audit.ScopeFor(who), true
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domainerrors.ValidationError
	switch {
	case errors.As(err, &validation):
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{validation.Message}, h.log)
	case errors.Is(err, audit.ErrNoOrganization):
		httperrors.WriteError(w, http.StatusForbidden, "Forbidden", []string{"organization id is required"}, h.log)
	case errors.Is(err, audit.ErrNotFound):
		httperrors.WriteError(w, http.StatusNotFound, "Not found", []string{"audit record not found"}, h.log)
	default:
		logger.FromContext(r.Context(), h.log).Error("history request failed", "error", err)
		httperrors.WriteError(w, http.StatusInternalServerError, "Internal server error", []string{"an internal error occurred"}, h.log)
	}
}

// ParseFilter reads the history filters from a query string. Dates accept
// RFC 3339 or YYYY-MM-DD; a date-only endDate covers the whole day.
func ParseFilter(q url.Values) (audit.Filter, error) {
	filter := audit.Filter{
		OrganizationID: stringParam(q, "orgId"),
		Search:         stringParam(q, "search"),
		UserID:         stringParam(q, "userId"),
	}

	if raw := strings.TrimSpace(q.Get("hasHit")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return audit.Filter{}, domainerrors.NewValidationError("hasHit", "hasHit must be true or false")
		}
		filter.HasHit = &v
	}

	start, err := dateParam(q, "startDate", false)
	if err != nil {
		return audit.Filter{}, err
	}
	end, err := dateParam(q, "endDate", true)
	if err != nil {
		return audit.Filter{}, err
	}
	filter.StartDate, filter.EndDate = start, end
	return filter, nil
}

func dateParam(q url.Values, name string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, domainerrors.NewValidationError(name, name+" must be an RFC 3339 timestamp or YYYY-MM-DD date")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func stringParam(q url.Values, name string) *string {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil
	}
	return &v
}

// intParam returns 0 for absent or malformed values, leaving defaults to
// audit.NewPage.
func intParam(q url.Values, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get(name)))
	if err != nil {
		return 0
	}
	return n
}
