package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"amlchecker/internal/core/identity"
	ctxutil "amlchecker/internal/infrastructure/context"
	httperrors "amlchecker/internal/infrastructure/http"
)

// Gateway headers carrying the caller identity.
const (
	HeaderOrgID     = "X-Org-Id"
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderRole      = "X-Role"
)

// RequireIdentity resolves the caller identity and rejects requests without
// an organization with 403. An identity already stored by the JWT middleware
// takes precedence over the gateway headers. Bypass paths pass through
// untouched.
func RequireIdentity(bypass []string, log *slog.Logger) func(http.Handler) http.Handler {
	skip := newBypassPaths(bypass)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip.match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			who, ok := ctxutil.GetIdentity(r.Context())
			if !ok {
				who = identityFromHeaders(r.Header)
			}
			if who.OrganizationID == "" {
				log.Warn("request rejected without organization", "path", r.URL.Path, "correlation_id", ctxutil.GetCorrelationID(r.Context()))
				httperrors.WriteError(w, http.StatusForbidden, "Forbidden", []string{"organization id is required"}, log)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctxutil.WithIdentity(r.Context(), who)))
		})
	}
}

func identityFromHeaders(h http.Header) identity.Identity {
	return identity.Identity{
		OrganizationID: strings.TrimSpace(h.Get(HeaderOrgID)),
		UserID:         strings.TrimSpace(h.Get(HeaderUserID)),
		UserEmail:      strings.TrimSpace(h.Get(HeaderUserEmail)),
		Role:           strings.TrimSpace(h.Get(HeaderRole)),
	}
}
