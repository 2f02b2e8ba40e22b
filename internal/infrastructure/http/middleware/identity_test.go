package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"amlchecker/internal/core/identity"
	ctxutil "amlchecker/internal/infrastructure/context"
	"amlchecker/internal/testutil"
)

func identityProbe(got *identity.Identity, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		*got, _ = ctxutil.GetIdentity(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireIdentity_FromHeaders(t *testing.T) {
	var got identity.Identity
	var called bool
	handler := RequireIdentity(nil, testutil.NewNullLogger())(identityProbe(&got, &called))

	req := httptest.NewRequest(http.MethodGet, "/check", nil)
	req.Header.Set(HeaderOrgID, " org-123 ")
	req.Header.Set(HeaderUserID, "user-456")
	req.Header.Set(HeaderUserEmail, "analyst@example.com")
	req.Header.Set(HeaderRole, "member")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, identity.Identity{
		OrganizationID: "org-123",
		UserID:         "user-456",
		UserEmail:      "analyst@example.com",
		Role:           "member",
	}, got)
}

func TestRequireIdentity_MissingOrganization(t *testing.T) {
	var got identity.Identity
	var called bool
	handler := RequireIdentity(nil, testutil.NewNullLogger())(identityProbe(&got, &called))

	req := httptest.NewRequest(http.MethodGet, "/check", nil)
	req.Header.Set(HeaderUserID, "user-456")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := testutil.ReadErrorResponse(t, w)
	assert.Equal(t, "Forbidden", body["message"])
}

func TestRequireIdentity_TokenIdentityWins(t *testing.T) {
	var got identity.Identity
	var called bool
	handler := RequireIdentity(nil, testutil.NewNullLogger())(identityProbe(&got, &called))

	fromToken := identity.Identity{OrganizationID: "org-token", UserID: "sub-1", Role: "superadmin"}
	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	req.Header.Set(HeaderOrgID, "org-header")
	req = req.WithContext(ctxutil.WithIdentity(req.Context(), fromToken))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, fromToken, got)
}

func TestRequireIdentity_TokenWithoutOrganization(t *testing.T) {
	var got identity.Identity
	var called bool
	handler := RequireIdentity(nil, testutil.NewNullLogger())(identityProbe(&got, &called))

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	req = req.WithContext(ctxutil.WithIdentity(req.Context(), identity.Identity{UserID: "sub-1"}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireIdentity_Bypass(t *testing.T) {
	var got identity.Identity
	var called bool
	handler := RequireIdentity([]string{"/health", "/metrics"}, testutil.NewNullLogger())(identityProbe(&got, &called))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.True(t, called)
	assert.Equal(t, identity.Identity{}, got)
}
