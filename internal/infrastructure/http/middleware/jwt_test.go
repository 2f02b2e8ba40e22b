package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"amlchecker/internal/core/identity"
	"amlchecker/internal/infrastructure/config"
	ctxutil "amlchecker/internal/infrastructure/context"
	"amlchecker/internal/testutil"
)

const testIssuer = "https://issuer.example.com"

func newTestAuthenticator(t *testing.T, bypass ...string) (*JWTAuthenticator, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cfg := config.AuthSettings{
		Enabled:     true,
		IssuerURI:   testIssuer,
		ClockSkew:   time.Minute,
		BypassPaths: bypass,
	}
	return &JWTAuthenticator{
		cfg:     cfg,
		log:     testutil.NewNullLogger(),
		keyfunc: func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
		bypass:  newBypassPaths(bypass),
	}, key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() Claims {
	return Claims{
		OrganizationID: "org-123",
		Email:          "analyst@example.com",
		Role:           "member",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "user-456",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestNewJWTAuthenticator_AuthDisabled(t *testing.T) {
	auth, err := NewJWTAuthenticator(config.AuthSettings{Enabled: false}, testutil.NewTestLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth == nil {
		t.Fatal("expected authenticator to be created, got nil")
	}
	if auth.cfg.Enabled {
		t.Error("expected auth to be disabled")
	}

	// Close without background refreshers must not panic.
	auth.Close()
}

func TestNewJWTAuthenticator_AuthEnabled_InvalidJWKSetURI(t *testing.T) {
	cfg := config.AuthSettings{
		Enabled:   true,
		IssuerURI: testIssuer,
		JWKSetURI: "invalid-uri",
	}

	if _, err := NewJWTAuthenticator(cfg, testutil.NewTestLogger()); err == nil {
		t.Fatal("expected error for invalid JWKSetURI")
	}
}

func TestJWTAuthenticator_Middleware_AuthDisabled(t *testing.T) {
	auth, _ := NewJWTAuthenticator(config.AuthSettings{Enabled: false}, testutil.NewTestLogger())
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/check", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestJWTAuthenticator_Middleware_ValidToken(t *testing.T) {
	auth, key := newTestAuthenticator(t)

	var got identity.Identity
	var hasToken bool
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ctxutil.GetIdentity(r.Context())
		_, hasToken = r.Context().Value(ContextKeyToken{}).(*jwt.Token)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/check", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, validClaims()))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	want := identity.Identity{OrganizationID: "org-123", UserID: "user-456", UserEmail: "analyst@example.com", Role: "member"}
	if got != want {
		t.Errorf("expected identity %+v, got %+v", want, got)
	}
	if !hasToken {
		t.Error("expected the verified token in the request context")
	}
}

func TestJWTAuthenticator_Middleware_Rejections(t *testing.T) {
	auth, key := newTestAuthenticator(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://evil.example.com"

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"malformed token", "Bearer invalid.token.here"},
		{"expired", "Bearer " + signToken(t, key, expired)},
		{"wrong issuer", "Bearer " + signToken(t, key, wrongIssuer)},
		{"foreign key", "Bearer " + signToken(t, otherKey, validClaims())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/check", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
			if called {
				t.Error("expected the next handler not to run")
			}
		})
	}
}

func TestJWTAuthenticator_Middleware_BypassPath(t *testing.T) {
	auth, _ := newTestAuthenticator(t, "/health")
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected bypass path to skip auth, got %d", w.Code)
	}
}

func TestBypassPaths(t *testing.T) {
	bypass := newBypassPaths([]string{"/health", "", "/metrics"})

	tests := []struct {
		path     string
		expected bool
	}{
		{"/health", true},
		{"/metrics", true},
		{"", false},
		{"/check", false},
		{"/health/status", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := bypass.match(tt.path); got != tt.expected {
				t.Errorf("expected match(%q)=%v, got %v", tt.path, tt.expected, got)
			}
		})
	}
}

func TestClaims_Identity(t *testing.T) {
	claims := validClaims()
	claims.UserID = " explicit-user "
	got := claims.Identity()
	if got.UserID != "explicit-user" {
		t.Errorf("expected userId claim to win over sub, got %q", got.UserID)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		expectedTok string
		expectedErr bool
	}{
		{name: "empty header", header: "", expectedErr: true},
		{name: "no Bearer prefix", header: "token123", expectedErr: true},
		{name: "invalid format - no space", header: "Bearertoken", expectedErr: true},
		{name: "invalid format - too many parts", header: "Bearer token extra", expectedErr: true},
		{name: "valid Bearer token", header: "Bearer token123", expectedTok: "token123"},
		{name: "valid Bearer token - case insensitive", header: "bearer token123", expectedTok: "token123"},
		{name: "valid Bearer token - mixed case", header: "BeArEr token123", expectedTok: "token123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := extractBearerToken(tt.header)

			if tt.expectedErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if token != tt.expectedTok {
				t.Errorf("expected token %q, got %q", tt.expectedTok, token)
			}
		})
	}
}
