package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"amlchecker/internal/core/identity"
	"amlchecker/internal/infrastructure/config"
	ctxutil "amlchecker/internal/infrastructure/context"
	httperrors "amlchecker/internal/infrastructure/http"
)

// ContextKeyToken exposes the verified JWT token via request context.
type ContextKeyToken struct{}

// Claims are the token claims that carry the caller identity.
type Claims struct {
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// Identity maps the claims to a caller identity. userId wins over sub.
func (c *Claims) Identity() identity.Identity {
	userID := c.UserID
	if userID == "" {
		userID = c.Subject
	}
	return identity.Identity{
		OrganizationID: strings.TrimSpace(c.OrganizationID),
		UserID:         strings.TrimSpace(userID),
		UserEmail:      strings.TrimSpace(c.Email),
		Role:           strings.TrimSpace(c.Role),
	}
}

// JWTAuthenticator validates Authorization headers against a remote JWKS.
type JWTAuthenticator struct {
	cfg     config.AuthSettings
	log     *slog.Logger
	keyfunc jwt.Keyfunc
	cancel  context.CancelFunc
	bypass  bypassPaths
}

func NewJWTAuthenticator(cfg config.AuthSettings, log *slog.Logger) (*JWTAuthenticator, error) {
	auth := &JWTAuthenticator{
		cfg:    cfg,
		log:    log,
		bypass: newBypassPaths(cfg.BypassPaths),
	}

	if !cfg.Enabled {
		return auth, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	override := keyfunc.Override{
		RefreshInterval: 6 * time.Hour,
		RefreshErrorHandlerFunc: func(url string) func(context.Context, error) {
			return func(c context.Context, err error) {
				log.Error("failed to refresh JWKS", "url", url, "error", err)
			}
		},
		HTTPTimeout: 10 * time.Second,
	}

	jwks, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{cfg.JWKSetURI}, override)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("unable to load JWKS: %w", err)
	}
	auth.keyfunc = jwks.Keyfunc
	auth.cancel = cancel

	return auth, nil
}

// Middleware enforces JWT validation on inbound requests and stores the
// identity carried by the token in the request context.
func (a *JWTAuthenticator) Middleware(next http.Handler) http.Handler {
	if !a.cfg.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.bypass.match(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			httperrors.WriteError(w, http.StatusUnauthorized, "Unauthorized", []string{"invalid access credentials"}, a.log)
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, a.keyfunc,
			jwt.WithIssuer(a.cfg.IssuerURI),
			jwt.WithLeeway(a.cfg.ClockSkew),
			jwt.WithValidMethods([]string{
				jwt.SigningMethodRS256.Alg(),
				jwt.SigningMethodRS384.Alg(),
				jwt.SigningMethodRS512.Alg(),
				jwt.SigningMethodPS256.Alg(),
				jwt.SigningMethodES256.Alg(),
			}),
		)
		if err != nil || !token.Valid {
			a.log.Warn("token validation failed", "error", err)
			httperrors.WriteError(w, http.StatusUnauthorized, "Unauthorized", []string{"token is invalid or expired"}, a.log)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyToken{}, token)
		ctx = ctxutil.WithIdentity(ctx, claims.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Close stops background JWKS refreshers.
func (a *JWTAuthenticator) Close() {
	if a.cancel != nil {
		a.cancel()
	}
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid Authorization header format")
	}
	return parts[1], nil
}

type bypassPaths map[string]struct{}

func newBypassPaths(paths []string) bypassPaths {
	b := make(bypassPaths, len(paths))
	for _, path := range paths {
		if path != "" {
			b[path] = struct{}{}
		}
	}
	return b
}

func (b bypassPaths) match(path string) bool {
	_, ok := b[path]
	return ok
}
