package context

import (
	"context"

	"amlchecker/internal/core/identity"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"
	// IdentityKey is the context key for the gateway-supplied caller identity.
	IdentityKey contextKey = "identity"
)

// WithCorrelationID adds a correlation ID to the context.
// The same id travels from the inbound request to the upstream provider
// (X-Request-Id) and onto every log line of the screening call.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// GetCorrelationID retrieves the correlation ID from the context.
// Returns an empty string if no correlation ID is present.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithIdentity stores the caller identity resolved by the identity middleware.
func WithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetIdentity returns the caller identity and whether one was set.
func GetIdentity(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(identity.Identity)
	return id, ok
}
