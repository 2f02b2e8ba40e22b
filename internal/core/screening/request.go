package screening

import (
	"strconv"
	"strings"

	"amlchecker/internal/core/domainerrors"
)

const (
	DefaultLimit = 15
	MinLimit     = 1
	MaxLimit     = 100
)

// Request is a single screening call as accepted from the caller.
type Request struct {
	Name      string
	Limit     int
	Fuzzy     bool
	Schema    *string
	Country   *string
	RequestID string
}

// Normalize trims free-text fields and clamps the limit into [MinLimit, MaxLimit].
func (r Request) Normalize() Request {
	r.Name = strings.TrimSpace(r.Name)
	r.Limit = ClampLimit(r.Limit)
	r.Schema = trimOptional(r.Schema)
	r.Country = trimOptional(r.Country)
	return r
}

// Validate checks the request after normalization.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domainerrors.NewValidationError("name", "name is required")
	}
	return nil
}

// ClampLimit forces n into [MinLimit, MaxLimit]. Out of range values are
// clamped, never rejected.
func ClampLimit(n int) int {
	if n < MinLimit {
		return MinLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// ParseLimit reads a limit from query-string text. Empty or unparsable input
// yields DefaultLimit; numeric input is clamped.
func ParseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultLimit
	}
	return ClampLimit(n)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
