// Package domainerrors holds the error taxonomy shared by the screening and
// history use cases. Adapters map these kinds to transport status codes with
// errors.As; everything else is treated as internal.
package domainerrors

import (
	"errors"
	"fmt"
)

// ValidationError reports caller input that was rejected before any upstream
// or storage call was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UpstreamError reports that the screening provider could not be reached or
// kept failing after the retry policy gave up.
type UpstreamError struct {
	Cause      error
	StatusCode int // 0 when no HTTP response was received
	Attempts   int
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error: status %d after %d attempt(s): %v", e.StatusCode, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("upstream error after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// InternalError wraps anything unexpected raised while screening.
type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Cause)
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsUpstream reports whether err carries an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
