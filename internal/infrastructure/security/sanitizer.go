package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,
}

// Substrings that mark a query parameter or JSON field as secret.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"key",
	"authorization",
	"credential",
	"auth",
}

const redactedValue = "[REDACTED]"

// SanitizeHeaders flattens headers for logging with secret values redacted.
func SanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string, len(headers))
	for key, values := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			sanitized[key] = redactedValue
			continue
		}
		sanitized[key] = strings.Join(values, ", ")
	}
	return sanitized
}

// SanitizeURL redacts secret query parameters. Search terms such as q are
// kept because they are needed to trace a screening.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	if u.RawQuery == "" {
		return u.String()
	}

	query := u.Query()
	changed := false
	for param := range query {
		if isSensitive(param) {
			query.Set(param, redactedValue)
			changed = true
		}
	}
	if changed {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// SanitizeBody returns a loggable copy of a JSON body with secret fields
// redacted. Bodies larger than maxSize are truncated to a preview.
func SanitizeBody(body []byte, maxSize int) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if !utf8.Valid(body) {
		result, _ := json.Marshal(map[string]any{"_binary": true, "_size": len(body)})
		return result
	}
	if maxSize > 0 && len(body) > maxSize {
		result, _ := json.Marshal(map[string]any{
			"_truncated": true,
			"_size":      len(body),
			"_preview":   string(body[:maxSize]),
		})
		return result
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		result, _ := json.Marshal(map[string]any{"_raw": string(body), "_format": "text"})
		return result
	}

	result, err := json.Marshal(sanitizeValue(data))
	if err != nil {
		return nil
	}
	return result
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, value := range val {
			if isSensitive(key) {
				out[key] = redactedValue
				continue
			}
			out[key] = sanitizeValue(value)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, value := range val {
			out[i] = sanitizeValue(value)
		}
		return out
	default:
		return val
	}
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}
