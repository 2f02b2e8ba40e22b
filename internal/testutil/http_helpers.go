package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
)

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

// ReadJSONResponse checks the status code and decodes the body into v.
func ReadJSONResponse(t TB, w *httptest.ResponseRecorder, wantStatus int, v any) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("expected status %d, got %d: %s", wantStatus, w.Code, w.Body.String())
		t.FailNow()
	}
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Errorf("failed to decode JSON response: %v", err)
		t.FailNow()
	}
}

// ReadErrorResponse decodes an error envelope.
func ReadErrorResponse(t TB, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Errorf("failed to decode error response: %v", err)
		t.FailNow()
	}
	return response
}

// CreateRequest creates an HTTP request with optional JSON body and headers.
func CreateRequest(method, path string, body any, headers map[string]string) *http.Request {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

// IdentityHeaders returns gateway identity headers for an organization member.
func IdentityHeaders(orgID, userID, role string) map[string]string {
	headers := map[string]string{"X-Org-Id": orgID}
	if userID != "" {
		headers["X-User-Id"] = userID
	}
	if role != "" {
		headers["X-Role"] = role
	}
	return headers
}
