package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ctxutil "amlchecker/internal/infrastructure/context"
)

func TestTracedClientDo_ForwardsRequestIDAndRestoresBody(t *testing.T) {
	requestIDs := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestIDs <- r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"results":[],"total":{"value":0}}`))
	}))
	defer server.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewTracedClient(TracedClientConfig{Timeout: time.Second}, log, "yente")

	ctx := ctxutil.WithCorrelationID(context.Background(), "req-123")
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/search/default?q=putin", nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if gotRequestID := <-requestIDs; gotRequestID != "req-123" {
		t.Errorf("expected %s=req-123, got %q", RequestIDHeader, gotRequestID)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"total"`) {
		t.Errorf("response body not restored, got %q", body)
	}
}

func TestTracedClientDo_LogsSanitizedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"index rebuilding"}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := NewTracedClient(TracedClientConfig{Timeout: time.Second, LogResponseBody: true}, log, "yente")

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/search/default?q=putin", nil)
	req.Header.Set("Authorization", "ApiKey top-secret")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	out := buf.String()
	if strings.Contains(out, "top-secret") {
		t.Error("authorization header leaked into logs")
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "status=503") {
		t.Errorf("expected a warn entry with the status, got %s", out)
	}
	if !strings.Contains(out, "index rebuilding") {
		t.Errorf("expected response body in logs, got %s", out)
	}
}

func TestTracedClientDo_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewTracedClient(TracedClientConfig{Timeout: time.Second}, log, "yente")

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	resp, err := client.Do(req)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected a connection error")
	}
}
