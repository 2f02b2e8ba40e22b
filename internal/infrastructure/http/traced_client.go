package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	ctxutil "amlchecker/internal/infrastructure/context"
	"amlchecker/internal/infrastructure/security"
)

// RequestIDHeader carries the correlation id to upstream services.
const RequestIDHeader = "X-Request-Id"

// TracedClient wraps an HTTP client and logs every outbound call with
// sanitized URL and headers, tagged with the request correlation id.
type TracedClient struct {
	client      *http.Client
	log         *slog.Logger
	provider    string
	logRespBody bool
	maxBodySize int
}

// TracedClientConfig holds configuration for the traced HTTP client.
type TracedClientConfig struct {
	Timeout         time.Duration
	MaxConnsPerHost int
	// LogResponseBody logs a sanitized copy of each response body at debug level.
	LogResponseBody bool
	MaxBodySize     int
	Transport       http.RoundTripper
}

// NewTracedClient creates a traced client for the named provider.
func NewTracedClient(cfg TracedClientConfig, log *slog.Logger, provider string) *TracedClient {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 4096
	}

	return &TracedClient{
		client: NewClient(&ClientConfig{
			Timeout:         cfg.Timeout,
			MaxConnsPerHost: cfg.MaxConnsPerHost,
			Transport:       cfg.Transport,
		}),
		log:         log,
		provider:    provider,
		logRespBody: cfg.LogResponseBody,
		maxBodySize: cfg.MaxBodySize,
	}
}

// Do executes req. The response body is buffered so it can be logged and
// still handed back to the caller unread.
func (c *TracedClient) Do(req *http.Request) (*http.Response, error) {
	correlationID := ctxutil.GetCorrelationID(req.Context())
	if correlationID != "" {
		req.Header.Set(RequestIDHeader, correlationID)
	}

	attrs := []any{
		"request_id", correlationID,
		"provider", c.provider,
		"method", req.Method,
		"url", security.SanitizeURL(req.URL.String()),
	}
	c.log.Debug("provider_request", append(attrs, "headers", security.SanitizeHeaders(req.Header))...)

	start := time.Now()
	resp, err := c.client.Do(req)
	attrs = append(attrs, "duration_ms", time.Since(start).Milliseconds())

	if err != nil {
		c.log.Warn("provider_request_failed", append(attrs, "error", err.Error())...)
		return nil, err
	}

	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		c.log.Warn("provider_response_read_failed", append(attrs, "status", resp.StatusCode, "error", readErr.Error())...)
		return nil, readErr
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	attrs = append(attrs, "status", resp.StatusCode, "response_size_bytes", len(body))
	if c.logRespBody && len(body) > 0 {
		attrs = append(attrs, "response_body", string(security.SanitizeBody(body, c.maxBodySize)))
	}

	if resp.StatusCode >= 400 {
		c.log.Warn("provider_response", attrs...)
	} else {
		c.log.Info("provider_response", attrs...)
	}

	return resp, nil
}

// Client returns the underlying HTTP client.
func (c *TracedClient) Client() *http.Client {
	return c.client
}
