// Package opensanctions implements screening.Provider against a yente
// (OpenSanctions) compatible search API.
package opensanctions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"amlchecker/internal/core/domainerrors"
	"amlchecker/internal/core/screening"
	httpinfra "amlchecker/internal/infrastructure/http"
	"amlchecker/internal/infrastructure/logger"
	"amlchecker/internal/infrastructure/metrics"
	"amlchecker/internal/infrastructure/security"
)

// Doer executes HTTP requests. *http.Client and *httpinfra.TracedClient both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the search client.
type Config struct {
	// SearchURL is the full dataset endpoint, e.g. http://yente:8000/search/default.
	SearchURL  string
	APIKey     string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Client searches the provider, retrying transient failures.
type Client struct {
	searchURL string
	apiKey    string
	http      Doer
	policy    httpinfra.RetryPolicy
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewClient creates a provider client. m may be nil.
func NewClient(cfg Config, httpClient Doer, m *metrics.Metrics, log *slog.Logger) *Client {
	return &Client{
		searchURL: cfg.SearchURL,
		apiKey:    cfg.APIKey,
		http:      httpClient,
		policy: httpinfra.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.BaseDelay,
			MaxDelay:   cfg.MaxDelay,
			Retryable:  isRetryable,
		},
		metrics: m,
		log:     log,
	}
}

type searchResponse struct {
	Results []screening.RawMatch `json:"results"`
	Total   *struct {
		Value int `json:"value"`
	} `json:"total"`
}

// statusError is a non-2xx provider response.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// permanentError marks a failure that another attempt cannot fix, such as
// a 2xx body that does not parse.
type permanentError struct {
	Err error
}

func (e *permanentError) Error() string {
	return e.Err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.Err
}

// isRetryable retries 5xx responses and transport failures. 4xx responses
// and unparsable bodies are permanent.
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// Search queries the provider. Failures come back as *domainerrors.UpstreamError.
func (c *Client) Search(ctx context.Context, query screening.Query) (*screening.ProviderResponse, error) {
	target, err := c.buildURL(query)
	if err != nil {
		return nil, &domainerrors.UpstreamError{Cause: err}
	}

	log := logger.FromContext(ctx, c.log)
	policy := c.policy
	policy.OnRetry = func(retry int, delay time.Duration, err error) {
		c.metrics.IncrementUpstreamRetries()
		log.Warn("provider search failed, retrying",
			"attempt", retry,
			"max_retries", policy.MaxRetries,
			"target", security.SanitizeURL(target),
			"error", err.Error(),
			"delay", delay.String(),
		)
	}

	var result *screening.ProviderResponse
	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.searchOnce(ctx, target, query.RequestID)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		upstream := &domainerrors.UpstreamError{Cause: err, Attempts: attempts}
		var se *statusError
		if errors.As(err, &se) {
			upstream.StatusCode = se.StatusCode
		}
		log.Error("provider search failed",
			"attempts", attempts,
			"status", upstream.StatusCode,
			"error", err.Error(),
		)
		return nil, upstream
	}

	return result, nil
}

func (c *Client) searchOnce(ctx context.Context, target, requestID string) (*screening.ProviderResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &permanentError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	}
	if requestID != "" {
		req.Header.Set(httpinfra.RequestIDHeader, requestID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstreamLatency(metrics.StatusClass(0), time.Since(start))
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveUpstreamLatency(metrics.StatusClass(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &permanentError{Err: fmt.Errorf("decode provider response: %w", err)}
	}

	out := &screening.ProviderResponse{Matches: decoded.Results}
	if out.Matches == nil {
		out.Matches = []screening.RawMatch{}
	}
	if decoded.Total != nil {
		total := decoded.Total.Value
		out.Total = &total
	}
	return out, nil
}

func (c *Client) buildURL(query screening.Query) (string, error) {
	u, err := url.Parse(c.searchURL)
	if err != nil {
		return "", fmt.Errorf("invalid provider URL: %w", err)
	}

	params := u.Query()
	params.Set("q", query.Name)
	params.Set("limit", strconv.Itoa(query.Limit))
	params.Set("fuzzy", strconv.FormatBool(query.Fuzzy))
	if query.Schema != nil {
		params.Set("schema", *query.Schema)
	}
	if query.Country != nil {
		params.Set("countries", *query.Country)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
