// Package screening orchestrates a single screening call: validate the
// request, query the provider, normalize its matches and record the audit.
package screening

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"amlchecker/internal/core/domainerrors"
	"amlchecker/internal/core/identity"
	corescreening "amlchecker/internal/core/screening"
	ctxutil "amlchecker/internal/infrastructure/context"
	"amlchecker/internal/infrastructure/logger"
	"amlchecker/internal/infrastructure/metrics"
)

// Params echoes the effective search parameters back to the caller.
type Params struct {
	Limit   int     `json:"limit"`
	Fuzzy   bool    `json:"fuzzy"`
	Schema  *string `json:"schema"`
	Country *string `json:"country"`
}

// Result is the outcome of a successful screening call.
type Result struct {
	RequestID  string
	Query      string
	Params     Params
	Matches    []corescreening.Match
	HitsCount  int
	DurationMs int64
	Timestamp  time.Time
}

// Service orchestrates screening use cases.
type Service struct {
	provider       corescreening.Provider
	recorder       *AuditRecorder
	requestTimeout time.Duration
	metrics        *metrics.Metrics
	log            *slog.Logger
	now            func() time.Time
}

// NewService creates a screening service. requestTimeout bounds the provider
// call including retries; zero disables it.
func NewService(provider corescreening.Provider, recorder *AuditRecorder, requestTimeout time.Duration, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		provider:       provider,
		recorder:       recorder,
		requestTimeout: requestTimeout,
		metrics:        m,
		log:            log,
		now:            time.Now,
	}
}

// Check screens req.Name against the provider. It returns a
// *domainerrors.ValidationError for bad input, the provider's
// *domainerrors.UpstreamError unchanged, and wraps anything else in
// *domainerrors.InternalError. Audit persistence never affects the result.
func (s *Service) Check(ctx context.Context, who identity.Identity, req corescreening.Request) (*Result, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		s.metrics.IncrementCheck(metrics.OutcomeValidation)
		return nil, err
	}
	if req.RequestID == "" {
		req.RequestID = ctxutil.GetCorrelationID(ctx)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if ctxutil.GetCorrelationID(ctx) == "" {
		ctx = ctxutil.WithCorrelationID(ctx, req.RequestID)
	}

	log := logger.FromContext(ctx, s.log)

	searchCtx := ctx
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.provider.Search(searchCtx, corescreening.Query{
		Name:      req.Name,
		Limit:     req.Limit,
		Fuzzy:     req.Fuzzy,
		Schema:    req.Schema,
		Country:   req.Country,
		RequestID: req.RequestID,
	})
	duration := time.Since(start)
	s.metrics.ObserveCheckLatency(duration)

	if err != nil {
		if domainerrors.IsUpstream(err) {
			s.metrics.IncrementCheck(metrics.OutcomeUpstream)
			return nil, err
		}
		s.metrics.IncrementCheck(metrics.OutcomeInternal)
		return nil, &domainerrors.InternalError{Cause: fmt.Errorf("search provider: %w", err)}
	}
	if resp == nil {
		s.metrics.IncrementCheck(metrics.OutcomeInternal)
		return nil, &domainerrors.InternalError{Cause: errors.New("search provider returned no response")}
	}

	matches := corescreening.NormalizeAll(resp.Matches)
	hitsCount := len(matches)
	if resp.Total != nil {
		hitsCount = *resp.Total
	}

	now := s.now()
	if s.recorder != nil {
		s.recorder.Record(ctx, DeriveAudit(who, req, matches, hitsCount, now))
	}

	outcome := metrics.OutcomeClear
	if hitsCount > 0 {
		outcome = metrics.OutcomeHit
	}
	s.metrics.IncrementCheck(outcome)

	log.Info("screening completed",
		"hits_count", hitsCount,
		"matches", len(matches),
		"duration_ms", duration.Milliseconds(),
	)

	return &Result{
		RequestID: req.RequestID,
		Query:     req.Name,
		Params: Params{
			Limit:   req.Limit,
			Fuzzy:   req.Fuzzy,
			Schema:  req.Schema,
			Country: req.Country,
		},
		Matches:    matches,
		HitsCount:  hitsCount,
		DurationMs: duration.Milliseconds(),
		Timestamp:  now.UTC(),
	}, nil
}
