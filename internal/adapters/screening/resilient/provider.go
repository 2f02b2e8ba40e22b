// Package resilient guards a screening provider with a concurrency limit and
// a circuit breaker.
package resilient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"amlchecker/internal/core/domainerrors"
	"amlchecker/internal/core/screening"
	"amlchecker/internal/infrastructure/logger"
)

// Config tunes the guard. Zero values disable the matching protection.
type Config struct {
	MaxConcurrent int
	MaxFailures   int
	Cooldown      time.Duration
}

// Provider decorates a screening.Provider.
type Provider struct {
	next    screening.Provider
	slots   chan struct{}
	breaker *Breaker
	log     *slog.Logger
}

var _ screening.Provider = (*Provider)(nil)

func NewProvider(next screening.Provider, cfg Config, log *slog.Logger) *Provider {
	p := &Provider{
		next:    next,
		breaker: NewBreaker(cfg.MaxFailures, cfg.Cooldown),
		log:     log,
	}
	if cfg.MaxConcurrent > 0 {
		p.slots = make(chan struct{}, cfg.MaxConcurrent)
	}
	return p
}

// Search waits for a free slot, then calls the wrapped provider unless the
// breaker is open. Only upstream errors without a 4xx status count as breaker
// failures; a call ended by the caller's context counts for nothing.
func (p *Provider) Search(ctx context.Context, query screening.Query) (*screening.ProviderResponse, error) {
	if p.slots != nil {
		select {
		case p.slots <- struct{}{}:
			defer func() { <-p.slots }()
		case <-ctx.Done():
			return nil, &domainerrors.UpstreamError{Cause: ctx.Err()}
		}
	}

	if err := p.breaker.Allow(); err != nil {
		logger.FromContext(ctx, p.log).Warn("screening provider call rejected", "error", err)
		return nil, &domainerrors.UpstreamError{Cause: err}
	}

	resp, err := p.next.Search(ctx, query)
	if err != nil && ctx.Err() != nil {
		p.breaker.Release()
		return resp, err
	}
	if from, to := p.breaker.Done(upstreamFailure(err)); from != to {
		logger.FromContext(ctx, p.log).Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
	}
	return resp, err
}

// upstreamFailure reports whether err says the provider is unhealthy: no
// response at all or a 5xx. A 4xx is the caller's fault.
func upstreamFailure(err error) bool {
	var upstream *domainerrors.UpstreamError
	if !errors.As(err, &upstream) {
		return false
	}
	return upstream.StatusCode == 0 || upstream.StatusCode >= http.StatusInternalServerError
}

// State exposes the breaker state.
func (p *Provider) State() State {
	return p.breaker.State()
}
