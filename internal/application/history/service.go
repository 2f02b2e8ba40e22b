package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"amlchecker/internal/core/audit"
	"amlchecker/internal/core/domainerrors"
	"amlchecker/internal/infrastructure/logger"
)

// RecentChecksLimit is the number of records returned with the stats.
const RecentChecksLimit = 5

// Meta describes the page returned by List.
type Meta struct {
	TotalItems   int `json:"totalItems"`
	TotalPages   int `json:"totalPages"`
	CurrentPage  int `json:"currentPage"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// ListResult is one page of audit records.
type ListResult struct {
	Data []audit.Record `json:"data"`
	Meta Meta           `json:"meta"`
}

// Stats summarizes the audit trail visible to a scope.
type Stats struct {
	TotalChecks  int            `json:"totalChecks"`
	SanctionHits int            `json:"sanctionHits"`
	PepHits      int            `json:"pepHits"`
	RecentChecks []audit.Record `json:"recentChecks"`
}

// Service answers audit history queries.
type Service struct {
	repo audit.Repository
	log  *slog.Logger
}

func NewService(repo audit.Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// List returns one page of the records visible to scope.
func (s *Service) List(ctx context.Context, scope audit.Scope, filter audit.Filter, page audit.Page) (*ListResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, domainerrors.NewValidationError("startDate", "startDate must not be after endDate")
	}
	page = audit.NewPage(page.Number, page.Size)

	records, total, err := s.repo.Query(ctx, scope, filter, page)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	if records == nil {
		records = []audit.Record{}
	}

	logger.FromContext(ctx, s.log).Debug("audit history listed",
		"total", total,
		"page", page.Number,
		"limit", page.Size,
		"superadmin", scope.IsSuperAdmin(),
	)

	return &ListResult{
		Data: records,
		Meta: Meta{
			TotalItems:   total,
			TotalPages:   page.TotalPages(total),
			CurrentPage:  page.Number,
			ItemsPerPage: page.Size,
		},
	}, nil
}

// Get returns one record. audit.ErrNotFound covers both missing records and
// records outside the scope.
func (s *Service) Get(ctx context.Context, scope audit.Scope, id string) (*audit.Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	record, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get audit record: %w", err)
	}
	return record, nil
}

// Stats aggregates the audit trail of the scope's organization. A superadmin
// may pass orgFilter to narrow, otherwise the stats span all organizations.
func (s *Service) Stats(ctx context.Context, scope audit.Scope, orgFilter *string) (*Stats, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	orgID := scope.Organization(audit.Filter{OrganizationID: orgFilter})

	var stats Stats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.repo.CountByOrg(gctx, orgID)
		if err != nil {
			return fmt.Errorf("count checks: %w", err)
		}
		stats.TotalChecks = n
		return nil
	})
	g.Go(func() error {
		n, err := s.repo.CountSanctioned(gctx, orgID)
		if err != nil {
			return fmt.Errorf("count sanction hits: %w", err)
		}
		stats.SanctionHits = n
		return nil
	})
	g.Go(func() error {
		n, err := s.repo.CountPep(gctx, orgID)
		if err != nil {
			return fmt.Errorf("count pep hits: %w", err)
		}
		stats.PepHits = n
		return nil
	})
	g.Go(func() error {
		recent, err := s.repo.Recent(gctx, orgID, RecentChecksLimit)
		if err != nil {
			return fmt.Errorf("recent checks: %w", err)
		}
		stats.RecentChecks = recent
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if stats.RecentChecks == nil {
		stats.RecentChecks = []audit.Record{}
	}
	return &stats, nil
}
