package health

import (
	"context"
	"time"

	corehealth "amlchecker/internal/core/health"
)

const defaultCheckTimeout = 2 * time.Second

// Metadata contains immutable metadata about the running service.
type Metadata struct {
	Service     string
	Version     string
	Environment string
}

// Service exposes health-check use cases to adapters.
type Service struct {
	meta         Metadata
	startedAt    time.Time
	checkers     []corehealth.Checker
	checkTimeout time.Duration
}

func NewService(meta Metadata, checkers ...corehealth.Checker) *Service {
	return &Service{
		meta:         meta,
		startedAt:    time.Now().UTC(),
		checkers:     checkers,
		checkTimeout: defaultCheckTimeout,
	}
}

// Status returns the current availability snapshot. The service is DOWN when
// any dependency check fails.
func (s *Service) Status(ctx context.Context) corehealth.Status {
	uptime := time.Since(s.startedAt)
	status := corehealth.Status{
		Service:     s.meta.Service,
		Version:     s.meta.Version,
		Environment: s.meta.Environment,
		Status:      corehealth.StatusUp,
		StartedAt:   s.startedAt,
		Uptime:      uptime.String(),
		UptimeSecs:  int64(uptime.Seconds()),
	}

	for _, c := range s.checkers {
		dep := corehealth.Dependency{Name: c.Name(), Status: corehealth.StatusUp}
		if err := s.check(ctx, c); err != nil {
			dep.Status = corehealth.StatusDown
			dep.Error = err.Error()
			status.Status = corehealth.StatusDown
		}
		status.Dependencies = append(status.Dependencies, dep)
	}
	return status
}

func (s *Service) check(ctx context.Context, c corehealth.Checker) error {
	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()
	return c.Check(ctx)
}
