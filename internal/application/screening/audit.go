package screening

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"amlchecker/internal/core/audit"
	"amlchecker/internal/core/identity"
	corescreening "amlchecker/internal/core/screening"
	ctxutil "amlchecker/internal/infrastructure/context"
	"amlchecker/internal/infrastructure/metrics"
)

// DeriveAudit builds the audit record of one screening call. The first
// match is the best match; with no matches every entity field stays empty.
// ID is left for the recorder to assign.
func DeriveAudit(who identity.Identity, req corescreening.Request, matches []corescreening.Match, hitsCount int, now time.Time) audit.Record {
	userID := who.AuditUserID()
	record := audit.Record{
		OrganizationID: who.OrganizationID,
		UserID:         &userID,
		UserEmail:      optional(who.UserEmail),
		SearchQuery:    req.Name,
		HasHit:         hitsCount > 0,
		HitsCount:      hitsCount,
		CreatedAt:      now.UTC(),
	}

	if len(matches) == 0 {
		return record
	}

	best := matches[0]
	record.EntityName = best.Name
	record.EntityScore = best.Score
	record.EntityBirthDate = best.BirthDate
	record.EntityGender = best.Gender
	record.EntityCountries = joined(best.Countries)
	record.EntityDatasets = joined(best.Datasets)
	record.EntityDescription = description(best)
	record.IsSanctioned = best.IsSanctioned
	record.IsPep = best.IsPep
	if raw := best.Raw(); len(raw) > 0 {
		record.HitDetails = raw
	}
	return record
}

// description prefers the first note, then the first position.
func description(m corescreening.Match) *string {
	if len(m.Notes) > 0 {
		return optional(m.Notes[0])
	}
	if len(m.Position) > 0 {
		return optional(m.Position[0])
	}
	return nil
}

func joined(values []string) *string {
	if len(values) == 0 {
		return nil
	}
	s := strings.Join(values, ",")
	return &s
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// AuditRecorder persists audit records in the background. A failed write is
// logged and counted; it never reaches the caller.
type AuditRecorder struct {
	repo    audit.Repository
	timeout time.Duration
	metrics *metrics.Metrics
	log     *slog.Logger
	wg      sync.WaitGroup
}

// NewAuditRecorder creates a recorder. timeout bounds each write; m may be nil.
func NewAuditRecorder(repo audit.Repository, timeout time.Duration, m *metrics.Metrics, log *slog.Logger) *AuditRecorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuditRecorder{repo: repo, timeout: timeout, metrics: m, log: log}
}

// Record schedules record for persistence and returns immediately. The write
// runs on its own context so it outlives the inbound request.
func (r *AuditRecorder) Record(ctx context.Context, record audit.Record) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	requestID := ctxutil.GetCorrelationID(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.metrics.IncrementAuditWriteFailures()
				r.log.Error("panic persisting audit record",
					"panic", p,
					"request_id", requestID,
					"organization_id", record.OrganizationID,
					"audit_id", record.ID,
				)
			}
		}()

		writeCtx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.repo.Create(writeCtx, record); err != nil {
			r.metrics.IncrementAuditWriteFailures()
			r.log.Error("failed to persist audit record",
				"error", err,
				"request_id", requestID,
				"organization_id", record.OrganizationID,
				"audit_id", record.ID,
			)
			return
		}

		r.log.Debug("audit record persisted",
			"request_id", requestID,
			"organization_id", record.OrganizationID,
			"audit_id", record.ID,
			"has_hit", record.HasHit,
		)
	}()
}

// Wait blocks until every scheduled write has finished.
func (r *AuditRecorder) Wait() {
	r.wg.Wait()
}

// Drain waits for pending writes or until ctx is done.
func (r *AuditRecorder) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
