// Package memory is an in-process audit.Repository used by tests and by
// deployments running with AUDIT_STORE=memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"amlchecker/internal/core/audit"
)

// Repository keeps audit records in a slice guarded by a RWMutex.
type Repository struct {
	mu      sync.RWMutex
	records []audit.Record
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Create(ctx context.Context, record audit.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *Repository) Query(ctx context.Context, scope audit.Scope, filter audit.Filter, page audit.Page) ([]audit.Record, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if err := scope.Validate(); err != nil {
		return nil, 0, err
	}
	filter = scope.Apply(filter)

	matched := r.snapshot(func(rec audit.Record) bool { return matches(rec, filter) })
	total := len(matched)

	start := page.Offset()
	if start >= total {
		return []audit.Record{}, total, nil
	}
	end := start + page.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *Repository) Get(ctx context.Context, scope audit.Scope, id string) (*audit.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ID == id && scope.CanRead(rec) {
			found := rec
			return &found, nil
		}
	}
	return nil, audit.ErrNotFound
}

func (r *Repository) CountByOrg(ctx context.Context, orgID string) (int, error) {
	return r.count(ctx, orgID, func(audit.Record) bool { return true })
}

func (r *Repository) CountSanctioned(ctx context.Context, orgID string) (int, error) {
	return r.count(ctx, orgID, func(rec audit.Record) bool { return rec.IsSanctioned })
}

func (r *Repository) CountPep(ctx context.Context, orgID string) (int, error) {
	return r.count(ctx, orgID, func(rec audit.Record) bool { return rec.IsPep })
}

func (r *Repository) Recent(ctx context.Context, orgID string, limit int) ([]audit.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recent := r.snapshot(func(rec audit.Record) bool { return inOrg(rec, orgID) })
	if limit >= 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

func (r *Repository) count(ctx context.Context, orgID string, keep func(audit.Record) bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rec := range r.records {
		if inOrg(rec, orgID) && keep(rec) {
			n++
		}
	}
	return n, nil
}

// snapshot copies the records accepted by keep, newest first.
func (r *Repository) snapshot(keep func(audit.Record) bool) []audit.Record {
	r.mu.RLock()
	out := make([]audit.Record, 0, len(r.records))
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func inOrg(rec audit.Record, orgID string) bool {
	return orgID == "" || rec.OrganizationID == orgID
}

func matches(rec audit.Record, f audit.Filter) bool {
	if f.OrganizationID != nil && rec.OrganizationID != *f.OrganizationID {
		return false
	}
	if f.Search != nil && !strings.Contains(strings.ToLower(rec.SearchQuery), strings.ToLower(*f.Search)) {
		return false
	}
	if f.HasHit != nil && rec.HasHit != *f.HasHit {
		return false
	}
	if f.UserID != nil && (rec.UserID == nil || *rec.UserID != *f.UserID) {
		return false
	}
	if f.StartDate != nil && rec.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && rec.CreatedAt.After(*f.EndDate) {
		return false
	}
	return true
}
