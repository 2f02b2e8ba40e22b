package testutil

import (
	"context"
	"sync"

	"amlchecker/internal/core/audit"
)

// MockAuditRepository is a mock implementation of audit.Repository for testing.
// Records passed to Create are kept even when CreateFunc returns an error.
type MockAuditRepository struct {
	CreateFunc          func(ctx context.Context, record audit.Record) error
	QueryFunc           func(ctx context.Context, scope audit.Scope, filter audit.Filter, page audit.Page) ([]audit.Record, int, error)
	GetFunc             func(ctx context.Context, scope audit.Scope, id string) (*audit.Record, error)
	CountByOrgFunc      func(ctx context.Context, orgID string) (int, error)
	CountSanctionedFunc func(ctx context.Context, orgID string) (int, error)
	CountPepFunc        func(ctx context.Context, orgID string) (int, error)
	RecentFunc          func(ctx context.Context, orgID string, limit int) ([]audit.Record, error)

	mu      sync.Mutex
	created []audit.Record
}

func (m *MockAuditRepository) Create(ctx context.Context, record audit.Record) error {
	m.mu.Lock()
	m.created = append(m.created, record)
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, record)
	}
	return nil
}

// Created returns every record passed to Create.
func (m *MockAuditRepository) Created() []audit.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Record(nil), m.created...)
}

func (m *MockAuditRepository) Query(ctx context.Context, scope audit.Scope, filter audit.Filter, page audit.Page) ([]audit.Record, int, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, scope, filter, page)
	}
	return []audit.Record{}, 0, nil
}

func (m *MockAuditRepository) Get(ctx context.Context, scope audit.Scope, id string) (*audit.Record, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, scope, id)
	}
	return nil, audit.ErrNotFound
}

func (m *MockAuditRepository) CountByOrg(ctx context.Context, orgID string) (int, error) {
	if m.CountByOrgFunc != nil {
		return m.CountByOrgFunc(ctx, orgID)
	}
	return 0, nil
}

func (m *MockAuditRepository) CountSanctioned(ctx context.Context, orgID string) (int, error) {
	if m.CountSanctionedFunc != nil {
		return m.CountSanctionedFunc(ctx, orgID)
	}
	return 0, nil
}

func (m *MockAuditRepository) CountPep(ctx context.Context, orgID string) (int, error) {
	if m.CountPepFunc != nil {
		return m.CountPepFunc(ctx, orgID)
	}
	return 0, nil
}

func (m *MockAuditRepository) Recent(ctx context.Context, orgID string, limit int) ([]audit.Record, error) {
	if m.RecentFunc != nil {
		return m.RecentFunc(ctx, orgID, limit)
	}
	return []audit.Record{}, nil
}
