package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amlchecker/internal/adapters/audit/memory"
	"amlchecker/internal/core/audit"
	"amlchecker/internal/core/domainerrors"
	"amlchecker/internal/testutil"
)

func seeded(t *testing.T, n int, org string) *memory.Repository {
	t.Helper()
	repo := memory.NewRepository()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rec := audit.Record{
			ID:             fmt.Sprintf("rec-%03d", i),
			OrganizationID: org,
			SearchQuery:    "name",
			IsSanctioned:   i%10 == 0,
			IsPep:          i%4 == 0,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(context.Background(), rec))
	}
	return repo
}

func TestService_List_PaginationMeta(t *testing.T) {
	svc := NewService(seeded(t, 100, "org-123"), testutil.NewNullLogger())

	result, err := svc.List(context.Background(), audit.Scope{OrganizationID: "org-123"}, audit.Filter{}, audit.Page{Number: 1, Size: 5})
	require.NoError(t, err)

	assert.Equal(t, Meta{TotalItems: 100, TotalPages: 20, CurrentPage: 1, ItemsPerPage: 5}, result.Meta)
	assert.Len(t, result.Data, 5)
}

func TestService_List_AppliesPageDefaults(t *testing.T) {
	svc := NewService(seeded(t, 3, "org-1"), testutil.NewNullLogger())

	result, err := svc.List(context.Background(), audit.Scope{OrganizationID: "org-1"}, audit.Filter{}, audit.Page{Number: 0, Size: 1000})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Meta.CurrentPage)
	assert.Equal(t, audit.MaxPageSize, result.Meta.ItemsPerPage)
	assert.Equal(t, 1, result.Meta.TotalPages)
}

func TestService_List_EmptyDataIsNotNil(t *testing.T) {
	svc := NewService(&testutil.MockAuditRepository{
		QueryFunc: func(context.Context, audit.Scope, audit.Filter, audit.Page) ([]audit.Record, int, error) {
			return nil, 0, nil
		},
	}, testutil.NewNullLogger())

	result, err := svc.List(context.Background(), audit.Scope{OrganizationID: "org-1"}, audit.Filter{}, audit.NewPage(1, 20))
	require.NoError(t, err)
	assert.NotNil(t, result.Data)
	assert.Equal(t, 0, result.Meta.TotalPages)
}

func TestService_List_RejectsInvertedDateRange(t *testing.T) {
	svc := NewService(&testutil.MockAuditRepository{}, testutil.NewNullLogger())
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := svc.List(context.Background(), audit.Scope{OrganizationID: "org-1"}, audit.Filter{StartDate: &start, EndDate: &end}, audit.NewPage(1, 20))
	assert.True(t, domainerrors.IsValidation(err))
}

func TestService_List_WrapsRepositoryErrors(t *testing.T) {
	boom := errors.New("connection reset")
	svc := NewService(&testutil.MockAuditRepository{
		QueryFunc: func(context.Context, audit.Scope, audit.Filter, audit.Page) ([]audit.Record, int, error) {
			return nil, 0, boom
		},
	}, testutil.NewNullLogger())

	_, err := svc.List(context.Background(), audit.Scope{OrganizationID: "org-1"}, audit.Filter{}, audit.NewPage(1, 20))
	assert.ErrorIs(t, err, boom)
}

func TestService_Get(t *testing.T) {
	repo := memory.NewRepository()
	require.NoError(t, repo.Create(context.Background(), audit.Record{ID: "rec-1", OrganizationID: "org-a"}))
	svc := NewService(repo, testutil.NewNullLogger())

	got, err := svc.Get(context.Background(), audit.Scope{OrganizationID: "org-a"}, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", got.ID)

	_, err = svc.Get(context.Background(), audit.Scope{OrganizationID: "org-b"}, "rec-1")
	assert.ErrorIs(t, err, audit.ErrNotFound)
}

func TestService_Stats(t *testing.T) {
	svc := NewService(seeded(t, 20, "org-a"), testutil.NewNullLogger())

	stats, err := svc.Stats(context.Background(), audit.Scope{OrganizationID: "org-a"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 20, stats.TotalChecks)
	assert.Equal(t, 2, stats.SanctionHits)
	assert.Equal(t, 5, stats.PepHits)
	require.Len(t, stats.RecentChecks, RecentChecksLimit)
	assert.True(t, stats.RecentChecks[0].CreatedAt.After(stats.RecentChecks[4].CreatedAt))
}

func TestService_Stats_Scoping(t *testing.T) {
	tests := []struct {
		name      string
		scope     audit.Scope
		orgFilter *string
		wantOrg   string
	}{
		{"member pinned to own org", audit.Scope{OrganizationID: "org-a"}, strPtr("org-b"), "org-a"},
		{"superadmin spans all", audit.Scope{OrganizationID: "org-a", Role: "superadmin"}, nil, ""},
		{"superadmin narrows", audit.Scope{OrganizationID: "org-a", Role: "superadmin"}, strPtr("org-b"), "org-b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			seen := map[string]bool{}
			record := func(org string) {
				mu.Lock()
				seen[org] = true
				mu.Unlock()
			}
			repo := &testutil.MockAuditRepository{
				CountByOrgFunc:      func(_ context.Context, org string) (int, error) { record(org); return 0, nil },
				CountSanctionedFunc: func(_ context.Context, org string) (int, error) { record(org); return 0, nil },
				CountPepFunc:        func(_ context.Context, org string) (int, error) { record(org); return 0, nil },
				RecentFunc: func(_ context.Context, org string, _ int) ([]audit.Record, error) {
					record(org)
					return nil, nil
				},
			}

			stats, err := NewService(repo, testutil.NewNullLogger()).Stats(context.Background(), tt.scope, tt.orgFilter)
			require.NoError(t, err)
			assert.Equal(t, map[string]bool{tt.wantOrg: true}, seen)
			assert.NotNil(t, stats.RecentChecks)
		})
	}
}

func TestService_Stats_FailsWhenAnyReadFails(t *testing.T) {
	boom := errors.New("timeout")
	repo := &testutil.MockAuditRepository{
		CountPepFunc: func(context.Context, string) (int, error) { return 0, boom },
	}

	_, err := NewService(repo, testutil.NewNullLogger()).Stats(context.Background(), audit.Scope{OrganizationID: "org-a"}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestService_RejectsScopeWithoutOrganization(t *testing.T) {
	called := false
	repo := &testutil.MockAuditRepository{
		CountByOrgFunc: func(context.Context, string) (int, error) { called = true; return 0, nil },
		RecentFunc: func(context.Context, string, int) ([]audit.Record, error) {
			called = true
			return nil, nil
		},
	}
	svc := NewService(repo, testutil.NewNullLogger())
	member := audit.Scope{Role: "member"}

	_, err := svc.Stats(context.Background(), member, nil)
	assert.ErrorIs(t, err, audit.ErrNoOrganization)

	_, err = svc.List(context.Background(), member, audit.Filter{}, audit.NewPage(1, 20))
	assert.ErrorIs(t, err, audit.ErrNoOrganization)

	_, err = svc.Get(context.Background(), member, "rec-1")
	assert.ErrorIs(t, err, audit.ErrNoOrganization)

	assert.False(t, called)
}

func strPtr(s string) *string { return &s }
