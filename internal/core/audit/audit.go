package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist or is outside the
// caller's scope.
var ErrNotFound = errors.New("audit record not found")

// ErrNoOrganization is returned for a non-privileged scope that carries no
// organization id.
var ErrNoOrganization = errors.New("scope has no organization")

// Record is the persisted, immutable trace of one screening call and the
// verdict derived from its best match.
type Record struct {
	ID                string          `json:"id"`
	OrganizationID    string          `json:"organizationId"`
	UserID            *string         `json:"userId"`
	UserEmail         *string         `json:"userEmail"`
	SearchQuery       string          `json:"searchQuery"`
	HasHit            bool            `json:"hasHit"`
	HitsCount         int             `json:"hitsCount"`
	EntityName        *string         `json:"entityName"`
	EntityScore       *float64        `json:"entityScore"`
	EntityBirthDate   *string         `json:"entityBirthDate"`
	EntityGender      *string         `json:"entityGender"`
	EntityCountries   *string         `json:"entityCountries"`
	EntityDatasets    *string         `json:"entityDatasets"`
	EntityDescription *string         `json:"entityDescription"`
	HitDetails        json.RawMessage `json:"hitDetails"`
	IsSanctioned      bool            `json:"isSanctioned"`
	IsPep             bool            `json:"isPep"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// Filter narrows a history query. Nil fields are not applied.
type Filter struct {
	// OrganizationID is only honoured for superadmin scopes.
	OrganizationID *string
	Search         *string
	HasHit         *bool
	UserID         *string
	StartDate      *time.Time
	EndDate        *time.Time
}

// Repository persists audit records and answers scoped history queries.
type Repository interface {
	// Create stores a new record. Records are never updated afterwards.
	Create(ctx context.Context, record Record) error

	// Query returns one page of records matching the filter, newest first,
	// together with the total number of matching records.
	Query(ctx context.Context, scope Scope, filter Filter, page Page) ([]Record, int, error)

	// Get returns a single record visible to the scope.
	Get(ctx context.Context, scope Scope, id string) (*Record, error)

	// CountByOrg counts all records of an organization. An empty orgID counts
	// across organizations.
	CountByOrg(ctx context.Context, orgID string) (int, error)

	// CountSanctioned counts records flagged as sanctioned.
	CountSanctioned(ctx context.Context, orgID string) (int, error)

	// CountPep counts records flagged as PEP.
	CountPep(ctx context.Context, orgID string) (int, error)

	// Recent returns the newest records, newest first.
	Recent(ctx context.Context, orgID string, limit int) ([]Record, error)
}
