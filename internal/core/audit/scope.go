package audit

import (
	"math"
	"strings"

	"amlchecker/internal/core/identity"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Scope is the caller identity that governs which records may be read.
type Scope struct {
	OrganizationID string
	Role           string
}

// ScopeFor derives the read scope of an identity.
func ScopeFor(id identity.Identity) Scope {
	return Scope{OrganizationID: id.OrganizationID, Role: id.Role}
}

// IsSuperAdmin reports whether the scope may read every organization.
func (s Scope) IsSuperAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(s.Role), identity.RoleSuperAdmin)
}

// Validate rejects a non-privileged scope without an organization.
func (s Scope) Validate() error {
	if !s.IsSuperAdmin() && strings.TrimSpace(s.OrganizationID) == "" {
		return ErrNoOrganization
	}
	return nil
}

// Organization returns the organization a query must be restricted to, or
// "" when the query may span all organizations. Non-privileged scopes are
// always pinned to their own organization regardless of the filter; call
// Validate first, "" from a non-privileged scope is not a wildcard.
func (s Scope) Organization(filter Filter) string {
	if !s.IsSuperAdmin() {
		return s.OrganizationID
	}
	if filter.OrganizationID != nil {
		return strings.TrimSpace(*filter.OrganizationID)
	}
	return ""
}

// Apply returns the filter with the organization constraint enforced. A
// non-privileged scope is always pinned, even to an empty organization.
func (s Scope) Apply(filter Filter) Filter {
	if !s.IsSuperAdmin() {
		org := s.OrganizationID
		filter.OrganizationID = &org
		return filter
	}
	org := s.Organization(filter)
	if org == "" {
		filter.OrganizationID = nil
		return filter
	}
	filter.OrganizationID = &org
	return filter
}

// CanRead reports whether a record belongs to the scope.
func (s Scope) CanRead(record Record) bool {
	if s.IsSuperAdmin() {
		return true
	}
	return s.OrganizationID != "" && record.OrganizationID == s.OrganizationID
}

// Page selects one slice of an ordered result set.
type Page struct {
	Number int
	Size   int
}

// NewPage applies defaults: page < 1 becomes 1, size < 1 becomes
// DefaultPageSize, size above MaxPageSize is capped.
func NewPage(number, size int) Page {
	if number < 1 {
		number = DefaultPage
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset is the number of records to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// TotalPages is ceil(total / size).
func (p Page) TotalPages(total int) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(p.Size)))
}
