package identity

import "strings"

// RoleSuperAdmin lifts organization scoping on audit reads.
const RoleSuperAdmin = "superadmin"

// APIUserID is stored as the user id of screenings made without an
// authenticated user (machine-to-machine calls).
const APIUserID = "API"

// Identity is the caller context supplied by the gateway for every request.
type Identity struct {
	OrganizationID string
	UserID         string
	UserEmail      string
	Role           string
}

// IsSuperAdmin reports whether the caller holds the superadmin role.
func (i Identity) IsSuperAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(i.Role), RoleSuperAdmin)
}

// AuditUserID returns the user id to persist on audit records.
func (i Identity) AuditUserID() string {
	if id := strings.TrimSpace(i.UserID); id != "" {
		return id
	}
	return APIUserID
}
