package core

import "fmt"

// Role is the caller's permission level within an organization.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}

// Caller is the authenticated identity supplied by the auth collaborator.
type Caller struct {
	UserID         string
	OrganizationID string
	Role           Role
}

// Validate rejects callers without identity.
func (c Caller) Validate() error {
	if c.UserID == "" || c.OrganizationID == "" {
		return ErrAuth("caller identity and organization are required")
	}
	if !c.Role.Valid() {
		return ErrAuth(fmt.Sprintf("unknown role %q", c.Role))
	}
	return nil
}

// Require returns a Forbidden error unless the caller holds one of roles.
func (c Caller) Require(action string, roles ...Role) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for _, r := range roles {
		if c.Role == r {
			return nil
		}
	}
	return ErrForbidden(fmt.Sprintf("role %s may not %s", c.Role, action))
}

// CanEdit reports whether the caller may mutate templates.
func (c Caller) CanEdit() bool {
	return c.Role == RoleAdmin || c.Role == RoleManager
}
