package models

import "time"

// Organization is a tenant: it owns memberships, categories, policies and invitations
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Satisfies reports whether a membership holding role r may act where
// required is demanded. An empty required role means any membership is enough.
func (r Role) Satisfies(required Role) bool {
	if required == "" {
		return r.Valid()
	}
	if required == RoleAdmin {
		return r == RoleAdmin
	}
	return r.Valid()
}

// Membership relates a user to an organization with a role.
// One row per (user, org); the role is set at creation and never updated.
type Membership struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Role           Role      `json:"role" db:"role"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// UserOrganization is an organization as seen from one user's membership
type UserOrganization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	JoinedAt  time.Time `json:"joined_at" db:"joined_at"`
}

// OrgMember is a membership joined with the member's user record
type OrgMember struct {
	ID       string    `json:"id" db:"id"`
	Name     string    `json:"name,omitempty" db:"name"`
	Email    string    `json:"email" db:"email"`
	Role     Role      `json:"role" db:"role"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}
