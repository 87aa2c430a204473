package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
)

// Invitation is a time-boxed, token-bearing invite to join an organization.
// Rows are never deleted; an invitation past its expiry simply stops showing
// up in the pending listing while its status stays PENDING.
type Invitation struct {
	ID             string           `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	Email          string           `json:"email" db:"email"`
	InviterID      string           `json:"inviter_id" db:"inviter_id"`
	RecipientID    *string          `json:"recipient_id,omitempty" db:"recipient_id"`
	Token          string           `json:"token" db:"token"`
	Status         InvitationStatus `json:"status" db:"status"`
	ExpiresAt      time.Time        `json:"expires_at" db:"expires_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// InvitationTTL is how long a freshly issued invitation stays acceptable.
const InvitationTTL = 72 * time.Hour

// Expired reports whether the invitation is past its expiry at the given time.
func (inv *Invitation) Expired(now time.Time) bool {
	return now.After(inv.ExpiresAt)
}

// InviterInfo identifies who issued a pending invitation
type InviterInfo struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name,omitempty" db:"name"`
	Email string `json:"email" db:"email"`
}

// PendingInvitation is an invitation row enriched with its inviter,
// as returned by the pending listing
type PendingInvitation struct {
	ID        string      `json:"id" db:"id"`
	Email     string      `json:"email" db:"email"`
	Token     string      `json:"token" db:"token"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	ExpiresAt time.Time   `json:"expires_at" db:"expires_at"`
	Inviter   InviterInfo `json:"inviter"`
}
