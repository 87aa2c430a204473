package database

import (
	"errors"
	"time"

	"spendhub-backend/pkg/models"
)

// Sentinel errors returned by every DatabaseInterface implementation.
// Handlers translate these into the NOT_FOUND / CONFLICT API outcomes;
// ErrDuplicate is how a storage-layer unique constraint surfaces, so the
// check-then-create race is closed by the store, not by handler pre-checks.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// DatabaseInterface defines storage access for the backend
type DatabaseInterface interface {
	// Users
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)

	// Organizations & memberships
	// CreateOrganizationWithAdmin creates the organization and an ADMIN
	// membership for creatorID in a single transaction.
	CreateOrganizationWithAdmin(org *models.Organization, creatorID string) error
	GetOrganization(orgID string) (*models.Organization, error)
	GetMembership(userID, orgID string) (*models.Membership, error)
	// ListUserOrganizations returns the orgs userID belongs to, newest
	// membership first.
	ListUserOrganizations(userID string) ([]models.UserOrganization, error)
	// ListOrganizationMembers returns members ordered by role ascending
	// (ADMIN before MEMBER) then join time ascending.
	ListOrganizationMembers(orgID string) ([]models.OrgMember, error)

	// Invitations
	CreateInvitation(inv *models.Invitation) error
	GetInvitationByToken(token string) (*models.Invitation, error)
	// AcceptInvitation upserts a MEMBER membership for userID (an existing
	// membership of any role is left untouched) and marks the invitation
	// ACCEPTED with userID as recipient, atomically.
	AcceptInvitation(inv *models.Invitation, userID string) error
	// ListPendingInvitations returns PENDING invitations not yet expired at
	// now, newest first. Expired rows are filtered, never mutated.
	ListPendingInvitations(orgID string, now time.Time) ([]models.PendingInvitation, error)

	// Categories
	CreateCategory(c *models.Category) error
	GetCategory(id string) (*models.Category, error)
	// ListCategoriesByOrganization returns categories ordered by name ascending.
	ListCategoriesByOrganization(orgID string) ([]models.Category, error)
	UpdateCategory(c *models.Category) error
	// DeleteCategory removes the category and cascades to its policies.
	DeleteCategory(id string) error

	// Policies
	CreatePolicy(p *models.Policy) error
	GetPolicy(id string) (*models.Policy, error)
	// GetPolicyByKey looks up the single policy keyed by (org, category,
	// user); a nil userID selects the org-wide policy.
	GetPolicyByKey(orgID, categoryID string, userID *string) (*models.PolicyWithRelations, error)
	// ListPoliciesByOrganization returns policies ordered by name ascending,
	// enriched with category and target-user info.
	ListPoliciesByOrganization(orgID string) ([]models.PolicyWithRelations, error)
	UpdatePolicy(p *models.Policy) error
	DeletePolicy(id string) error

	HealthCheck() error
	Close() error
}

// DatabaseConfig selects and configures a database implementation
type DatabaseConfig struct {
	UseMemoryDB bool
	PostgresDSN string
	Debug       bool
}

// NewDatabase picks an implementation from the config: PostgreSQL when a DSN
// is configured, otherwise the in-memory store (local development and tests).
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	if !config.UseMemoryDB && config.PostgresDSN != "" {
		return NewPostgresDatabase(config.PostgresDSN)
	}
	return NewMemoryDatabase(), nil
}
