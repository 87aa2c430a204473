package database

import (
	"sort"
	"sync"
	"time"

	"spendhub-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase is an in-process implementation of DatabaseInterface used
// for local development and tests. It enforces the same uniqueness rules the
// PostgreSQL schema declares, so handler behavior matches across backends.
type MemoryDatabase struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	organizations map[string]*models.Organization
	memberships   map[string]*models.Membership
	invitations   map[string]*models.Invitation
	categories    map[string]*models.Category
	policies      map[string]*models.Policy
}

// NewMemoryDatabase creates an empty in-memory store
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		users:         make(map[string]*models.User),
		organizations: make(map[string]*models.Organization),
		memberships:   make(map[string]*models.Membership),
		invitations:   make(map[string]*models.Invitation),
		categories:    make(map[string]*models.Category),
		policies:      make(map[string]*models.Policy),
	}
}

func fillTimestamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

// ==== users ====

func (db *MemoryDatabase) CreateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	fillTimestamp(&user.CreatedAt)
	fillTimestamp(&user.UpdatedAt)

	copied := *user
	db.users[user.ID] = &copied
	return nil
}

func (db *MemoryDatabase) GetUserByEmail(email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, u := range db.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) GetUserByID(id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

// ==== organizations & memberships ====

func (db *MemoryDatabase) CreateOrganizationWithAdmin(org *models.Organization, creatorID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	fillTimestamp(&org.CreatedAt)

	copied := *org
	db.organizations[org.ID] = &copied

	m := &models.Membership{
		ID:             uuid.New().String(),
		OrganizationID: org.ID,
		UserID:         creatorID,
		Role:           models.RoleAdmin,
		CreatedAt:      time.Now(),
	}
	db.memberships[m.ID] = m
	return nil
}

func (db *MemoryDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	org, ok := db.organizations[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *org
	return &copied, nil
}

func (db *MemoryDatabase) findMembership(userID, orgID string) *models.Membership {
	for _, m := range db.memberships {
		if m.UserID == userID && m.OrganizationID == orgID {
			return m
		}
	}
	return nil
}

func (db *MemoryDatabase) GetMembership(userID, orgID string) (*models.Membership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if m := db.findMembership(userID, orgID); m != nil {
		copied := *m
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) ListUserOrganizations(userID string) ([]models.UserOrganization, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	orgs := []models.UserOrganization{}
	for _, m := range db.memberships {
		if m.UserID != userID {
			continue
		}
		org, ok := db.organizations[m.OrganizationID]
		if !ok {
			continue
		}
		orgs = append(orgs, models.UserOrganization{
			ID:        org.ID,
			Name:      org.Name,
			Role:      m.Role,
			CreatedAt: org.CreatedAt,
			JoinedAt:  m.CreatedAt,
		})
	}
	sort.Slice(orgs, func(i, j int) bool {
		return orgs[i].JoinedAt.After(orgs[j].JoinedAt)
	})
	return orgs, nil
}

func (db *MemoryDatabase) ListOrganizationMembers(orgID string) ([]models.OrgMember, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	members := []models.OrgMember{}
	for _, m := range db.memberships {
		if m.OrganizationID != orgID {
			continue
		}
		member := models.OrgMember{
			ID:       m.UserID,
			Role:     m.Role,
			JoinedAt: m.CreatedAt,
		}
		if u, ok := db.users[m.UserID]; ok {
			member.Name = u.Name
			member.Email = u.Email
		}
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Role != members[j].Role {
			return members[i].Role < members[j].Role
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

// ==== invitations ====

func (db *MemoryDatabase) CreateInvitation(inv *models.Invitation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.invitations {
		if existing.Token == inv.Token {
			return ErrDuplicate
		}
	}
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	fillTimestamp(&inv.CreatedAt)

	copied := *inv
	db.invitations[inv.ID] = &copied
	return nil
}

func (db *MemoryDatabase) GetInvitationByToken(token string) (*models.Invitation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, inv := range db.invitations {
		if inv.Token == token {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) AcceptInvitation(inv *models.Invitation, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.invitations[inv.ID]
	if !ok {
		return ErrNotFound
	}

	// Upsert under the same lock so a repeated accept never duplicates the
	// membership and an existing role is never downgraded.
	if db.findMembership(userID, inv.OrganizationID) == nil {
		m := &models.Membership{
			ID:             uuid.New().String(),
			OrganizationID: inv.OrganizationID,
			UserID:         userID,
			Role:           models.RoleMember,
			CreatedAt:      time.Now(),
		}
		db.memberships[m.ID] = m
	}

	stored.Status = models.InvitationAccepted
	stored.RecipientID = &userID
	inv.Status = models.InvitationAccepted
	inv.RecipientID = &userID
	return nil
}

func (db *MemoryDatabase) ListPendingInvitations(orgID string, now time.Time) ([]models.PendingInvitation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	invs := []models.PendingInvitation{}
	for _, inv := range db.invitations {
		if inv.OrganizationID != orgID || inv.Status != models.InvitationPending {
			continue
		}
		if !inv.ExpiresAt.After(now) {
			continue
		}
		pending := models.PendingInvitation{
			ID:        inv.ID,
			Email:     inv.Email,
			Token:     inv.Token,
			CreatedAt: inv.CreatedAt,
			ExpiresAt: inv.ExpiresAt,
		}
		if u, ok := db.users[inv.InviterID]; ok {
			pending.Inviter = models.InviterInfo{ID: u.ID, Name: u.Name, Email: u.Email}
		} else {
			pending.Inviter = models.InviterInfo{ID: inv.InviterID}
		}
		invs = append(invs, pending)
	}
	sort.Slice(invs, func(i, j int) bool {
		return invs[i].CreatedAt.After(invs[j].CreatedAt)
	})
	return invs, nil
}

// ==== categories ====

func (db *MemoryDatabase) CreateCategory(c *models.Category) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.categories {
		if existing.OrganizationID == c.OrganizationID && existing.Name == c.Name {
			return ErrDuplicate
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	fillTimestamp(&c.CreatedAt)
	fillTimestamp(&c.UpdatedAt)

	copied := *c
	db.categories[c.ID] = &copied
	return nil
}

func (db *MemoryDatabase) GetCategory(id string) (*models.Category, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	c, ok := db.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (db *MemoryDatabase) ListCategoriesByOrganization(orgID string) ([]models.Category, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	categories := []models.Category{}
	for _, c := range db.categories {
		if c.OrganizationID == orgID {
			categories = append(categories, *c)
		}
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	return categories, nil
}

func (db *MemoryDatabase) UpdateCategory(c *models.Category) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.categories[c.ID]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range db.categories {
		if existing.ID != c.ID && existing.OrganizationID == stored.OrganizationID && existing.Name == c.Name {
			return ErrDuplicate
		}
	}
	stored.Name = c.Name
	stored.Description = c.Description
	stored.UpdatedAt = time.Now()
	c.UpdatedAt = stored.UpdatedAt
	return nil
}

func (db *MemoryDatabase) DeleteCategory(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.categories[id]; !ok {
		return ErrNotFound
	}
	delete(db.categories, id)

	// Cascade, mirroring the schema's ON DELETE CASCADE.
	for pid, p := range db.policies {
		if p.CategoryID == id {
			delete(db.policies, pid)
		}
	}
	return nil
}

// ==== policies ====

func samePolicyKey(a, b *models.Policy) bool {
	if a.OrganizationID != b.OrganizationID || a.CategoryID != b.CategoryID {
		return false
	}
	if a.UserID == nil || b.UserID == nil {
		return a.UserID == nil && b.UserID == nil
	}
	return *a.UserID == *b.UserID
}

func (db *MemoryDatabase) CreatePolicy(p *models.Policy) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.policies {
		if samePolicyKey(existing, p) {
			return ErrDuplicate
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	fillTimestamp(&p.CreatedAt)
	fillTimestamp(&p.UpdatedAt)

	copied := *p
	db.policies[p.ID] = &copied
	return nil
}

func (db *MemoryDatabase) GetPolicy(id string) (*models.Policy, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.policies[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (db *MemoryDatabase) enrichPolicy(p *models.Policy) models.PolicyWithRelations {
	enriched := models.PolicyWithRelations{Policy: *p}
	if c, ok := db.categories[p.CategoryID]; ok {
		enriched.CategoryName = c.Name
	}
	if p.UserID != nil {
		if u, ok := db.users[*p.UserID]; ok {
			name := u.Name
			email := u.Email
			enriched.UserName = &name
			enriched.UserEmail = &email
		}
	}
	return enriched
}

func (db *MemoryDatabase) GetPolicyByKey(orgID, categoryID string, userID *string) (*models.PolicyWithRelations, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	key := models.Policy{OrganizationID: orgID, CategoryID: categoryID, UserID: userID}
	for _, p := range db.policies {
		if samePolicyKey(p, &key) {
			enriched := db.enrichPolicy(p)
			return &enriched, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) ListPoliciesByOrganization(orgID string) ([]models.PolicyWithRelations, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	policies := []models.PolicyWithRelations{}
	for _, p := range db.policies {
		if p.OrganizationID == orgID {
			policies = append(policies, db.enrichPolicy(p))
		}
	}
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].Name < policies[j].Name
	})
	return policies, nil
}

func (db *MemoryDatabase) UpdatePolicy(p *models.Policy) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.policies[p.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Name = p.Name
	stored.Description = p.Description
	stored.MaxAmount = p.MaxAmount
	stored.Period = p.Period
	stored.ReviewRoute = p.ReviewRoute
	stored.UpdatedAt = time.Now()
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (db *MemoryDatabase) DeletePolicy(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.policies[id]; !ok {
		return ErrNotFound
	}
	delete(db.policies, id)
	return nil
}

// ==== lifecycle ====

func (db *MemoryDatabase) HealthCheck() error { return nil }

func (db *MemoryDatabase) Close() error { return nil }
