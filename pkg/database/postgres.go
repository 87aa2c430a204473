package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"spendhub-backend/pkg/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresDatabase implements DatabaseInterface on PostgreSQL
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a PostgreSQL connection with pool settings
// suited to short-lived serverless instances.
func NewPostgresDatabase(dsn string) (DatabaseInterface, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresDatabase{db: db}, nil
}

// translateError maps driver errors onto the package sentinels so handlers
// never see lib/pq internals. Unique-constraint violations (23505) become
// ErrDuplicate; that is the authoritative duplicate check under concurrency.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// ==== users ====

func (db *PostgresDatabase) CreateUser(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	query := `
        INSERT INTO users (id, email, password_hash, name, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING created_at, updated_at
    `
	err := db.db.QueryRow(query, user.ID, user.Email, user.Password, user.Name).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrDuplicate) {
			return translated
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	query := `
        SELECT id, email, COALESCE(password_hash, ''), COALESCE(name, ''), created_at, updated_at
        FROM users
        WHERE email = $1
    `
	var u models.User
	err := db.db.QueryRow(query, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.Name, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	query := `
        SELECT id, email, COALESCE(name, ''), created_at, updated_at
        FROM users
        WHERE id = $1
    `
	var u models.User
	err := db.db.QueryRow(query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ==== organizations & memberships ====

func (db *PostgresDatabase) CreateOrganizationWithAdmin(org *models.Organization, creatorID string) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}

	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRow(`
        INSERT INTO organizations (id, name, created_at)
        VALUES ($1, $2, NOW())
        RETURNING created_at
    `, org.ID, org.Name).Scan(&org.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	_, err = tx.Exec(`
        INSERT INTO memberships (id, organization_id, user_id, role, created_at)
        VALUES ($1, $2, $3, $4, NOW())
    `, uuid.New().String(), org.ID, creatorID, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to create admin membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organization: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	var org models.Organization
	err := db.db.QueryRow(`
        SELECT id, name, created_at FROM organizations WHERE id = $1
    `, orgID).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

func (db *PostgresDatabase) GetMembership(userID, orgID string) (*models.Membership, error) {
	var m models.Membership
	err := db.db.QueryRow(`
        SELECT id, organization_id, user_id, role, created_at
        FROM memberships
        WHERE user_id = $1 AND organization_id = $2
    `, userID, orgID).Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

func (db *PostgresDatabase) ListUserOrganizations(userID string) ([]models.UserOrganization, error) {
	rows, err := db.db.Query(`
        SELECT o.id, o.name, m.role, o.created_at, m.created_at
        FROM memberships m
        JOIN organizations o ON o.id = m.organization_id
        WHERE m.user_id = $1
        ORDER BY m.created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user organizations: %w", err)
	}
	defer rows.Close()

	orgs := []models.UserOrganization{}
	for rows.Next() {
		var o models.UserOrganization
		if err := rows.Scan(&o.ID, &o.Name, &o.Role, &o.CreatedAt, &o.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization row: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (db *PostgresDatabase) ListOrganizationMembers(orgID string) ([]models.OrgMember, error) {
	rows, err := db.db.Query(`
        SELECT u.id, COALESCE(u.name, ''), u.email, m.role, m.created_at
        FROM memberships m
        JOIN users u ON u.id = m.user_id
        WHERE m.organization_id = $1
        ORDER BY m.role ASC, m.created_at ASC
    `, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization members: %w", err)
	}
	defer rows.Close()

	members := []models.OrgMember{}
	for rows.Next() {
		var m models.OrgMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ==== invitations ====

func (db *PostgresDatabase) CreateInvitation(inv *models.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	query := `
        INSERT INTO invitations (id, organization_id, email, inviter_id, token, status, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING created_at
    `
	err := db.db.QueryRow(query,
		inv.ID, inv.OrganizationID, inv.Email, inv.InviterID, inv.Token, inv.Status, inv.ExpiresAt,
	).Scan(&inv.CreatedAt)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrDuplicate) {
			return translated
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetInvitationByToken(token string) (*models.Invitation, error) {
	var inv models.Invitation
	err := db.db.QueryRow(`
        SELECT id, organization_id, email, inviter_id, recipient_id, token, status, expires_at, created_at
        FROM invitations
        WHERE token = $1
    `, token).Scan(
		&inv.ID, &inv.OrganizationID, &inv.Email, &inv.InviterID, &inv.RecipientID,
		&inv.Token, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invitation by token: %w", err)
	}
	return &inv, nil
}

func (db *PostgresDatabase) AcceptInvitation(inv *models.Invitation, userID string) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Upsert: an existing membership of any role is left untouched, so an
	// ADMIN accepting their own invite is never downgraded and a repeated
	// accept never duplicates the row.
	_, err = tx.Exec(`
        INSERT INTO memberships (id, organization_id, user_id, role, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (organization_id, user_id) DO NOTHING
    `, uuid.New().String(), inv.OrganizationID, userID, models.RoleMember)
	if err != nil {
		return fmt.Errorf("failed to upsert membership: %w", err)
	}

	_, err = tx.Exec(`
        UPDATE invitations SET status = $1, recipient_id = $2 WHERE id = $3
    `, models.InvitationAccepted, userID, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invitation acceptance: %w", err)
	}

	inv.Status = models.InvitationAccepted
	inv.RecipientID = &userID
	return nil
}

func (db *PostgresDatabase) ListPendingInvitations(orgID string, now time.Time) ([]models.PendingInvitation, error) {
	rows, err := db.db.Query(`
        SELECT i.id, i.email, i.token, i.created_at, i.expires_at,
               u.id, COALESCE(u.name, ''), u.email
        FROM invitations i
        JOIN users u ON u.id = i.inviter_id
        WHERE i.organization_id = $1 AND i.status = $2 AND i.expires_at > $3
        ORDER BY i.created_at DESC
    `, orgID, models.InvitationPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}
	defer rows.Close()

	invs := []models.PendingInvitation{}
	for rows.Next() {
		var p models.PendingInvitation
		if err := rows.Scan(
			&p.ID, &p.Email, &p.Token, &p.CreatedAt, &p.ExpiresAt,
			&p.Inviter.ID, &p.Inviter.Name, &p.Inviter.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation row: %w", err)
		}
		invs = append(invs, p)
	}
	return invs, rows.Err()
}

// ==== categories ====

func (db *PostgresDatabase) CreateCategory(c *models.Category) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
        INSERT INTO categories (id, organization_id, name, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING created_at, updated_at
    `
	err := db.db.QueryRow(query, c.ID, c.OrganizationID, c.Name, c.Description).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrDuplicate) {
			return translated
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetCategory(id string) (*models.Category, error) {
	var c models.Category
	err := db.db.QueryRow(`
        SELECT id, organization_id, name, COALESCE(description, ''), created_at, updated_at
        FROM categories
        WHERE id = $1
    `, id).Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

func (db *PostgresDatabase) ListCategoriesByOrganization(orgID string) ([]models.Category, error) {
	rows, err := db.db.Query(`
        SELECT id, organization_id, name, COALESCE(description, ''), created_at, updated_at
        FROM categories
        WHERE organization_id = $1
        ORDER BY name ASC
    `, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (db *PostgresDatabase) UpdateCategory(c *models.Category) error {
	err := db.db.QueryRow(`
        UPDATE categories
        SET name = $1, description = $2, updated_at = NOW()
        WHERE id = $3
        RETURNING updated_at
    `, c.Name, c.Description, c.ID).Scan(&c.UpdatedAt)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrNotFound) || errors.Is(translated, ErrDuplicate) {
			return translated
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteCategory(id string) error {
	// Dependent policies go with the category via ON DELETE CASCADE.
	res, err := db.db.Exec(`DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ==== policies ====

func (db *PostgresDatabase) CreatePolicy(p *models.Policy) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	query := `
        INSERT INTO policies (id, organization_id, category_id, user_id, name, description,
                              max_amount, period, review_route, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        RETURNING created_at, updated_at
    `
	err := db.db.QueryRow(query,
		p.ID, p.OrganizationID, p.CategoryID, p.UserID, p.Name, p.Description,
		p.MaxAmount, p.Period, p.ReviewRoute,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrDuplicate) {
			return translated
		}
		return fmt.Errorf("failed to create policy: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetPolicy(id string) (*models.Policy, error) {
	var p models.Policy
	err := db.db.QueryRow(`
        SELECT id, organization_id, category_id, user_id, name, COALESCE(description, ''),
               max_amount, period, review_route, created_at, updated_at
        FROM policies
        WHERE id = $1
    `, id).Scan(
		&p.ID, &p.OrganizationID, &p.CategoryID, &p.UserID, &p.Name, &p.Description,
		&p.MaxAmount, &p.Period, &p.ReviewRoute, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return &p, nil
}

const policyWithRelationsSelect = `
        SELECT p.id, p.organization_id, p.category_id, p.user_id, p.name, COALESCE(p.description, ''),
               p.max_amount, p.period, p.review_route, p.created_at, p.updated_at,
               c.name, u.name, u.email
        FROM policies p
        JOIN categories c ON c.id = p.category_id
        LEFT JOIN users u ON u.id = p.user_id
`

func scanPolicyWithRelations(row interface{ Scan(...interface{}) error }) (*models.PolicyWithRelations, error) {
	var p models.PolicyWithRelations
	err := row.Scan(
		&p.ID, &p.OrganizationID, &p.CategoryID, &p.UserID, &p.Name, &p.Description,
		&p.MaxAmount, &p.Period, &p.ReviewRoute, &p.CreatedAt, &p.UpdatedAt,
		&p.CategoryName, &p.UserName, &p.UserEmail,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *PostgresDatabase) GetPolicyByKey(orgID, categoryID string, userID *string) (*models.PolicyWithRelations, error) {
	var row *sql.Row
	if userID == nil {
		row = db.db.QueryRow(policyWithRelationsSelect+`
        WHERE p.organization_id = $1 AND p.category_id = $2 AND p.user_id IS NULL
    `, orgID, categoryID)
	} else {
		row = db.db.QueryRow(policyWithRelationsSelect+`
        WHERE p.organization_id = $1 AND p.category_id = $2 AND p.user_id = $3
    `, orgID, categoryID, *userID)
	}

	p, err := scanPolicyWithRelations(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get policy by key: %w", err)
	}
	return p, nil
}

func (db *PostgresDatabase) ListPoliciesByOrganization(orgID string) ([]models.PolicyWithRelations, error) {
	rows, err := db.db.Query(policyWithRelationsSelect+`
        WHERE p.organization_id = $1
        ORDER BY p.name ASC
    `, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	policies := []models.PolicyWithRelations{}
	for rows.Next() {
		p, err := scanPolicyWithRelations(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy row: %w", err)
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

func (db *PostgresDatabase) UpdatePolicy(p *models.Policy) error {
	// category_id and user_id are identity-defining and deliberately not
	// part of the update.
	err := db.db.QueryRow(`
        UPDATE policies
        SET name = $1, description = $2, max_amount = $3, period = $4, review_route = $5, updated_at = NOW()
        WHERE id = $6
        RETURNING updated_at
    `, p.Name, p.Description, p.MaxAmount, p.Period, p.ReviewRoute, p.ID).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeletePolicy(id string) error {
	res, err := db.db.Exec(`DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ==== lifecycle ====

func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
