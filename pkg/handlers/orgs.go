package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	chiRoute "github.com/go-chi/chi/v5"

	"spendhub-backend/pkg/config"
	"spendhub-backend/pkg/database"
	"spendhub-backend/pkg/middleware"
	"spendhub-backend/pkg/models"
	"spendhub-backend/pkg/utils"
)

// OrgsHandler serves organizations, memberships and invitations
type OrgsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewOrgsHandler(cfg *config.Config, db database.DatabaseInterface) *OrgsHandler {
	return &OrgsHandler{config: cfg, db: db}
}

// POST /api/orgs
func (h *OrgsHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		utils.WriteValidationErrorResponse(w, "Organization name must be between 2 and 100 characters")
		return
	}

	// Organization and initial ADMIN membership are created in one
	// transaction: either both exist or neither does.
	org := &models.Organization{Name: name}
	if err := h.db.CreateOrganizationWithAdmin(org, user.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"organization": org})
}

// GET /api/orgs
func (h *OrgsHandler) ListMyOrganizations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	orgs, err := h.db.ListUserOrganizations(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"organizations": orgs})
}

// GET /api/orgs/{orgID}/members
func (h *OrgsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "orgID")
	if !requireValidID(w, orgID, "org id") {
		return
	}
	if _, ok := requireOrgMember(w, h.db, user.ID, orgID); !ok {
		return
	}

	org, err := h.db.GetOrganization(orgID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Organization not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	members, err := h.db.ListOrganizationMembers(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"id":         org.ID,
		"name":       org.Name,
		"created_at": org.CreatedAt,
		"members":    members,
	})
}

// POST /api/orgs/{orgID}/invite
func (h *OrgsHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "orgID")
	if !requireValidID(w, orgID, "org id") {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		utils.WriteValidationErrorResponse(w, "A valid email is required")
		return
	}

	if _, ok := requireOrgAdmin(w, h.db, user.ID, orgID); !ok {
		return
	}

	tok, err := utils.GenerateURLToken(24)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate token")
		return
	}

	// No email dispatch here: the token is returned to the caller, who is
	// responsible for transmitting it out-of-band.
	inv := &models.Invitation{
		OrganizationID: orgID,
		Email:          req.Email,
		InviterID:      user.ID,
		Token:          tok,
		Status:         models.InvitationPending,
		ExpiresAt:      time.Now().Add(models.InvitationTTL),
	}
	if err := h.db.CreateInvitation(inv); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"invitation_id": inv.ID,
		"token":         inv.Token,
	})
}

// GET /api/orgs/{orgID}/invitations
func (h *OrgsHandler) ListPendingInvitations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "orgID")
	if !requireValidID(w, orgID, "org id") {
		return
	}
	if _, ok := requireOrgAdmin(w, h.db, user.ID, orgID); !ok {
		return
	}

	// Expired rows are filtered from this view only; their stored status
	// stays PENDING.
	invs, err := h.db.ListPendingInvitations(orgID, time.Now())
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"invitations": invs})
}

// POST /api/invitations/accept
func (h *OrgsHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid request body")
		return
	}
	if len(req.Token) < 10 {
		utils.WriteValidationErrorResponse(w, "token must be at least 10 characters")
		return
	}

	inv, err := h.db.GetInvitationByToken(req.Token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Invalid token")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	if inv.Expired(time.Now()) {
		// The row is left as-is; expiry is judged at read time only.
		utils.WriteExpiredResponse(w, "Token expired")
		return
	}

	// Anyone presenting a valid token may accept, regardless of the email
	// the invitation was addressed to. Membership upsert and status update
	// happen in one transaction.
	if err := h.db.AcceptInvitation(inv, user.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"organization_id": inv.OrganizationID})
}
