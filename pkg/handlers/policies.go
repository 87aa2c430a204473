package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	chiRoute "github.com/go-chi/chi/v5"

	"spendhub-backend/pkg/config"
	"spendhub-backend/pkg/database"
	"spendhub-backend/pkg/middleware"
	"spendhub-backend/pkg/models"
	"spendhub-backend/pkg/utils"
)

// PoliciesHandler serves spending policies and their precedence resolution
type PoliciesHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewPoliciesHandler(cfg *config.Config, db database.DatabaseInterface) *PoliciesHandler {
	return &PoliciesHandler{config: cfg, db: db}
}

type policyFields struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	MaxAmount   float64            `json:"max_amount"`
	Period      models.Period      `json:"period"`
	ReviewRoute models.ReviewRoute `json:"review_route"`
}

func validatePolicyFields(w http.ResponseWriter, f *policyFields) bool {
	f.Name = strings.TrimSpace(f.Name)
	if n := utf8.RuneCountInString(f.Name); n < 1 || n > 100 {
		utils.WriteValidationErrorResponse(w, "Policy name must be between 1 and 100 characters")
		return false
	}
	if utf8.RuneCountInString(f.Description) > 500 {
		utils.WriteValidationErrorResponse(w, "Description must be at most 500 characters")
		return false
	}
	if f.MaxAmount <= 0 {
		utils.WriteValidationErrorResponse(w, "Maximum amount must be positive")
		return false
	}
	if !f.Period.Valid() {
		utils.WriteValidationErrorResponse(w, "period must be one of WEEKLY, MONTHLY, QUARTERLY, YEARLY")
		return false
	}
	if !f.ReviewRoute.Valid() {
		utils.WriteValidationErrorResponse(w, "review_route must be one of AUTO_APPROVE, MANUAL_REVIEW")
		return false
	}
	return true
}

// GET /api/orgs/{orgID}/policies
func (h *PoliciesHandler) ListPolicies(w http.ResponseWriter, r *http.Request) {
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

	policies, err := h.db.ListPoliciesByOrganization(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"policies": policies})
}

// GET /api/orgs/{orgID}/policies/resolve?category_id=...&user_id=...
//
// Precedence resolution: a user-specific policy wins outright; otherwise the
// org-wide policy applies; with neither, the result is null. There is no
// further fallback.
func (h *PoliciesHandler) ResolvePolicy(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "orgID")
	if !requireValidID(w, orgID, "org id") {
		return
	}
	categoryID := r.URL.Query().Get("category_id")
	if !requireValidID(w, categoryID, "category_id") {
		return
	}
	targetUserID := r.URL.Query().Get("user_id")
	if targetUserID != "" && !requireValidID(w, targetUserID, "user_id") {
		return
	}

	if _, ok := requireOrgMember(w, h.db, user.ID, orgID); !ok {
		return
	}

	if targetUserID != "" {
		policy, err := h.db.GetPolicyByKey(orgID, categoryID, &targetUserID)
		if err == nil {
			utils.WriteSuccessResponse(w, map[string]interface{}{"policy": policy})
			return
		}
		if !errors.Is(err, database.ErrNotFound) {
			utils.WriteInternalServerErrorResponse(w, err.Error())
			return
		}
	}

	policy, err := h.db.GetPolicyByKey(orgID, categoryID, nil)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteSuccessResponse(w, map[string]interface{}{"policy": nil})
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"policy": policy})
}

// POST /api/orgs/{orgID}/policies
func (h *PoliciesHandler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
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
		policyFields
		CategoryID string `json:"category_id"`
		UserID     string `json:"user_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid request body")
		return
	}
	if !requireValidID(w, req.CategoryID, "category_id") {
		return
	}
	if req.UserID != "" && !requireValidID(w, req.UserID, "user_id") {
		return
	}
	if !validatePolicyFields(w, &req.policyFields) {
		return
	}

	if _, ok := requireOrgAdmin(w, h.db, user.ID, orgID); !ok {
		return
	}

	// The category must live in the same org as the policy.
	category, err := h.db.GetCategory(req.CategoryID)
	if err != nil || category.OrganizationID != orgID {
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			utils.WriteInternalServerErrorResponse(w, err.Error())
			return
		}
		utils.WriteNotFoundResponse(w, "Category not found in this organization")
		return
	}

	// A per-user policy must target an existing member of the org.
	var targetUserID *string
	if req.UserID != "" {
		if _, err := h.db.GetMembership(req.UserID, orgID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				utils.WriteNotFoundResponse(w, "User not found in this organization")
				return
			}
			utils.WriteInternalServerErrorResponse(w, err.Error())
			return
		}
		targetUserID = &req.UserID
	}

	policy := &models.Policy{
		OrganizationID: orgID,
		CategoryID:     req.CategoryID,
		UserID:         targetUserID,
		Name:           req.Name,
		Description:    req.Description,
		MaxAmount:      req.MaxAmount,
		Period:         req.Period,
		ReviewRoute:    req.ReviewRoute,
	}
	if err := h.db.CreatePolicy(policy); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "A policy already exists for this category and user combination")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"policy": policy})
}

// PUT /api/policies/{id}
func (h *PoliciesHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	policyID := chiRoute.URLParam(r, "id")
	if !requireValidID(w, policyID, "policy id") {
		return
	}

	var req policyFields
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid request body")
		return
	}
	if !validatePolicyFields(w, &req) {
		return
	}

	policy, err := h.db.GetPolicy(policyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Policy not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	// Authorization derives from the policy's own org.
	if _, ok := requireOrgAdmin(w, h.db, user.ID, policy.OrganizationID); !ok {
		return
	}

	// category_id and user_id identify the policy and never change here.
	policy.Name = req.Name
	policy.Description = req.Description
	policy.MaxAmount = req.MaxAmount
	policy.Period = req.Period
	policy.ReviewRoute = req.ReviewRoute
	if err := h.db.UpdatePolicy(policy); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Policy not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"policy": policy})
}

// DELETE /api/policies/{id}
func (h *PoliciesHandler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	policyID := chiRoute.URLParam(r, "id")
	if !requireValidID(w, policyID, "policy id") {
		return
	}

	policy, err := h.db.GetPolicy(policyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Policy not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	if _, ok := requireOrgAdmin(w, h.db, user.ID, policy.OrganizationID); !ok {
		return
	}

	if err := h.db.DeletePolicy(policyID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Policy not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": policyID})
}
