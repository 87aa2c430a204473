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

// CategoriesHandler serves org-scoped expense categories
type CategoriesHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewCategoriesHandler(cfg *config.Config, db database.DatabaseInterface) *CategoriesHandler {
	return &CategoriesHandler{config: cfg, db: db}
}

func validateCategoryFields(w http.ResponseWriter, name, description string) bool {
	// Bounds are in characters, not bytes.
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		utils.WriteValidationErrorResponse(w, "Category name must be between 1 and 100 characters")
		return false
	}
	if utf8.RuneCountInString(description) > 500 {
		utils.WriteValidationErrorResponse(w, "Description must be at most 500 characters")
		return false
	}
	return true
}

// GET /api/orgs/{orgID}/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
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

	categories, err := h.db.ListCategoriesByOrganization(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"categories": categories})
}

// POST /api/orgs/{orgID}/categories
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
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
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if !validateCategoryFields(w, req.Name, req.Description) {
		return
	}

	if _, ok := requireOrgAdmin(w, h.db, user.ID, orgID); !ok {
		return
	}

	category := &models.Category{
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
	}
	if err := h.db.CreateCategory(category); err != nil {
		// The storage unique constraint is the authoritative duplicate
		// check, so concurrent creates cannot both slip through.
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "A category with this name already exists in the organization")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"category": category})
}

// PUT /api/categories/{id}
func (h *CategoriesHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	categoryID := chiRoute.URLParam(r, "id")
	if !requireValidID(w, categoryID, "category id") {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if !validateCategoryFields(w, req.Name, req.Description) {
		return
	}

	category, err := h.db.GetCategory(categoryID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Category not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	// Authorization is checked against the org the category actually
	// belongs to, never a caller-supplied org id.
	if _, ok := requireOrgAdmin(w, h.db, user.ID, category.OrganizationID); !ok {
		return
	}

	category.Name = req.Name
	category.Description = req.Description
	if err := h.db.UpdateCategory(category); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "A category with this name already exists in the organization")
			return
		}
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Category not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"category": category})
}

// DELETE /api/categories/{id}
func (h *CategoriesHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	categoryID := chiRoute.URLParam(r, "id")
	if !requireValidID(w, categoryID, "category id") {
		return
	}

	category, err := h.db.GetCategory(categoryID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Category not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	if _, ok := requireOrgAdmin(w, h.db, user.ID, category.OrganizationID); !ok {
		return
	}

	// Policies referencing the category are cascade-deleted by the store.
	if err := h.db.DeleteCategory(categoryID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Category not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": categoryID})
}
