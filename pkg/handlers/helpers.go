package handlers

import (
	"errors"
	"net/http"

	"spendhub-backend/pkg/database"
	"spendhub-backend/pkg/models"
	"spendhub-backend/pkg/utils"
)

// ==== authorization gate ====
//
// Every org-scoped operation re-resolves the caller's membership here, so a
// revoked or changed membership takes effect on the very next request.

// requireOrgMember resolves the caller's membership in the org and writes a
// Forbidden response when there is none. Returns the membership on success.
func requireOrgMember(w http.ResponseWriter, db database.DatabaseInterface, userID, orgID string) (*models.Membership, bool) {
	membership, err := db.GetMembership(userID, orgID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteForbiddenResponse(w, "You must be a member of this organization")
			return nil, false
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return nil, false
	}
	return membership, true
}

// requireOrgAdmin is requireOrgMember plus the ADMIN role check
func requireOrgAdmin(w http.ResponseWriter, db database.DatabaseInterface, userID, orgID string) (*models.Membership, bool) {
	membership, ok := requireOrgMember(w, db, userID, orgID)
	if !ok {
		return nil, false
	}
	if !membership.Role.Satisfies(models.RoleAdmin) {
		utils.WriteForbiddenResponse(w, "Admin role required")
		return nil, false
	}
	return membership, true
}

// requireValidID rejects malformed identifiers before any store lookup
func requireValidID(w http.ResponseWriter, id, field string) bool {
	if !utils.IsValidID(id) {
		utils.WriteValidationErrorResponse(w, field+" is not a valid id")
		return false
	}
	return true
}
