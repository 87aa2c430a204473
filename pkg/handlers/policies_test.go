package handlers_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"spendhub-backend/pkg/models"
	"spendhub-backend/pkg/utils"
)

func policyBody(categoryID, userID string, maxAmount float64) map[string]interface{} {
	body := map[string]interface{}{
		"category_id":  categoryID,
		"name":         "Spending limit",
		"max_amount":   maxAmount,
		"period":       "MONTHLY",
		"review_route": "AUTO_APPROVE",
	}
	if userID != "" {
		body["user_id"] = userID
	}
	return body
}

func (e *testEnv) resolve(u testUser, orgID, categoryID, userID string) *models.PolicyWithRelations {
	e.t.Helper()
	q := url.Values{}
	q.Set("category_id", categoryID)
	if userID != "" {
		q.Set("user_id", userID)
	}
	rr := e.do(http.MethodGet, "/api/orgs/"+orgID+"/policies/resolve?"+q.Encode(), u.Token, nil)
	require.Equal(e.t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())

	var resp struct {
		Policy *models.PolicyWithRelations `json:"policy"`
	}
	decodeData(e.t, rr, &resp)
	return resp.Policy
}

func TestCreateOrgWidePolicy(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	orgID := env.createOrg(alice, "Acme")
	categoryID := env.createCategory(alice, orgID, "Travel")

	rr := env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, policyBody(categoryID, "", 500))
	require.Equal(t, http.StatusCreated, rr.Code, "body: %s", rr.Body.String())

	var resp struct {
		Policy models.Policy `json:"policy"`
	}
	decodeData(t, rr, &resp)
	require.NotEmpty(t, resp.Policy.ID)
	require.Nil(t, resp.Policy.UserID)
	require.True(t, resp.Policy.OrgWide())
}

func TestCreatePolicyRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	bob := env.register("bob@example.com")
	orgID := env.createOrg(alice, "Acme")
	env.addMember(alice, orgID, bob)
	categoryID := env.createCategory(alice, orgID, "Travel")

	rr := env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", bob.Token, policyBody(categoryID, "", 500))
	requireErrorCode(t, rr, http.StatusForbidden, utils.CodeForbidden)
}

func TestCreatePolicyRejectsForeignCategory(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	orgID := env.createOrg(alice, "Acme")
	otherOrgID := env.createOrg(alice, "Globex")
	foreignCategoryID := env.createCategory(alice, otherOrgID, "Travel")

	rr := env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, policyBody(foreignCategoryID, "", 500))
	requireErrorCode(t, rr, http.StatusNotFound, utils.CodeNotFound)
}

func TestCreatePolicyTargetMustBeMember(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	outsider := env.register("outsider@example.com")
	orgID := env.createOrg(alice, "Acme")
	categoryID := env.createCategory(alice, orgID, "Travel")

	rr := env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, policyBody(categoryID, outsider.ID, 500))
	requireErrorCode(t, rr, http.StatusNotFound, utils.CodeNotFound)
}

func TestCreatePolicyRejectsDuplicateKey(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	orgID := env.createOrg(alice, "Acme")
	categoryID := env.createCategory(alice, orgID, "Travel")

	rr := env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, policyBody(categoryID, "", 500))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, policyBody(categoryID, "", 900))
	requireErrorCode(t, rr, http.StatusConflict, utils.CodeConflict)
}

func TestCreatePolicyValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	orgID := env.createOrg(alice, "Acme")
	categoryID := env.createCategory(alice, orgID, "Travel")

	rr := env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, policyBody(categoryID, "", 0))
	requireErrorCode(t, rr, http.StatusBadRequest, utils.CodeValidation)

	body := policyBody(categoryID, "", 500)
	body["period"] = "DAILY"
	rr = env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, body)
	requireErrorCode(t, rr, http.StatusBadRequest, utils.CodeValidation)

	body = policyBody(categoryID, "", 500)
	body["review_route"] = "ESCALATE"
	rr = env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, body)
	requireErrorCode(t, rr, http.StatusBadRequest, utils.CodeValidation)

	// Name bounds count characters, not bytes.
	body = policyBody(categoryID, "", 500)
	body["name"] = strings.Repeat("预", 100)
	rr = env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, body)
	require.Equal(t, http.StatusCreated, rr.Code, "body: %s", rr.Body.String())
}

func TestResolvePolicyPrecedence(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	bob := env.register("bob@example.com")
	orgID := env.createOrg(alice, "Acme")
	env.addMember(alice, orgID, bob)
	travelID := env.createCategory(alice, orgID, "Travel")
	mealsID := env.createCategory(alice, orgID, "Meals")

	// Org-wide travel limit plus a per-user override for bob.
	rr := env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, policyBody(travelID, "", 500))
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, policyBody(travelID, bob.ID, 1000))
	require.Equal(t, http.StatusCreated, rr.Code)

	// Bob's override wins.
	p := env.resolve(alice, orgID, travelID, bob.ID)
	require.NotNil(t, p)
	require.Equal(t, 1000.0, p.MaxAmount)
	require.NotNil(t, p.UserID)

	// Alice has no override, so the org-wide policy applies.
	p = env.resolve(alice, orgID, travelID, alice.ID)
	require.NotNil(t, p)
	require.Equal(t, 500.0, p.MaxAmount)
	require.Nil(t, p.UserID)

	// No user given resolves the org-wide policy.
	p = env.resolve(alice, orgID, travelID, "")
	require.NotNil(t, p)
	require.Equal(t, 500.0, p.MaxAmount)

	// A category with no policies resolves to null, not an error.
	p = env.resolve(alice, orgID, mealsID, bob.ID)
	require.Nil(t, p)

	// Resolution is a read, so a plain member may do it.
	p = env.resolve(bob, orgID, travelID, bob.ID)
	require.NotNil(t, p)
	require.Equal(t, 1000.0, p.MaxAmount)
}

func TestResolvePolicyValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	orgID := env.createOrg(alice, "Acme")

	rr := env.do(http.MethodGet, "/api/orgs/"+orgID+"/policies/resolve", alice.Token, nil)
	requireErrorCode(t, rr, http.StatusBadRequest, utils.CodeValidation)

	rr = env.do(http.MethodGet, "/api/orgs/"+orgID+"/policies/resolve?category_id=not-a-uuid", alice.Token, nil)
	requireErrorCode(t, rr, http.StatusBadRequest, utils.CodeValidation)
}

func TestUpdatePolicyKeepsIdentity(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	orgID := env.createOrg(alice, "Acme")
	categoryID := env.createCategory(alice, orgID, "Travel")

	rr := env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, policyBody(categoryID, "", 500))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Policy models.Policy `json:"policy"`
	}
	decodeData(t, rr, &created)

	rr = env.do(http.MethodPut, "/api/policies/"+created.Policy.ID, alice.Token, map[string]interface{}{
		"name":         "Raised limit",
		"max_amount":   750,
		"period":       "QUARTERLY",
		"review_route": "MANUAL_REVIEW",
	})
	require.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())

	var updated struct {
		Policy models.Policy `json:"policy"`
	}
	decodeData(t, rr, &updated)
	require.Equal(t, "Raised limit", updated.Policy.Name)
	require.Equal(t, 750.0, updated.Policy.MaxAmount)
	require.Equal(t, models.PeriodQuarterly, updated.Policy.Period)
	require.Equal(t, categoryID, updated.Policy.CategoryID)
	require.Nil(t, updated.Policy.UserID)
}

func TestUpdatePolicyCrossOrgForbidden(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	eve := env.register("eve@example.com")
	orgID := env.createOrg(alice, "Acme")
	env.createOrg(eve, "Evil Corp")
	categoryID := env.createCategory(alice, orgID, "Travel")

	rr := env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, policyBody(categoryID, "", 500))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Policy models.Policy `json:"policy"`
	}
	decodeData(t, rr, &created)

	rr = env.do(http.MethodPut, "/api/policies/"+created.Policy.ID, eve.Token, map[string]interface{}{
		"name":         "Hijacked",
		"max_amount":   1,
		"period":       "WEEKLY",
		"review_route": "AUTO_APPROVE",
	})
	requireErrorCode(t, rr, http.StatusForbidden, utils.CodeForbidden)
}

func TestDeletePolicy(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	orgID := env.createOrg(alice, "Acme")
	categoryID := env.createCategory(alice, orgID, "Travel")

	rr := env.do(http.MethodPost, "/api/orgs/"+orgID+"/policies", alice.Token, policyBody(categoryID, "", 500))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Policy models.Policy `json:"policy"`
	}
	decodeData(t, rr, &created)

	rr = env.do(http.MethodDelete, "/api/policies/"+created.Policy.ID, alice.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(http.MethodDelete, "/api/policies/"+created.Policy.ID, alice.Token, nil)
	requireErrorCode(t, rr, http.StatusNotFound, utils.CodeNotFound)
}
