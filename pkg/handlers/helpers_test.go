package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	handler "spendhub-backend/api"
	"spendhub-backend/pkg/config"
	"spendhub-backend/pkg/database"
	"spendhub-backend/pkg/models"
)

// testEnv runs the full router against the in-memory store, so every test
// goes through the real middleware chain, auth included.
type testEnv struct {
	t      *testing.T
	router http.Handler
	db     *database.MemoryDatabase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Environment:    "test",
		Port:           "3000",
		UseMemoryDB:    true,
		JWTSecret:      "handler-test-secret",
		AllowedOrigins: []string{"*"},
	}
	db := database.NewMemoryDatabase()
	return &testEnv{
		t:      t,
		router: handler.NewRouter(cfg, db),
		db:     db,
	}
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "body: %s", rr.Body.String())
	require.True(t, env.Success, "expected success envelope, got: %s", rr.Body.String())
	if v != nil {
		require.NoError(t, json.Unmarshal(env.Data, v))
	}
}

func requireErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
}

type testUser struct {
	ID    string
	Email string
	Token string
}

// register creates a user through the API and returns their id and access token
func (e *testEnv) register(email string) testUser {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "password123",
		"name":     email,
	})
	require.Equal(e.t, http.StatusCreated, rr.Code, "body: %s", rr.Body.String())

	var resp models.UserLoginResponse
	decodeData(e.t, rr, &resp)
	return testUser{ID: resp.User.ID, Email: email, Token: resp.AccessToken}
}

func (e *testEnv) createOrg(u testUser, name string) string {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/orgs", u.Token, map[string]string{"name": name})
	require.Equal(e.t, http.StatusCreated, rr.Code, "body: %s", rr.Body.String())

	var resp struct {
		Organization models.Organization `json:"organization"`
	}
	decodeData(e.t, rr, &resp)
	return resp.Organization.ID
}

// addMember runs the invite-accept flow to bring u into the org as a MEMBER
func (e *testEnv) addMember(admin testUser, orgID string, u testUser) {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/orgs/"+orgID+"/invite", admin.Token, map[string]string{"email": u.Email})
	require.Equal(e.t, http.StatusCreated, rr.Code, "body: %s", rr.Body.String())

	var invited struct {
		Token string `json:"token"`
	}
	decodeData(e.t, rr, &invited)

	rr = e.do(http.MethodPost, "/api/invitations/accept", u.Token, map[string]string{"token": invited.Token})
	require.Equal(e.t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())
}

func (e *testEnv) createCategory(admin testUser, orgID, name string) string {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/orgs/"+orgID+"/categories", admin.Token, map[string]string{"name": name})
	require.Equal(e.t, http.StatusCreated, rr.Code, "body: %s", rr.Body.String())

	var resp struct {
		Category models.Category `json:"category"`
	}
	decodeData(e.t, rr, &resp)
	return resp.Category.ID
}
