package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"spendhub-backend/pkg/config"
	"spendhub-backend/pkg/utils"
)

func TestAuthMiddlewareFillsUserCapture(t *testing.T) {
	cfg := &config.Config{Environment: "production", JWTSecret: "capture-test-secret"}
	token, _, err := utils.NewJWTService(cfg.JWTSecret).GenerateAccessToken("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	uc := &userCapture{}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), userCaptureKey{}, uc))
	req.Header.Set("Authorization", "Bearer "+token)

	handled := false
	AuthMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled = true
	})).ServeHTTP(httptest.NewRecorder(), req)

	if !handled {
		t.Fatal("expected the request to reach the handler")
	}
	if uc.email != "alice@example.com" {
		t.Fatalf("captured user = %q, want alice@example.com", uc.email)
	}
}

func TestUserCaptureStaysEmptyWithoutAuth(t *testing.T) {
	cfg := &config.Config{Environment: "production", JWTSecret: "capture-test-secret"}

	uc := &userCapture{}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), userCaptureKey{}, uc))

	AuthMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unauthenticated request must not reach the handler")
	})).ServeHTTP(httptest.NewRecorder(), req)

	if uc.email != "" {
		t.Fatalf("captured user = %q, want empty", uc.email)
	}
}
