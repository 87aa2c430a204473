package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"spendhub-backend/pkg/models"
)

func TestGenerateTokenPairRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")

	access, refresh, expiresIn, err := svc.GenerateTokenPair("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	if expiresIn <= time.Now().Unix() {
		t.Fatalf("expiresIn %d is not in the future", expiresIn)
	}

	claims, err := svc.ValidateToken(access)
	if err != nil {
		t.Fatalf("ValidateToken(access): %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "alice@example.com" || claims.Type != "access" {
		t.Fatalf("unexpected access claims: %+v", claims)
	}

	claims, err = svc.ValidateToken(refresh)
	if err != nil {
		t.Fatalf("ValidateToken(refresh): %v", err)
	}
	if claims.Type != "refresh" {
		t.Fatalf("refresh token type = %q, want refresh", claims.Type)
	}
}

func TestRefreshAccessTokenRejectsAccessToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	access, _, _, err := svc.GenerateTokenPair("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	if _, _, err := svc.RefreshAccessToken(access); err == nil {
		t.Fatal("expected refresh with an access token to fail")
	}
}

func TestRefreshAccessTokenIssuesNewAccessToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	_, refresh, _, err := svc.GenerateTokenPair("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	access, _, err := svc.RefreshAccessToken(refresh)
	if err != nil {
		t.Fatalf("RefreshAccessToken: %v", err)
	}
	claims, err := svc.ValidateToken(access)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Type != "access" || claims.UserID != "user-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	access, _, _, err := NewJWTService("secret-a").GenerateTokenPair("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	if _, err := NewJWTService("secret-b").ValidateToken(access); err == nil {
		t.Fatal("expected validation with a different secret to fail")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret")

	claims := &models.TokenClaims{
		UserID: "user-1",
		Email:  "alice@example.com",
		Type:   "access",
		Exp:    time.Now().Add(-time.Minute).Unix(),
		Iat:    time.Now().Add(-time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secretKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.ValidateToken(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
