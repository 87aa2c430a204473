package handlers

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"net/http"

	"golang.org/x/crypto/bcrypt"

	"spendhub-backend/pkg/config"
	"spendhub-backend/pkg/database"
	"spendhub-backend/pkg/models"
	"spendhub-backend/pkg/utils"
)

// AuthHandler serves registration, login and token refresh
type AuthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	jwt    *utils.JWTService
}

// NewAuthHandler creates an auth handler
func NewAuthHandler(cfg *config.Config, db database.DatabaseInterface) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		db:     db,
		jwt:    utils.NewJWTService(cfg.JWTSecret),
	}
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRegisterRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		utils.WriteValidationErrorResponse(w, "A valid email is required")
		return
	}
	if len(req.Password) < 8 {
		utils.WriteValidationErrorResponse(w, "Password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to hash password")
		return
	}

	user := &models.User{
		Email:    req.Email,
		Password: string(hash),
		Name:     strings.TrimSpace(req.Name),
	}
	if err := h.db.CreateUser(user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "A user with this email already exists")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	accessToken, refreshToken, expiresIn, err := h.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, models.UserLoginResponse{
		User:         *user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		utils.WriteValidationErrorResponse(w, "Email and password are required")
		return
	}

	user, err := h.db.GetUserByEmail(strings.TrimSpace(req.Email))
	if err != nil {
		// Same response for unknown email and bad password
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}

	accessToken, refreshToken, expiresIn, err := h.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, models.UserLoginResponse{
		User:         *user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}

// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		utils.WriteValidationErrorResponse(w, "refresh_token is required")
		return
	}

	accessToken, expiresIn, err := h.jwt.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid refresh token")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	})
}

// GET /
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := h.db.HealthCheck(); err != nil {
		status = "degraded"
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"status":      status,
		"environment": h.config.Environment,
		"time":        time.Now().Format(time.RFC3339),
	})
}
