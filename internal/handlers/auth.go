package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"task-navigator/internal/models"
	"task-navigator/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	GrantTypePassword     = "password"
	GrantTypeRefreshToken = "refresh_token"
)

type AuthHandler struct {
	authService services.AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService services.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{authService: authService, logger: logger.With("handler", "auth")}
}

type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_sign_in_at,omitempty"`
}

func newUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:          user.ID.String(),
		Email:       user.Email,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}

// TokenResponse is an OAuth2 token response carrying the signed in user.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

func newTokenResponse(user *models.User, pair *services.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt.Unix(),
		RefreshToken: pair.RefreshToken,
		User:         newUserResponse(user),
	}
}

func writeSession(c *gin.Context, status int, user *models.User, pair *services.TokenPair) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, newTokenResponse(user, pair))
}

// oauthError writes an RFC 6749 error body.
func oauthError(c *gin.Context, status int, code, description string) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, gin.H{
		"error":             code,
		"error_description": description,
	})
}

// Token implements the token endpoint for the password and refresh_token
// grants. Parameters arrive form encoded.
func (h *AuthHandler) Token(c *gin.Context) {
	switch grant := c.PostForm("grant_type"); grant {
	case GrantTypePassword:
		h.passwordGrant(c)
	case GrantTypeRefreshToken:
		h.Refresh(c)
	case "":
		oauthError(c, http.StatusBadRequest, "invalid_request", "grant_type is required")
	default:
		oauthError(c, http.StatusBadRequest, "unsupported_grant_type", "Unsupported grant type: "+grant)
	}
}

func (h *AuthHandler) passwordGrant(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")
	if email == "" || password == "" {
		oauthError(c, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	user, pair, err := h.authService.SignIn(c.Request.Context(), email, password)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	writeSession(c, http.StatusOK, user, pair)
}

func (h *AuthHandler) writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		oauthError(c, http.StatusBadRequest, "invalid_grant", "Invalid login credentials")
	case errors.Is(err, services.ErrInvalidRefreshToken):
		oauthError(c, http.StatusBadRequest, "invalid_grant", "Invalid Refresh Token")
	case errors.Is(err, services.ErrAccountDisabled):
		oauthError(c, http.StatusBadRequest, "invalid_grant", "User account is disabled")
	case errors.Is(err, services.ErrEmailTaken):
		oauthError(c, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
	case errors.Is(err, services.ErrWeakPassword):
		oauthError(c, http.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters")
	case errors.Is(err, services.ErrInvalidEmail):
		oauthError(c, http.StatusUnprocessableEntity, "validation_failed", "Unable to validate email address: invalid format")
	default:
		h.logger.Error("auth request failed", "error", err, "path", c.FullPath())
		oauthError(c, http.StatusInternalServerError, "server_error", "Internal server error")
	}
}
