package handlers

import (
	"errors"
	"net/http"

	"task-navigator/internal/middleware"
	"task-navigator/internal/services"

	"github.com/gin-gonic/gin"
)

// User returns the account behind the bearer token.
func (h *AuthHandler) User(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user_not_found", "message": "User from token no longer exists"})
			return
		}
		h.logger.Error("failed to load user", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}
