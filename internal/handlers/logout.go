package handlers

import (
	"net/http"

	"task-navigator/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Logout revokes every refresh token of the caller.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if err := h.authService.SignOut(c.Request.Context(), userID); err != nil {
		h.logger.Error("sign out failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}
