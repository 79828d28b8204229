package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Refresh exchanges a refresh token for a new session. The presented token
// is consumed.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := c.PostForm("refresh_token")
	if refreshToken == "" {
		oauthError(c, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	user, pair, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	writeSession(c, http.StatusOK, user, pair)
}
