package middleware

import (
	"log/slog"
	"net/http"

	"task-navigator/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const ContextAuthDecision = "auth_decision"

// AuthorizationRequestFor builds an ownership request for the current
// caller. Must run after Authenticate.
func AuthorizationRequestFor(c *gin.Context, action string) services.AuthorizationRequest {
	userID, _ := CurrentUserID(c)
	return services.AuthorizationRequest{
		UserID:        userID,
		Resource:      services.ResourceUserTasks,
		Action:        action,
		IPAddress:     c.ClientIP(),
		UserAgent:     c.GetHeader("User-Agent"),
		RequestMethod: c.Request.Method,
		RequestPath:   c.Request.URL.Path,
	}
}

// RowOwnership rejects requests on a user_tasks row the caller does not
// own. The row is reported as missing rather than forbidden so that ids of
// other users' tasks cannot be probed. Every decision is audited.
func RowOwnership(authz services.AuthorizationService, action string, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		resourceID, err := uuid.FromString(c.Param("id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_id",
				"message": "Task id must be a UUID",
			})
			return
		}

		request := AuthorizationRequestFor(c, action)
		request.ResourceID = &resourceID

		decision, err := authz.IsAuthorized(c.Request.Context(), request)
		if err != nil {
			logger.Error("ownership check failed", "error", err, "resource_id", resourceID)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		if err := authz.LogAuthorizationDecision(c.Request.Context(), *decision); err != nil {
			logger.Warn("failed to write audit log", "error", err, "resource_id", resourceID)
		}

		if !decision.Allowed() {
			logger.Info("ownership denied",
				"user_id", request.UserID,
				"resource_id", resourceID,
				"reason", decision.Reason,
			)
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Task not found",
			})
			return
		}

		c.Set(ContextAuthDecision, decision)
		c.Next()
	}
}
