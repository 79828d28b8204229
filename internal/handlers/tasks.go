package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"task-navigator/internal/middleware"
	"task-navigator/internal/models"
	"task-navigator/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type TaskHandler struct {
	taskService services.TaskService
	authz       services.AuthorizationService
	logger      *slog.Logger
}

func NewTaskHandler(taskService services.TaskService, authz services.AuthorizationService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{taskService: taskService, authz: authz, logger: logger.With("handler", "tasks")}
}

type CreateTaskRequest struct {
	Title         string              `json:"title"`
	DueDate       *time.Time          `json:"due_date"`
	Priority      models.TaskPriority `json:"priority"`
	Status        models.TaskStatus   `json:"status"`
	UserID        *uuid.UUID          `json:"user_id"`
	AISuggestions []string            `json:"ai_suggestions"`
}

type UpdateTaskRequest struct {
	Title       *string              `json:"title"`
	DueDate     *time.Time           `json:"due_date"`
	Priority    *models.TaskPriority `json:"priority"`
	Status      *models.TaskStatus   `json:"status"`
	CompletedAt *time.Time           `json:"completed_at"`
	UserID      *uuid.UUID           `json:"user_id"`
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), userID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	authRequest := middleware.AuthorizationRequestFor(c, services.ActionCreate)
	authRequest.OwnerID = req.UserID
	decision, err := h.authz.IsAuthorized(c.Request.Context(), authRequest)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	if err := h.authz.LogAuthorizationDecision(c.Request.Context(), *decision); err != nil {
		h.logger.Warn("failed to write audit log", "error", err)
	}
	if !decision.Allowed() {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "new row violates row-level security policy for table \"user_tasks\"",
		})
		return
	}

	input := services.NewTask{
		Title:         req.Title,
		Priority:      req.Priority,
		Status:        req.Status,
		AISuggestions: req.AISuggestions,
	}
	if req.DueDate != nil {
		input.DueDate = *req.DueDate
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), userID, input)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdateTask expects RowOwnership to have run for the :id row.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": "Task id must be a UUID"})
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if req.UserID != nil && *req.UserID != userID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_task", "message": "user_id cannot be changed"})
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), userID, id, services.TaskUpdate{
		Title:       req.Title,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      req.Status,
		CompletedAt: req.CompletedAt,
	})
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Task not found"})
	case errors.Is(err, services.ErrInvalidTask):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_task", "message": err.Error()})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_transition", "message": err.Error()})
	default:
		h.logger.Error("task request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to process task request"})
	}
}
