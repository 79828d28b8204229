package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"task-navigator/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTask       = errors.New("invalid task")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// NewTask is the insert payload. Zero priority and status take the table
// defaults.
type NewTask struct {
	Title         string
	DueDate       time.Time
	Priority      models.TaskPriority
	Status        models.TaskStatus
	AISuggestions []string
}

// TaskUpdate carries the columns a caller wants to change. Nil fields are
// left untouched.
type TaskUpdate struct {
	Title       *string
	DueDate     *time.Time
	Priority    *models.TaskPriority
	Status      *models.TaskStatus
	CompletedAt *time.Time
}

func (u TaskUpdate) empty() bool {
	return u.Title == nil && u.DueDate == nil && u.Priority == nil && u.Status == nil && u.CompletedAt == nil
}

// TaskService reads and writes user_tasks rows. Every call is scoped to
// ownerID; rows belonging to someone else behave as if they did not exist.
type TaskService interface {
	ListTasks(ctx context.Context, ownerID uuid.UUID) ([]models.Task, error)
	GetTask(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error)
	CreateTask(ctx context.Context, ownerID uuid.UUID, input NewTask) (*models.Task, error)
	UpdateTask(ctx context.Context, ownerID, id uuid.UUID, update TaskUpdate) (*models.Task, error)
}

type TaskServiceImpl struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTaskService(db *gorm.DB) *TaskServiceImpl {
	return &TaskServiceImpl{db: db, now: time.Now}
}

func invalidTask(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTask, fmt.Sprintf(format, args...))
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, ownerID uuid.UUID) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Order("id").
		Find(&tasks).Error
	return tasks, err
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	return s.findOwned(s.db.WithContext(ctx), ownerID, id)
}

func (s *TaskServiceImpl) findOwned(db *gorm.DB, ownerID, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := db.Where("id = ? AND user_id = ?", id, ownerID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, ownerID uuid.UUID, input NewTask) (*models.Task, error) {
	if ownerID == uuid.Nil {
		return nil, invalidTask("owner is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalidTask("title is required")
	}
	if input.DueDate.IsZero() {
		return nil, invalidTask("due_date is required")
	}
	if input.Priority != "" && !input.Priority.Valid() {
		return nil, invalidTask("unknown priority %q", input.Priority)
	}
	if input.Status != "" && !input.Status.Valid() {
		return nil, invalidTask("unknown status %q", input.Status)
	}

	task := models.Task{
		UserID:        ownerID,
		Title:         title,
		DueDate:       input.DueDate.UTC(),
		Priority:      input.Priority,
		Status:        input.Status,
		AISuggestions: models.StringList(input.AISuggestions),
	}
	if task.AISuggestions == nil {
		task.AISuggestions = models.StringList{}
	}
	if task.Status == models.StatusCompleted {
		now := s.now().UTC()
		task.CompletedAt = &now
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies update to an owned row. Status only moves forward;
// completing an already completed task succeeds and keeps the original
// completion time.
func (s *TaskServiceImpl) UpdateTask(ctx context.Context, ownerID, id uuid.UUID, update TaskUpdate) (*models.Task, error) {
	if update.empty() {
		return nil, invalidTask("no fields to update")
	}

	var task *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = s.findOwned(tx, ownerID, id)
		if err != nil {
			return err
		}

		changes, err := s.changesFor(task, update)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}

		if err := tx.Model(task).Updates(changes).Error; err != nil {
			return err
		}
		return tx.First(task, "id = ?", task.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskServiceImpl) changesFor(task *models.Task, update TaskUpdate) (map[string]interface{}, error) {
	changes := map[string]interface{}{}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, invalidTask("title is required")
		}
		changes["title"] = title
	}
	if update.DueDate != nil {
		if update.DueDate.IsZero() {
			return nil, invalidTask("due_date is required")
		}
		changes["due_date"] = update.DueDate.UTC()
	}
	if update.Priority != nil {
		if !update.Priority.Valid() {
			return nil, invalidTask("unknown priority %q", *update.Priority)
		}
		changes["priority"] = *update.Priority
	}

	next := task.Status
	if update.Status != nil {
		next = *update.Status
		if !next.Valid() {
			return nil, invalidTask("unknown status %q", next)
		}
		if !task.Status.CanTransitionTo(next) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, task.Status, next)
		}
	}

	switch {
	case task.IsCompleted():
		// Repeated completion is a no-op for the status columns.
	case next == models.StatusCompleted:
		completedAt := s.now().UTC()
		if update.CompletedAt != nil {
			completedAt = update.CompletedAt.UTC()
		}
		changes["status"] = next
		changes["completed_at"] = completedAt
	case update.Status != nil && next != task.Status:
		changes["status"] = next
	}

	return changes, nil
}
