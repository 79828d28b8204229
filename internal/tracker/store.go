// Package tracker keeps the client's copy of the signed in user's tasks and
// runs the create, edit and complete operations against the remote store.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"task-navigator/internal/models"

	"github.com/gofrs/uuid"
)

type Task = models.Task

// NewTask is the row a create inserts.
type NewTask struct {
	Title    string              `json:"title"`
	DueDate  time.Time           `json:"due_date"`
	UserID   uuid.UUID           `json:"user_id"`
	Priority models.TaskPriority `json:"priority"`
	Status   models.TaskStatus   `json:"status"`
}

// Patch lists the columns an update sends. Nil fields are omitted.
type Patch struct {
	Title       *string            `json:"title,omitempty"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	Status      *models.TaskStatus `json:"status,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Store is the remote user_tasks collection, already scoped to the signed
// in user by the backend.
type Store interface {
	List(ctx context.Context) ([]Task, error)
	Insert(ctx context.Context, task NewTask) (*Task, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*Task, error)
}

// DataError is a failed remote read or write.
type DataError struct {
	Op  string
	Err error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("failed to %s tasks: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// ValidationError is a form that cannot be sent. Nothing was dispatched.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}
