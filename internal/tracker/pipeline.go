package tracker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"task-navigator/internal/models"
	"task-navigator/internal/notify"
	"task-navigator/internal/session"

	"github.com/gofrs/uuid"
)

// SessionSource reports who is signed in.
type SessionSource interface {
	Current() session.Session
}

type operation struct {
	verb        string
	doneTitle   string
	doneMessage string
}

var (
	opCreate = operation{
		verb:        "create",
		doneTitle:   "Task created",
		doneMessage: "The task has been created successfully.",
	}
	opEdit = operation{
		verb:        "update",
		doneTitle:   "Task updated",
		doneMessage: "The task has been updated successfully.",
	}
	opComplete = operation{
		verb:        "complete",
		doneTitle:   "Task completed",
		doneMessage: "The task has been marked as completed.",
	}
)

// Pipeline runs task mutations. Each one validates locally, sends one
// write, and on success invalidates the cache. Every outcome is reported
// through the notifier.
type Pipeline struct {
	store    Store
	cache    *Cache
	sessions SessionSource
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewPipeline(store Store, cache *Cache, sessions SessionSource, notifier notify.Notifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:    store,
		cache:    cache,
		sessions: sessions,
		notifier: notifier,
		logger:   logger.With("component", "task_pipeline"),
		now:      time.Now,
	}
}

func validateForm(title string, dueDate time.Time) error {
	var missing []string
	if strings.TrimSpace(title) == "" {
		missing = append(missing, "title")
	}
	if dueDate.IsZero() {
		missing = append(missing, "due_date")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

func (p *Pipeline) rejectForm(err error) error {
	p.notifier.Notify(notify.Failure("Missing fields", "Please fill in all required fields"))
	return err
}

func (p *Pipeline) finish(op operation, task *Task, err error) (*Task, error) {
	if err != nil {
		p.logger.Warn("task mutation failed", "op", op.verb, "error", err)
		p.notifier.Notify(notify.Failure("Error", "Failed to "+op.verb+" task. Please try again."))
		var authErr *session.AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		return nil, &DataError{Op: op.verb, Err: err}
	}

	p.cache.Invalidate()
	p.notifier.Notify(notify.Success(op.doneTitle, op.doneMessage))
	return task, nil
}

// Create inserts a pending, medium priority task owned by the signed in
// user.
func (p *Pipeline) Create(ctx context.Context, title string, dueDate time.Time) (*Task, error) {
	if err := validateForm(title, dueDate); err != nil {
		return nil, p.rejectForm(err)
	}

	current := p.sessions.Current()
	if !current.IsAuthenticated() {
		return p.finish(opCreate, nil, &session.AuthError{Message: "User not authenticated"})
	}

	task, err := p.store.Insert(ctx, NewTask{
		Title:    title,
		DueDate:  dueDate.UTC(),
		UserID:   current.Identity.ID,
		Priority: models.PriorityMedium,
		Status:   models.StatusPending,
	})
	return p.finish(opCreate, task, err)
}

// Edit changes only the title and due date.
func (p *Pipeline) Edit(ctx context.Context, id uuid.UUID, title string, dueDate time.Time) (*Task, error) {
	if err := validateForm(title, dueDate); err != nil {
		return nil, p.rejectForm(err)
	}
	if id == uuid.Nil {
		return nil, p.rejectForm(&ValidationError{Fields: []string{"id"}})
	}

	due := dueDate.UTC()
	task, err := p.store.Update(ctx, id, Patch{Title: &title, DueDate: &due})
	return p.finish(opEdit, task, err)
}

// Complete marks the task completed now. Repeated calls each dispatch; the
// store keeps the first completion.
func (p *Pipeline) Complete(ctx context.Context, id uuid.UUID) (*Task, error) {
	if id == uuid.Nil {
		return nil, p.rejectForm(&ValidationError{Fields: []string{"id"}})
	}

	status := models.StatusCompleted
	completedAt := p.now().UTC()
	task, err := p.store.Update(ctx, id, Patch{Status: &status, CompletedAt: &completedAt})
	return p.finish(opComplete, task, err)
}
