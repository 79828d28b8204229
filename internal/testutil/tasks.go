package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"task-navigator/internal/models"
	"task-navigator/internal/tracker"

	"github.com/gofrs/uuid"
)

var ErrFakeTaskNotFound = errors.New("task not found")

// FakeTaskStore is an in-memory user_tasks collection with the backend's
// ordering and completion rules.
type FakeTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]models.Task
	now   func() time.Time

	ListErr  error
	WriteErr error
	Reads    int
	Writes   int
}

func NewFakeTaskStore() *FakeTaskStore {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	tick := 0
	return &FakeTaskStore{
		tasks: make(map[uuid.UUID]models.Task),
		now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
	}
}

// Seed stores tasks as they are, for tests that need a known list.
func (s *FakeTaskStore) Seed(tasks ...models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range tasks {
		if task.ID == uuid.Nil {
			task.ID = uuid.Must(uuid.NewV4())
		}
		if task.CreatedAt.IsZero() {
			task.CreatedAt = s.now()
		}
		s.tasks[task.ID] = task
	}
}

func (s *FakeTaskStore) Get(id uuid.UUID) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	return task, ok
}

func (s *FakeTaskStore) List(context.Context) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++
	if s.ListErr != nil {
		return nil, s.ListErr
	}

	tasks := make([]models.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *FakeTaskStore) Insert(_ context.Context, in tracker.NewTask) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	if s.WriteErr != nil {
		return nil, s.WriteErr
	}

	task := models.Task{
		ID:            uuid.Must(uuid.NewV4()),
		UserID:        in.UserID,
		Title:         in.Title,
		DueDate:       in.DueDate,
		Priority:      in.Priority,
		Status:        in.Status,
		AISuggestions: models.StringList{},
	}
	task.CreatedAt = s.now()
	task.UpdatedAt = task.CreatedAt
	s.tasks[task.ID] = task
	return &task, nil
}

func (s *FakeTaskStore) Update(_ context.Context, id uuid.UUID, patch tracker.Patch) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	if s.WriteErr != nil {
		return nil, s.WriteErr
	}

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrFakeTaskNotFound
	}
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.DueDate != nil {
		task.DueDate = *patch.DueDate
	}
	if patch.Status != nil {
		if !task.Status.CanTransitionTo(*patch.Status) {
			return nil, errors.New("invalid status transition")
		}
		// The first completion time sticks.
		if task.Status != models.StatusCompleted && *patch.Status == models.StatusCompleted {
			completedAt := s.now()
			if patch.CompletedAt != nil {
				completedAt = *patch.CompletedAt
			}
			task.CompletedAt = &completedAt
		}
		task.Status = *patch.Status
	}
	task.UpdatedAt = s.now()
	s.tasks[id] = task
	return &task, nil
}
