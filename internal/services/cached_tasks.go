package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"task-navigator/internal/cache"
	"task-navigator/internal/models"

	"github.com/gofrs/uuid"
)

const defaultTaskListTTL = 15 * time.Minute

// TaskListKey is the cache key holding an owner's ordered task list.
func TaskListKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("user_tasks:%s", ownerID.String())
}

// CachedTaskService serves ListTasks from cache and drops the owner's list
// after every successful write.
type CachedTaskService struct {
	taskService  TaskService
	cache        cache.Cache
	ttl          time.Duration
	logger       *slog.Logger
	onInvalidate func(ctx context.Context, ownerID uuid.UUID)
}

func NewCachedTaskService(taskService TaskService, cacheInstance cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedTaskService {
	if ttl <= 0 {
		ttl = defaultTaskListTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedTaskService{
		taskService: taskService,
		cache:       cacheInstance,
		ttl:         ttl,
		logger:      logger.With("component", "cached_task_service"),
	}
}

// OnInvalidate registers fn to run after an owner's list is dropped, used
// to fan the invalidation out to other nodes.
func (s *CachedTaskService) OnInvalidate(fn func(ctx context.Context, ownerID uuid.UUID)) {
	s.onInvalidate = fn
}

func (s *CachedTaskService) ListTasks(ctx context.Context, ownerID uuid.UUID) ([]models.Task, error) {
	key := TaskListKey(ownerID)

	var cached []models.Task
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	tasks, err := s.taskService.ListTasks(ctx, ownerID)
	if err != nil {
		return tasks, err
	}

	if err := s.cache.Set(ctx, key, tasks, s.ttl); err != nil {
		s.logger.Warn("failed to cache task list", "owner_id", ownerID, "error", err)
	}

	return tasks, nil
}

func (s *CachedTaskService) GetTask(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	return s.taskService.GetTask(ctx, ownerID, id)
}

func (s *CachedTaskService) CreateTask(ctx context.Context, ownerID uuid.UUID, input NewTask) (*models.Task, error) {
	task, err := s.taskService.CreateTask(ctx, ownerID, input)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, ownerID)
	return task, nil
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, ownerID, id uuid.UUID, update TaskUpdate) (*models.Task, error) {
	task, err := s.taskService.UpdateTask(ctx, ownerID, id, update)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, ownerID)
	return task, nil
}

func (s *CachedTaskService) Invalidate(ctx context.Context, ownerID uuid.UUID) {
	if err := s.cache.Delete(ctx, TaskListKey(ownerID)); err != nil {
		s.logger.Warn("failed to invalidate task list", "owner_id", ownerID, "error", err)
	}
	if s.onInvalidate != nil {
		s.onInvalidate(ctx, ownerID)
	}
}

func (s *CachedTaskService) GetCacheStats() map[string]interface{} {
	return s.cache.Stats()
}
