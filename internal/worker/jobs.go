package worker

import (
	"context"
	"fmt"
	"log/slog"

	"task-navigator/internal/services"

	"github.com/gofrs/uuid"
)

// TokenCleaner removes refresh tokens past their expiry.
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// KeyDeleter drops a cache entry.
type KeyDeleter interface {
	Delete(ctx context.Context, key string) error
}

func TokenCleanupHandler(cleaner TokenCleaner, logger *slog.Logger) JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, job *Job) error {
		removed, err := cleaner.CleanupExpiredTokens(ctx)
		if err != nil {
			return err
		}
		logger.Debug("token cleanup finished", "job_id", job.ID, "removed", removed)
		return nil
	}
}

// CacheInvalidatePayload builds the payload of a cache_invalidate job.
func CacheInvalidatePayload(ownerID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{"owner_id": ownerID.String()}
}

// CacheInvalidateHandler drops the owner's task list again after a write.
// A list read that raced the write may have stored rows from before it;
// the delayed second delete clears them.
func CacheInvalidateHandler(c KeyDeleter) JobHandler {
	return func(ctx context.Context, job *Job) error {
		raw, _ := job.Payload["owner_id"].(string)
		ownerID, err := uuid.FromString(raw)
		if err != nil {
			return fmt.Errorf("cache_invalidate job %s: bad owner_id %q", job.ID, raw)
		}
		return c.Delete(ctx, services.TaskListKey(ownerID))
	}
}
