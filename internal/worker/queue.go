package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "tasknav:queue:"
	scheduledKey = keyPrefix + "scheduled"
	deadKey      = keyPrefix + "dead"

	defaultMaxTries = 3
	promoteBatch    = 100
)

func queueKey(queue string) string {
	return keyPrefix + queue
}

// JobQueue pushes jobs onto Redis lists. Jobs due in the future wait in a
// sorted set scored by their due time until PromoteDue moves them.
type JobQueue struct {
	client   *redis.Client
	maxTries int
	logger   *slog.Logger
	now      func() time.Time
}

func NewJobQueue(client *redis.Client, logger *slog.Logger) *JobQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobQueue{
		client:   client,
		maxTries: defaultMaxTries,
		logger:   logger.With("component", "job_queue"),
		now:      time.Now,
	}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}) (*Job, error) {
	return q.EnqueueAt(ctx, queue, jobType, payload, q.now())
}

func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) (*Job, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	now := q.now().UTC()
	job := &Job{
		ID:        id.String(),
		Type:      jobType,
		Queue:     queue,
		Payload:   payload,
		MaxTries:  q.maxTries,
		CreatedAt: now,
		ProcessAt: processAt.UTC(),
	}

	if job.ProcessAt.After(now) {
		return job, q.schedule(ctx, job)
	}
	return job, q.push(ctx, job)
}

func (q *JobQueue) push(ctx context.Context, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.RPush(ctx, queueKey(job.Queue), jobData).Err()
}

func (q *JobQueue) schedule(ctx context.Context, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.ZAdd(ctx, scheduledKey, redis.Z{
		Score:  float64(job.ProcessAt.UnixMilli()),
		Member: string(jobData),
	}).Err()
}

func (q *JobQueue) bury(ctx context.Context, job *Job, jobErr error) error {
	deadJob := DeadJob{
		Job:      job,
		Error:    jobErr.Error(),
		FailedAt: q.now().UTC(),
	}

	deadJobData, err := json.Marshal(deadJob)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}
	return q.client.RPush(ctx, deadKey, deadJobData).Err()
}

// PromoteDue moves scheduled jobs whose time has come onto their queues and
// reports how many it moved. Concurrent callers never promote a job twice.
func (q *JobQueue) PromoteDue(ctx context.Context) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().UnixMilli(), 10),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read scheduled jobs: %w", err)
	}

	promoted := 0
	for _, member := range due {
		removed, err := q.client.ZRem(ctx, scheduledKey, member).Result()
		if err != nil {
			return promoted, fmt.Errorf("failed to claim scheduled job: %w", err)
		}
		if removed == 0 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			return promoted, fmt.Errorf("failed to unmarshal scheduled job: %w", err)
		}
		if err := q.client.RPush(ctx, queueKey(job.Queue), member).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// Every enqueues a job of jobType immediately and then once per interval
// until ctx is done.
func (q *JobQueue) Every(ctx context.Context, interval time.Duration, queue string, jobType JobType, payload map[string]interface{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := q.Enqueue(ctx, queue, jobType, payload); err != nil && ctx.Err() == nil {
			q.logger.Warn("failed to enqueue periodic job", "type", jobType, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	return q.client.LLen(ctx, queueKey(queue)).Result()
}

func (q *JobQueue) ScheduledSize(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, scheduledKey).Result()
}

func (q *JobQueue) DeadSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, deadKey).Result()
}

// DeadJobs returns up to limit jobs from the dead queue, oldest first.
func (q *JobQueue) DeadJobs(ctx context.Context, limit int64) ([]DeadJob, error) {
	raw, err := q.client.LRange(ctx, deadKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]DeadJob, 0, len(raw))
	for _, item := range raw {
		var dead DeadJob
		if err := json.Unmarshal([]byte(item), &dead); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dead job: %w", err)
		}
		jobs = append(jobs, dead)
	}
	return jobs, nil
}

// Stats reports queue depths for the given queues.
func (q *JobQueue) Stats(queues []string) map[string]interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats := map[string]interface{}{}
	for _, queue := range queues {
		size, err := q.GetQueueSize(ctx, queue)
		if err != nil {
			stats["error"] = err.Error()
			return stats
		}
		stats[queue] = size
	}
	if scheduled, err := q.ScheduledSize(ctx); err == nil {
		stats["scheduled"] = scheduled
	}
	if dead, err := q.DeadSize(ctx); err == nil {
		stats["dead"] = dead
	}
	return stats
}
