package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"task-navigator/internal/config"

	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypeTokenCleanup    JobType = "token_cleanup"
	JobTypeCacheInvalidate JobType = "cache_invalidate"
)

const (
	QueueDefault     = "default"
	QueueMaintenance = "maintenance"
)

const maxRetryDelay = time.Hour

var ErrNoHandler = errors.New("no handler registered for job type")

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Queue     string                 `json:"queue"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type DeadJob struct {
	Job      *Job      `json:"original_job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type Worker struct {
	client   *redis.Client
	queue    *JobQueue
	handlers map[JobType]JobHandler
	keys     []string
	config   WorkerConfig
	logger   *slog.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient    *redis.Client
	Concurrency    int
	PollInterval   time.Duration
	Queues         []string
	JobTimeout     time.Duration
	RetryBaseDelay time.Duration
	Logger         *slog.Logger
}

// WorkerConfigFromConfig maps the WORKER_* settings onto a worker that
// shares client with the cache.
func WorkerConfigFromConfig(cfg *config.Config, client *redis.Client, logger *slog.Logger) WorkerConfig {
	return WorkerConfig{
		RedisClient:  client,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		Queues:       cfg.Worker.Queues,
		Logger:       logger,
	}
}

func NewWorker(config WorkerConfig) *Worker {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if len(config.Queues) == 0 {
		config.Queues = []string{QueueDefault, QueueMaintenance}
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	keys := make([]string, len(config.Queues))
	for i, queue := range config.Queues {
		keys[i] = queueKey(queue)
	}

	return &Worker{
		client:   config.RedisClient,
		queue:    NewJobQueue(config.RedisClient, config.Logger),
		handlers: make(map[JobType]JobHandler),
		keys:     keys,
		config:   config,
		logger:   config.Logger.With("component", "worker"),
	}
}

// Queue returns a producer sharing the worker's connection.
func (w *Worker) Queue() *JobQueue {
	return w.queue
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches the consumers and the scheduler. They run until ctx is
// done; Wait blocks until they have all returned.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting worker", "concurrency", w.config.Concurrency, "queues", w.config.Queues)

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx)
	}

	w.wg.Add(1)
	go w.schedulerLoop(ctx)
}

func (w *Worker) Wait() {
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) workerLoop(ctx context.Context) {
	defer w.wg.Done()

	for ctx.Err() == nil {
		if _, err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("error processing job", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *Worker) schedulerLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.queue.PromoteDue(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("failed to promote scheduled jobs", "error", err)
			} else if n > 0 {
				w.logger.Debug("promoted scheduled jobs", "count", n)
			}
		}
	}
}

// ProcessNext waits up to the poll interval for one job and runs it. It
// reports whether a job was taken off a queue.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	result, err := w.client.BLPop(ctx, w.config.PollInterval, w.keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return false, fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return true, fmt.Errorf("failed to unmarshal job from %s: %w", result[0], err)
	}

	if job.ProcessAt.After(w.queue.now()) {
		return true, w.queue.schedule(ctx, &job)
	}

	return true, w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	log := w.logger.With("job_id", job.ID, "type", job.Type)

	if !exists {
		log.Error("no handler for job")
		return w.queue.bury(ctx, job, fmt.Errorf("%w: %s", ErrNoHandler, job.Type))
	}

	log.Debug("processing job", "attempt", job.Attempts+1)

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	err := handler(jobCtx, job)
	if err == nil {
		log.Debug("job completed")
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries {
		delay := w.retryDelay(job.Attempts)
		log.Warn("job failed, retrying", "attempt", job.Attempts, "max_tries", job.MaxTries, "delay", delay, "error", err)
		job.ProcessAt = w.queue.now().Add(delay).UTC()
		return w.queue.schedule(ctx, job)
	}

	log.Error("job failed permanently", "attempts", job.Attempts, "error", err)
	return w.queue.bury(ctx, job, err)
}

// retryDelay doubles the base delay for every attempt already made.
func (w *Worker) retryDelay(attempts int) time.Duration {
	delay := w.config.RetryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
