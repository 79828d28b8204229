package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"task-navigator/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	scanBatchSize = 100
	// evictionChannel carries l1 evictions between nodes sharing this Redis.
	evictionChannel = "evictions"
)

type RedisCache struct {
	client  *redis.Client
	prefix  string
	breaker *Breaker
	metrics *CacheMetrics
	logger  *slog.Logger
}

type CacheConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
	Breaker      *BreakerConfig
	Logger       *slog.Logger
}

func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "tasknav:",
	}
}

func CacheConfigFromConfig(cfg *config.Config, logger *slog.Logger) *CacheConfig {
	cc := DefaultCacheConfig()
	cc.Addr = cfg.GetRedisAddr()
	cc.Password = cfg.Redis.Password
	cc.DB = cfg.Redis.DB
	cc.PoolSize = cfg.Redis.PoolSize
	cc.MinIdleConns = cfg.Redis.MinIdleConns
	cc.MaxRetries = cfg.Redis.MaxRetries
	cc.DialTimeout = cfg.Redis.DialTimeout
	cc.ReadTimeout = cfg.Redis.ReadTimeout
	cc.WriteTimeout = cfg.Redis.WriteTimeout
	cc.Logger = logger
	return cc
}

func NewRedisCache(config *CacheConfig) *RedisCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	breakerConfig := DefaultBreakerConfig()
	if config.Breaker != nil {
		copied := *config.Breaker
		breakerConfig = &copied
	}
	breakerConfig.Ignore = func(err error) bool { return errors.Is(err, redis.Nil) }
	if breakerConfig.Logger == nil {
		breakerConfig.Logger = logger
	}

	return &RedisCache{
		client:  rdb,
		prefix:  config.KeyPrefix,
		breaker: NewBreaker(breakerConfig),
		metrics: NewCacheMetrics(),
		logger:  logger.With("component", "redis_cache"),
	}
}

// Client exposes the underlying connection so the job queue can share it.
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

func (r *RedisCache) key(k string) string {
	return r.prefix + k
}

// do runs fn through the breaker. A miss is a successful round trip and
// does not count against it.
func (r *RedisCache) do(fn func() error) error {
	err := r.breaker.Do(fn)
	switch {
	case err == nil, errors.Is(err, redis.Nil):
		return err
	case errors.Is(err, ErrBreakerOpen):
		r.metrics.RecordError()
		return ErrCacheDown
	}
	r.metrics.RecordError()
	return err
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := r.do(func() error { return r.client.Set(ctx, r.key(key), data, expiration).Err() }); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	r.metrics.RecordSet()
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var data []byte
	err := r.do(func() error {
		var err error
		data, err = r.client.Get(ctx, r.key(key)).Bytes()
		return err
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.metrics.RecordMiss()
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		r.metrics.RecordError()
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	r.metrics.RecordHit()
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := r.do(func() error { return r.client.Del(ctx, r.key(key)).Err() }); err != nil {
		return err
	}
	r.metrics.RecordDelete()
	return nil
}

// DeletePattern removes every key matching the glob pattern. Keys are
// walked with SCAN so large keyspaces do not block the server, and deleted
// only once the walk is done since deleting under an open cursor can make
// it skip keys.
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var deleted int
	err := r.do(func() error {
		var keys []string
		iter := r.client.Scan(ctx, 0, r.key(pattern), scanBatchSize).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}

		for start := 0; start < len(keys); start += scanBatchSize {
			end := min(start+scanBatchSize, len(keys))
			if err := r.client.Del(ctx, keys[start:end]...).Err(); err != nil {
				return err
			}
			deleted += end - start
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete keys for pattern %s: %w", pattern, err)
	}

	r.logger.Debug("deleted keys by pattern", "pattern", pattern, "count", deleted)
	return nil
}

// PublishEviction asks every node subscribed through SubscribeEvictions to
// drop keys matching pattern from its process-local cache.
func (r *RedisCache) PublishEviction(ctx context.Context, pattern string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.do(func() error { return r.client.Publish(ctx, r.key(evictionChannel), pattern).Err() })
}

// SubscribeEvictions returns once the subscription is live. The channel
// yields published patterns until stop is called.
func (r *RedisCache) SubscribeEvictions(ctx context.Context) (patterns <-chan string, stop func() error, err error) {
	sub := r.client.Subscribe(ctx, r.key(evictionChannel))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to evictions: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			out <- msg.Payload
		}
	}()
	return out, sub.Close, nil
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var result int64
	err := r.do(func() error {
		var err error
		result, err = r.client.Exists(ctx, r.key(key)).Result()
		return err
	})
	if err != nil {
		return false, err
	}

	return result > 0, nil
}

func (r *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Stats() map[string]interface{} {
	poolStats := r.client.PoolStats()
	m := r.metrics.Snapshot()

	return map[string]interface{}{
		"hits":            m.Hits,
		"misses":          m.Misses,
		"errors":          m.Errors,
		"sets":            m.Sets,
		"deletes":         m.Deletes,
		"hit_rate":        r.metrics.HitRate(),
		"circuit_breaker": r.breaker.Stats(),
		"pool_hits":       poolStats.Hits,
		"pool_misses":     poolStats.Misses,
		"pool_timeouts":   poolStats.Timeouts,
		"pool_total":      poolStats.TotalConns,
		"pool_idle":       poolStats.IdleConns,
		"pool_stale":      poolStats.StaleConns,
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
