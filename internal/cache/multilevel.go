package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const defaultL1TTL = 5 * time.Minute

// evictionBus is implemented by shared caches that can tell other nodes to
// drop their process-local copies.
type evictionBus interface {
	PublishEviction(ctx context.Context, pattern string) error
	SubscribeEvictions(ctx context.Context) (<-chan string, func() error, error)
}

// MultiLevelCache keeps a process-local copy in front of a shared cache.
// A failing shared cache degrades to a miss on reads so callers fall back
// to the database; writes and deletes still report the failure. Deletes are
// published to other nodes when the shared cache supports it; see Watch.
type MultiLevelCache struct {
	l1     *MemoryCache
	l2     Cache
	l1TTL  time.Duration
	logger *slog.Logger
}

// NewMultiLevelCache builds a cache over l2. A nil l2 gives a memory-only
// cache.
func NewMultiLevelCache(l2 Cache, logger *slog.Logger) *MultiLevelCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiLevelCache{
		l1:     NewMemoryCache(),
		l2:     l2,
		l1TTL:  defaultL1TTL,
		logger: logger.With("component", "multilevel_cache"),
	}
}

func (c *MultiLevelCache) l1Expiry(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < c.l1TTL {
		return ttl
	}
	return c.l1TTL
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.l1Expiry(ttl)); err != nil {
		return err
	}

	if c.l2 != nil {
		return c.l2.Set(ctx, key, value, ttl)
	}

	return nil
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.l1.Get(ctx, key, dest); err == nil {
		return nil
	}

	if c.l2 == nil {
		return ErrCacheMiss
	}

	err := c.l2.Get(ctx, key, dest)
	switch {
	case err == nil:
		if err := c.l1.Set(ctx, key, dest, c.l1TTL); err != nil {
			c.logger.Warn("failed to promote entry to l1", "key", key, "error", err)
		}
		return nil
	case errors.Is(err, ErrCacheMiss):
		return ErrCacheMiss
	default:
		c.logger.Warn("l2 cache read failed, treating as miss", "key", key, "error", err)
		return ErrCacheMiss
	}
}

func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = c.l1.Delete(ctx, key)

	if c.l2 == nil {
		return nil
	}
	err := c.l2.Delete(ctx, key)
	c.publish(ctx, key)
	return err
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	if err := c.l1.DeletePattern(ctx, pattern); err != nil {
		return err
	}

	if c.l2 == nil {
		return nil
	}
	err := c.l2.DeletePattern(ctx, pattern)
	c.publish(ctx, pattern)
	return err
}

func (c *MultiLevelCache) publish(ctx context.Context, pattern string) {
	bus, ok := c.l2.(evictionBus)
	if !ok {
		return
	}
	if err := bus.PublishEviction(ctx, pattern); err != nil {
		c.logger.Warn("failed to publish eviction", "pattern", pattern, "error", err)
	}
}

// EvictLocal drops keys matching pattern from the process-local level only.
func (c *MultiLevelCache) EvictLocal(pattern string) {
	if err := c.l1.DeletePattern(context.Background(), pattern); err != nil {
		c.logger.Warn("ignoring bad eviction pattern", "pattern", pattern, "error", err)
	}
}

// Watch applies evictions published by other nodes to l1 until ctx is done
// or stop is called. It returns once the subscription is live. Without a
// shared cache that carries evictions it does nothing.
func (c *MultiLevelCache) Watch(ctx context.Context) (stop func(), err error) {
	bus, ok := c.l2.(evictionBus)
	if !ok {
		return func() {}, nil
	}

	patterns, unsubscribe, err := bus.SubscribeEvictions(ctx)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for pattern := range patterns {
			c.EvictLocal(pattern)
		}
	}()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			_ = unsubscribe()
			<-done
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()
	return stop, nil
}

func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := c.l1.Exists(ctx, key); ok {
		return true, nil
	}

	if c.l2 != nil {
		return c.l2.Exists(ctx, key)
	}

	return false, nil
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1": c.l1.Stats(),
	}

	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
	}

	return stats
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 != nil {
		return c.l2.Health(ctx)
	}

	return nil
}

func (c *MultiLevelCache) Close() error {
	_ = c.l1.Close()
	if c.l2 != nil {
		return c.l2.Close()
	}

	return nil
}
