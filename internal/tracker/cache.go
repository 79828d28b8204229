package tracker

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
)

// Cache mirrors the remote task list. A failed load keeps the last good
// list. Loads are not sequenced: when two overlap, whichever response
// arrives last is kept.
type Cache struct {
	store Store

	mu     sync.Mutex
	tasks  []Task
	loaded bool
	stale  bool
}

func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// Load fetches the list, newest first. On failure it returns the previous
// list along with a *DataError.
func (c *Cache) Load(ctx context.Context) ([]Task, error) {
	tasks, err := c.store.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		return c.copyLocked(), &DataError{Op: "load", Err: err}
	}

	c.tasks = append([]Task(nil), tasks...)
	c.loaded = true
	c.stale = false
	return c.copyLocked(), nil
}

// Tasks returns the cached list, loading first when it was never loaded or
// has been invalidated.
func (c *Cache) Tasks(ctx context.Context) ([]Task, error) {
	c.mu.Lock()
	fresh := c.loaded && !c.stale
	c.mu.Unlock()

	if fresh {
		return c.Snapshot(), nil
	}
	return c.Load(ctx)
}

// Invalidate marks the whole list stale.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = true
}

// Stale reports whether the next Tasks call will go to the store.
func (c *Cache) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.loaded || c.stale
}

// Snapshot returns the cached list without fetching.
func (c *Cache) Snapshot() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

func (c *Cache) Lookup(id uuid.UUID) (Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, task := range c.tasks {
		if task.ID == id {
			return task, true
		}
	}
	return Task{}, false
}

// Clear drops everything, for sign out or a change of user.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = nil
	c.loaded = false
	c.stale = false
}

func (c *Cache) copyLocked() []Task {
	return append([]Task{}, c.tasks...)
}
