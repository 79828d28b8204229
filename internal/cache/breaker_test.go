package cache

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errDial = errors.New("dial tcp: connection refused")

func fail() error { return errDial }
func pass() error { return nil }

func newTestBreaker(trip, probes int) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	b := NewBreaker(&BreakerConfig{
		Trip:     trip,
		Cooldown: time.Second,
		Probes:   probes,
		Ignore:   func(err error) bool { return errors.Is(err, redis.Nil) },
		Logger:   discardLogger(),
	})
	b.now = clock.Now
	return b, clock
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(2, 1)

	assert.ErrorIs(t, b.Do(fail), errDial)
	assert.Equal(t, BreakerClosed, b.State())

	assert.ErrorIs(t, b.Do(fail), errDial)
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(2, 1)

	_ = b.Do(fail)
	_ = b.Do(pass)
	_ = b.Do(fail)

	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_IgnoredErrorsAreNotFailures(t *testing.T) {
	b, _ := newTestBreaker(1, 1)

	err := b.Do(func() error { return redis.Nil })

	assert.ErrorIs(t, err, redis.Nil)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_ProbesCloseAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(1, 2)
	_ = b.Do(fail)
	require.Equal(t, BreakerOpen, b.State())

	clock.Advance(time.Second)

	require.NoError(t, b.Do(pass))
	assert.Equal(t, BreakerProbing, b.State())

	require.NoError(t, b.Do(pass))
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker(1, 2)
	_ = b.Do(fail)
	clock.Advance(time.Second)

	_ = b.Do(fail)

	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Do(pass), ErrBreakerOpen)

	clock.Advance(time.Second)
	assert.NoError(t, b.Do(pass))
}

func TestBreaker_LimitsProbesInFlight(t *testing.T) {
	b, clock := newTestBreaker(1, 1)
	_ = b.Do(fail)
	clock.Advance(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, b.Do(pass), ErrBreakerOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_Stats(t *testing.T) {
	b, _ := newTestBreaker(1, 1)
	_ = b.Do(fail)
	_ = b.Do(pass)

	stats := b.Stats()
	assert.Equal(t, "open", stats["state"])
	assert.Equal(t, int64(1), stats["trips"])
	assert.Equal(t, int64(1), stats["rejected"])
	assert.Equal(t, "2026-03-01T08:00:00Z", stats["opened_at"])
}

func TestBreaker_ConcurrentUse(t *testing.T) {
	b := NewBreaker(&BreakerConfig{Trip: 5, Cooldown: 100 * time.Millisecond, Probes: 3, Logger: discardLogger()})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = b.Do(func() error {
					if (id+j)%3 == 0 {
						return errDial
					}
					return nil
				})
			}
		}(i)
	}
	wg.Wait()

	err := b.Do(pass)
	if err != nil {
		assert.ErrorIs(t, err, ErrBreakerOpen)
	}
}
