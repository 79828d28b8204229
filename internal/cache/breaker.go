package cache

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrBreakerOpen = errors.New("redis breaker is open")

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "half-open"
	default:
		return "closed"
	}
}

type BreakerConfig struct {
	// Trip is the number of consecutive failures that opens the breaker.
	Trip int
	// Cooldown is how long an open breaker rejects calls before probing.
	Cooldown time.Duration
	// Probes successful calls in a row close a probing breaker. It is also
	// the number of probes allowed in flight.
	Probes int
	// Ignore marks errors that are answers rather than failures.
	Ignore func(error) bool
	Logger *slog.Logger
}

func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{Trip: 5, Cooldown: 30 * time.Second, Probes: 3}
}

// Breaker stops calls to Redis after repeated failures so a dead server
// costs one fast error instead of a dial timeout per request.
type Breaker struct {
	cfg    BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time
	trips     int64
	rejected  int64
}

func NewBreaker(cfg *BreakerConfig) *Breaker {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	c := *cfg
	if c.Trip <= 0 {
		c.Trip = 1
	}
	if c.Probes <= 0 {
		c.Probes = 1
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{cfg: c, logger: logger.With("component", "redis_breaker"), now: time.Now}
}

// Do runs fn unless the breaker is open. Errors matched by Ignore are
// returned but count as successes.
func (b *Breaker) Do(fn func() error) error {
	if !b.admit() {
		return ErrBreakerOpen
	}

	err := fn()
	failed := err != nil && (b.cfg.Ignore == nil || !b.cfg.Ignore(err))
	b.record(failed)
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.moveTo(BreakerProbing)
	}

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerProbing:
		if b.inFlight >= b.cfg.Probes {
			b.rejected++
			return false
		}
		b.inFlight++
		return true
	}
	b.rejected++
	return false
}

func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	probing := b.state == BreakerProbing
	if probing && b.inFlight > 0 {
		b.inFlight--
	}

	if failed {
		b.failures++
		if probing || (b.state == BreakerClosed && b.failures >= b.cfg.Trip) {
			b.moveTo(BreakerOpen)
		}
		return
	}

	if !probing {
		b.failures = 0
		return
	}
	b.successes++
	if b.successes >= b.cfg.Probes {
		b.moveTo(BreakerClosed)
	}
}

// moveTo changes state with b.mu held.
func (b *Breaker) moveTo(next BreakerState) {
	if b.state == next {
		return
	}
	b.logger.Info("breaker state change", "from", b.state.String(), "to", next.String(), "failures", b.failures)

	b.state = next
	b.successes = 0
	b.inFlight = 0
	switch next {
	case BreakerOpen:
		b.openedAt = b.now()
		b.trips++
	case BreakerClosed:
		b.failures = 0
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := map[string]interface{}{
		"state":            b.state.String(),
		"failures":         b.failures,
		"trips":            b.trips,
		"rejected":         b.rejected,
		"cooldown_seconds": b.cfg.Cooldown.Seconds(),
	}
	if !b.openedAt.IsZero() {
		stats["opened_at"] = b.openedAt.UTC().Format(time.RFC3339)
	}
	return stats
}
