// Package app wires the session store, route guard and task tracker into
// the state a front end renders from.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"task-navigator/internal/notify"
	"task-navigator/internal/route"
	"task-navigator/internal/session"
	"task-navigator/internal/tracker"

	"github.com/gofrs/uuid"
)

var ErrAuthRequired = errors.New("authentication required")

type App struct {
	provider session.Provider
	sessions *session.Store
	tasks    *tracker.Cache
	pipeline *tracker.Pipeline
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	path        string
	owner       uuid.UUID
	decision    route.Decision
	unsubscribe session.Unsubscribe
}

func New(provider session.Provider, store tracker.Store, notifier notify.Notifier, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}

	sessions := session.NewStore(provider, logger)
	tasks := tracker.NewCache(store)
	return &App{
		provider: provider,
		sessions: sessions,
		tasks:    tasks,
		pipeline: tracker.NewPipeline(store, tasks, sessions, notifier, logger),
		notifier: notifier,
		logger:   logger.With("component", "app"),
		now:      time.Now,
		path:     route.PathEntry,
		decision: route.Decision{Kind: route.Blank},
	}
}

// Start resolves the session and from then on re-runs the guard for the
// current path on every session transition.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.unsubscribe == nil {
		a.unsubscribe = a.sessions.Subscribe(a.onSession)
	}
	a.mu.Unlock()

	if _, err := a.sessions.Resolve(ctx); err != nil {
		a.notifier.Notify(notify.Failure("Error", err.Error()))
		return err
	}
	return nil
}

func (a *App) onSession(current session.Session) {
	a.mu.Lock()
	path := a.path
	// The cached list belongs to whoever loaded it; any change of
	// identity, including signing out, drops it.
	drop := false
	if !current.IsResolving() {
		var owner uuid.UUID
		if current.IsAuthenticated() {
			owner = current.Identity.ID
		}
		drop = owner != a.owner || owner == uuid.Nil
		a.owner = owner
	}
	a.mu.Unlock()

	if drop {
		a.tasks.Clear()
	}

	a.logger.Debug("session changed", "state", current.State, "path", path)
	a.navigate(current, path)
}

// Navigate asks the guard about path and follows a redirect if it gets
// one. The returned decision is the guard's answer for path itself.
func (a *App) Navigate(path string) route.Decision {
	return a.navigate(a.sessions.Current(), path)
}

func (a *App) navigate(current session.Session, path string) route.Decision {
	decision := route.Decide(current, path)

	a.mu.Lock()
	defer a.mu.Unlock()

	switch decision.Kind {
	case route.Redirect:
		a.path = decision.Path
		a.decision = route.Decide(current, decision.Path)
	default:
		a.path = path
		a.decision = decision
	}
	return decision
}

// Decision is what should be on screen now.
func (a *App) Decision() route.Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decision
}

func (a *App) Path() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.path
}

func (a *App) Session() session.Session {
	return a.sessions.Current()
}

func (a *App) Tasks() *tracker.Cache {
	return a.tasks
}

func (a *App) Pipeline() *tracker.Pipeline {
	return a.pipeline
}

// Close drops the session subscription and detaches from the provider.
func (a *App) Close() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	a.sessions.Close()
}
