package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Unsubscribe cancels a subscription. Calling it more than once is safe.
type Unsubscribe func()

type subscription struct {
	fn     func(Session)
	active atomic.Bool
}

// Store mirrors the provider's session. It never changes the session on
// its own: every transition comes from the provider and is delivered to
// subscribers one at a time in the order it arrived.
type Store struct {
	provider Provider
	logger   *slog.Logger

	mu          sync.Mutex
	current     Session
	subs        []*subscription
	pending     []Session
	dispatching bool

	stopProvider func()
}

func NewStore(provider Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		provider: provider,
		logger:   logger.With("component", "session_store"),
		current:  ResolvingSession(),
	}
	s.stopProvider = provider.OnAuthStateChange(s.onProviderEvent)
	return s
}

func (s *Store) onProviderEvent(event Event, identity *Identity) {
	s.logger.Debug("auth state change", "event", event, "authenticated", identity != nil)
	s.apply(FromIdentity(identity))
}

func (s *Store) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Resolve reads the provider's session. The first call moves the store
// out of Resolving; a failed read counts as signed out.
func (s *Store) Resolve(ctx context.Context) (Session, error) {
	identity, err := s.provider.GetSession(ctx)
	if err != nil {
		s.logger.Warn("failed to read session", "error", err)
		s.apply(UnauthenticatedSession())
		return UnauthenticatedSession(), NewAuthError(err)
	}
	next := FromIdentity(identity)
	s.apply(next)
	return next, nil
}

// Subscribe registers fn for every later transition.
func (s *Store) Subscribe(fn func(Session)) Unsubscribe {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, candidate := range s.subs {
				if candidate == sub {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// apply queues next and, unless another call is already delivering,
// drains the queue. Subscribers may call back into the store.
func (s *Store) apply(next Session) {
	s.mu.Lock()
	s.pending = append(s.pending, next)
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true

	for len(s.pending) > 0 {
		session := s.pending[0]
		s.pending = s.pending[1:]
		s.current = session
		subs := append([]*subscription(nil), s.subs...)
		s.mu.Unlock()

		for _, sub := range subs {
			if sub.active.Load() {
				sub.fn(session)
			}
		}

		s.mu.Lock()
	}

	s.dispatching = false
	s.mu.Unlock()
}

func (s *Store) SignIn(ctx context.Context, email, password string) (Identity, error) {
	identity, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return Identity{}, NewAuthError(err)
	}
	if identity == nil {
		return Identity{}, &AuthError{Message: "Sign in returned no user"}
	}
	return *identity, nil
}

func (s *Store) SignUp(ctx context.Context, email, password string) (Identity, error) {
	identity, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return Identity{}, NewAuthError(err)
	}
	if identity == nil {
		return Identity{}, &AuthError{Message: "Sign up returned no user"}
	}
	return *identity, nil
}

func (s *Store) SignOut(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return NewAuthError(err)
	}
	return nil
}

// User asks the provider for the signed in user, bypassing the cached
// session.
func (s *Store) User(ctx context.Context) (*Identity, error) {
	identity, err := s.provider.GetUser(ctx)
	if err != nil {
		return nil, NewAuthError(err)
	}
	return identity, nil
}

// Close detaches the store from the provider.
func (s *Store) Close() {
	if s.stopProvider != nil {
		s.stopProvider()
	}
}
