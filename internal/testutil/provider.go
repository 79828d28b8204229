package testutil

import (
	"context"
	"sort"
	"sync"

	"task-navigator/internal/session"

	"github.com/gofrs/uuid"
)

type fakeAccount struct {
	identity session.Identity
	password string
}

// FakeProvider is an in-memory auth provider that emits the same events a
// real one would.
type FakeProvider struct {
	mu        sync.Mutex
	accounts  map[string]fakeAccount
	current   *session.Identity
	listeners map[int]func(session.Event, *session.Identity)
	nextID    int

	GetSessionErr error
	SignOutErr    error
	Calls         map[string]int
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		accounts:  make(map[string]fakeAccount),
		listeners: make(map[int]func(session.Event, *session.Identity)),
		Calls:     make(map[string]int),
	}
}

// AddUser registers an account without signing it in.
func (p *FakeProvider) AddUser(email, password string) session.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	identity := session.Identity{ID: uuid.Must(uuid.NewV4()), Email: email}
	p.accounts[email] = fakeAccount{identity: identity, password: password}
	return identity
}

// SetCurrent replaces the stored session without emitting an event, as if
// another tab had changed it.
func (p *FakeProvider) SetCurrent(identity *session.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = identity
}

// Emit delivers event to every listener.
func (p *FakeProvider) Emit(event session.Event, identity *session.Identity) {
	p.mu.Lock()
	ids := make([]int, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]func(session.Event, *session.Identity), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, p.listeners[id])
	}
	p.mu.Unlock()

	for _, listener := range listeners {
		listener(event, identity)
	}
}

func (p *FakeProvider) ListenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *FakeProvider) count(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls[name]++
}

func (p *FakeProvider) GetSession(context.Context) (*session.Identity, error) {
	p.count("GetSession")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.GetSessionErr != nil {
		return nil, p.GetSessionErr
	}
	if p.current == nil {
		return nil, nil
	}
	identity := *p.current
	return &identity, nil
}

func (p *FakeProvider) GetUser(ctx context.Context) (*session.Identity, error) {
	return p.GetSession(ctx)
}

func (p *FakeProvider) OnAuthStateChange(listener func(session.Event, *session.Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *FakeProvider) SignUp(_ context.Context, email, password string) (*session.Identity, error) {
	p.count("SignUp")
	p.mu.Lock()
	if _, exists := p.accounts[email]; exists {
		p.mu.Unlock()
		return nil, &session.AuthError{Message: "User already registered"}
	}
	if len(password) < 6 {
		p.mu.Unlock()
		return nil, &session.AuthError{Message: "Password should be at least 6 characters"}
	}
	identity := session.Identity{ID: uuid.Must(uuid.NewV4()), Email: email}
	p.accounts[email] = fakeAccount{identity: identity, password: password}
	p.current = &identity
	p.mu.Unlock()

	p.Emit(session.EventSignedIn, &identity)
	return &identity, nil
}

func (p *FakeProvider) SignInWithPassword(_ context.Context, email, password string) (*session.Identity, error) {
	p.count("SignInWithPassword")
	p.mu.Lock()
	account, ok := p.accounts[email]
	if !ok || account.password != password {
		p.mu.Unlock()
		return nil, &session.AuthError{Message: "Invalid login credentials"}
	}
	identity := account.identity
	p.current = &identity
	p.mu.Unlock()

	p.Emit(session.EventSignedIn, &identity)
	return &identity, nil
}

func (p *FakeProvider) SignOut(context.Context) error {
	p.count("SignOut")
	p.mu.Lock()
	if p.SignOutErr != nil {
		err := p.SignOutErr
		p.mu.Unlock()
		return err
	}
	p.current = nil
	p.mu.Unlock()

	p.Emit(session.EventSignedOut, nil)
	return nil
}
