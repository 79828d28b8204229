// Package session tracks the client's authentication state as reported by
// an auth provider and fans transitions out to subscribers.
package session

import (
	"github.com/gofrs/uuid"
)

type State int

const (
	// Resolving is the state before the first provider read completes.
	Resolving State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Session is a point-in-time view of the authentication state. Identity is
// only meaningful when State is Authenticated.
type Session struct {
	State    State
	Identity Identity
}

func ResolvingSession() Session {
	return Session{State: Resolving}
}

func UnauthenticatedSession() Session {
	return Session{State: Unauthenticated}
}

func AuthenticatedSession(identity Identity) Session {
	return Session{State: Authenticated, Identity: identity}
}

// FromIdentity maps a provider answer onto a session; nil means signed out.
func FromIdentity(identity *Identity) Session {
	if identity == nil {
		return UnauthenticatedSession()
	}
	return AuthenticatedSession(*identity)
}

func (s Session) IsAuthenticated() bool {
	return s.State == Authenticated
}

func (s Session) IsResolving() bool {
	return s.State == Resolving
}

// AuthError carries the provider's message verbatim so it can be shown to
// the user as is.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError wraps err unless it already is an *AuthError.
func NewAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	if authErr, ok := err.(*AuthError); ok {
		return authErr
	}
	return &AuthError{Message: err.Error(), Err: err}
}
