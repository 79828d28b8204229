package session

import "context"

type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Provider is the external auth service. Methods returning an identity
// return nil with a nil error when there is no session. Implementations
// report every session change, including those caused by their own
// SignInWithPassword, SignUp and SignOut, through OnAuthStateChange
// listeners in the order the changes happen.
type Provider interface {
	GetSession(ctx context.Context) (*Identity, error)
	GetUser(ctx context.Context) (*Identity, error)
	OnAuthStateChange(listener func(event Event, identity *Identity)) (unsubscribe func())
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
}
