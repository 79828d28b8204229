package app

import (
	"context"

	"task-navigator/internal/notify"
	"task-navigator/internal/route"
	"task-navigator/internal/session"
)

func (a *App) SignIn(ctx context.Context, email, password string) (session.Identity, error) {
	identity, err := a.sessions.SignIn(ctx, email, password)
	if err != nil {
		a.notifier.Notify(notify.Failure("Error", err.Error()))
		return session.Identity{}, err
	}

	a.notifier.Notify(notify.Success("Welcome back!", "You have been signed in successfully."))
	a.Navigate(route.PathTrack)
	return identity, nil
}

func (a *App) SignUp(ctx context.Context, email, password string) (session.Identity, error) {
	identity, err := a.sessions.SignUp(ctx, email, password)
	if err != nil {
		a.notifier.Notify(notify.Failure("Error", err.Error()))
		return session.Identity{}, err
	}

	a.notifier.Notify(notify.Success("Account created", "Your account has been created successfully."))
	a.Navigate(route.PathTrack)
	return identity, nil
}

func (a *App) SignOut(ctx context.Context) error {
	if err := a.sessions.SignOut(ctx); err != nil {
		a.notifier.Notify(notify.Failure("Error", err.Error()))
		return err
	}

	a.notifier.Notify(notify.Success("Signed out", "You have been signed out successfully."))
	a.Navigate(route.PathAuth)
	return nil
}
