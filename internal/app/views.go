package app

import (
	"context"

	"task-navigator/internal/notify"
	"task-navigator/internal/route"
	"task-navigator/internal/tracker"

	"github.com/gofrs/uuid"
)

// TrackView is the task list page: the cached list narrowed by a search
// query, plus the three mutations.
type TrackView struct {
	app   *App
	query string
}

// MountTrack opens the task list. It checks the provider directly rather
// than trusting the cached session, and sends the user to sign in when
// there is none.
func (a *App) MountTrack(ctx context.Context) (*TrackView, error) {
	identity, err := a.provider.GetSession(ctx)
	if err != nil || identity == nil {
		a.notifier.Notify(notify.Failure("Authentication required", "Please sign in to view your tasks"))
		a.Navigate(route.PathAuth)
		return nil, ErrAuthRequired
	}

	view := &TrackView{app: a}
	if _, err := a.tasks.Load(ctx); err != nil {
		a.logger.Warn("failed to load tasks", "error", err)
		return view, err
	}
	return view, nil
}

func (v *TrackView) Search(query string) {
	v.query = query
}

func (v *TrackView) Query() string {
	return v.query
}

// Tasks returns the visible rows, reloading the cache if a mutation made
// it stale.
func (v *TrackView) Tasks(ctx context.Context) ([]tracker.Task, error) {
	tasks, err := v.app.tasks.Tasks(ctx)
	return tracker.Filter(tasks, v.query), err
}

// CanComplete reports whether the complete action is offered for task.
func (v *TrackView) CanComplete(task tracker.Task) bool {
	return !task.IsCompleted()
}

func (v *TrackView) Complete(ctx context.Context, id uuid.UUID) error {
	_, err := v.app.pipeline.Complete(ctx, id)
	return err
}

// Dashboard summarizes the signed in user's tasks.
func (a *App) Dashboard(ctx context.Context) (tracker.Summary, error) {
	tasks, err := a.tasks.Tasks(ctx)
	return tracker.Summarize(tasks, a.now()), err
}

type MenuItem struct {
	Title string
	Path  string
}

var menuItems = []MenuItem{
	{Title: "Dashboard", Path: route.PathEntry},
	{Title: "Track Tasks", Path: route.PathTrack},
	{Title: "Settings", Path: route.PathSettings},
	{Title: "Help", Path: route.PathHelp},
	{Title: "AI Chat", Path: "/chat"},
}

type Sidebar struct {
	Email string
	Items []MenuItem
}

func (a *App) Sidebar() Sidebar {
	sidebar := Sidebar{Items: append([]MenuItem(nil), menuItems...)}
	if current := a.sessions.Current(); current.IsAuthenticated() {
		sidebar.Email = current.Identity.Email
	}
	return sidebar
}
