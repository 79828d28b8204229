package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"task-navigator/internal/app"
	"task-navigator/internal/config"
	"task-navigator/internal/notify"
	"task-navigator/internal/remote"
	"task-navigator/internal/tracker"

	"github.com/gofrs/uuid"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// client is a started App talking to the configured backend.
type client struct {
	app *app.App
	out io.Writer
}

func newClient(cmd *cobra.Command) (*client, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr(), slog.LevelWarn)

	sessionPath := cfg.Client.SessionPath
	if sessionPath == "" {
		if sessionPath, err = remote.DefaultSessionPath(); err != nil {
			return nil, fmt.Errorf("failed to locate session file: %w", err)
		}
	}

	httpClient := &http.Client{Timeout: cfg.Client.Timeout}
	provider := remote.NewAuthProvider(remote.ProviderConfig{
		BaseURL:     cfg.Client.APIURL,
		SessionPath: sessionPath,
		HTTPClient:  httpClient,
		Logger:      logger,
	})
	store := remote.NewTaskStore(cfg.Client.APIURL, provider, httpClient)
	notifier := notify.Multi{notify.NewPrinter(cmd.ErrOrStderr()), notify.NewLogNotifier(logger)}

	a := app.New(provider, store, notifier, logger)
	if err := a.Start(cmd.Context()); err != nil {
		logger.Debug("session could not be restored", "error", err)
	}
	return &client{app: a, out: cmd.OutOrStdout()}, nil
}

func (c *client) Close() {
	c.app.Close()
}

// requireSession fails unless someone is signed in.
func (c *client) requireSession() error {
	if !c.app.Session().IsAuthenticated() {
		return errors.New("not signed in, run 'tasknav login' first")
	}
	return nil
}

// readPassword takes the password from the flag, then TASKNAV_PASSWORD,
// then the first line of stdin.
func readPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("TASKNAV_PASSWORD"); env != "" {
		return env, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseDue accepts a date, a date and time, or RFC 3339, in local time
// unless a zone is given.
func parseDue(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	due, err := cast.ToTimeInDefaultLocationE(value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q: %w", value, err)
	}
	return due, nil
}

// findTask resolves a full ID or a unique ID prefix against tasks.
func findTask(tasks []tracker.Task, ref string) (tracker.Task, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if id, err := uuid.FromString(ref); err == nil {
		for _, task := range tasks {
			if task.ID == id {
				return task, nil
			}
		}
		return tracker.Task{}, fmt.Errorf("no task with id %s", ref)
	}

	var matches []tracker.Task
	for _, task := range tasks {
		if strings.HasPrefix(task.ID.String(), ref) {
			matches = append(matches, task)
		}
	}
	switch len(matches) {
	case 0:
		return tracker.Task{}, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return tracker.Task{}, fmt.Errorf("%q matches %d tasks, use more of the id", ref, len(matches))
	}
}

func loadTasks(ctx context.Context, c *client) ([]tracker.Task, error) {
	return c.app.Tasks().Tasks(ctx)
}
