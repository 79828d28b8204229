// Package route decides which view a navigation request shows.
package route

import (
	"fmt"

	"task-navigator/internal/session"
)

const (
	PathEntry    = "/"
	PathTrack    = "/track"
	PathSettings = "/settings"
	PathHelp     = "/help"
	PathAuth     = "/auth"

	// PathHome is where signed in users land.
	PathHome = PathTrack
)

type Kind int

const (
	// Blank withholds every view until the session is known.
	Blank Kind = iota
	Render
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Blank:
		return "blank"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

type Decision struct {
	Kind Kind
	Path string
}

func (d Decision) String() string {
	if d.Kind == Blank {
		return d.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", d.Kind, d.Path)
}

func RequiresAuth(path string) bool {
	switch path {
	case PathTrack, PathSettings, PathHelp:
		return true
	}
	return false
}

// IsPublicEntry reports whether path is only meant for signed out users.
func IsPublicEntry(path string) bool {
	return path == PathEntry || path == PathAuth
}

// Known reports whether path names a view; anything else renders the
// not-found view.
func Known(path string) bool {
	return IsPublicEntry(path) || RequiresAuth(path)
}

// Decide maps the current session and a requested path to a decision. It
// depends on nothing else, so it can be re-run on every transition.
func Decide(current session.Session, path string) Decision {
	switch {
	case current.IsResolving():
		return Decision{Kind: Blank}
	case IsPublicEntry(path) && current.IsAuthenticated():
		return Decision{Kind: Redirect, Path: PathHome}
	case RequiresAuth(path) && !current.IsAuthenticated():
		return Decision{Kind: Redirect, Path: PathAuth}
	default:
		return Decision{Kind: Render, Path: path}
	}
}
