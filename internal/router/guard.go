package router

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
)

// SessionVerifier answers whether the visitor has a session the backend still accepts.
// *store.SessionStore implements it.
type SessionVerifier interface {
	VerifySession(ctx context.Context) bool
}

type Outcome int

const (
	Allowed Outcome = iota
	Redirected
)

func (o Outcome) String() string {
	if o == Redirected {
		return "redirected"
	}
	return "allowed"
}

// Decision is the result of one guard check. Location is set when redirected.
type Decision struct {
	Outcome  Outcome
	Route    Route
	Location string
}

// Guard decides whether a navigation may proceed.
//
// It checks the session on every navigation to a page with access rules and
// never caches the answer; public pages are allowed without a backend call.
type Guard struct {
	logger *slog.Logger
}

func NewGuard(logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guard{logger: logger}
}

// Check evaluates a navigation to target, a request URI such as "/predictions?tab=past".
func (g *Guard) Check(ctx context.Context, sessions SessionVerifier, target string) Decision {
	path := target
	if u, err := url.Parse(target); err == nil && u.Path != "" {
		path = u.Path
	}
	route := Lookup(path)

	if !route.RequiresAuth && !route.GuestOnly {
		return Decision{Outcome: Allowed, Route: route}
	}

	authenticated := sessions.VerifySession(ctx)

	switch {
	case route.RequiresAuth && !authenticated:
		loc := LoginRedirect(target)
		g.logger.Debug("guard redirect", slog.String("route", route.Name), slog.String("location", loc))
		return Decision{Outcome: Redirected, Route: route, Location: loc}
	case route.GuestOnly && authenticated:
		g.logger.Debug("guard redirect", slog.String("route", route.Name), slog.String("location", "/"))
		return Decision{Outcome: Redirected, Route: route, Location: PathOf(NameHome)}
	}
	return Decision{Outcome: Allowed, Route: route}
}

// LoginRedirect is the login page URL carrying original as the return hint.
func LoginRedirect(original string) string {
	return PathOf(NameLogin) + "?" + url.Values{"redirect": {original}}.Encode()
}

// SafeRedirect returns hint when it is a local absolute path, otherwise "/".
// It keeps the login form from bouncing users to another host.
func SafeRedirect(hint string) string {
	if hint == "" || !strings.HasPrefix(hint, "/") || strings.HasPrefix(hint, "//") || strings.Contains(hint, `\`) {
		return "/"
	}
	u, err := url.Parse(hint)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return hint
}
