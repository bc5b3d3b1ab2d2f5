// Package app owns the state of each browser talking to the web client.
//
// LIFECYCLE:
// An App is one backend handle plus the three stores reading through it. The
// Registry creates an App the first time a browser shows up (identified by an
// opaque cookie), hands the same App back on every later request, and closes it
// once the browser has been idle longer than the configured timeout.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/scorecast/internal/backend"
	"github.com/sakif/scorecast/internal/store"
)

// Config describes how every App reaches the backend.
type Config struct {
	BackendURL string
	AnonKey    string

	// IdleTimeout is how long an App may go unused before the sweep closes it.
	IdleTimeout time.Duration

	// SweepInterval is how often idle Apps are looked for. Defaults to IdleTimeout/4.
	SweepInterval time.Duration
}

// App is one browser's backend handle and stores.
type App struct {
	ID          string
	Backend     *backend.Client
	Session     *store.SessionStore
	Matches     *store.MatchStore
	Leaderboard *store.LeaderboardStore
}

// New connects a handle and initializes the session store on it.
// It fails with apperror.ErrConfiguration when the backend settings are missing.
func New(id string, cfg Config, hc *http.Client, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("client", id))

	client, err := backend.Connect(cfg.BackendURL, cfg.AnonKey,
		backend.WithHTTPClient(hc),
		backend.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	a := &App{
		ID:          id,
		Backend:     client,
		Session:     store.NewSessionStore(client, logger),
		Matches:     store.NewMatchStore(client, logger, nil),
		Leaderboard: store.NewLeaderboardStore(client, logger),
	}
	a.Session.Initialize()
	return a, nil
}

// Close releases the session subscription.
func (a *App) Close() {
	a.Session.Close()
}

// UserID is the signed-in user's id, or "".
func (a *App) UserID() string {
	if u := a.Session.CurrentUser(); u != nil {
		return u.ID
	}
	return ""
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying a.
func WithContext(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the App stored by WithContext, or nil.
func FromContext(ctx context.Context) *App {
	a, _ := ctx.Value(contextKey{}).(*App)
	return a
}
