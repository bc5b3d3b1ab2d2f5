// Package store holds the state containers the views read from.
//
// One browser gets one SessionStore, one MatchStore and one LeaderboardStore (see
// package app). Stores never talk HTTP themselves; they call the backend handle
// through the small interfaces below, so tests can swap in fakes.
//
// ERROR POLICY:
// Every failing action records the error's message (LastError) for display.
// Mutating actions (login, register, logout, reset, upsert) also return the error
// so the caller can react; reads (fetches) only record it and keep the stale data.
//
// CONCURRENCY:
// Actions on the same store are neither serialized nor coalesced. Two overlapping
// fetches each replace the state when their own response arrives, so the response
// that completes last wins, even if it was requested first. The mutex only guards
// memory and is never held across a backend call. IsLoading is informational.
package store

import (
	"context"
	"sync"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/backend"
	"github.com/sakif/scorecast/internal/model"
)

// Table names on the backend.
const (
	TableMatches     = "matches"
	TablePredictions = "predictions"
	TableLeaderboard = "leaderboard"
)

// AuthBackend is the part of *backend.Client the SessionStore uses.
type AuthBackend interface {
	Session() *backend.Session
	OnSessionChange(fn func(backend.Event, *backend.Session)) *backend.Subscription
	SignIn(ctx context.Context, email, password string) (*model.User, error)
	SignUp(ctx context.Context, email, password string) (*model.User, error)
	SignOut(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) error
	GetUser(ctx context.Context) (*model.User, error)
}

// TableBackend is the part of *backend.Client the data stores use.
type TableBackend interface {
	Query(ctx context.Context, table string, q backend.Query, dest any) error
	Insert(ctx context.Context, table string, record any, dest any) error
	Update(ctx context.Context, table string, id any, patch any, dest any) error
}

var (
	_ AuthBackend  = (*backend.Client)(nil)
	_ TableBackend = (*backend.Client)(nil)
)

// activity is the loading flag and last error every store exposes.
type activity struct {
	statusMu  sync.RWMutex
	loading   bool
	lastError string
}

// start marks an action in flight and clears the previous error.
func (a *activity) start() {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.loading = true
	a.lastError = ""
}

func (a *activity) finish() {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.loading = false
}

func (a *activity) fail(err error) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.lastError = apperror.MessageOf(err)
}

// IsLoading reports whether an action was started and has not finished yet.
func (a *activity) IsLoading() bool {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.loading
}

// LastError is the message of the most recent failure, or "".
func (a *activity) LastError() string {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.lastError
}
