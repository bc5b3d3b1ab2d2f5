package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sakif/scorecast/internal/backend"
	"github.com/sakif/scorecast/internal/model"
)

// fakeAuth is an in-memory AuthBackend.
type fakeAuth struct {
	mu        sync.Mutex
	session   *backend.Session
	listeners []func(backend.Event, *backend.Session)

	signInUser *model.User
	signInErr  error
	signUpUser *model.User
	signUpErr  error
	// signUpSession is installed by SignUp; nil means confirmation is pending.
	signUpSession *backend.Session
	signOutErr    error
	resetErr      error
	getUserErr    error

	getUserCalls int
	resetEmails  []string
}

func (f *fakeAuth) Session() *backend.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeAuth) OnSessionChange(fn func(backend.Event, *backend.Session)) *backend.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return &backend.Subscription{}
}

func (f *fakeAuth) emit(ev backend.Event, sess *backend.Session) {
	f.mu.Lock()
	f.session = sess
	ls := append([]func(backend.Event, *backend.Session){}, f.listeners...)
	f.mu.Unlock()
	for _, fn := range ls {
		fn(ev, sess)
	}
}

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (*model.User, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	u := f.signInUser
	if u == nil {
		u = &model.User{ID: "user-1", Email: email}
	}
	f.emit(backend.EventSignedIn, &backend.Session{User: *u})
	return u, nil
}

func (f *fakeAuth) SignUp(_ context.Context, email, _ string) (*model.User, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	u := f.signUpUser
	if u == nil {
		u = &model.User{ID: "user-new", Email: email}
	}
	if f.signUpSession != nil {
		f.emit(backend.EventSignedIn, f.signUpSession)
	}
	return u, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.emit(backend.EventSignedOut, nil)
	return nil
}

func (f *fakeAuth) RequestPasswordReset(_ context.Context, email string) error {
	f.mu.Lock()
	f.resetEmails = append(f.resetEmails, email)
	f.mu.Unlock()
	return f.resetErr
}

func (f *fakeAuth) GetUser(context.Context) (*model.User, error) {
	f.mu.Lock()
	f.getUserCalls++
	sess := f.session
	f.mu.Unlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	u := sess.User
	return &u, nil
}

// tableCall records one write made through fakeTables.
type tableCall struct {
	Op     string
	Table  string
	ID     any
	Record map[string]any
}

// fakeTables is a TableBackend whose reads are answered by a per-table hook.
type fakeTables struct {
	mu      sync.Mutex
	query   func(ctx context.Context, table string, q backend.Query) (any, error)
	queries []backend.Query
	writes  []tableCall

	writeErr    error
	writeResult any
}

func (f *fakeTables) Query(ctx context.Context, table string, q backend.Query, dest any) error {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	hook := f.query
	f.mu.Unlock()

	if hook == nil {
		return nil
	}
	v, err := hook(ctx, table, q)
	if err != nil {
		return err
	}
	return fill(dest, v)
}

func (f *fakeTables) Insert(_ context.Context, table string, record any, dest any) error {
	return f.write("insert", table, nil, record, dest)
}

func (f *fakeTables) Update(_ context.Context, table string, id any, patch any, dest any) error {
	return f.write("update", table, id, patch, dest)
}

func (f *fakeTables) write(op, table string, id, record, dest any) error {
	var fields map[string]any
	if err := fill(&fields, record); err != nil {
		return err
	}

	f.mu.Lock()
	f.writes = append(f.writes, tableCall{Op: op, Table: table, ID: id, Record: fields})
	err, result := f.writeErr, f.writeResult
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if result == nil {
		result = record
	}
	return fill(dest, result)
}

func (f *fakeTables) recordedWrites() []tableCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tableCall{}, f.writes...)
}

// fill copies v into dest the way the backend decodes a response body.
func fill(dest, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
