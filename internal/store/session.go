package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/scorecast/internal/backend"
	"github.com/sakif/scorecast/internal/model"
)

// SessionStore tracks who is signed in.
//
// CurrentUser is overwritten wholesale whenever the backend reports an auth
// transition; it is never merged.
type SessionStore struct {
	activity

	backend AuthBackend
	logger  *slog.Logger

	mu          sync.RWMutex
	currentUser *model.User
	sub         *backend.Subscription
}

func NewSessionStore(b AuthBackend, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SessionStore{backend: b, logger: logger}
}

// Initialize adopts the backend's current session and subscribes to every
// later auth transition. Calling it again is a no-op until Close.
func (s *SessionStore) Initialize() {
	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.setUser(userOf(s.backend.Session()))

	sub := s.backend.OnSessionChange(func(ev backend.Event, sess *backend.Session) {
		s.setUser(userOf(sess))
		s.logger.Debug("session changed", slog.String("event", string(ev)), slog.Bool("authenticated", sess != nil))
	})

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}

// Close drops the session subscription.
func (s *SessionStore) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	sub.Unsubscribe()
}

// Login signs in. On failure CurrentUser is left as it was.
func (s *SessionStore) Login(ctx context.Context, email, password string) error {
	s.start()
	defer s.finish()

	user, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		s.fail(err)
		return err
	}
	s.setUser(user)
	return nil
}

// Register creates an account. CurrentUser is set only when the backend
// signed the new account in. With email confirmation pending it keeps
// whatever the handle's session says, which may be an earlier sign-in.
func (s *SessionStore) Register(ctx context.Context, email, password string) error {
	s.start()
	defer s.finish()

	user, err := s.backend.SignUp(ctx, email, password)
	if err != nil {
		s.fail(err)
		return err
	}
	if sess := s.backend.Session(); sess != nil && user != nil && sess.User.ID == user.ID {
		s.setUser(user)
	}
	return nil
}

// Logout signs out. On failure CurrentUser is left as it was.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.start()
	defer s.finish()

	if err := s.backend.SignOut(ctx); err != nil {
		s.fail(err)
		return err
	}
	s.setUser(nil)
	return nil
}

// ResetPassword asks the backend to email a reset link.
func (s *SessionStore) ResetPassword(ctx context.Context, email string) error {
	s.start()
	defer s.finish()

	if err := s.backend.RequestPasswordReset(ctx, email); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

// VerifySession reports whether the backend still accepts the current session.
// Without a local session it answers false without a network call. The answer
// is never cached.
func (s *SessionStore) VerifySession(ctx context.Context) bool {
	if s.backend.Session() == nil {
		return false
	}
	if _, err := s.backend.GetUser(ctx); err != nil {
		s.logger.Debug("session verification failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *SessionStore) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentUser == nil {
		return nil
	}
	u := *s.currentUser
	return &u
}

func (s *SessionStore) IsAuthenticated() bool {
	return s.CurrentUser() != nil
}

// UserEmail is the signed-in user's email, or "".
func (s *SessionStore) UserEmail() string {
	if u := s.CurrentUser(); u != nil {
		return u.Email
	}
	return ""
}

func (s *SessionStore) setUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.currentUser = nil
		return
	}
	cp := *u
	s.currentUser = &cp
}

func userOf(sess *backend.Session) *model.User {
	if sess == nil {
		return nil
	}
	u := sess.User
	return &u
}
