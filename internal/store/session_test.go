package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/backend"
	"github.com/sakif/scorecast/internal/model"
)

func newSessionStore(t *testing.T, fake *fakeAuth) *SessionStore {
	t.Helper()
	s := NewSessionStore(fake, nil)
	s.Initialize()
	t.Cleanup(s.Close)
	return s
}

// =========================================================================
// INITIALIZE
// =========================================================================

func TestSessionStore_InitializeAdoptsExistingSession(t *testing.T) {
	fake := &fakeAuth{session: &backend.Session{User: model.User{ID: "u1", Email: "ana@example.com"}}}
	s := newSessionStore(t, fake)

	require.NotNil(t, s.CurrentUser())
	assert.Equal(t, "u1", s.CurrentUser().ID)
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "ana@example.com", s.UserEmail())
}

func TestSessionStore_InitializeWithoutSession(t *testing.T) {
	s := newSessionStore(t, &fakeAuth{})

	assert.Nil(t, s.CurrentUser())
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.UserEmail())
}

func TestSessionStore_FollowsSessionEvents(t *testing.T) {
	fake := &fakeAuth{}
	s := newSessionStore(t, fake)

	fake.emit(backend.EventSignedIn, &backend.Session{User: model.User{ID: "u1", Email: "a@example.com"}})
	assert.Equal(t, "a@example.com", s.UserEmail())

	// refreshed sessions overwrite the user rather than merging into it
	fake.emit(backend.EventUserUpdated, &backend.Session{User: model.User{ID: "u1", Email: "b@example.com"}})
	assert.Equal(t, "b@example.com", s.UserEmail())
	assert.Empty(t, s.CurrentUser().Username)

	fake.emit(backend.EventSignedOut, nil)
	assert.Nil(t, s.CurrentUser())
}

func TestSessionStore_InitializeTwiceSubscribesOnce(t *testing.T) {
	fake := &fakeAuth{}
	s := newSessionStore(t, fake)
	s.Initialize()

	assert.Len(t, fake.listeners, 1)
}

func TestSessionStore_CurrentUserIsACopy(t *testing.T) {
	fake := &fakeAuth{session: &backend.Session{User: model.User{ID: "u1", Email: "a@example.com"}}}
	s := newSessionStore(t, fake)

	u := s.CurrentUser()
	u.Email = "mutated@example.com"
	assert.Equal(t, "a@example.com", s.UserEmail())
}

// =========================================================================
// LOGIN / REGISTER / LOGOUT
// =========================================================================

func TestSessionStore_Login(t *testing.T) {
	fake := &fakeAuth{signInUser: &model.User{ID: "u1", Email: "ana@example.com"}}
	s := newSessionStore(t, fake)

	require.NoError(t, s.Login(context.Background(), "ana@example.com", "secret1"))

	assert.Equal(t, "u1", s.CurrentUser().ID)
	assert.Empty(t, s.LastError())
	assert.False(t, s.IsLoading())
}

func TestSessionStore_LoginFailureKeepsUser(t *testing.T) {
	fake := &fakeAuth{signInErr: apperror.Auth(400, "Invalid credentials")}
	s := newSessionStore(t, fake)

	err := s.Login(context.Background(), "ana@example.com", "wrong")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrAuth))
	assert.Nil(t, s.CurrentUser())
	assert.Equal(t, "Invalid credentials", s.LastError())
	assert.False(t, s.IsLoading())
}

func TestSessionStore_LoginClearsPreviousError(t *testing.T) {
	fake := &fakeAuth{signInErr: apperror.Auth(400, "Invalid credentials")}
	s := newSessionStore(t, fake)

	require.Error(t, s.Login(context.Background(), "ana@example.com", "wrong"))
	fake.signInErr = nil
	require.NoError(t, s.Login(context.Background(), "ana@example.com", "right1"))

	assert.Empty(t, s.LastError())
}

func TestSessionStore_Register(t *testing.T) {
	tests := []struct {
		name          string
		session       *backend.Session
		authenticated bool
	}{
		{"signed in immediately", &backend.Session{User: model.User{ID: "user-new", Email: "new@example.com"}}, true},
		{"confirmation pending", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAuth{signUpSession: tt.session}
			s := newSessionStore(t, fake)

			require.NoError(t, s.Register(context.Background(), "new@example.com", "secret1"))

			assert.Equal(t, tt.authenticated, s.IsAuthenticated())
			assert.Empty(t, s.LastError())
			assert.False(t, s.IsLoading())
		})
	}
}

func TestSessionStore_RegisterWhileSignedInKeepsSessionUser(t *testing.T) {
	fake := &fakeAuth{
		session:    &backend.Session{User: model.User{ID: "u1", Email: "ana@example.com"}},
		signUpUser: &model.User{ID: "user-new", Email: "new@example.com"},
	}
	s := newSessionStore(t, fake)
	require.Equal(t, "u1", s.CurrentUser().ID)

	require.NoError(t, s.Register(context.Background(), "new@example.com", "secret1"))

	assert.Equal(t, "u1", fake.Session().User.ID)
	require.NotNil(t, s.CurrentUser())
	assert.Equal(t, "u1", s.CurrentUser().ID)
}

func TestSessionStore_RegisterFailure(t *testing.T) {
	fake := &fakeAuth{signUpErr: apperror.Auth(422, "User already registered")}
	s := newSessionStore(t, fake)

	err := s.Register(context.Background(), "dup@example.com", "secret1")

	require.Error(t, err)
	assert.Equal(t, "User already registered", s.LastError())
	assert.Nil(t, s.CurrentUser())
}

func TestSessionStore_Logout(t *testing.T) {
	fake := &fakeAuth{session: &backend.Session{User: model.User{ID: "u1"}}}
	s := newSessionStore(t, fake)

	require.NoError(t, s.Logout(context.Background()))
	assert.Nil(t, s.CurrentUser())
}

func TestSessionStore_LogoutFailureKeepsUser(t *testing.T) {
	fake := &fakeAuth{
		session:    &backend.Session{User: model.User{ID: "u1"}},
		signOutErr: apperror.Auth(0, "network unreachable"),
	}
	s := newSessionStore(t, fake)

	require.Error(t, s.Logout(context.Background()))
	assert.Equal(t, "u1", s.CurrentUser().ID)
	assert.Equal(t, "network unreachable", s.LastError())
}

// =========================================================================
// RESET PASSWORD
// =========================================================================

func TestSessionStore_ResetPassword(t *testing.T) {
	fake := &fakeAuth{}
	s := newSessionStore(t, fake)

	require.NoError(t, s.ResetPassword(context.Background(), "ana@example.com"))
	assert.Equal(t, []string{"ana@example.com"}, fake.resetEmails)
}

func TestSessionStore_ResetPasswordFailureLeavesUser(t *testing.T) {
	fake := &fakeAuth{
		session:  &backend.Session{User: model.User{ID: "u1"}},
		resetErr: apperror.Auth(429, "For security purposes, you can only request this once every 60 seconds"),
	}
	s := newSessionStore(t, fake)

	require.Error(t, s.ResetPassword(context.Background(), "ana@example.com"))
	assert.Equal(t, "u1", s.CurrentUser().ID)
	assert.Contains(t, s.LastError(), "once every 60 seconds")
}

// =========================================================================
// VERIFY SESSION
// =========================================================================

func TestSessionStore_VerifySession(t *testing.T) {
	t.Run("no session skips the network", func(t *testing.T) {
		fake := &fakeAuth{}
		s := newSessionStore(t, fake)

		assert.False(t, s.VerifySession(context.Background()))
		assert.Zero(t, fake.getUserCalls)
	})

	t.Run("accepted session", func(t *testing.T) {
		fake := &fakeAuth{session: &backend.Session{User: model.User{ID: "u1"}}}
		s := newSessionStore(t, fake)

		assert.True(t, s.VerifySession(context.Background()))
		assert.True(t, s.VerifySession(context.Background()))
		assert.Equal(t, 2, fake.getUserCalls, "answer must not be cached")
	})

	t.Run("rejected session", func(t *testing.T) {
		fake := &fakeAuth{
			session:    &backend.Session{User: model.User{ID: "u1"}},
			getUserErr: apperror.Auth(401, "invalid JWT"),
		}
		s := newSessionStore(t, fake)

		assert.False(t, s.VerifySession(context.Background()))
		assert.Empty(t, s.LastError())
	})
}

func TestSessionStore_CloseAllowsReinitialize(t *testing.T) {
	fake := &fakeAuth{}
	s := NewSessionStore(fake, nil)
	s.Initialize()
	s.Close()
	s.Close()

	// re-initializing after Close subscribes again
	s.Initialize()
	defer s.Close()
	assert.Len(t, fake.listeners, 2)
}
