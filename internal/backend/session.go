package backend

import (
	"golang.org/x/oauth2"

	"github.com/sakif/scorecast/internal/model"
)

// Event names an auth-state transition delivered to session listeners.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Session is proof of the current user's authentication.
type Session struct {
	Token *oauth2.Token
	User  model.User
}

// Valid reports whether the session has an unexpired access token.
func (s *Session) Valid() bool {
	return s != nil && s.Token != nil && s.Token.Valid()
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Token != nil {
		tok := *s.Token
		out.Token = &tok
	}
	return &out
}

type listener struct {
	id uint64
	fn func(Event, *Session)
}

// Subscription is returned by OnSessionChange. Call Unsubscribe at teardown.
type Subscription struct {
	c  *Client
	id uint64
}

// Unsubscribe stops further notifications. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.c == nil {
		return
	}
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	for i, l := range s.c.listeners {
		if l.id == s.id {
			s.c.listeners = append(s.c.listeners[:i], s.c.listeners[i+1:]...)
			break
		}
	}
}

// Session returns a copy of the current local session, or nil when signed out.
// It does not contact the service.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// OnSessionChange registers fn to be called after every auth transition with the
// new session (nil after sign-out).
//
// Listeners run synchronously in registration order on the goroutine that caused
// the transition, after the handle has updated its own state. No handle lock is held
// while they run, so a listener may call back into the Client.
func (c *Client) OnSessionChange(fn func(Event, *Session)) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.listeners = append(c.listeners, listener{id: c.nextID, fn: fn})
	return &Subscription{c: c, id: c.nextID}
}

// setSession installs s (nil clears) and notifies listeners with ev.
func (c *Client) setSession(ev Event, s *Session) {
	c.mu.Lock()
	c.session = s
	c.source = nil
	if s != nil && s.Token != nil {
		c.source = oauth2.ReuseTokenSource(s.Token, &refreshSource{c: c, refreshToken: s.Token.RefreshToken})
	}
	snapshot := make([]listener, len(c.listeners))
	copy(snapshot, c.listeners)
	c.mu.Unlock()

	for _, l := range snapshot {
		l.fn(ev, s.clone())
	}
}
