package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/model"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn exchanges an email and password for a session and notifies listeners
// with EventSignedIn.
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	sess, err := c.exchange(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	c.setSession(EventSignedIn, sess)
	user := sess.User
	return &user, nil
}

// SignUp registers a new account.
//
// When the service confirms the account immediately it answers with a session and the
// handle becomes signed in (EventSignedIn). When confirmation is pending only the user
// is returned and the handle stays signed out.
func (c *Client) SignUp(ctx context.Context, email, password string) (*model.User, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/signup", nil, credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)

	var raw json.RawMessage
	if err := c.send(req, &raw); err != nil {
		return nil, asAuthError("signup", err)
	}

	var asSession sessionResponse
	if err := json.Unmarshal(raw, &asSession); err == nil && asSession.AccessToken != "" {
		sess, err := asSession.session(c.now())
		if err != nil {
			return nil, asAuthError("signup", err)
		}
		c.setSession(EventSignedIn, sess)
		user := sess.User
		return &user, nil
	}

	var pending authUser
	if err := json.Unmarshal(raw, &pending); err != nil || pending.ID == "" {
		return nil, apperror.Auth(http.StatusBadGateway, "unexpected signup response")
	}
	user := pending.model()
	return &user, nil
}

// SignOut revokes the session remotely and clears it locally (EventSignedOut).
//
// With no session it succeeds without contacting the service. A token the service
// already considers invalid counts as signed out.
func (c *Client) SignOut(ctx context.Context) error {
	sess := c.Session()
	if sess == nil {
		return nil
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, nil)
	if err != nil {
		return err
	}
	sess.Token.SetAuthHeader(req)

	if err := c.send(req, nil); err != nil {
		var rf *remoteFailure
		if !errors.As(err, &rf) || (rf.status != http.StatusUnauthorized && rf.status != http.StatusForbidden && rf.status != http.StatusNotFound) {
			return asAuthError("logout", err)
		}
	}

	c.setSession(EventSignedOut, nil)
	return nil
}

// RequestPasswordReset asks the service to email a password-reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/recover", nil, map[string]string{"email": email})
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)

	if err := c.send(req, nil); err != nil {
		return asAuthError("recover", err)
	}
	return nil
}

// GetUser asks the service who the current session belongs to. Unlike Session it
// validates the token remotely, renewing it first when expired.
//
// If the profile changed since sign-in the stored session is updated and listeners
// receive EventUserUpdated.
func (c *Client) GetUser(ctx context.Context) (*model.User, error) {
	if c.Session() == nil {
		return nil, apperror.Auth(http.StatusUnauthorized, "Auth session missing!")
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil, nil)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(req); err != nil {
		return nil, asAuthError("user", err)
	}

	var au authUser
	if err := c.send(req, &au); err != nil {
		return nil, asAuthError("user", err)
	}
	user := au.model()

	if cur := c.Session(); cur != nil && cur.User.ID == user.ID && profileChanged(cur.User, user) {
		cur.User = user
		c.setSession(EventUserUpdated, cur)
	}
	return &user, nil
}

func profileChanged(a, b model.User) bool {
	return a.Email != b.Email || a.Username != b.Username || a.AvatarURL != b.AvatarURL
}
