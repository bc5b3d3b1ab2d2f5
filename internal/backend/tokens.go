package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/model"
)

// authUser is the user object as the auth service serialises it.
type authUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u authUser) model() model.User {
	return model.User{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.UserMetadata.Username,
		AvatarURL: u.UserMetadata.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// sessionResponse is returned by the token and (auto-confirmed) signup endpoints.
type sessionResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         authUser `json:"user"`
}

// session converts the wire response into a Session.
//
// Expiry comes from expires_at, then expires_in, then the access token's own exp claim.
func (r sessionResponse) session(now time.Time) (*Session, error) {
	if r.AccessToken == "" {
		return nil, errors.New("backend: session response has no access token")
	}

	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
	}
	if tok.TokenType == "" {
		tok.TokenType = "bearer"
	}

	claims, claimsErr := accessClaims(r.AccessToken)
	switch {
	case r.ExpiresAt > 0:
		tok.Expiry = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		tok.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	case claimsErr == nil && claims.ExpiresAt != nil:
		tok.Expiry = claims.ExpiresAt.Time
	}

	user := r.User.model()
	if user.ID == "" && claimsErr == nil {
		user.ID = claims.Subject
	}
	if user.ID == "" {
		return nil, errors.New("backend: session response has no user id")
	}

	return &Session{Token: tok, User: user}, nil
}

// accessClaims reads the registered claims of an access token without verifying
// its signature. The handle is not the token's audience; the service verifies it.
func accessClaims(accessToken string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("backend: reading access token claims: %w", err)
	}
	return claims, nil
}

// refreshSource renews an expired access token with the refresh-token grant.
// It is wrapped in oauth2.ReuseTokenSource so renewal only happens once per expiry.
type refreshSource struct {
	c            *Client
	refreshToken string
}

func (s *refreshSource) Token() (*oauth2.Token, error) {
	if s.refreshToken == "" {
		return nil, apperror.Auth(http.StatusUnauthorized, "session expired")
	}

	sess, err := s.c.exchange(context.Background(), "refresh_token", map[string]string{
		"refresh_token": s.refreshToken,
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Status >= 400 && appErr.Status < 500 {
			// The service no longer honours this refresh token.
			s.c.logger.Info("session refresh rejected; signing out", slog.String("reason", appErr.Message))
			s.c.setSession(EventSignedOut, nil)
		}
		return nil, err
	}

	s.c.setSession(EventTokenRefreshed, sess)
	return sess.Token, nil
}

// exchange posts to the token endpoint with the given grant and returns the session.
func (c *Client) exchange(ctx context.Context, grant string, body map[string]string) (*Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {grant}}, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)

	var resp sessionResponse
	if err := c.send(req, &resp); err != nil {
		return nil, asAuthError("token "+grant, err)
	}
	sess, err := resp.session(c.now())
	if err != nil {
		return nil, asAuthError("token "+grant, err)
	}
	return sess, nil
}

// authorize sets the Authorization header: the session's bearer token when signed in
// (renewing it first if expired), otherwise the public key.
func (c *Client) authorize(req *http.Request) error {
	c.mu.Lock()
	src := c.source
	c.mu.Unlock()

	if src == nil {
		req.Header.Set("Authorization", "Bearer "+c.key)
		return nil
	}

	tok, err := src.Token()
	if err != nil {
		return err
	}
	tok.SetAuthHeader(req)
	return nil
}
