package devbackend

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/auth"
	"github.com/sakif/scorecast/internal/model"
)

type userMetadata struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// userBody is a user as the auth API serialises it.
type userBody struct {
	ID           string       `json:"id"`
	Aud          string       `json:"aud"`
	Role         string       `json:"role"`
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func newUserBody(u *model.User) userBody {
	return userBody{
		ID:           u.ID,
		Aud:          auth.RoleAuthenticated,
		Role:         auth.RoleAuthenticated,
		Email:        u.Email,
		UserMetadata: userMetadata{Username: u.Username, AvatarURL: u.AvatarURL},
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

type sessionBody struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         userBody `json:"user"`
}

type signUpRequest struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Data     userMetadata `json:"data"`
}

// issueSession mints an access token and a fresh refresh token for u.
func (s *Server) issueSession(r *http.Request, u *model.User) (*sessionBody, error) {
	access, exp, err := s.tokens.Generate(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.db.IssueRefreshToken(r.Context(), u.ID, s.now())
	if err != nil {
		return nil, err
	}
	return &sessionBody{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.tokens.TTL() / time.Second),
		ExpiresAt:    exp.Unix(),
		RefreshToken: refresh,
		User:         newUserBody(u),
	}, nil
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeAuthError(w, http.StatusBadRequest, "validation_failed", "Unable to validate email address: invalid format")
		return
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		s.authFailure(w, r, err)
		return
	}

	u, err := s.db.CreateUser(r.Context(), req.Email, hash, publicUsername(req.Email, req.Data.Username), s.now())
	if err != nil {
		s.authFailure(w, r, err)
		return
	}
	s.logger.Info("user signed up", slog.String("user_id", u.ID), slog.String("email", u.Email))

	if s.cfg.RequireConfirmation {
		writeJSON(w, http.StatusOK, newUserBody(u))
		return
	}

	sess, err := s.issueSession(r, u)
	if err != nil {
		s.authFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	switch grant := r.URL.Query().Get("grant_type"); grant {
	case "password":
		s.passwordGrant(w, r)
	case "refresh_token":
		s.refreshGrant(w, r)
	default:
		writeAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "unsupported_grant_type")
	}
}

func (s *Server) passwordGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}

	acct, err := s.db.userByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		s.authFailure(w, r, err)
		return
	}
	if acct == nil || s.passwords.Verify(acct.PasswordHash, req.Password) != nil {
		writeAuthError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
		return
	}

	sess, err := s.issueSession(r, &acct.User)
	if err != nil {
		s.authFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) refreshGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}

	userID, err := s.db.RotateRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeAuthError(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
			return
		}
		s.authFailure(w, r, err)
		return
	}

	u, err := s.db.UserByID(r.Context(), userID)
	if err != nil {
		s.authFailure(w, r, err)
		return
	}
	sess, err := s.issueSession(r, u)
	if err != nil {
		s.authFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p.Role != auth.RoleUser {
		writeAuthError(w, http.StatusUnauthorized, "no_authorization", "This endpoint requires a Bearer token")
		return
	}

	if err := s.db.RevokeRefreshTokens(r.Context(), p.UserID); err != nil {
		s.authFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeAuthError(w, http.StatusBadRequest, "validation_failed", "Unable to validate email address: invalid format")
		return
	}

	// Unknown addresses get the same answer as known ones.
	if err := s.db.RecordPasswordReset(r.Context(), req.Email, s.now()); err != nil {
		s.authFailure(w, r, err)
		return
	}
	s.logger.Info("password reset requested", slog.String("email", req.Email))
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p.Role != auth.RoleUser {
		writeAuthError(w, http.StatusUnauthorized, "no_authorization", "This endpoint requires a valid Bearer token")
		return
	}

	u, err := s.db.UserByID(r.Context(), p.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeAuthError(w, http.StatusForbidden, "user_not_found", "User from sub claim in JWT does not exist")
			return
		}
		s.authFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserBody(u))
}

// publicUsername is username, or a slug of the email's local part when none was
// given, so the leaderboard never shows an address.
func publicUsername(email, username string) string {
	if username = strings.TrimSpace(username); username != "" {
		return username
	}
	local, _, _ := strings.Cut(email, "@")
	return slug.Make(local)
}
