// Package auth holds the credential primitives of the dev backend: signed access
// tokens, password hashing, and the middleware that works out who is calling.
//
// ACCESS TOKENS:
// The auth endpoints hand out short-lived HS256 JWTs. The table endpoints accept
// them as "Authorization: Bearer <jwt>" and read the caller's user id from "sub".
// The web client never verifies these tokens itself; it only reads "exp" to know
// when to refresh.
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"sub":"<user uuid>","email":"a@b.c","role":"authenticated","exp":...}
//
// Refresh tokens are opaque strings stored server-side, not JWTs, so sign-out can
// revoke them.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the "iss" claim of every access token.
const Issuer = "scorecast-devbackend"

// RoleAuthenticated is the "role" claim of user access tokens.
const RoleAuthenticated = "authenticated"

// DefaultAccessTokenTTL matches the hosted service's default of one hour.
const DefaultAccessTokenTTL = time.Hour

// ErrTokenExpired is returned by Validate for a well-signed but expired token.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and verifies access tokens with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. ttl <= 0 means DefaultAccessTokenTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Claims is the access token payload.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TTL is the lifetime given to tokens from Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Generate signs an access token for the user and returns it with its expiry.
func (s *TokenService) Generate(userID, email string) (string, time.Time, error) {
	return s.GenerateWithDuration(userID, email, s.ttl)
}

// GenerateWithDuration is Generate with an explicit lifetime. A negative d yields
// an already-expired token, which tests use to drive the refresh path.
func (s *TokenService) GenerateWithDuration(userID, email string, d time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(d)

	c := Claims{
		Email: email,
		Role:  RoleAuthenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{RoleAuthenticated},
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, exp, nil
}

// Validate verifies signature, issuer, and expiry and returns the claims.
//
// Only HS256 is accepted, so a token claiming "alg":"none" is rejected before
// the key is ever consulted.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}
	return c, nil
}
