package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Role is the database role a request runs as.
type Role string

const (
	// RoleAnon is a request carrying only the public key.
	RoleAnon Role = "anon"
	// RoleUser is a request carrying a valid user access token.
	RoleUser Role = RoleAuthenticated
	// RoleService is a request carrying the service key. It bypasses row ownership.
	RoleService Role = "service_role"
)

// Principal is who a request acts as.
type Principal struct {
	Role   Role
	UserID string
	Email  string
}

// Keys are the two static API keys the backend recognises.
type Keys struct {
	Anon    string
	Service string
}

type contextKey string

const principalKey contextKey = "principal"

// Rejection is written when a request fails authentication.
type Rejection struct {
	Status  int
	Code    string
	Message string
}

var (
	errMissingKey   = errors.New("no API key found in request")
	errInvalidKey   = errors.New("Invalid API key")
	errInvalidToken = errors.New("invalid JWT")
)

// Authenticate resolves the caller of every request into a Principal.
//
// The "apikey" header must be one of keys. The bearer token then decides the
// role: the anon key means anon, the service key means service, anything else
// must be a valid access token. Failures are handed to reject, which writes the
// response in whichever error format the mounted API uses.
func Authenticate(keys Keys, tokens *TokenService, reject func(http.ResponseWriter, Rejection)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := resolve(r, keys, tokens)
			if err != nil {
				reject(w, rejectionFor(err))
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the Principal stored by Authenticate.
// Outside an authenticated chain it reports an anonymous caller.
func PrincipalFromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey).(Principal); ok {
		return p
	}
	return Principal{Role: RoleAnon}
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func resolve(r *http.Request, keys Keys, tokens *TokenService) (Principal, error) {
	apiKey := r.Header.Get("apikey")
	switch apiKey {
	case "":
		return Principal{}, errMissingKey
	case keys.Anon, keys.Service:
	default:
		return Principal{}, errInvalidKey
	}

	bearer := BearerToken(r)
	switch {
	case bearer == "" || bearer == keys.Anon:
		return Principal{Role: RoleAnon}, nil
	case bearer == keys.Service:
		return Principal{Role: RoleService}, nil
	}

	claims, err := tokens.Validate(bearer)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Principal{}, err
		}
		return Principal{}, errInvalidToken
	}
	return Principal{Role: RoleUser, UserID: claims.Subject, Email: claims.Email}, nil
}

func rejectionFor(err error) Rejection {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return Rejection{Status: http.StatusUnauthorized, Code: "PGRST301", Message: "JWT expired"}
	case errors.Is(err, errInvalidToken):
		return Rejection{Status: http.StatusUnauthorized, Code: "PGRST301", Message: "invalid JWT"}
	default:
		return Rejection{Status: http.StatusUnauthorized, Code: "invalid_api_key", Message: err.Error()}
	}
}
