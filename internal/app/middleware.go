package app

import (
	"log/slog"
	"net/http"
)

// ClientCookie names the cookie that identifies a browser.
const ClientCookie = "scorecast_client"

// ClientCookieMaxAge keeps the browser id for a year; the server side state
// expires much sooner.
const ClientCookieMaxAge = 365 * 24 * 60 * 60

// Middleware attaches the browser's *App to the request context.
//
// A browser without a valid id cookie gets a new id, and the cookie is set on
// the response. Handlers read the App with FromContext.
func (r *Registry) Middleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			id := ""
			if c, err := req.Cookie(ClientCookie); err == nil && ValidID(c.Value) {
				id = c.Value
			}
			if id == "" {
				id = NewID()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   ClientCookieMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			a, err := r.Get(id)
			if err != nil {
				r.logger.Error("client context unavailable", slog.String("client", id), slog.String("error", err.Error()))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, req.WithContext(WithContext(req.Context(), a)))
		})
	}
}
