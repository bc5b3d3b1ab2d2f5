package handler

// RESPONSE HELPERS:
// Pages report failures in two places: the HTTP status (so tests and proxies
// see them) and a message on the page (so people see them). statusFor does the
// first, errorText the second.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/scorecast/internal/apperror"
)

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps an error to the status a re-rendered form is sent with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrAuth), errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrQuery):
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Status >= 400 && appErr.Status < 500 {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// errorKey finds the translation for a backend or store message, or "".
func errorKey(msg string) string {
	switch {
	case msg == "":
		return ""
	case msg == "Invalid login credentials":
		return "error.invalidCredentials"
	case msg == "User already registered":
		return "error.userExists"
	case strings.HasPrefix(msg, "Password should be at least"):
		return "error.weakPassword"
	case strings.HasPrefix(msg, "Unable to validate email address"):
		return "error.invalidEmail"
	case strings.HasPrefix(msg, "predictions are closed"):
		return "error.predictionsClosed"
	case strings.Contains(msg, "between 0 and 99"):
		return "error.invalidScore"
	case msg == "JWT expired", msg == "invalid JWT":
		return "error.sessionExpired"
	}
	return ""
}

// errorText is msg in the page's locale when a translation exists, else msg itself.
func (h *Handler) errorText(locale, msg string) string {
	if key := errorKey(msg); key != "" {
		return h.bundle.T(locale, key)
	}
	return msg
}
