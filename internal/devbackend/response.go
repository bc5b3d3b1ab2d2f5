package devbackend

// ERROR FORMATS:
// The two APIs answer failures in different shapes, and the web client relies on
// both being faithful to the hosted service:
//
//	auth  (/auth/v1): {"code": 400, "error_code": "invalid_credentials", "msg": "Invalid login credentials"}
//	table (/rest/v1): {"code": "23505", "message": "duplicate key ...", "details": null, "hint": null}
//
// Handlers never write either by hand; they go through writeAuthError and writeRestError.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/auth"
)

type authErrorBody struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
}

type restErrorBody struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, authErrorBody{Code: status, ErrorCode: code, Msg: msg})
}

func writeRestError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, restErrorBody{Code: code, Message: msg})
}

func rejectAuth(w http.ResponseWriter, rj auth.Rejection) {
	code := rj.Code
	if code == "PGRST301" {
		code = "bad_jwt"
	}
	writeAuthError(w, rj.Status, code, rj.Message)
}

func rejectRest(w http.ResponseWriter, rj auth.Rejection) {
	writeRestError(w, rj.Status, rj.Code, rj.Message)
}

// restFailure maps an error from the table layer to a table API response.
// Unknown errors are logged and answered with a generic 500.
func (s *Server) restFailure(w http.ResponseWriter, r *http.Request, err error) {
	var re *restError
	if errors.As(err, &re) {
		writeRestError(w, re.status, re.code, re.message)
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			writeRestError(w, http.StatusBadRequest, "23503", appErr.Message)
			return
		case errors.Is(err, apperror.ErrForbidden):
			writeRestError(w, http.StatusForbidden, "42501", appErr.Message)
			return
		case errors.Is(err, apperror.ErrValidation):
			writeRestError(w, http.StatusBadRequest, "P0001", appErr.Message)
			return
		}
	}

	s.logger.Error("table request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeRestError(w, http.StatusInternalServerError, "XX000", "An internal error occurred")
}

// authFailure is restFailure for the auth API.
func (s *Server) authFailure(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrValidation):
			code := "validation_failed"
			if appErr.Field == "password" {
				code = "weak_password"
			}
			writeAuthError(w, http.StatusUnprocessableEntity, code, appErr.Message)
			return
		case errors.Is(err, apperror.ErrConflict):
			writeAuthError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
			return
		case errors.Is(err, apperror.ErrUnauthorized):
			writeAuthError(w, http.StatusUnauthorized, "no_authorization", appErr.Message)
			return
		}
	}

	s.logger.Error("auth request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", "An internal error occurred")
}
