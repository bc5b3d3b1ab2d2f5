package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "Auth wraps ErrAuth",
			err:       Auth(400, "Invalid login credentials"),
			target:    ErrAuth,
			wantMatch: true,
		},
		{
			name:      "Query wraps ErrQuery",
			err:       Query(409, "duplicate key value"),
			target:    ErrQuery,
			wantMatch: true,
		},
		{
			name:      "Configuration wraps ErrConfiguration",
			err:       Configuration("url", "backend URL is required"),
			target:    ErrConfiguration,
			wantMatch: true,
		},
		{
			name:      "wrapped Auth still matches",
			err:       fmt.Errorf("store: login: %w", Auth(400, "nope")),
			target:    ErrAuth,
			wantMatch: true,
		},
		{
			name:      "Auth does NOT match ErrQuery",
			err:       Auth(400, "nope"),
			target:    ErrQuery,
			wantMatch: false,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("match", "7"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("missing bearer token"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("prediction", "12"),
			wantMessage: "prediction not found with id 12",
		},
		{
			name:        "Conflict message includes resource and id",
			err:         Conflict("prediction", "12"),
			wantMessage: "prediction conflict with id 12",
		},
		{
			name:        "Auth keeps the remote message verbatim",
			err:         Auth(400, "Invalid credentials"),
			wantMessage: "Invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestMessageOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("dial tcp: refused"), want: "dial tcp: refused"},
		{name: "wrapped AppError", err: fmt.Errorf("backend: sign in: %w", Auth(400, "Invalid credentials")), want: "Invalid credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageOf(tt.err); got != tt.want {
				t.Errorf("MessageOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusAndField(t *testing.T) {
	err := Query(403, "permission denied for table predictions")
	if err.Status != 403 {
		t.Errorf("Status = %d, want 403", err.Status)
	}

	cfg := Configuration("key", "backend key is required")
	if cfg.Field != "key" {
		t.Errorf("Field = %q, want %q", cfg.Field, "key")
	}
	if cfg.Unwrap() != ErrConfiguration {
		t.Errorf("Unwrap() = %v, want %v", cfg.Unwrap(), ErrConfiguration)
	}
}
