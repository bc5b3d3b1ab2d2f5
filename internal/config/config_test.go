package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/scorecast/internal/apperror"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for key := range clientDefaults {
		t.Setenv(envName(key), "")
		os.Unsetenv(envName(key))
	}
	for key := range devBackendDefaults {
		t.Setenv(envName(key), "")
		os.Unsetenv(envName(key))
	}
}

func envName(key string) string {
	return strings.ToUpper(key)
}

func writeFile(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName+".yaml"), []byte(body), 0o600))
}

// =========================================================================
// CLIENT CONFIG
// =========================================================================

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, FormatTint, cfg.LogFormat)
	assert.Equal(t, "pt-BR", cfg.DefaultLocale)
	assert.Equal(t, 15*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 30*time.Minute, cfg.ClientIdleTimeout)
	assert.False(t, cfg.CookieSecure)
	assert.Empty(t, cfg.SupabaseURL)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("PORT", "9090")
	t.Setenv("BACKEND_TIMEOUT", "3s")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, "anon", cfg.SupabaseAnonKey)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.BackendTimeout)
	assert.True(t, cfg.CookieSecure)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "supabase_url: http://localhost:54321\nport: 7000\ndefault_locale: en-US\n")
	t.Setenv("PORT", "7001")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:54321", cfg.SupabaseURL)
	assert.Equal(t, "en-US", cfg.DefaultLocale)
	assert.Equal(t, 7001, cfg.Port, "environment overrides the file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"port out of range", "PORT", "70000", "port"},
		{"bad level", "LOG_LEVEL", "loud", "log_level"},
		{"bad format", "LOG_FORMAT", "xml", "log_format"},
		{"zero idle timeout", "CLIENT_IDLE_TIMEOUT", "0s", "client_idle_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(t.TempDir())

			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrConfiguration))
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "port: [unclosed\n")

	_, err := Load(dir)
	assert.Error(t, err)
}

// =========================================================================
// DEV BACKEND CONFIG
// =========================================================================

func TestLoadDevBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEVBACKEND_JWT_SECRET", "a-very-long-development-secret")
	t.Setenv("DEVBACKEND_ANON_KEY", "anon")
	t.Setenv("DEVBACKEND_SERVICE_KEY", "service")

	cfg, err := LoadDevBackend(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 54321, cfg.Port)
	assert.Equal(t, "data/devbackend.db", cfg.DBPath)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.False(t, cfg.RequireConfirmation)
}

func TestLoadDevBackend_RequiresKeys(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"no secret", map[string]string{"DEVBACKEND_ANON_KEY": "a", "DEVBACKEND_SERVICE_KEY": "s"}, "devbackend_jwt_secret"},
		{"no anon key", map[string]string{"DEVBACKEND_JWT_SECRET": "x", "DEVBACKEND_SERVICE_KEY": "s"}, "devbackend_anon_key"},
		{"same keys", map[string]string{"DEVBACKEND_JWT_SECRET": "x", "DEVBACKEND_ANON_KEY": "k", "DEVBACKEND_SERVICE_KEY": "k"}, "devbackend_service_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadDevBackend(t.TempDir())

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

// =========================================================================
// LOGGER
// =========================================================================

func TestNewLogger(t *testing.T) {
	for _, format := range []string{FormatText, FormatJSON, FormatTint} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(&buf, "debug", format)
			require.NoError(t, err)

			logger.Debug("hello", "k", "v")
			assert.Contains(t, buf.String(), "hello")
		})
	}
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", FormatJSON)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
