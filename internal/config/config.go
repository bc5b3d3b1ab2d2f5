// Package config loads settings for both executables.
//
// SOURCES, LOWEST PRIORITY FIRST:
//  1. Defaults below
//  2. An optional YAML file (scorecast.yaml in the working directory)
//  3. Environment variables, named like the YAML keys in upper case
//     (supabase_url → SUPABASE_URL)
//
// The cmd/ packages load a .env file into the environment before calling Load,
// so a .env entry behaves exactly like an exported variable.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sakif/scorecast/internal/apperror"
)

// FileName is the optional config file looked up in the working directory.
const FileName = "scorecast"

// Config is the web client's configuration.
//
// SupabaseURL and SupabaseAnonKey are not checked here; backend.Connect
// rejects them at startup with apperror.ErrConfiguration.
type Config struct {
	SupabaseURL       string        `mapstructure:"supabase_url"`
	SupabaseAnonKey   string        `mapstructure:"supabase_anon_key"`
	Port              int           `mapstructure:"port"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
	DefaultLocale     string        `mapstructure:"default_locale"`
	BackendTimeout    time.Duration `mapstructure:"backend_timeout"`
	ClientIdleTimeout time.Duration `mapstructure:"client_idle_timeout"`
	CookieSecure      bool          `mapstructure:"cookie_secure"`
}

// DevBackend configures the local backend emulator.
type DevBackend struct {
	Port                int           `mapstructure:"devbackend_port"`
	DBPath              string        `mapstructure:"devbackend_db_path"`
	JWTSecret           string        `mapstructure:"devbackend_jwt_secret"`
	AnonKey             string        `mapstructure:"devbackend_anon_key"`
	ServiceKey          string        `mapstructure:"devbackend_service_key"`
	Seed                string        `mapstructure:"devbackend_seed"`
	AccessTokenTTL      time.Duration `mapstructure:"devbackend_access_token_ttl"`
	RequireConfirmation bool          `mapstructure:"devbackend_require_confirmation"`
	LogLevel            string        `mapstructure:"log_level"`
	LogFormat           string        `mapstructure:"log_format"`
}

var clientDefaults = map[string]any{
	"supabase_url":        "",
	"supabase_anon_key":   "",
	"port":                8080,
	"log_level":           "info",
	"log_format":          FormatTint,
	"default_locale":      "pt-BR",
	"backend_timeout":     15 * time.Second,
	"client_idle_timeout": 30 * time.Minute,
	"cookie_secure":       false,
}

var devBackendDefaults = map[string]any{
	"devbackend_port":                 54321,
	"devbackend_db_path":              "data/devbackend.db",
	"devbackend_jwt_secret":           "",
	"devbackend_anon_key":             "",
	"devbackend_service_key":          "",
	"devbackend_seed":                 "",
	"devbackend_access_token_ttl":     time.Hour,
	"devbackend_require_confirmation": false,
	"log_level":                       "info",
	"log_format":                      FormatTint,
}

// Load reads the web client's configuration. dir is where scorecast.yaml is
// looked up; a missing file is not an error.
func Load(dir string) (*Config, error) {
	v, err := newViper(dir, clientDefaults)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDevBackend reads the emulator's configuration.
func LoadDevBackend(dir string) (*DevBackend, error) {
	v, err := newViper(dir, devBackendDefaults)
	if err != nil {
		return nil, err
	}

	var cfg DevBackend
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper(dir string, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return v, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return apperror.Configuration("port", fmt.Sprintf("invalid PORT %d", c.Port))
	}
	if err := validateLogging(c.LogLevel, c.LogFormat); err != nil {
		return err
	}
	if c.BackendTimeout <= 0 {
		return apperror.Configuration("backend_timeout", "BACKEND_TIMEOUT must be positive")
	}
	if c.ClientIdleTimeout <= 0 {
		return apperror.Configuration("client_idle_timeout", "CLIENT_IDLE_TIMEOUT must be positive")
	}
	return nil
}

func (c *DevBackend) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return apperror.Configuration("devbackend_port", fmt.Sprintf("invalid DEVBACKEND_PORT %d", c.Port))
	}
	if err := validateLogging(c.LogLevel, c.LogFormat); err != nil {
		return err
	}
	switch {
	case c.JWTSecret == "":
		return apperror.Configuration("devbackend_jwt_secret", "DEVBACKEND_JWT_SECRET is required")
	case c.AnonKey == "":
		return apperror.Configuration("devbackend_anon_key", "DEVBACKEND_ANON_KEY is required")
	case c.ServiceKey == "":
		return apperror.Configuration("devbackend_service_key", "DEVBACKEND_SERVICE_KEY is required")
	case c.AnonKey == c.ServiceKey:
		return apperror.Configuration("devbackend_service_key", "DEVBACKEND_SERVICE_KEY must differ from DEVBACKEND_ANON_KEY")
	case c.AccessTokenTTL <= 0:
		return apperror.Configuration("devbackend_access_token_ttl", "DEVBACKEND_ACCESS_TOKEN_TTL must be positive")
	}
	return nil
}
