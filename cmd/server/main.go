// Package main is the entry point for the Scorecast web client.
//
// Configuration comes from scorecast.yaml in the working directory, overridden
// by environment variables (a .env file is loaded first when present). The
// process refuses to start without SUPABASE_URL and SUPABASE_ANON_KEY.
package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/sakif/scorecast/internal/app"
	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/config"
	"github.com/sakif/scorecast/internal/handler"
	"github.com/sakif/scorecast/internal/i18n"
	"github.com/sakif/scorecast/internal/router"
	"github.com/sakif/scorecast/internal/server"
)

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	logger, err := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.Error("invalid logging configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// === 3. TRANSLATIONS ===
	bundle, err := i18n.Load(cfg.DefaultLocale)
	if err != nil {
		logger.Error("failed to load translations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 4. CLIENT REGISTRY ===
	// Fails fast when the backend URL or key is missing.
	registry, err := app.NewRegistry(app.Config{
		BackendURL:  cfg.SupabaseURL,
		AnonKey:     cfg.SupabaseAnonKey,
		IdleTimeout: cfg.ClientIdleTimeout,
	}, &http.Client{Timeout: cfg.BackendTimeout}, logger)
	if err != nil {
		if errors.Is(err, apperror.ErrConfiguration) {
			logger.Error("backend is not configured; set SUPABASE_URL and SUPABASE_ANON_KEY",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Error("failed to create client registry", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}

	// === 5. PAGES ===
	pages, err := handler.New(bundle, router.NewGuard(logger), cfg.CookieSecure, logger)
	if err != nil {
		logger.Error("failed to parse templates", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 6. SERVE ===
	srv := server.New(server.Config{Port: cfg.Port, CookieSecure: cfg.CookieSecure}, registry, pages, logger)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
