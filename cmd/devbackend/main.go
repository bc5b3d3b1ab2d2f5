// Package main runs the local backend emulator: the auth and table APIs the
// web client talks to, over a SQLite file.
//
// Point the web client at it with SUPABASE_URL=http://localhost:54321 and
// SUPABASE_ANON_KEY set to the same value as DEVBACKEND_ANON_KEY.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/sakif/scorecast/internal/config"
	"github.com/sakif/scorecast/internal/devbackend"
)

func main() {
	if err := run(); err != nil {
		slog.Error("devbackend stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadDevBackend(".")
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dbDir, err)
	}

	db, err := devbackend.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	backend, err := devbackend.NewServer(db, devbackend.Config{
		AnonKey:             cfg.AnonKey,
		ServiceKey:          cfg.ServiceKey,
		JWTSecret:           cfg.JWTSecret,
		AccessTokenTTL:      cfg.AccessTokenTTL,
		RequireConfirmation: cfg.RequireConfirmation,
	}, logger)
	if err != nil {
		return err
	}

	if cfg.Seed != "" {
		seed, err := devbackend.LoadSeed(cfg.Seed)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = backend.Apply(ctx, seed)
		cancel()
		if err != nil {
			return fmt.Errorf("applying seed: %w", err)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      backend,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("devbackend starting",
			slog.Int("port", cfg.Port),
			slog.String("database", cfg.DBPath),
			slog.Bool("require_confirmation", cfg.RequireConfirmation),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("devbackend stopped gracefully")
	}
	return nil
}
