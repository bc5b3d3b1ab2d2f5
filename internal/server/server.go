// Package server wires handlers, middleware, and routes, and runs the HTTP server.
//
// ROUTE STRUCTURE:
// GET  /static/*               → embedded stylesheet
// GET  /healthz                → liveness probe (JSON)
// GET  /lang/{locale}          → switch language, back to ?back=
// GET  /                       → home
// GET  /login, /register       → guest-only forms
// GET  /reset-password         → reset form
// GET  /predictions            → signed-in only
// GET  /leaderboard            → ranking
// POST /login, /register, /logout, /reset-password, /predictions
//
// MIDDLEWARE ORDER:
// RequestID, RealIP, Recoverer and the request logger run on everything.
// The client middleware (cookie → App) runs only on page and form routes, so
// static files and health checks never allocate an App. Page GETs then pass
// the navigation guard.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/scorecast/internal/app"
	"github.com/sakif/scorecast/internal/handler"
	"github.com/sakif/scorecast/internal/middleware"
	"github.com/sakif/scorecast/internal/router"
)

// Config holds server configuration.
type Config struct {
	Port         int
	CookieSecure bool
}

// Server is the web client's HTTP server.
//
// The registry is owned by the server: Start runs its idle sweep and closes
// it on shutdown.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	registry *app.Registry
	pages    *handler.Handler
}

// New builds the router.
func New(cfg Config, registry *app.Registry, pages *handler.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		registry: registry,
		pages:    pages,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Handle("/static/*", http.StripPrefix("/static/", handler.Static()))
	s.router.Get("/healthz", s.pages.HandleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.registry.Middleware(s.config.CookieSecure))

		r.Get("/lang/{locale}", s.pages.HandleLocale)

		r.Post("/login", s.pages.HandleLogin)
		r.Post("/register", s.pages.HandleRegister)
		r.Post("/logout", s.pages.HandleLogout)
		r.Post("/reset-password", s.pages.HandleReset)
		r.Post("/predictions", s.pages.HandleSavePrediction)

		r.Group(func(r chi.Router) {
			r.Use(s.pages.Guard)

			r.Get(router.PathOf(router.NameHome), s.pages.HandleHome)
			r.Get(router.PathOf(router.NameLogin), s.pages.HandleLoginPage)
			r.Get(router.PathOf(router.NameRegister), s.pages.HandleRegisterPage)
			r.Get(router.PathOf(router.NameResetPassword), s.pages.HandleResetPage)
			r.Get(router.PathOf(router.NamePredictions), s.pages.HandlePredictions)
			r.Get(router.PathOf(router.NameLeaderboard), s.pages.HandleLeaderboard)
		})

		r.NotFound(s.pages.Guard(http.HandlerFunc(s.pages.HandleNotFound)).ServeHTTP)
	})
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests and
// closes every browser's App.
func (s *Server) Start() error {
	if err := s.registry.Start(); err != nil {
		return fmt.Errorf("starting client sweep: %w", err)
	}
	defer func() {
		if err := s.registry.Close(); err != nil {
			s.logger.Warn("closing client registry", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
