package devbackend

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/scorecast/internal/auth"
	"github.com/sakif/scorecast/internal/middleware"
)

// Config holds the emulator's keys and token settings.
type Config struct {
	AnonKey    string
	ServiceKey string
	JWTSecret  string

	// AccessTokenTTL is the access token lifetime; zero means one hour.
	AccessTokenTTL time.Duration

	// RequireConfirmation makes sign-up return the user without a session,
	// the way the hosted service behaves when email confirmation is on.
	RequireConfirmation bool

	// BcryptCost overrides the password hashing cost; zero keeps the default.
	BcryptCost int
}

// Server serves the auth and table APIs over one DB.
type Server struct {
	db        *DB
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	keys      auth.Keys
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	router    chi.Router
}

// NewServer validates cfg and builds the router.
func NewServer(db *DB, cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.AnonKey == "" || cfg.ServiceKey == "" {
		return nil, errors.New("devbackend: anon and service keys are required")
	}
	if cfg.AnonKey == cfg.ServiceKey {
		return nil, errors.New("devbackend: anon and service keys must differ")
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	passwords := auth.NewPasswordService()
	if cfg.BcryptCost > 0 {
		passwords = auth.NewPasswordServiceForTest(cfg.BcryptCost)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		db:        db,
		tokens:    tokens,
		passwords: passwords,
		keys:      auth.Keys{Anon: cfg.AnonKey, Service: cfg.ServiceKey},
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "apikey", "Content-Type", "Prefer"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth/v1", func(r chi.Router) {
		r.Use(auth.Authenticate(s.keys, s.tokens, rejectAuth))
		r.Post("/signup", s.handleSignUp)
		r.Post("/token", s.handleToken)
		r.Post("/logout", s.handleLogout)
		r.Post("/recover", s.handleRecover)
		r.Get("/user", s.handleUser)
	})

	r.Route("/rest/v1", func(r chi.Router) {
		r.Use(auth.Authenticate(s.keys, s.tokens, rejectRest))
		r.Get("/{table}", s.handleSelect)
		r.Post("/{table}", s.handleInsert)
		r.Patch("/{table}", s.handleUpdate)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Tokens exposes the signer so tests can mint tokens with custom lifetimes.
func (s *Server) Tokens() *auth.TokenService {
	return s.tokens
}

// DB returns the underlying database.
func (s *Server) DB() *DB {
	return s.db
}
