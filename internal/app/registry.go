package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/xid"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/backend"
)

type entry struct {
	app      *App
	lastSeen time.Time
}

// Registry maps browser ids to their Apps.
//
// All Apps share one http.Client so connections to the backend are pooled.
type Registry struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	apps map[string]*entry

	scheduler gocron.Scheduler
}

// RegistryOption customises NewRegistry.
type RegistryOption func(*Registry)

// WithClock replaces time.Now for idle tracking.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry validates cfg by connecting once, so a misconfigured backend
// stops the process at startup instead of on the first request.
func NewRegistry(cfg Config, hc *http.Client, logger *slog.Logger, opts ...RegistryOption) (*Registry, error) {
	if _, err := backend.Connect(cfg.BackendURL, cfg.AnonKey); err != nil {
		return nil, err
	}
	if cfg.IdleTimeout <= 0 {
		return nil, apperror.Configuration("client_idle_timeout", "idle timeout must be positive")
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.IdleTimeout / 4
	}
	if hc == nil {
		hc = &http.Client{Timeout: backend.DefaultTimeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &Registry{
		cfg:    cfg,
		http:   hc,
		logger: logger,
		now:    time.Now,
		apps:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewID returns a fresh browser id.
func NewID() string {
	return xid.New().String()
}

// ValidID reports whether id could have come from NewID.
func ValidID(id string) bool {
	_, err := xid.FromString(id)
	return err == nil
}

// Get returns the App for id, creating it on first sight, and marks it used.
func (r *Registry) Get(id string) (*App, error) {
	if !ValidID(id) {
		return nil, apperror.ValidationFailed("client_id", fmt.Sprintf("malformed client id %q", id))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.apps[id]; ok {
		e.lastSeen = r.now()
		return e.app, nil
	}

	a, err := New(id, r.cfg, r.http, r.logger)
	if err != nil {
		return nil, err
	}
	r.apps[id] = &entry{app: a, lastSeen: r.now()}
	r.logger.Debug("client context created", slog.String("client", id), slog.Int("clients", len(r.apps)))
	return a, nil
}

// Len is the number of live Apps.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.apps)
}

// Sweep closes and forgets every App idle for longer than the idle timeout.
// It returns how many were evicted.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	var idle []*App
	for id, e := range r.apps {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.app)
			delete(r.apps, id)
		}
	}
	remaining := len(r.apps)
	r.mu.Unlock()

	for _, a := range idle {
		a.Close()
	}
	if len(idle) > 0 {
		r.logger.Info("idle client contexts evicted", slog.Int("evicted", len(idle)), slog.Int("remaining", remaining))
	}
	return len(idle)
}

// Start schedules Sweep every SweepInterval.
func (r *Registry) Start() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(r.cfg.SweepInterval),
		gocron.NewTask(func() { r.Sweep() }),
		gocron.WithName("evict-idle-clients"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("scheduling idle sweep: %w", err)
	}

	s.Start()
	r.scheduler = s
	r.logger.Debug("idle sweep scheduled", slog.Duration("interval", r.cfg.SweepInterval), slog.Duration("idle_timeout", r.cfg.IdleTimeout))
	return nil
}

// Close stops the sweep and closes every App.
func (r *Registry) Close() error {
	var err error
	if r.scheduler != nil {
		err = r.scheduler.Shutdown()
		r.scheduler = nil
	}

	r.mu.Lock()
	apps := r.apps
	r.apps = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range apps {
		e.app.Close()
	}
	return err
}
