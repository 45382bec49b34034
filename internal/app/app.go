// Package app wires all geoquiz subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/geoquiz/internal/clock"
	"github.com/MrWong99/geoquiz/internal/config"
	"github.com/MrWong99/geoquiz/internal/health"
	"github.com/MrWong99/geoquiz/internal/observe"
	"github.com/MrWong99/geoquiz/internal/pointset"
	"github.com/MrWong99/geoquiz/internal/web"
	"github.com/MrWong99/geoquiz/pkg/provider/stt"
)

// readHeaderTimeout bounds slow clients before a handler runs.
const readHeaderTimeout = 10 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT stt.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New and torn down in Shutdown.
	telemetry *observe.Telemetry
	metrics   *observe.Metrics
	store     pointset.Store
	health    *health.Handler
	sessions  *SessionManager
	handler   http.Handler
	server    *http.Server
	clock     clock.Clock
	logLevel  *slog.LevelVar

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a point set store instead of creating one from config.
func WithStore(s pointset.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects metrics and skips the OpenTelemetry SDK setup. No
// /metrics endpoint is served.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithClock sets the clock games run on.
func WithClock(c clock.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithLogLevel lets [App.ApplyConfig] change the log level at runtime.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New performs all initialisation synchronously: telemetry, store
// connection and migration, seeding, and HTTP routing.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Telemetry ────────────────────────────────────────────────────
	if err := a.initTelemetry(ctx); err != nil {
		return nil, a.abort(ctx, fmt.Errorf("app: init telemetry: %w", err))
	}

	// ── 2. Point set store ──────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, a.abort(ctx, fmt.Errorf("app: init store: %w", err))
	}

	// ── 3. Seed sets ────────────────────────────────────────────────────
	if len(cfg.Store.SeedFiles) > 0 {
		n, err := pointset.Seed(ctx, a.store, cfg.Store.SeedFiles)
		if err != nil {
			return nil, a.abort(ctx, fmt.Errorf("app: seed sets: %w", err))
		}
		slog.Info("seeding complete", "sets", n)
	}

	// ── 4. Health ───────────────────────────────────────────────────────
	a.health = health.New(health.PingChecker("store", a.store))

	// ── 5. Game sessions ────────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		Game:        cfg.Game,
		Recognition: cfg.Recognition,
		Metrics:     a.metrics,
		Clock:       a.clock,
	})

	// ── 6. HTTP ─────────────────────────────────────────────────────────
	if err := a.initServer(); err != nil {
		return nil, a.abort(ctx, fmt.Errorf("app: init server: %w", err))
	}
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initTelemetry(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}
	t, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: a.cfg.Telemetry.ServiceName})
	if err != nil {
		return err
	}
	a.telemetry = t
	a.closers = append(a.closers, t.Shutdown)

	m, err := observe.NewMetrics(t.MeterProvider)
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

// initStore connects to PostgreSQL when a DSN is configured and falls back
// to an in-memory store otherwise.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		a.store = pointset.Instrument(a.store, a.metrics)
		return nil
	}

	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		slog.Warn("no postgres_dsn configured; point sets live in memory")
		a.store = pointset.Instrument(pointset.NewMemStore(), a.metrics)
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		pool.Close()
		return nil
	})
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	pg := pointset.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	a.store = pointset.Instrument(pg, a.metrics)
	return nil
}

func (a *App) initServer() error {
	wcfg := web.Config{
		Store:          a.store,
		Games:          a.sessions,
		Health:         a.health,
		Metrics:        a.metrics,
		MetricsPath:    a.cfg.Telemetry.MetricsPath,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		STT:            a.providers.STT,
		Recognition:    a.sessions.Recognition,
	}
	if a.telemetry != nil {
		wcfg.MetricsHandler = a.telemetry.MetricsHandler()
	}
	srv, err := web.New(wcfg)
	if err != nil {
		return err
	}
	a.handler = srv.Handler()
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return nil
}

// abort runs the closers registered so far and returns err.
func (a *App) abort(ctx context.Context, err error) error {
	for _, c := range a.closers {
		if cerr := c(ctx); cerr != nil {
			slog.Warn("cleanup after failed start", "err", cerr)
		}
	}
	return err
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Sessions returns the game session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Run serves HTTP on the configured address and blocks until ctx is
// cancelled or the server fails. On cancellation the listener is closed and
// in-flight requests get server.shutdown_timeout to finish.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is [App.Run] on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.health.SetDraining(true)
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ApplyConfig applies a reloaded config. It matches [config.ChangeFunc].
func (a *App) ApplyConfig(_, cfg *config.Config, d config.ConfigDiff) {
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.GameChanged || d.RecognitionChanged {
		a.sessions.Apply(cfg.Game, cfg.Recognition)
		slog.Info("game settings reloaded; new games use them")
	}
}

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		a.health.SetDraining(true)

		if err := a.sessions.Shutdown(ctx); err != nil {
			slog.Warn("game sessions did not close in time", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// SlogLevel maps a config level to its slog equivalent.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
