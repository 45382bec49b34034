// Package web exposes geoquiz over HTTP: a JSON API for editing point sets
// and a WebSocket endpoint that plays a game.
//
// Authentication happens in front of this server. The authenticated user
// arrives in the X-Owner-ID and X-Owner-Email headers; requests that change
// a set must carry them.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrWong99/geoquiz/internal/config"
	"github.com/MrWong99/geoquiz/internal/game"
	"github.com/MrWong99/geoquiz/internal/health"
	"github.com/MrWong99/geoquiz/internal/observe"
	"github.com/MrWong99/geoquiz/internal/pointset"
	"github.com/MrWong99/geoquiz/pkg/provider/stt"
)

// Owner identity headers set by the authenticating proxy.
const (
	HeaderOwnerID    = "X-Owner-ID"
	HeaderOwnerEmail = "X-Owner-Email"
)

// maxBodyBytes caps set payloads.
const maxBodyBytes = 1 << 20

// GameRequest describes a game a player opens over a socket.
type GameRequest struct {
	Set       *pointset.PointSet
	Player    string
	Presenter game.Presenter
	Effects   game.Effects

	// NewRecognizer is nil when the player has no way to recognise speech.
	NewRecognizer game.RecognizerFactory
}

// Games opens game sessions. The returned session is already running; it
// ends when the caller closes it or the server shuts down.
type Games interface {
	Open(ctx context.Context, req GameRequest) (*game.Session, error)
}

// Config holds the dependencies of a [Server].
type Config struct {
	Store pointset.Store
	Games Games

	// Health serves /healthz and /readyz when set.
	Health *health.Handler

	// MetricsHandler is mounted at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string
	Metrics        *observe.Metrics

	// AllowedOrigins are extra host patterns accepted for game sockets.
	AllowedOrigins []string

	// STT enables server-side recognition for players that stream audio.
	// Nil leaves recognition to the browser.
	STT stt.Provider

	// Recognition returns the current recognition settings. It is consulted
	// for every new game so reloads take effect.
	Recognition func() config.RecognitionConfig

	Logger *slog.Logger
}

// Server routes HTTP requests.
type Server struct {
	cfg Config
	log *slog.Logger
	mux *http.ServeMux
}

// New validates cfg and registers all routes.
func New(cfg Config) (*Server, error) {
	var errs []error
	if cfg.Store == nil {
		errs = append(errs, errors.New("web: store is required"))
	}
	if cfg.Games == nil {
		errs = append(errs, errors.New("web: games is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Recognition == nil {
		cfg.Recognition = func() config.RecognitionConfig {
			c := config.Config{}
			config.ApplyDefaults(&c)
			return c.Recognition
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{cfg: cfg, log: cfg.Logger, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/sets", s.listSets)
	s.mux.HandleFunc("POST /api/sets", s.createSet)
	s.mux.HandleFunc("GET /api/sets/{id}", s.getSet)
	s.mux.HandleFunc("PUT /api/sets/{id}", s.updateSet)
	s.mux.HandleFunc("DELETE /api/sets/{id}", s.deleteSet)
	s.mux.HandleFunc("GET /api/play/{id}", s.play)

	if s.cfg.Health != nil {
		s.cfg.Health.Register(s.mux)
	}
	if s.cfg.MetricsHandler != nil {
		s.mux.Handle("GET "+s.cfg.MetricsPath, s.cfg.MetricsHandler)
	}
}

// Handler returns the root handler with tracing and request metrics.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.cfg.Metrics)(s.mux)
}

// ── helpers ──────────────────────────────────────────────────────────────────

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// storeError maps store failures to responses. Unknown errors are logged
// and reported as 500 without details.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pointset.ErrNotFound):
		writeError(w, http.StatusNotFound, "set not found")
	case errors.Is(err, pointset.ErrDuplicateID):
		writeError(w, http.StatusConflict, "a set with that id already exists")
	default:
		observe.Logger(r.Context()).Error("store failure", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
	}
}

func ownerOf(r *http.Request) (id, email string) {
	return r.Header.Get(HeaderOwnerID), r.Header.Get(HeaderOwnerEmail)
}
