package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/geoquiz/internal/clock"
	"github.com/MrWong99/geoquiz/internal/config"
	"github.com/MrWong99/geoquiz/internal/game"
	"github.com/MrWong99/geoquiz/internal/grading"
	"github.com/MrWong99/geoquiz/internal/observe"
	"github.com/MrWong99/geoquiz/internal/web"
)

var (
	// ErrShuttingDown is returned by Open once Shutdown has begun.
	ErrShuttingDown = errors.New("app: shutting down")
	// ErrSessionNotFound is returned by Stop for an unknown session ID.
	ErrSessionNotFound = errors.New("app: session not found")
)

// SessionInfo holds metadata about an open game session.
type SessionInfo struct {
	SessionID string
	SetID     string
	SetName   string
	// Player is the authenticated user, empty for anonymous players.
	Player    string
	StartedAt time.Time
}

// SessionManager opens game sessions and tracks them until they end. It
// implements [web.Games]. All exported methods are safe for concurrent use.
type SessionManager struct {
	metrics *observe.Metrics
	logger  *slog.Logger
	clock   clock.Clock

	mu          sync.Mutex
	game        config.GameConfig
	recognition config.RecognitionConfig
	sessions    map[string]*managedSession
	closed      bool
	wg          sync.WaitGroup
}

type managedSession struct {
	sess *game.Session
	info SessionInfo
}

var _ web.Games = (*SessionManager)(nil)

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Game        config.GameConfig
	Recognition config.RecognitionConfig
	Metrics     *observe.Metrics
	Logger      *slog.Logger
	// Clock drives game timing. Default: [clock.Real].
	Clock clock.Clock
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	sm := &SessionManager{
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		clock:       cfg.Clock,
		game:        cfg.Game,
		recognition: cfg.Recognition,
		sessions:    make(map[string]*managedSession),
	}
	if sm.logger == nil {
		sm.logger = slog.Default()
	}
	if sm.clock == nil {
		sm.clock = clock.Real{}
	}
	return sm
}

// Open starts a game session for req and runs it until ctx is done or the
// session is closed.
func (sm *SessionManager) Open(ctx context.Context, req web.GameRequest) (*game.Session, error) {
	if req.Set == nil {
		return nil, errors.New("app: open session: no set")
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return nil, ErrShuttingDown
	}

	sess := game.NewSession(game.SessionConfig{
		Set:           req.Set,
		Presenter:     req.Presenter,
		Effects:       req.Effects,
		Clock:         sm.clock,
		NewRecognizer: req.NewRecognizer,
		Options:       sm.controllerOptions(),
	})
	info := SessionInfo{
		SessionID: sess.ID,
		SetID:     req.Set.ID,
		SetName:   req.Set.Name,
		Player:    req.Player,
		StartedAt: sm.clock.Now(),
	}
	sm.sessions[sess.ID] = &managedSession{sess: sess, info: info}

	sm.wg.Add(1)
	go func() {
		defer sm.wg.Done()
		err := sess.Run(ctx)
		sm.mu.Lock()
		delete(sm.sessions, sess.ID)
		sm.mu.Unlock()
		sm.logger.Info("session ended",
			"session_id", sess.ID,
			"set_id", info.SetID,
			"duration", sm.clock.Now().Sub(info.StartedAt),
			"err", err,
		)
	}()

	sm.logger.Info("session started",
		"session_id", sess.ID,
		"set_id", info.SetID,
		"set", info.SetName,
		"player", info.Player,
	)
	return sess, nil
}

// controllerOptions builds the game options from the current settings.
// Callers hold sm.mu.
func (sm *SessionManager) controllerOptions() []game.Option {
	gc := sm.game

	judgeOpts := []grading.Option{grading.WithMinLength(gc.MinTranscriptLength)}
	if len(gc.SkipWords) > 0 {
		judgeOpts = append(judgeOpts, grading.WithSkipWords(gc.SkipWords...))
	}
	if gc.PhoneticFallback {
		judgeOpts = append(judgeOpts, grading.WithPhonetic(grading.NewPhoneticMatcher(gc.PhoneticThreshold)))
	}

	opts := []game.Option{
		game.WithJudge(grading.NewJudge(judgeOpts...)),
		game.WithTiming(gc.Timing()),
		game.WithMessages(gc.Messages),
		game.WithMaxSkips(gc.MaxSkipsPerPoint),
		game.WithRestartBackoff(sm.recognition.RestartBackoff),
		game.WithLogger(sm.logger),
	}
	if sm.metrics != nil {
		opts = append(opts, game.WithMetrics(sm.metrics))
	}
	return opts
}

// Apply replaces the game and recognition settings. Sessions opened
// afterwards use them; running games keep theirs.
func (sm *SessionManager) Apply(gc config.GameConfig, rc config.RecognitionConfig) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.game = gc
	sm.recognition = rc
}

// Recognition returns the current recognition settings.
func (sm *SessionManager) Recognition() config.RecognitionConfig {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.recognition
}

// Active returns the open sessions, oldest first.
func (sm *SessionManager) Active() []SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]SessionInfo, 0, len(sm.sessions))
	for _, m := range sm.sessions {
		out = append(out, m.info)
	}
	slices.SortFunc(out, func(a, b SessionInfo) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out
}

// Stop closes one session.
func (sm *SessionManager) Stop(id string) error {
	sm.mu.Lock()
	m, ok := sm.sessions[id]
	sm.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.sess.Close()
	return nil
}

// Shutdown refuses new sessions, closes every open one and waits for their
// loops to finish or ctx to expire.
func (sm *SessionManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	sm.closed = true
	open := make([]*game.Session, 0, len(sm.sessions))
	for _, m := range sm.sessions {
		open = append(open, m.sess)
	}
	sm.mu.Unlock()

	for _, s := range open {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		sm.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		sm.logger.Info("all sessions closed", "count", len(open))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("app: waiting for sessions: %w", ctx.Err())
	}
}
