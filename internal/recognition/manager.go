package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/geoquiz/internal/clock"
	"github.com/MrWong99/geoquiz/internal/observe"
)

var _ EventSink = (*Manager)(nil)

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics records restarts and errors on met.
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Manager) {
		m.metrics = met
	}
}

// WithRestartDelay waits d on clk before re-arming an ended recognizer.
// The default restarts immediately.
func WithRestartDelay(d time.Duration, clk clock.Clock) Option {
	return func(m *Manager) {
		m.restartDelay = d
		m.clk = clk
	}
}

// Manager drives a [Recognizer] through Idle, Listening, Restarting and
// Stopped.
type Manager struct {
	rec     Recognizer
	handler Handler
	logger  *slog.Logger
	metrics *observe.Metrics

	restartDelay time.Duration
	clk          clock.Clock
	pending      clock.Timer

	ctx   context.Context
	state State
}

// NewManager creates a Manager. rec may be nil when the client has no speech
// recognition; every Start then reports [ErrUnsupported].
func NewManager(rec Recognizer, h Handler, opts ...Option) *Manager {
	m := &Manager{
		rec:     rec,
		handler: h,
		logger:  slog.Default(),
		clk:     clock.Real{},
		ctx:     context.Background(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current state.
func (m *Manager) State() State { return m.state }

// Start begins listening. It is idempotent while listening or restarting.
func (m *Manager) Start(ctx context.Context) error {
	if m.rec == nil {
		m.record(ErrUnsupported)
		m.fail(ErrUnsupported)
		return ErrUnsupported
	}
	if m.state == Listening || m.state == Restarting {
		return nil
	}
	m.ctx = ctx
	return m.arm()
}

// arm starts the recognizer and settles the resulting state.
func (m *Manager) arm() error {
	err := m.rec.Start(m.ctx)
	switch {
	case err == nil, errors.Is(err, ErrAlreadyActive):
		wasActive := m.state == Restarting
		m.state = Listening
		if !wasActive {
			m.handler.ListeningChanged(true)
		}
		return nil
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrUnsupported):
		m.halt()
		m.fail(err)
		return err
	default:
		m.logger.Warn("recognition: start failed", "err", err)
		m.record(err)
		m.halt()
		return fmt.Errorf("recognition: start: %w", err)
	}
}

// OnResult forwards a transcript while listening. Results that arrive in any
// other state belong to a session the manager already left.
func (m *Manager) OnResult(text string, isFinal bool) {
	if m.state != Listening {
		return
	}
	m.handler.HandleTranscript(text, isFinal)
}

// OnEnd re-arms the recognizer if the handler still wants to listen, and
// otherwise stops.
func (m *Manager) OnEnd() {
	if m.state != Listening {
		return
	}
	if !m.handler.KeepListening() {
		m.halt()
		return
	}

	m.state = Restarting
	if m.metrics != nil {
		m.metrics.RecognizerRestarts.Add(m.ctx, 1)
	}
	if m.restartDelay <= 0 {
		_ = m.arm()
		return
	}
	m.pending = m.clk.AfterFunc(m.restartDelay, func() {
		m.pending = nil
		if m.state != Restarting {
			return
		}
		if !m.handler.KeepListening() {
			m.halt()
			return
		}
		_ = m.arm()
	})
}

// OnError handles an asynchronous recognizer error. Permission and support
// failures end listening; anything else is left to the restart on end.
func (m *Manager) OnError(err error) {
	m.record(err)
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrUnsupported) {
		if m.state == Listening || m.state == Restarting {
			_ = m.rec.Stop()
		}
		m.halt()
		m.fail(err)
		return
	}
	m.logger.Debug("recognition: transient error", "err", err, "state", m.state.String())
}

// Stop ends listening. The recognizer is stopped if it was running.
func (m *Manager) Stop() error {
	active := m.state == Listening || m.state == Restarting
	m.halt()
	if !active || m.rec == nil {
		return nil
	}
	if err := m.rec.Stop(); err != nil {
		return fmt.Errorf("recognition: stop: %w", err)
	}
	return nil
}

// halt moves to Stopped, cancels a pending restart and clears the indicator
// if it was lit.
func (m *Manager) halt() {
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	wasActive := m.state == Listening || m.state == Restarting
	m.state = Stopped
	if wasActive {
		m.handler.ListeningChanged(false)
	}
}

func (m *Manager) fail(err error) {
	m.handler.Failure(err)
}

func (m *Manager) record(err error) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordRecognizerError(m.ctx, errorKind(err))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	default:
		return "transient"
	}
}
