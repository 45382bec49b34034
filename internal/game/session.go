package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/geoquiz/internal/clock"
	"github.com/MrWong99/geoquiz/internal/pointset"
	"github.com/MrWong99/geoquiz/internal/recognition"
)

// ErrSessionClosed is returned when posting to a session whose loop ended.
var ErrSessionClosed = errors.New("game: session closed")

// RecognizerFactory builds the speech capability of a session. The
// recognizer must deliver its events to sink, which is safe to call from any
// goroutine.
type RecognizerFactory func(sink recognition.EventSink) recognition.Recognizer

// SessionConfig describes a [Session].
type SessionConfig struct {
	Set       *pointset.PointSet
	Presenter Presenter
	Effects   Effects

	// Clock drives round timing and delays. Its timers fire inside the
	// session loop. Default: [clock.Real].
	Clock clock.Clock

	// NewRecognizer may be nil when the client cannot recognise speech.
	NewRecognizer RecognizerFactory

	// Options configure the controller. A [WithClock] among them is
	// overridden by Clock.
	Options []Option
}

// Session serialises everything that touches one [Controller] through a
// single goroutine.
type Session struct {
	ID string

	ctrl   *Controller
	events chan func()
	done   chan struct{}
	once   sync.Once
}

// NewSession creates a session. Call [Session.Run] to start its loop.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		ID:     uuid.NewString(),
		events: make(chan func(), 64),
		done:   make(chan struct{}),
	}
	base := cfg.Clock
	if base == nil {
		base = clock.Real{}
	}

	opts := append([]Option{}, cfg.Options...)
	opts = append(opts, WithClock(&loopClock{base: base, post: s.post}))
	if cfg.NewRecognizer != nil {
		opts = append(opts, WithRecognizer(cfg.NewRecognizer(&loopSink{s: s})))
	}
	s.ctrl = NewController(cfg.Set, cfg.Presenter, cfg.Effects, opts...)
	return s
}

// Run processes events until ctx is cancelled or [Session.Close] is called.
// On return the game is exited.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()
	defer s.ctrl.Exit()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case fn := <-s.events:
			fn()
		}
	}
}

// Close stops the loop. It is safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// post queues fn without waiting for it to run.
func (s *Session) post(fn func()) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

// Do runs fn on the loop and waits for it to finish.
func (s *Session) Do(ctx context.Context, fn func(*Controller)) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn(s.ctrl)
	}
	select {
	case s.events <- wrapped:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loopSink posts recognizer events into the session loop.
type loopSink struct{ s *Session }

func (l *loopSink) OnResult(text string, isFinal bool) {
	l.s.post(func() { l.s.ctrl.Recognition().OnResult(text, isFinal) })
}

func (l *loopSink) OnEnd() {
	l.s.post(func() { l.s.ctrl.Recognition().OnEnd() })
}

func (l *loopSink) OnError(err error) {
	l.s.post(func() { l.s.ctrl.Recognition().OnError(err) })
}

// loopClock delivers timer callbacks through the session loop.
type loopClock struct {
	base clock.Clock
	post func(func())
}

func (c *loopClock) Now() time.Time { return c.base.Now() }

func (c *loopClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return c.base.AfterFunc(d, func() { c.post(f) })
}
