package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/MrWong99/geoquiz/internal/clock"
	"github.com/MrWong99/geoquiz/internal/grading"
	"github.com/MrWong99/geoquiz/internal/observe"
	"github.com/MrWong99/geoquiz/internal/pointset"
	"github.com/MrWong99/geoquiz/internal/recognition"
	"github.com/MrWong99/geoquiz/internal/round"
)

var _ recognition.Handler = (*Controller)(nil)

// Option configures a [Controller].
type Option func(*Controller)

// WithClock sets the time source for round timing and transition delays.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clk = c }
}

// WithRand sets the random source used to shuffle each game.
func WithRand(r *rand.Rand) Option {
	return func(ctl *Controller) { ctl.rand = r }
}

// WithJudge replaces the default answer judge.
func WithJudge(j *grading.Judge) Option {
	return func(ctl *Controller) { ctl.judge = j }
}

// WithTiming sets the voice mode delays.
func WithTiming(t Timing) Option {
	return func(ctl *Controller) { ctl.timing = t }
}

// WithMessages sets the player-facing texts. Empty fields keep their
// defaults.
func WithMessages(m Messages) Option {
	return func(ctl *Controller) { ctl.msgs = m.Merge(DefaultMessages()) }
}

// WithMaxSkips caps how often one point can be requeued. 0 is unlimited.
func WithMaxSkips(n int) Option {
	return func(ctl *Controller) { ctl.maxSkips = n }
}

// WithRecognizer sets the speech capability used in voice mode. Without one,
// listening reports that speech recognition is unsupported.
func WithRecognizer(r recognition.Recognizer) Option {
	return func(ctl *Controller) { ctl.recognizer = r }
}

// WithRecognitionOptions passes options to the recognition manager.
func WithRecognitionOptions(opts ...recognition.Option) Option {
	return func(ctl *Controller) { ctl.recOpts = append(ctl.recOpts, opts...) }
}

// WithRestartBackoff delays re-arming the recognizer after it ends. The
// delay runs on the controller's clock, so under a [Session] it fires inside
// the loop.
func WithRestartBackoff(d time.Duration) Option {
	return func(ctl *Controller) { ctl.backoff = d }
}

// WithMetrics records game metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// Controller runs games over one point set.
type Controller struct {
	set       *pointset.PointSet
	presenter Presenter
	effects   Effects

	clk        clock.Clock
	rand       *rand.Rand
	judge      *grading.Judge
	timing     Timing
	msgs       Messages
	maxSkips   int
	recognizer recognition.Recognizer
	recOpts    []recognition.Option
	backoff    time.Duration
	metrics    *observe.Metrics
	logger     *slog.Logger

	listener *recognition.Manager

	ctx        context.Context
	mode       Mode
	machine    *round.Machine
	viewActive bool
	counted    bool // game is included in the active games gauge
	micBlocked bool // a fatal recognition failure was shown; wait for the player
	pending    clock.Timer
	generation int
}

// NewController creates a controller for set.
func NewController(set *pointset.PointSet, p Presenter, fx Effects, opts ...Option) *Controller {
	c := &Controller{
		set:       set,
		presenter: p,
		effects:   fx,
		clk:       clock.Real{},
		judge:     grading.NewJudge(),
		timing:    DefaultTiming(),
		msgs:      DefaultMessages(),
		logger:    slog.Default(),
		ctx:       context.Background(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("set_id", set.ID)
	recOpts := append([]recognition.Option{
		recognition.WithLogger(c.logger),
		recognition.WithMetrics(c.metrics),
	}, c.recOpts...)
	if c.backoff > 0 {
		recOpts = append(recOpts, recognition.WithRestartDelay(c.backoff, c.clk))
	}
	c.listener = recognition.NewManager(c.recognizer, c, recOpts...)
	return c
}

// Recognition returns the sink recognizer events must be delivered to.
func (c *Controller) Recognition() recognition.EventSink { return c.listener }

// Mode returns the mode of the current game.
func (c *Controller) Mode() Mode { return c.mode }

// State returns the round state, or AwaitingStart when no game was started.
func (c *Controller) State() round.State {
	if c.machine == nil {
		return round.AwaitingStart
	}
	return c.machine.State()
}

// Score returns the score of the current game.
func (c *Controller) Score() int {
	if c.machine == nil {
		return 0
	}
	return c.machine.Score()
}

// ListeningState returns the recognition state.
func (c *Controller) ListeningState() recognition.State { return c.listener.State() }

// ── Game lifecycle ──────────────────────────────────────────────────────────

// StartGame starts a new game in mode, abandoning any game in progress.
func (c *Controller) StartGame(ctx context.Context, mode Mode) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if len(c.set.Points) == 0 {
		c.presenter.Alert(c.msgs.EmptySetTitle, c.msgs.EmptySetText)
		return ErrEmptySet
	}

	opts := []round.Option{round.WithClock(c.clk), round.WithMaxSkips(c.maxSkips)}
	if c.rand != nil {
		opts = append(opts, round.WithRand(c.rand))
	}
	m, err := round.New(c.set.Points, opts...)
	if err != nil {
		return fmt.Errorf("game: start: %w", err)
	}

	c.abandon()
	c.ctx = ctx
	c.mode = mode
	c.machine = m
	c.viewActive = true
	c.micBlocked = false
	if mode != ModeVoice {
		_ = c.listener.Stop()
	}
	if c.metrics != nil {
		c.metrics.RecordGameStarted(ctx, string(mode))
		c.metrics.ActiveGames.Add(ctx, 1)
	}
	c.counted = true
	c.logger.Info("game started", "mode", mode, "points", len(c.set.Points))

	if err := m.Begin(); err != nil {
		return fmt.Errorf("game: start: %w", err)
	}
	c.enterRound()
	return nil
}

// AdvanceRound moves past a resolved round.
func (c *Controller) AdvanceRound() error {
	if c.machine == nil || !c.viewActive {
		return ErrNoGame
	}
	c.cancelPending()
	if err := c.machine.Advance(); err != nil {
		return fmt.Errorf("game: advance: %w", err)
	}
	c.enterRound()
	return nil
}

// EndGame reports the results of the current game.
func (c *Controller) EndGame() (round.Summary, error) {
	if c.machine == nil || !c.viewActive {
		return round.Summary{}, ErrNoGame
	}
	c.cancelPending()
	s := c.machine.Summary()
	c.viewActive = false
	_ = c.listener.Stop()

	c.presenter.ShowResults(s)
	if s.Score > 0 {
		c.effects.Celebrate(s.Score)
	}
	if c.metrics != nil {
		c.metrics.RecordGameCompleted(c.ctx, string(c.mode))
	}
	c.uncount()
	c.logger.Info("game over", "mode", c.mode, "score", s.Score, "rounds", s.RoundsPlayed)
	return s, nil
}

// Exit leaves the game view. Pending transitions are cancelled and listening
// stops without being re-armed.
func (c *Controller) Exit() {
	c.abandon()
	c.machine = nil
}

// abandon tears down the running game, if any.
func (c *Controller) abandon() {
	c.cancelPending()
	c.viewActive = false
	c.generation++
	_ = c.listener.Stop()
	c.uncount()
}

func (c *Controller) uncount() {
	if !c.counted {
		return
	}
	c.counted = false
	if c.metrics != nil {
		c.metrics.ActiveGames.Add(c.ctx, -1)
	}
}

// enterRound renders the current round, or ends the game when the queue is
// exhausted.
func (c *Controller) enterRound() {
	if c.machine.State() == round.GameOver {
		_, _ = c.EndGame()
		return
	}
	target, _ := c.machine.Current()
	current, total := c.machine.Progress()
	c.presenter.ClearFeedback()

	switch c.mode {
	case ModeFind:
		c.presenter.ShowRound(RoundView{
			Mode:    c.mode,
			Prompt:  target.Name,
			Current: current,
			Total:   total,
			Markers: c.set.Points,
		})
	case ModeVoice:
		c.presenter.ShowRound(RoundView{Mode: c.mode, Current: current, Total: total})
		c.presenter.Highlight(target, c.set.Mode.HighlightZoom())
		if !c.micBlocked {
			_ = c.listener.Start(c.ctx)
		}
	}
}

// ── Find mode ───────────────────────────────────────────────────────────────

// SelectMarker resolves a find round with the clicked point. Clicks after the
// round is resolved are ignored.
func (c *Controller) SelectMarker(p pointset.LocationPoint) error {
	if c.machine == nil || !c.viewActive || c.mode != ModeFind {
		return ErrNoGame
	}
	target, ok := c.machine.Current()
	if !ok {
		return ErrNoGame
	}
	correct := p.SameAs(target)
	outcome := round.Incorrect
	if correct {
		outcome = round.Correct
	}
	if err := c.resolve(outcome); err != nil {
		return err
	}

	if correct {
		c.presenter.Feedback(c.msgs.FindCorrect, ToneCorrect)
		c.presenter.Mark(p, true, "")
	} else {
		c.presenter.Feedback(fill(c.msgs.FindIncorrect, target.Name), ToneWrong)
		c.presenter.Mark(p, false, "")
		c.presenter.Mark(target, true, c.msgs.Reveal)
	}
	c.effects.Outcome(correct)
	c.presenter.AwaitAdvance()
	return nil
}

// ── Voice mode ──────────────────────────────────────────────────────────────

// HandleTranscript grades a recognizer transcript against the current
// target.
//
// Correct answers and skips resolve the round immediately and advance after
// a short pause. A wrong answer only produces feedback, and only for a final
// transcript outside the grace period.
func (c *Controller) HandleTranscript(text string, isFinal bool) {
	if c.machine == nil || !c.viewActive || c.mode != ModeVoice {
		return
	}
	if c.machine.Locked() || c.machine.State() != round.RoundActive {
		return
	}
	target, _ := c.machine.Current()
	g := c.judge.Grade(text, target.Name)
	if c.metrics != nil {
		c.metrics.RecordTranscript(c.ctx, g.Verdict.String())
	}
	c.logger.Debug("transcript graded",
		"heard", g.Heard, "target", target.Name, "verdict", g.Verdict.String(),
		"distance", g.Distance, "final", isFinal)

	switch g.Verdict {
	case grading.VerdictSkip:
		if c.resolve(round.Skipped) != nil {
			return
		}
		c.presenter.Feedback(c.msgs.Skipped, ToneNeutral)
		c.scheduleAdvance(c.timing.SkipDelay)

	case grading.VerdictCorrect:
		if c.resolve(round.Correct) != nil {
			return
		}
		c.presenter.Feedback(fill(c.msgs.VoiceCorrect, g.Heard), ToneCorrect)
		c.effects.Outcome(true)
		c.scheduleAdvance(c.timing.CorrectDelay)

	case grading.VerdictIncorrect:
		if c.machine.Elapsed() < c.timing.GracePeriod || !isFinal {
			return
		}
		c.presenter.Feedback(c.msgs.VoiceIncorrect, ToneWrong)
		c.effects.Outcome(false)
	}
}

// StartListening is the microphone button.
func (c *Controller) StartListening(ctx context.Context) error {
	if c.machine == nil || !c.viewActive || c.mode != ModeVoice {
		return ErrNoGame
	}
	c.micBlocked = false
	return c.listener.Start(ctx)
}

// KeepListening reports whether the recognizer should be re-armed: only
// while a voice game is on screen.
func (c *Controller) KeepListening() bool {
	return c.viewActive && c.mode == ModeVoice && c.machine != nil &&
		c.machine.State() != round.GameOver
}

// ListeningChanged forwards the listening indicator to the presenter.
func (c *Controller) ListeningChanged(active bool) {
	c.presenter.Listening(active)
}

// Failure shows a fatal recognition error. Listening stays off until the
// player presses the microphone button again.
func (c *Controller) Failure(err error) {
	c.micBlocked = true
	switch {
	case errors.Is(err, recognition.ErrPermissionDenied):
		c.presenter.Alert(c.msgs.PermissionTitle, c.msgs.PermissionText)
	case errors.Is(err, recognition.ErrUnsupported):
		c.presenter.Alert(c.msgs.UnsupportedTitle, c.msgs.UnsupportedText)
	default:
		c.logger.Warn("recognition failure", "err", err)
	}
}

// ── Helpers ─────────────────────────────────────────────────────────────────

func (c *Controller) resolve(outcome round.Outcome) error {
	elapsed := c.machine.Elapsed()
	if err := c.machine.Resolve(outcome); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordRound(c.ctx, string(c.mode), outcome.String(), elapsed)
	}
	return nil
}

func (c *Controller) scheduleAdvance(d time.Duration) {
	c.cancelPending()
	gen := c.generation
	c.pending = c.clk.AfterFunc(d, func() {
		if gen != c.generation {
			return
		}
		c.pending = nil
		if err := c.AdvanceRound(); err != nil {
			c.logger.Debug("scheduled advance skipped", "err", err)
		}
	})
}

func (c *Controller) cancelPending() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}
