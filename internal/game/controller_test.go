package game_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/geoquiz/internal/clock"
	"github.com/MrWong99/geoquiz/internal/game"
	"github.com/MrWong99/geoquiz/internal/game/mock"
	"github.com/MrWong99/geoquiz/internal/observe"
	"github.com/MrWong99/geoquiz/internal/pointset"
	"github.com/MrWong99/geoquiz/internal/recognition"
	recmock "github.com/MrWong99/geoquiz/internal/recognition/mock"
	"github.com/MrWong99/geoquiz/internal/round"
)

var (
	madrid    = pointset.LocationPoint{Name: "Madrid", Lat: 40.4, Lng: -3.7}
	paris     = pointset.LocationPoint{Name: "Paris", Lat: 48.8, Lng: 2.3}
	tarragona = pointset.LocationPoint{Name: "Tarragona", Lat: 41.1189, Lng: 1.2445}
)

type harness struct {
	ctrl  *game.Controller
	pres  *mock.Presenter
	fx    *mock.Effects
	rec   *recmock.Recognizer
	clock *clock.Fake
}

func newHarness(t *testing.T, set *pointset.PointSet, opts ...game.Option) *harness {
	t.Helper()
	h := &harness{
		pres:  &mock.Presenter{},
		fx:    &mock.Effects{},
		rec:   &recmock.Recognizer{},
		clock: clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	all := append([]game.Option{
		game.WithClock(h.clock),
		game.WithRand(rand.New(rand.NewPCG(1, 2))),
		game.WithRecognizer(h.rec),
	}, opts...)
	h.ctrl = game.NewController(set, h.pres, h.fx, all...)
	return h
}

func worldSet(points ...pointset.LocationPoint) *pointset.PointSet {
	return &pointset.PointSet{ID: "set-1", Name: "Test", Mode: pointset.ModeWorld, Points: points}
}

// target returns the point the current voice round highlights.
func (h *harness) target(t *testing.T) pointset.LocationPoint {
	t.Helper()
	if len(h.pres.Highlights) == 0 {
		t.Fatal("no highlighted target")
	}
	return h.pres.Highlights[len(h.pres.Highlights)-1].Point
}

// prompt returns the name the current find round asks for.
func (h *harness) prompt(t *testing.T) string {
	t.Helper()
	if len(h.pres.Rounds) == 0 {
		t.Fatal("no round shown")
	}
	return h.pres.Rounds[len(h.pres.Rounds)-1].Prompt
}

func pointNamed(t *testing.T, set *pointset.PointSet, name string) pointset.LocationPoint {
	t.Helper()
	for _, p := range set.Points {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no point named %q", name)
	return pointset.LocationPoint{}
}

// ── Starting ────────────────────────────────────────────────────────────────

func TestStartGame_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		set       *pointset.PointSet
		mode      game.Mode
		wantErr   error
		wantAlert bool
	}{
		{name: "unknown mode", set: worldSet(madrid), mode: "trivia", wantErr: game.ErrUnknownMode},
		{name: "empty set", set: worldSet(), mode: game.ModeVoice, wantErr: game.ErrEmptySet, wantAlert: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, tt.set)
			err := h.ctrl.StartGame(t.Context(), tt.mode)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := len(h.pres.Alerts) > 0; got != tt.wantAlert {
				t.Errorf("alert shown = %v, want %v", got, tt.wantAlert)
			}
			if h.ctrl.State() != round.AwaitingStart {
				t.Errorf("state = %v, want awaiting start", h.ctrl.State())
			}
		})
	}
}

func TestStartGame_VoiceRoundEntry(t *testing.T) {
	t.Parallel()
	set := worldSet(madrid, paris)
	h := newHarness(t, set)

	if err := h.ctrl.StartGame(t.Context(), game.ModeVoice); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if len(h.pres.Rounds) != 1 {
		t.Fatalf("rounds shown = %d, want 1", len(h.pres.Rounds))
	}
	v := h.pres.Rounds[0]
	if v.Current != 1 || v.Total != 2 || v.Prompt != "" || len(v.Markers) != 0 {
		t.Errorf("round view = %+v, want 1/2 without prompt or markers", v)
	}
	if got := h.pres.Highlights[0].Zoom; got != 4 {
		t.Errorf("zoom = %d, want 4", got)
	}
	if h.pres.ClearCount != 1 {
		t.Errorf("feedback cleared %d times, want 1", h.pres.ClearCount)
	}
	if h.rec.StartCalls() != 1 || h.ctrl.ListeningState() != recognition.Listening {
		t.Errorf("recognizer starts = %d state = %v, want 1 listening", h.rec.StartCalls(), h.ctrl.ListeningState())
	}
}

func TestStartGame_ImageZoom(t *testing.T) {
	t.Parallel()
	set := &pointset.PointSet{ID: "img", Mode: pointset.ModeImage, ImageURL: "https://example.com/m.png", Points: []pointset.LocationPoint{{Name: "A", Lat: 10, Lng: 20}}}
	h := newHarness(t, set)
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)
	if got := h.pres.Highlights[0].Zoom; got != 1 {
		t.Errorf("zoom = %d, want 1", got)
	}
}

// ── Voice mode ──────────────────────────────────────────────────────────────

func TestVoice_EndToEndTwoPoints(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid, paris))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)

	for i := range 2 {
		name := strings.ToLower(h.target(t).Name)
		h.ctrl.HandleTranscript(name, true)
		if h.ctrl.Score() != i+1 {
			t.Fatalf("score after round %d = %d, want %d", i+1, h.ctrl.Score(), i+1)
		}
		h.clock.Advance(time.Second)
	}

	results := h.pres.ResultsSnapshot()
	if len(results) != 1 {
		t.Fatalf("results shown %d times, want 1", len(results))
	}
	if results[0] != (round.Summary{Score: 2, RoundsPlayed: 2}) {
		t.Errorf("summary = %+v, want score 2 rounds 2", results[0])
	}
	if len(h.fx.Celebrations) != 1 || h.fx.Celebrations[0] != 2 {
		t.Errorf("celebrations = %v, want [2]", h.fx.Celebrations)
	}
	if h.ctrl.State() != round.GameOver {
		t.Errorf("state = %v, want game over", h.ctrl.State())
	}
	if h.ctrl.KeepListening() {
		t.Error("KeepListening = true after game over")
	}
	if h.rec.Running() {
		t.Error("recognizer still running after game over")
	}
}

func TestVoice_CorrectFeedbackEchoesCollapsedTranscript(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(tarragona))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)

	h.ctrl.HandleTranscript("Tarragona Tarragona", false)
	fb, ok := h.pres.LastFeedback()
	if !ok {
		t.Fatal("no feedback")
	}
	if fb.Text != `¡Bien! Dijiste: "Tarragona" 🎉` || fb.Tone != game.ToneCorrect {
		t.Errorf("feedback = %+v", fb)
	}
	if len(h.fx.Outcomes) != 1 || !h.fx.Outcomes[0] {
		t.Errorf("outcomes = %v, want [true]", h.fx.Outcomes)
	}
}

func TestVoice_CorrectAdvancesAfterDelay(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid, paris))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)

	h.ctrl.HandleTranscript(h.target(t).Name, false)
	h.clock.Advance(999 * time.Millisecond)
	if len(h.pres.Rounds) != 1 {
		t.Fatalf("advanced before the delay elapsed")
	}
	h.clock.Advance(time.Millisecond)
	if len(h.pres.Rounds) != 2 {
		t.Fatalf("rounds shown = %d, want 2", len(h.pres.Rounds))
	}
	if v := h.pres.Rounds[1]; v.Current != 2 || v.Total != 2 {
		t.Errorf("progress = %d/%d, want 2/2", v.Current, v.Total)
	}
}

func TestVoice_GracePeriod(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid, paris))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)

	h.clock.Advance(800 * time.Millisecond)
	h.ctrl.HandleTranscript("Barcelona", false)
	h.ctrl.HandleTranscript("Barcelona", true)
	if n := h.pres.FeedbackCount(); n != 0 {
		t.Fatalf("feedback within grace period: %d", n)
	}

	h.clock.Advance(800 * time.Millisecond)
	h.ctrl.HandleTranscript("Barcelona", false)
	if n := h.pres.FeedbackCount(); n != 0 {
		t.Fatalf("feedback for interim transcript: %d", n)
	}
	h.ctrl.HandleTranscript("Barcelona", true)
	fb, ok := h.pres.LastFeedback()
	if !ok || fb.Text != "Incorrecto. Inténtalo de nuevo." || fb.Tone != game.ToneWrong {
		t.Fatalf("feedback = %+v, want wrong-answer message", fb)
	}
	if h.ctrl.State() != round.RoundActive {
		t.Errorf("state = %v, want round still active", h.ctrl.State())
	}
	if len(h.fx.Outcomes) != 1 || h.fx.Outcomes[0] {
		t.Errorf("outcomes = %v, want [false]", h.fx.Outcomes)
	}
}

func TestVoice_CorrectAndSkipIgnoreGracePeriod(t *testing.T) {
	t.Parallel()
	for _, transcript := range []string{"pasar", ""} {
		h := newHarness(t, worldSet(madrid, paris))
		_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)
		if transcript == "" {
			transcript = h.target(t).Name
		}
		h.clock.Advance(100 * time.Millisecond)
		h.ctrl.HandleTranscript(transcript, false)
		if h.ctrl.State() != round.Resolved {
			t.Errorf("%q: state = %v, want resolved", transcript, h.ctrl.State())
		}
	}
}

func TestVoice_ProcessingLock(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid, paris))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)

	name := h.target(t).Name
	h.ctrl.HandleTranscript(name, false)
	h.ctrl.HandleTranscript(name, true)
	h.ctrl.HandleTranscript("pasar", true)

	if h.ctrl.Score() != 1 {
		t.Errorf("score = %d, want 1", h.ctrl.Score())
	}
	if n := h.pres.FeedbackCount(); n != 1 {
		t.Errorf("feedback count = %d, want 1", n)
	}
}

func TestVoice_SkipRequeues(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid, paris, tarragona))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)

	skipped := h.target(t)
	h.ctrl.HandleTranscript("Pasar", true)
	fb, _ := h.pres.LastFeedback()
	if fb.Text != "↺ Saltado. Volverá al final." || fb.Tone != game.ToneNeutral {
		t.Errorf("skip feedback = %+v", fb)
	}
	h.clock.Advance(499 * time.Millisecond)
	if len(h.pres.Rounds) != 1 {
		t.Fatal("advanced before skip delay")
	}
	h.clock.Advance(time.Millisecond)
	if v := h.pres.Rounds[1]; v.Total != 4 {
		t.Errorf("total after skip = %d, want 4", v.Total)
	}

	for h.ctrl.State() != round.GameOver {
		h.ctrl.HandleTranscript(h.target(t).Name, true)
		h.clock.Advance(time.Second)
	}
	got := h.pres.ResultsSnapshot()[0]
	if got != (round.Summary{Score: 3, RoundsPlayed: 4}) {
		t.Errorf("summary = %+v, want score 3 rounds 4", got)
	}
	if last := h.pres.Highlights[len(h.pres.Highlights)-1].Point; !last.SameAs(skipped) {
		t.Errorf("last round = %v, want skipped point %v", last, skipped)
	}
}

func TestVoice_SkipCapOnSinglePoint(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid), game.WithMaxSkips(1))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)

	for range 2 {
		h.ctrl.HandleTranscript("pasar", true)
		h.clock.Advance(500 * time.Millisecond)
	}
	if h.ctrl.State() != round.GameOver {
		t.Fatalf("state = %v, want game over", h.ctrl.State())
	}
	if got := h.pres.ResultsSnapshot()[0]; got != (round.Summary{Score: 0, RoundsPlayed: 2}) {
		t.Errorf("summary = %+v, want score 0 rounds 2", got)
	}
	if len(h.fx.Celebrations) != 0 {
		t.Errorf("celebrated a zero score")
	}
}

func TestVoice_ShortTranscriptIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)
	h.clock.Advance(2 * time.Second)

	for _, tr := range []string{"", "a", " ¡! "} {
		h.ctrl.HandleTranscript(tr, true)
	}
	if n := h.pres.FeedbackCount(); n != 0 {
		t.Errorf("feedback count = %d, want 0", n)
	}
}

func TestVoice_ExitCancelsPendingAdvance(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid, paris))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)

	h.ctrl.HandleTranscript(h.target(t).Name, true)
	h.ctrl.Exit()
	h.clock.Advance(2 * time.Second)

	if len(h.pres.Rounds) != 1 {
		t.Errorf("rounds shown = %d, want 1", len(h.pres.Rounds))
	}
	if h.ctrl.KeepListening() {
		t.Error("KeepListening = true after Exit")
	}
	if h.ctrl.ListeningState() != recognition.Stopped {
		t.Errorf("listening state = %v, want stopped", h.ctrl.ListeningState())
	}
	// The recognizer ending after exit must not re-arm it.
	h.ctrl.Recognition().OnEnd()
	if h.rec.StartCalls() != 1 {
		t.Errorf("recognizer starts = %d, want 1", h.rec.StartCalls())
	}
}

func TestVoice_RecognizerRestartsOnEnd(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid, paris))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)

	h.ctrl.Recognition().OnEnd()
	h.ctrl.Recognition().OnEnd()
	if h.rec.StartCalls() != 3 {
		t.Errorf("recognizer starts = %d, want 3", h.rec.StartCalls())
	}
	h.ctrl.Recognition().OnResult(h.target(t).Name, false)
	if h.ctrl.Score() != 1 {
		t.Errorf("score = %d, want 1", h.ctrl.Score())
	}
}

func TestVoice_RestartBackoffUsesControllerClock(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid, paris), game.WithRestartBackoff(200*time.Millisecond))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)

	h.ctrl.Recognition().OnEnd()
	if h.rec.StartCalls() != 1 {
		t.Fatalf("recognizer re-armed before the backoff: starts = %d", h.rec.StartCalls())
	}
	if h.ctrl.ListeningState() != recognition.Restarting {
		t.Errorf("listening state = %v, want Restarting", h.ctrl.ListeningState())
	}
	h.clock.Advance(200 * time.Millisecond)
	if h.rec.StartCalls() != 2 {
		t.Errorf("recognizer starts after backoff = %d, want 2", h.rec.StartCalls())
	}
}

func TestVoice_RecognitionFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		opts      func(*harness) []game.Option
		wantTitle string
	}{
		{
			name: "unsupported",
			opts: func(*harness) []game.Option {
				return []game.Option{game.WithRecognizer(nil)}
			},
			wantTitle: "Error",
		},
		{
			name: "permission denied",
			opts: func(h *harness) []game.Option {
				h.rec.StartErr = recognition.ErrPermissionDenied
				return nil
			},
			wantTitle: "Permiso denegado",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			probe := &harness{rec: &recmock.Recognizer{}}
			extra := tt.opts(probe)
			h := newHarness(t, worldSet(madrid, paris), append([]game.Option{game.WithRecognizer(probe.rec)}, extra...)...)

			_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)
			if len(h.pres.Alerts) != 1 || h.pres.Alerts[0].Title != tt.wantTitle {
				t.Fatalf("alerts = %+v, want one %q", h.pres.Alerts, tt.wantTitle)
			}

			// Later rounds do not nag again.
			h.ctrl.HandleTranscript(h.target(t).Name, true)
			h.clock.Advance(time.Second)
			if len(h.pres.Alerts) != 1 {
				t.Errorf("alerts after next round = %d, want 1", len(h.pres.Alerts))
			}

			// The microphone button tries again.
			_ = h.ctrl.StartListening(t.Context())
			if len(h.pres.Alerts) != 2 {
				t.Errorf("alerts after retry = %d, want 2", len(h.pres.Alerts))
			}
		})
	}
}

func TestVoice_TranscriptOutsideVoiceModeIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid, paris))
	h.ctrl.HandleTranscript("Madrid", true)
	_ = h.ctrl.StartGame(t.Context(), game.ModeFind)
	h.ctrl.HandleTranscript(h.prompt(t), true)
	if h.ctrl.Score() != 0 {
		t.Errorf("score = %d, want 0", h.ctrl.Score())
	}
	if err := h.ctrl.StartListening(t.Context()); !errors.Is(err, game.ErrNoGame) {
		t.Errorf("StartListening in find mode err = %v, want ErrNoGame", err)
	}
}

// ── Find mode ───────────────────────────────────────────────────────────────

func TestFind_RoundShowsAllMarkers(t *testing.T) {
	t.Parallel()
	set := worldSet(madrid, paris, tarragona)
	h := newHarness(t, set)
	_ = h.ctrl.StartGame(t.Context(), game.ModeFind)

	v := h.pres.Rounds[0]
	if v.Prompt == "" || len(v.Markers) != 3 || v.Current != 1 || v.Total != 3 {
		t.Errorf("round view = %+v", v)
	}
	if len(h.pres.Highlights) != 0 {
		t.Error("find mode highlighted the target")
	}
	if h.rec.StartCalls() != 0 {
		t.Error("find mode started the recognizer")
	}
}

func TestFind_CorrectClick(t *testing.T) {
	t.Parallel()
	set := worldSet(madrid, paris)
	h := newHarness(t, set)
	_ = h.ctrl.StartGame(t.Context(), game.ModeFind)

	// A copy with the same coordinates counts; identity is coordinates.
	target := pointNamed(t, set, h.prompt(t))
	clicked := pointset.LocationPoint{Name: "renamed", Lat: target.Lat, Lng: target.Lng}
	if err := h.ctrl.SelectMarker(clicked); err != nil {
		t.Fatalf("SelectMarker: %v", err)
	}
	if h.ctrl.Score() != 1 {
		t.Errorf("score = %d, want 1", h.ctrl.Score())
	}
	fb, _ := h.pres.LastFeedback()
	if fb.Text != "¡Correcto! 🎉" {
		t.Errorf("feedback = %q", fb.Text)
	}
	if h.pres.AdvanceOffers != 1 {
		t.Errorf("advance offers = %d, want 1", h.pres.AdvanceOffers)
	}
	if err := h.ctrl.SelectMarker(clicked); !errors.Is(err, round.ErrLocked) {
		t.Errorf("second click err = %v, want ErrLocked", err)
	}
	if h.ctrl.Score() != 1 {
		t.Errorf("score after second click = %d, want 1", h.ctrl.Score())
	}
}

func TestFind_WrongClickRevealsTarget(t *testing.T) {
	t.Parallel()
	set := worldSet(madrid, paris)
	h := newHarness(t, set)
	_ = h.ctrl.StartGame(t.Context(), game.ModeFind)

	target := pointNamed(t, set, h.prompt(t))
	wrong := madrid
	if target.SameAs(madrid) {
		wrong = paris
	}
	_ = h.ctrl.SelectMarker(wrong)

	fb, _ := h.pres.LastFeedback()
	if fb.Text != "Incorrecto. Era: "+target.Name || fb.Tone != game.ToneWrong {
		t.Errorf("feedback = %+v", fb)
	}
	if len(h.pres.Marks) != 2 {
		t.Fatalf("marks = %+v, want clicked and revealed", h.pres.Marks)
	}
	if m := h.pres.Marks[0]; !m.Point.SameAs(wrong) || m.Correct {
		t.Errorf("clicked mark = %+v", m)
	}
	if m := h.pres.Marks[1]; !m.Point.SameAs(target) || !m.Correct || m.Label != "¡Era aquí!" {
		t.Errorf("reveal mark = %+v", m)
	}
	if h.ctrl.Score() != 0 {
		t.Errorf("score = %d, want 0", h.ctrl.Score())
	}
}

func TestFind_FullGameWithAdvance(t *testing.T) {
	t.Parallel()
	set := worldSet(madrid, paris, tarragona)
	h := newHarness(t, set)
	_ = h.ctrl.StartGame(t.Context(), game.ModeFind)

	if err := h.ctrl.AdvanceRound(); err == nil {
		t.Fatal("advance before resolving should fail")
	}
	for h.ctrl.State() != round.GameOver {
		_ = h.ctrl.SelectMarker(pointNamed(t, set, h.prompt(t)))
		if err := h.ctrl.AdvanceRound(); err != nil && h.ctrl.State() != round.GameOver {
			t.Fatalf("AdvanceRound: %v", err)
		}
	}
	if got := h.pres.ResultsSnapshot(); len(got) != 1 || got[0] != (round.Summary{Score: 3, RoundsPlayed: 3}) {
		t.Errorf("results = %+v, want score 3 rounds 3", got)
	}
	if _, err := h.ctrl.EndGame(); !errors.Is(err, game.ErrNoGame) {
		t.Errorf("EndGame after results err = %v, want ErrNoGame", err)
	}
}

func TestEndGame_Early(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid, paris))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)

	s, err := h.ctrl.EndGame()
	if err != nil {
		t.Fatalf("EndGame: %v", err)
	}
	if s != (round.Summary{Score: 0, RoundsPlayed: 2}) {
		t.Errorf("summary = %+v", s)
	}
	if len(h.fx.Celebrations) != 0 {
		t.Error("celebrated a zero score")
	}
	if last := h.pres.ListeningChanges[len(h.pres.ListeningChanges)-1]; last {
		t.Error("listening indicator still on after EndGame")
	}
}

func TestWithMessages_OverridesAndKeepsDefaults(t *testing.T) {
	t.Parallel()
	h := newHarness(t, worldSet(madrid), game.WithMessages(game.Messages{VoiceCorrect: "Yes: %s"}))
	_ = h.ctrl.StartGame(t.Context(), game.ModeVoice)
	h.ctrl.HandleTranscript("madrid", true)
	if fb, _ := h.pres.LastFeedback(); fb.Text != "Yes: madrid" {
		t.Errorf("feedback = %q, want %q", fb.Text, "Yes: madrid")
	}
	if got := game.DefaultMessages().Merge(game.Messages{}); got != game.DefaultMessages() {
		t.Errorf("Merge of empty messages changed defaults")
	}
}

func TestController_RecordsMetrics(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	h := newHarness(t, worldSet(madrid), game.WithMetrics(m))
	_ = h.ctrl.StartGame(context.Background(), game.ModeVoice)
	h.ctrl.HandleTranscript("madrid", true)
	h.clock.Advance(time.Second)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[md.Name] += dp.Value
				}
			}
		}
	}
	want := map[string]int64{
		"geoquiz.games.started":    1,
		"geoquiz.games.completed":  1,
		"geoquiz.rounds.resolved":  1,
		"geoquiz.transcripts":      1,
		"geoquiz.active_games":     0,
		"geoquiz.active_listeners": 0,
	}
	for name, v := range want {
		if totals[name] != v {
			t.Errorf("%s = %d, want %d", name, totals[name], v)
		}
	}
}
