package game_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/MrWong99/geoquiz/internal/clock"
	"github.com/MrWong99/geoquiz/internal/game"
	"github.com/MrWong99/geoquiz/internal/game/mock"
	"github.com/MrWong99/geoquiz/internal/recognition"
	recmock "github.com/MrWong99/geoquiz/internal/recognition/mock"
	"github.com/MrWong99/geoquiz/internal/round"
)

func TestSession_VoiceGameThroughLoop(t *testing.T) {
	t.Parallel()
	fake := clock.NewFake(time.Unix(0, 0))
	pres := &mock.Presenter{}
	rec := &recmock.Recognizer{}
	var sink recognition.EventSink

	s := game.NewSession(game.SessionConfig{
		Set:       worldSet(madrid, paris),
		Presenter: pres,
		Effects:   &mock.Effects{},
		Clock:     fake,
		NewRecognizer: func(es recognition.EventSink) recognition.Recognizer {
			sink = es
			return rec
		},
		Options: []game.Option{game.WithRand(rand.New(rand.NewPCG(3, 4)))},
	})
	if s.ID == "" {
		t.Error("session has no ID")
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	var startErr error
	if err := s.Do(ctx, func(c *game.Controller) { startErr = c.StartGame(ctx, game.ModeVoice) }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if startErr != nil {
		t.Fatalf("StartGame: %v", startErr)
	}

	for range 2 {
		var target string
		_ = s.Do(ctx, func(*game.Controller) {
			target = pres.Highlights[len(pres.Highlights)-1].Point.Name
		})
		// Recognizer events arrive from another goroutine.
		done := make(chan struct{})
		go func() {
			sink.OnResult(target, true)
			close(done)
		}()
		<-done
		_ = s.Do(ctx, func(*game.Controller) {})

		// The timer callback is posted into the loop; Do waits behind it.
		fake.Advance(time.Second)
		_ = s.Do(ctx, func(*game.Controller) {})
	}

	var state round.State
	_ = s.Do(ctx, func(c *game.Controller) { state = c.State() })
	if state != round.GameOver {
		t.Fatalf("state = %v, want game over", state)
	}
	if got := pres.ResultsSnapshot(); len(got) != 1 || got[0].Score != 2 {
		t.Errorf("results = %+v, want score 2", got)
	}

	cancel()
	select {
	case err := <-runErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if err := s.Do(context.Background(), func(*game.Controller) {}); !errors.Is(err, game.ErrSessionClosed) {
		t.Errorf("Do after Run returned err = %v, want ErrSessionClosed", err)
	}
}

func TestSession_CloseStopsRun(t *testing.T) {
	t.Parallel()
	s := game.NewSession(game.SessionConfig{
		Set:       worldSet(madrid),
		Presenter: &mock.Presenter{},
		Effects:   &mock.Effects{},
	})
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(t.Context()) }()

	s.Close()
	s.Close()
	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run err = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestSession_NoRecognizerIsUnsupported(t *testing.T) {
	t.Parallel()
	pres := &mock.Presenter{}
	s := game.NewSession(game.SessionConfig{
		Set:       worldSet(madrid),
		Presenter: pres,
		Effects:   &mock.Effects{},
	})
	go func() { _ = s.Run(t.Context()) }()
	defer s.Close()

	_ = s.Do(t.Context(), func(c *game.Controller) { _ = c.StartGame(t.Context(), game.ModeVoice) })
	var alerts int
	_ = s.Do(t.Context(), func(*game.Controller) { alerts = len(pres.Alerts) })
	if alerts != 1 {
		t.Errorf("alerts = %d, want 1", alerts)
	}
}
