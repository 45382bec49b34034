// Package game runs quiz games over a point set.
//
// A [Controller] owns one game at a time. It picks the mode, drives the
// round machine, grades spoken answers, schedules the pause between rounds
// and reports results. It talks to the outside world through a [Presenter]
// (what the player sees) and [Effects] (sounds and confetti), and listens
// through a recognition manager.
//
// Controllers are single-threaded. [Session] gives one its own event loop so
// socket messages, recognizer events and timers can arrive from any goroutine.
package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/geoquiz/internal/pointset"
	"github.com/MrWong99/geoquiz/internal/round"
)

// Mode selects how the player answers.
type Mode string

const (
	// ModeFind shows every point and asks the player to click the named one.
	ModeFind Mode = "find-loc"
	// ModeVoice highlights a point and asks the player to say its name.
	ModeVoice Mode = "geo-show"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeFind || m == ModeVoice
}

var (
	// ErrEmptySet is returned when starting a game over a set without points.
	ErrEmptySet = errors.New("game: set has no points")
	// ErrUnknownMode is returned for a mode other than find-loc or geo-show.
	ErrUnknownMode = errors.New("game: unknown mode")
	// ErrNoGame is returned by operations that need a running game.
	ErrNoGame = errors.New("game: no game in progress")
)

// Tone colours a feedback message.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneCorrect Tone = "correct"
	ToneWrong   Tone = "wrong"
)

// RoundView describes what the player sees when a round begins.
type RoundView struct {
	Mode Mode `json:"mode"`
	// Prompt is the name to find. Voice rounds leave it empty.
	Prompt  string `json:"prompt,omitempty"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	// Markers are the clickable points of a find round.
	Markers []pointset.LocationPoint `json:"markers,omitempty"`
}

// Presenter renders the game.
type Presenter interface {
	ShowRound(v RoundView)
	Highlight(p pointset.LocationPoint, zoom int)
	// Mark colours the marker at p. label, when set, is shown in a popup.
	Mark(p pointset.LocationPoint, correct bool, label string)
	Feedback(text string, tone Tone)
	ClearFeedback()
	// AwaitAdvance offers the player a button to move to the next round.
	AwaitAdvance()
	ShowResults(s round.Summary)
	Listening(active bool)
	Alert(title, text string)
}

// Effects are fire-and-forget sounds and celebrations.
type Effects interface {
	Outcome(correct bool)
	Celebrate(score int)
}

// Timing holds the voice mode delays.
type Timing struct {
	// GracePeriod suppresses wrong-answer feedback right after a round
	// starts, while the recognizer is still settling.
	GracePeriod time.Duration
	// CorrectDelay is the pause after a correct answer.
	CorrectDelay time.Duration
	// SkipDelay is the pause after a skip.
	SkipDelay time.Duration
}

// DefaultTiming returns the standard delays.
func DefaultTiming() Timing {
	return Timing{
		GracePeriod:  1500 * time.Millisecond,
		CorrectDelay: 1000 * time.Millisecond,
		SkipDelay:    500 * time.Millisecond,
	}
}

// Messages are the player-facing texts. Templates with a %s verb receive one
// argument: the heard transcript for VoiceCorrect, the target name for
// FindIncorrect.
type Messages struct {
	Skipped          string `yaml:"skipped"`
	VoiceCorrect     string `yaml:"voice_correct"`
	VoiceIncorrect   string `yaml:"voice_incorrect"`
	FindCorrect      string `yaml:"find_correct"`
	FindIncorrect    string `yaml:"find_incorrect"`
	Reveal           string `yaml:"reveal"`
	PermissionTitle  string `yaml:"permission_title"`
	PermissionText   string `yaml:"permission_text"`
	UnsupportedTitle string `yaml:"unsupported_title"`
	UnsupportedText  string `yaml:"unsupported_text"`
	EmptySetTitle    string `yaml:"empty_set_title"`
	EmptySetText     string `yaml:"empty_set_text"`
}

// DefaultMessages returns the Spanish texts.
func DefaultMessages() Messages {
	return Messages{
		Skipped:          "↺ Saltado. Volverá al final.",
		VoiceCorrect:     "¡Bien! Dijiste: \"%s\" 🎉",
		VoiceIncorrect:   "Incorrecto. Inténtalo de nuevo.",
		FindCorrect:      "¡Correcto! 🎉",
		FindIncorrect:    "Incorrecto. Era: %s",
		Reveal:           "¡Era aquí!",
		PermissionTitle:  "Permiso denegado",
		PermissionText:   "Permite el uso del micrófono.",
		UnsupportedTitle: "Error",
		UnsupportedText:  "Tu navegador no soporta reconocimiento de voz.",
		EmptySetTitle:    "Set vacío",
		EmptySetText:     "Este set no tiene puntos válidos.",
	}
}

// Merge returns m with empty fields taken from def.
func (m Messages) Merge(def Messages) Messages {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Messages{
		Skipped:          pick(m.Skipped, def.Skipped),
		VoiceCorrect:     pick(m.VoiceCorrect, def.VoiceCorrect),
		VoiceIncorrect:   pick(m.VoiceIncorrect, def.VoiceIncorrect),
		FindCorrect:      pick(m.FindCorrect, def.FindCorrect),
		FindIncorrect:    pick(m.FindIncorrect, def.FindIncorrect),
		Reveal:           pick(m.Reveal, def.Reveal),
		PermissionTitle:  pick(m.PermissionTitle, def.PermissionTitle),
		PermissionText:   pick(m.PermissionText, def.PermissionText),
		UnsupportedTitle: pick(m.UnsupportedTitle, def.UnsupportedTitle),
		UnsupportedText:  pick(m.UnsupportedText, def.UnsupportedText),
		EmptySetTitle:    pick(m.EmptySetTitle, def.EmptySetTitle),
		EmptySetText:     pick(m.EmptySetText, def.EmptySetText),
	}
}

// fill substitutes arg into tmpl if it has a %s verb.
func fill(tmpl, arg string) string {
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return fmt.Sprintf(tmpl, arg)
}
