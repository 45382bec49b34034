// Package recognition manages a continuous speech recognition session.
//
// Speech engines stop on their own after every utterance or a stretch of
// silence. [Manager] turns that into uninterrupted listening for the length of
// a voice round: it re-arms the [Recognizer] each time it ends, for as long as
// its [Handler] still wants to listen, and turns the engine's failures into
// outcomes the game can present.
//
// A Manager is not safe for concurrent use. Game sessions drive it from their
// event loop; recognizers that produce events on other goroutines must post
// them into that loop through their [EventSink].
package recognition

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied means the user or the provider refused access.
	// The listening attempt ends until the user asks again.
	ErrPermissionDenied = errors.New("recognition: permission denied")

	// ErrUnsupported means no speech recognition is available at all.
	ErrUnsupported = errors.New("recognition: speech recognition unsupported")

	// ErrAlreadyActive is returned by a Recognizer started while running.
	ErrAlreadyActive = errors.New("recognition: already active")
)

// State is the lifecycle state of a [Manager].
type State int

const (
	// Idle means the manager has never listened.
	Idle State = iota
	// Listening means the recognizer is running.
	Listening
	// Restarting means the recognizer ended and is being re-armed.
	Restarting
	// Stopped means listening ended and will not resume on its own.
	Stopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Restarting:
		return "restarting"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Recognizer is a speech recognition capability. Results, end and error
// notifications are delivered out of band to an [EventSink].
type Recognizer interface {
	Start(ctx context.Context) error
	Stop() error
}

// EventSink receives recognizer events. [Manager] implements it.
type EventSink interface {
	OnResult(text string, isFinal bool)
	OnEnd()
	OnError(err error)
}

// Handler is the manager's view of the game.
type Handler interface {
	// HandleTranscript receives every interim and final transcript.
	HandleTranscript(text string, isFinal bool)

	// KeepListening reports whether the recognizer should be re-armed when
	// it ends. It is polled at every end event.
	KeepListening() bool

	// ListeningChanged drives the listening indicator.
	ListeningChanged(active bool)

	// Failure surfaces a fatal recognition error to the user. err matches
	// [ErrPermissionDenied] or [ErrUnsupported].
	Failure(err error)
}
