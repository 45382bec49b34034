// Package stt defines the Provider interface for server-side Speech-to-Text
// backends.
//
// Browsers that lack a usable speech recognition API can stream microphone
// PCM to the server instead; an STT provider turns that audio into the same
// interim and final transcripts the browser would have produced. The central
// abstraction is SessionHandle: once opened, a session accepts raw PCM audio
// frames and emits low-latency partials and authoritative finals.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned by StartStream when the provider rejects the
// configured credentials. Callers treat it like a denied microphone: the
// listening attempt is over until the user intervenes.
var ErrUnauthorized = errors.New("stt: provider rejected credentials")

// ErrNotSupported is returned by optional SessionHandle operations the
// provider does not implement.
var ErrNotSupported = errors.New("stt: operation not supported")

// StreamConfig describes the audio format and recognition hints for a new STT
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Browsers capture at 48000 and
	// usually downsample to 16000 before sending.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "es-ES").
	// An empty string lets the provider auto-detect the language, if supported.
	Language string

	// Keywords are vocabulary hints, typically the place names of the set
	// being played, that increase recognition probability for rare names.
	Keywords []KeywordBoost
}

// SessionHandle represents an open STT streaming session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw 16-bit little-endian PCM matching the
	// StreamConfig. Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. The channel is closed when the
	// session ends.
	Partials() <-chan Transcript

	// Finals emits committed transcripts. The channel is closed when the
	// session ends.
	Finals() <-chan Transcript

	// SetKeywords replaces the keyword boosts without restarting the session.
	// Providers that cannot do this return ErrNotSupported.
	SetKeywords(keywords []KeywordBoost) error

	// Close terminates the session and releases its resources. After Close
	// returns, Partials and Finals are closed. Calling Close more than once
	// is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// StartStream opens a new streaming transcription session. Returns
	// ErrUnauthorized (possibly wrapped) when credentials are rejected.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// KeywordsFor builds uniform keyword boosts for the given names, skipping
// empty and duplicate entries.
func KeywordsFor(names []string, boost float64) []KeywordBoost {
	seen := make(map[string]bool, len(names))
	out := make([]KeywordBoost, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, KeywordBoost{Keyword: n, Boost: boost})
	}
	return out
}
