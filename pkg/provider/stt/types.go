package stt

import "time"

// Transcript is a speech-to-text result. Both partial (interim) and final
// transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal reports whether the provider has committed to this text.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero if the
	// provider does not report confidence.
	Confidence float64

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// KeywordBoost is a word to favour during recognition.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g., "Ourense").
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}
