// Package grading decides whether a spoken transcript answers the current
// quiz target.
//
// The pipeline is: collapse stutter repetitions in the raw transcript,
// normalise both sides with [textnorm.Normalize], check for a skip command,
// then apply [IsMatch]. An optional [PhoneticMatcher] gives rejected answers
// a second chance.
package grading

import (
	"slices"
	"unicode/utf8"

	"github.com/MrWong99/geoquiz/internal/textnorm"
)

// Verdict is the outcome of grading one transcript.
type Verdict int

const (
	// VerdictIgnore means the transcript was too short to grade.
	VerdictIgnore Verdict = iota
	// VerdictSkip means the player asked to skip the current target.
	VerdictSkip
	// VerdictCorrect means the transcript names the target.
	VerdictCorrect
	// VerdictIncorrect means the transcript was graded and rejected.
	VerdictIncorrect
)

// String returns the lowercase verdict name used in logs and metrics.
func (v Verdict) String() string {
	switch v {
	case VerdictIgnore:
		return "ignore"
	case VerdictSkip:
		return "skip"
	case VerdictCorrect:
		return "correct"
	case VerdictIncorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

// Grade is the full result of [Judge.Grade].
type Grade struct {
	Verdict Verdict

	// Heard is the transcript after repetition collapse, suitable for
	// echoing back to the player.
	Heard string

	// Guess and Target are the normalised comparison keys.
	Guess  string
	Target string

	// Distance is the edit distance between Guess and Target. It is -1 when
	// no comparison took place.
	Distance int

	// Phonetic is true when the phonetic fallback accepted the answer.
	Phonetic bool
}

// DefaultSkipWords are the commands that skip the current target.
var DefaultSkipWords = []string{"pasar"}

const defaultMinLength = 2

// Option configures a [Judge].
type Option func(*Judge)

// WithSkipWords replaces the skip commands. Words are normalised before use;
// an empty list disables skipping.
func WithSkipWords(words ...string) Option {
	return func(j *Judge) {
		j.skipWords = j.skipWords[:0]
		for _, w := range words {
			if n := textnorm.Normalize(w); n != "" {
				j.skipWords = append(j.skipWords, n)
			}
		}
	}
}

// WithMinLength sets the minimum normalised transcript length that is graded
// at all. Shorter transcripts yield [VerdictIgnore]. Default: 2.
func WithMinLength(n int) Option {
	return func(j *Judge) {
		j.minLength = n
	}
}

// WithPhonetic enables the phonetic fallback.
func WithPhonetic(m *PhoneticMatcher) Option {
	return func(j *Judge) {
		j.phonetic = m
	}
}

// Judge grades transcripts against target names. It is immutable after
// construction and safe for concurrent use.
type Judge struct {
	skipWords []string
	minLength int
	phonetic  *PhoneticMatcher
}

// NewJudge returns a Judge with the given options applied over the defaults.
func NewJudge(opts ...Option) *Judge {
	j := &Judge{minLength: defaultMinLength}
	WithSkipWords(DefaultSkipWords...)(j)
	for _, o := range opts {
		o(j)
	}
	return j
}

// Grade classifies transcript as an answer for the place called target.
func (j *Judge) Grade(transcript, target string) Grade {
	heard := textnorm.CollapseRepeats(transcript)
	g := Grade{
		Heard:    heard,
		Guess:    textnorm.Normalize(heard),
		Target:   textnorm.Normalize(target),
		Distance: -1,
	}

	if utf8.RuneCountInString(g.Guess) < j.minLength {
		g.Verdict = VerdictIgnore
		return g
	}
	if slices.Contains(j.skipWords, g.Guess) {
		g.Verdict = VerdictSkip
		return g
	}

	g.Distance = EditDistance(g.Guess, g.Target)
	if IsMatch(g.Guess, g.Target) {
		g.Verdict = VerdictCorrect
		return g
	}
	if j.phonetic != nil {
		if _, ok := j.phonetic.SoundsLike(heard, target); ok {
			g.Verdict = VerdictCorrect
			g.Phonetic = true
			return g
		}
	}
	g.Verdict = VerdictIncorrect
	return g
}
