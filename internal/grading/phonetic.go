package grading

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/geoquiz/internal/textnorm"
)

const (
	defaultPhoneticThreshold = 0.85
)

// PhoneticMatcher decides whether a transcript sounds like a place name. It
// is used as a second chance after the edit-distance rule has rejected a
// guess, so it only ever promotes an incorrect answer to a correct one.
//
// The matcher works in two stages:
//
//  1. Double Metaphone codes are computed for every word of the transcript
//     and of the place name. Without at least one shared code the transcript
//     is rejected.
//  2. Among phonetically overlapping inputs, the best Jaro-Winkler similarity
//     (full string, space-stripped, or best word pair) must reach the
//     threshold.
//
// A PhoneticMatcher is read-only after construction and safe for concurrent
// use.
type PhoneticMatcher struct {
	threshold float64
}

// NewPhoneticMatcher returns a matcher with the given Jaro-Winkler threshold.
// A threshold <= 0 selects the default of 0.85.
func NewPhoneticMatcher(threshold float64) *PhoneticMatcher {
	if threshold <= 0 {
		threshold = defaultPhoneticThreshold
	}
	return &PhoneticMatcher{threshold: threshold}
}

// SoundsLike reports whether transcript is a phonetic rendering of name and
// returns the similarity score it reached.
func (m *PhoneticMatcher) SoundsLike(transcript, name string) (float64, bool) {
	in := strings.Fields(textnorm.Fold(transcript))
	target := strings.Fields(textnorm.Fold(name))
	if len(in) == 0 || len(target) == 0 {
		return 0, false
	}
	if !codesOverlap(codesForTokens(in), codesForTokens(target)) {
		return 0, false
	}
	score := bestJWScore(in, target)
	return score, score >= m.threshold
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
// Empty codes are skipped.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity over the full phrases,
// their space-stripped forms, and every word pair. Single-word comparisons
// only count when the place name is itself a single word, so that "san"
// alone does not answer "San Sebastián".
func bestJWScore(in, target []string) float64 {
	score := matchr.JaroWinkler(strings.Join(in, " "), strings.Join(target, " "), false)
	if s := matchr.JaroWinkler(strings.Join(in, ""), strings.Join(target, ""), false); s > score {
		score = s
	}
	if len(target) == 1 {
		for _, w := range in {
			if s := matchr.JaroWinkler(w, target[0], false); s > score {
				score = s
			}
		}
	}
	return score
}
