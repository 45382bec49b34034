// Package textnorm canonicalises spoken or typed place names so that they can
// be compared character by character.
//
// Two transforms are provided. [Normalize] produces the comparison key used by
// the grader: lowercase, accent-free, and restricted to ASCII letters and
// digits. [CollapseRepeats] runs earlier, on the raw transcript, and removes
// the stutter repetitions ("Madrid Madrid") that continuous speech
// recognisers tend to emit.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningMarks is the Unicode "Combining Diacritical Marks" block
// (U+0300–U+036F). Marks outside this block survive folding.
var combiningMarks = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036F, Stride: 1}},
}

// Fold lowercases s, decomposes it to NFD, and strips combining diacritical
// marks. Spacing and punctuation are preserved.
//
//	Fold("Ávila, León") == "avila, leon"
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(combiningMarks)))
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		// transform.String only fails on malformed transformer chains; fall
		// back to the lowercase input rather than losing the transcript.
		return strings.ToLower(s)
	}
	return out
}

// Normalize returns the comparison key for s: [Fold] followed by removal of
// every rune that is not an ASCII lowercase letter or digit.
//
// Normalize is total and idempotent: Normalize(Normalize(s)) == Normalize(s).
//
//	Normalize("Castilla-La Mancha") == "castillalamancha"
func Normalize(s string) string {
	folded := Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
