package grading

import (
	"strings"
	"unicode/utf8"
)

// EditDistance returns the Levenshtein distance between a and b: the minimum
// number of single-rune insertions, deletions, and substitutions that turn a
// into b. Both strings are compared rune by rune.
func EditDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two rolling rows of the (len(rb)+1) x (len(ra)+1) table.
	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(rb); i++ {
		curr[0] = i
		for j := 1; j <= len(ra); j++ {
			if rb[i-1] == ra[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = 1 + min(prev[j-1], curr[j-1], prev[j])
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}

// Tolerance returns how many edits a guess may be away from a normalised
// target of the given rune length and still count as correct.
//
//	length  0–3  → 0
//	length  4–6  → 1
//	length  7–10 → 2
//	length 11+   → 3
func Tolerance(length int) int {
	switch {
	case length > 10:
		return 3
	case length > 6:
		return 2
	case length > 3:
		return 1
	default:
		return 0
	}
}

// IsMatch reports whether the normalised guess answers the normalised target.
// It accepts an exact match, a guess that contains a target longer than
// three runes, or a guess within [Tolerance] edits of the target.
func IsMatch(guess, target string) bool {
	if guess == target {
		return true
	}
	n := utf8.RuneCountInString(target)
	if n > 3 && strings.Contains(guess, target) {
		return true
	}
	return EditDistance(guess, target) <= Tolerance(n)
}
