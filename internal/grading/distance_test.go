package grading_test

import (
	"testing"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/geoquiz/internal/grading"
)

func TestEditDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"madrid", "madrid", 0},
		{"madri", "madrid", 1},
		{"barcelona", "barzelona", 1},
		{"flaw", "lawn", 2},
		{"sevilla", "sebilla", 1},
	}

	for _, tc := range tests {
		if got := grading.EditDistance(tc.a, tc.b); got != tc.want {
			t.Errorf("EditDistance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
		if got := grading.EditDistance(tc.b, tc.a); got != tc.want {
			t.Errorf("EditDistance(%q, %q) = %d, want %d (symmetry)", tc.b, tc.a, got, tc.want)
		}
	}
}

func TestEditDistance_AgreesWithMatchr(t *testing.T) {
	t.Parallel()

	words := []string{"valencia", "valensia", "bilbao", "vilvao", "granada", "grenada", "oviedo", "lugo", "a"}
	for _, a := range words {
		for _, b := range words {
			if got, want := grading.EditDistance(a, b), matchr.Levenshtein(a, b); got != want {
				t.Errorf("EditDistance(%q, %q) = %d, matchr.Levenshtein = %d", a, b, got, want)
			}
		}
	}
}

func TestTolerance(t *testing.T) {
	t.Parallel()

	want := map[int]int{0: 0, 1: 0, 3: 0, 4: 1, 6: 1, 7: 2, 10: 2, 11: 3, 30: 3}
	for length, tol := range want {
		if got := grading.Tolerance(length); got != tol {
			t.Errorf("Tolerance(%d) = %d, want %d", length, got, tol)
		}
	}
}

func TestIsMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		guess, target string
		want          bool
	}{
		{"exact", "madrid", "madrid", true},
		{"tolerance boundary length 6 one edit", "madrix", "madrid", true},
		{"tolerance boundary length 6 two edits", "madxxd", "madrid", false},
		{"substring with long target", "creoqueesmadrid", "madrid", true},
		{"substring with length 4 target", "ciudaddejaen", "jaen", true},
		{"substring ignored for length 3 target", "ciudaddevic", "vic", false},
		{"length 3 target needs exact", "vik", "vic", false},
		{"length 4 target one deletion", "leo", "leon", true},
		{"length 11 target three edits", "santanderxyz", "santanderab", true},
		{"empty guess", "", "madrid", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := grading.IsMatch(tc.guess, tc.target); got != tc.want {
				t.Errorf("IsMatch(%q, %q) = %v, want %v", tc.guess, tc.target, got, tc.want)
			}
		})
	}
}
