package textnorm

import (
	"strings"
	"unicode"
)

// CollapseRepeats removes immediate case-insensitive repetitions of a word.
// A word is a maximal run of letters, digits, and underscores; two words are
// adjacent when only whitespace separates them. Whole runs collapse onto
// their first occurrence, which keeps its original casing:
//
//	CollapseRepeats("Madrid madrid MADRID") == "Madrid"
//	CollapseRepeats("es es Sevilla")        == "es Sevilla"
//
// Text that is not part of a collapsed run is returned unchanged.
func CollapseRepeats(s string) string {
	toks := tokenize(s)
	if len(toks) < 3 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	prevWord := ""
	pendingSep := ""
	for _, tok := range toks {
		if !tok.word {
			pendingSep += tok.text
			continue
		}
		if prevWord != "" && pendingSep != "" && isSpace(pendingSep) && strings.EqualFold(tok.text, prevWord) {
			pendingSep = ""
			continue
		}
		b.WriteString(pendingSep)
		b.WriteString(tok.text)
		pendingSep = ""
		prevWord = tok.text
	}
	b.WriteString(pendingSep)
	return b.String()
}

type token struct {
	text string
	word bool
}

// tokenize splits s into alternating word and separator tokens. Punctuation
// breaks adjacency, so it is kept in separator tokens.
func tokenize(s string) []token {
	var toks []token
	start := 0
	inWord := false
	for i, r := range s {
		w := isWordRune(r)
		if i == 0 {
			inWord = w
			continue
		}
		if w != inWord {
			toks = append(toks, token{text: s[start:i], word: inWord})
			start = i
			inWord = w
		}
	}
	if start < len(s) {
		toks = append(toks, token{text: s[start:], word: inWord})
	}
	return toks
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func isSpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
