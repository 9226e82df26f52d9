package grading

import (
	"strings"
	"unicode"
)

// normalize casefolds s and collapses whitespace. Punctuation and symbols
// separate words ("apples,oranges" is two tokens).
func normalize(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range []rune(s) {
		switch {
		case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			space = true
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

// Tokenize normalizes s and splits it into word tokens.
func Tokenize(s string) []string {
	n := normalize(s)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}
