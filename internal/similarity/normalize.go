// Package similarity scores how well a lyrics snippet matches a page of lyrics.
package similarity

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, folds curly quotes, drops apostrophes, turns every
// other non letter/digit rune into a space and collapses whitespace.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '‘' || r == '’' || r == '`':
			// "don't" and "dont" should compare equal
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the normalized word tokens of s.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// HasLetter reports whether s contains at least one alphabetic rune.
func HasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
