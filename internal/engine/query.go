package engine

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hession/lyricsleuth/internal/similarity"
)

// ErrInvalidSnippet is returned for snippets with nothing to search for.
var ErrInvalidSnippet = errors.New("invalid snippet: need at least one alphabetic word")

const (
	maxSnippetRunes = 500
	maxQueryWords   = 32
)

var stripQuotes = strings.NewReplacer(`"`, "", "“", "", "”", "")

// BuildQueries turns a snippet into search queries, most specific first.
func BuildQueries(snippet string) ([]string, error) {
	s, err := prepareSnippet(snippet)
	if err != nil {
		return nil, err
	}

	words := strings.Fields(stripQuotes.Replace(s))
	if len(words) > maxQueryWords {
		words = words[:maxQueryWords]
	}
	phrase := strings.Join(words, " ")

	queries := []string{
		`"` + phrase + `" lyrics`,
		phrase + " lyrics",
		phrase + " lyrics genius",
	}
	return dedupe(queries), nil
}

// prepareSnippet trims the snippet and cuts it to at most maxSnippetRunes,
// on a word boundary when there is one.
func prepareSnippet(snippet string) (string, error) {
	s := strings.TrimSpace(snippet)
	if s == "" || !similarity.HasLetter(s) {
		return "", ErrInvalidSnippet
	}
	if utf8.RuneCountInString(s) <= maxSnippetRunes {
		return s, nil
	}

	runes := []rune(s)
	cut := maxSnippetRunes
	if !unicode.IsSpace(runes[cut]) {
		for i := cut - 1; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
	}
	return strings.TrimSpace(string(runes[:cut])), nil
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
