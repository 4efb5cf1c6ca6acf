package similarity

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	// charWeight and tokenWeight blend the edit-distance ratio with the token overlap.
	charWeight  = 0.6
	tokenWeight = 0.4

	// maxRescored is how many windows (best by token overlap) get the edit-distance pass.
	maxRescored = 12
)

type window struct {
	start   int
	size    int
	overlap float64
}

// Score returns how well snippet matches lyrics, in [0, 1].
//
// The snippet is compared against windows of the lyrics with about as many
// words as the snippet (one fewer, equal, one more) and the best window wins,
// so a short excerpt of a long song is not penalized for everything else the
// song says. ok is false when either side is empty after normalization; the
// score is undefined then and must not be treated as zero.
func Score(snippet, lyrics string) (score float64, ok bool) {
	st := Tokens(snippet)
	lt := Tokens(lyrics)
	if len(st) == 0 || len(lt) == 0 {
		return 0, false
	}

	n := len(st)
	if len(lt) <= n+1 {
		return clamp(blend(st, lt)), true
	}

	want := counts(st)
	var windows []window
	for _, size := range []int{n - 1, n, n + 1} {
		if size < 1 {
			continue
		}
		for i := 0; i+size <= len(lt); i++ {
			windows = append(windows, window{
				start:   i,
				size:    size,
				overlap: overlap(want, n, lt[i:i+size]),
			})
		}
	}

	sort.SliceStable(windows, func(i, j int) bool {
		a, b := windows[i], windows[j]
		if a.overlap != b.overlap {
			return a.overlap > b.overlap
		}
		if a.start != b.start {
			return a.start < b.start
		}
		return a.size < b.size
	})
	if len(windows) > maxRescored {
		windows = windows[:maxRescored]
	}

	best := 0.0
	for _, w := range windows {
		if s := blend(st, lt[w.start:w.start+w.size]); s > best {
			best = s
			if best >= 1 {
				break
			}
		}
	}
	return clamp(best), true
}

// BestLine returns the lyrics line that matches snippet best, with its score.
// An empty line and 0 are returned when nothing is comparable.
func BestLine(snippet, lyrics string) (string, float64) {
	st := Tokens(snippet)
	if len(st) == 0 {
		return "", 0
	}

	bestLine, best := "", 0.0
	for _, line := range strings.Split(lyrics, "\n") {
		lt := Tokens(line)
		if len(lt) == 0 {
			continue
		}
		if s := blend(st, lt); s > best {
			bestLine, best = strings.TrimSpace(line), s
		}
	}
	return bestLine, clamp(best)
}

// CharRatio is 1 - levenshtein(a, b) / max(len(a), len(b)), measured in runes.
func CharRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

func blend(st, lt []string) float64 {
	chars := CharRatio(strings.Join(st, " "), strings.Join(lt, " "))
	tokens := overlap(counts(st), len(st), lt)
	return charWeight*chars + tokenWeight*tokens
}

// overlap is the share of snippet tokens (as a multiset) found in window.
func overlap(want map[string]int, total int, window []string) float64 {
	if total == 0 {
		return 0
	}
	have := counts(window)
	matched := 0
	for tok, n := range want {
		matched += min(n, have[tok])
	}
	return float64(matched) / float64(total)
}

func counts(tokens []string) map[string]int {
	m := make(map[string]int, len(tokens))
	for _, t := range tokens {
		m[t]++
	}
	return m
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
