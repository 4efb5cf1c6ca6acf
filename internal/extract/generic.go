package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	minBlockWords     = 20
	minBlockLines     = 4
	maxLinkRatio      = 0.5
	maxBoilerplate    = 0.2
	minLyricWords     = 2
	maxLyricWords     = 14
	longLineWords     = 25
	longLinePenalty   = 2.0
	linkLinePenalty   = 2.0
	boilerplateWeight = 2.0
)

var boilerplatePhrases = []string{
	"cookie", "privacy policy", "terms of use", "terms of service", "all rights reserved",
	"sign up", "sign in", "log in", "subscribe", "newsletter", "advertisement",
	"copyright", "javascript", "submit corrections", "writer(s)", "embed",
}

type blockStats struct {
	lines       int
	words       int
	linkWords   int
	lyricLines  int
	longLines   int
	linkLines   int
	boilerLines int
}

func (s blockStats) acceptable() bool {
	if s.words < minBlockWords || s.lines < minBlockLines {
		return false
	}
	if float64(s.linkWords)/float64(s.words) >= maxLinkRatio {
		return false
	}
	return float64(s.boilerLines)/float64(s.lines) < maxBoilerplate
}

func (s blockStats) score() float64 {
	return float64(s.lyricLines) -
		longLinePenalty*float64(s.longLines) -
		linkLinePenalty*float64(s.linkLines) -
		boilerplateWeight*float64(s.boilerLines)
}

// genericLyrics picks the block that looks most like lyrics: many short lines,
// few links, little site chrome. Returns "" when no block qualifies.
func genericLyrics(doc *goquery.Document) string {
	best, bestScore := "", 0.0
	doc.Find("article, main, section, div, pre, td").Each(func(_ int, s *goquery.Selection) {
		text := cleanLyrics(blockText(s))
		if text == "" {
			return
		}
		stats := measure(s, text)
		if !stats.acceptable() {
			return
		}
		if sc := stats.score(); sc > bestScore {
			best, bestScore = text, sc
		}
	})
	return best
}

func measure(s *goquery.Selection, text string) blockStats {
	links := make(map[string]bool)
	var st blockStats
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		t := strings.Join(strings.Fields(a.Text()), " ")
		if t != "" {
			links[strings.ToLower(t)] = true
			st.linkWords += len(strings.Fields(t))
		}
	})

	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		n := len(strings.Fields(line))
		st.lines++
		st.words += n

		lower := strings.ToLower(line)
		switch {
		case links[lower]:
			st.linkLines++
		case isBoilerplate(lower):
			st.boilerLines++
		case n > longLineWords:
			st.longLines++
		case n >= minLyricWords && n <= maxLyricWords:
			st.lyricLines++
		}
	}
	return st
}

func isBoilerplate(lower string) bool {
	for _, p := range boilerplatePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
