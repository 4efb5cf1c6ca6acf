package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// rule returns raw lyrics text for one site, or "" when the layout did not match.
type rule func(doc *goquery.Document) string

var siteRules = map[Site]rule{
	SiteGenius:     geniusLyrics,
	SiteAZLyrics:   azlyricsLyrics,
	SiteLyricsCom:  lyricsComLyrics,
	SiteMusixmatch: musixmatchLyrics,
}

func geniusLyrics(doc *goquery.Document) string {
	containers := doc.Find(`[data-lyrics-container="true"]`)
	// Headers and contributor blurbs live inside the containers
	containers.Find(`[data-exclude-from-selection="true"]`).Remove()
	return joinBlocks(containers)
}

func azlyricsLyrics(doc *goquery.Document) string {
	body := doc.Find("div.col-xs-12.col-lg-8.text-center").First().
		ChildrenFiltered("div").
		FilterFunction(func(_ int, s *goquery.Selection) bool {
			_, hasClass := s.Attr("class")
			_, hasID := s.Attr("id")
			return !hasClass && !hasID
		}).
		First()
	return blockText(body)
}

func lyricsComLyrics(doc *goquery.Document) string {
	return blockText(doc.Find("#lyric-body-text").First())
}

func musixmatchLyrics(doc *goquery.Document) string {
	if text := preText(doc.Find(".lyrics__content__ok, .lyrics__content__warning")); strings.TrimSpace(text) != "" {
		return text
	}

	var lines []string
	doc.Find(`[data-testid="lyrics-line"]`).Each(func(_ int, s *goquery.Selection) {
		lines = append(lines, strings.TrimSpace(s.Text()))
	})
	return strings.Join(lines, "\n")
}

func joinBlocks(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := blockText(s); strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}
