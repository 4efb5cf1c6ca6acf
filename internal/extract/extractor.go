// Package extract pulls lyrics text and best-effort song metadata out of lyrics pages.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hession/lyricsleuth/internal/logger"
)

// Site identifies a lyrics site with a dedicated extraction rule.
type Site string

const (
	SiteGenius     Site = "genius"
	SiteAZLyrics   Site = "azlyrics"
	SiteLyricsCom  Site = "lyrics.com"
	SiteMusixmatch Site = "musixmatch"
	SiteUnknown    Site = "unknown"
)

var siteDomains = []struct {
	domain string
	site   Site
}{
	{"genius.com", SiteGenius},
	{"azlyrics.com", SiteAZLyrics},
	{"lyrics.com", SiteLyricsCom},
	{"musixmatch.com", SiteMusixmatch},
}

// Page is what could be recovered from one fetched page. Lyrics is empty when
// extraction failed; Title and Artist are independently optional.
type Page struct {
	URL    string
	Site   Site
	Lyrics string
	Title  string
	Artist string
}

// SiteFor classifies rawURL by host.
func SiteFor(rawURL string) Site {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SiteUnknown
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, sd := range siteDomains {
		if host == sd.domain || strings.HasSuffix(host, "."+sd.domain) {
			return sd.site
		}
	}
	return SiteUnknown
}

// Extract never fails: a page it cannot make sense of comes back with empty lyrics.
func Extract(rawURL, html string) Page {
	page := Page{URL: rawURL, Site: SiteFor(rawURL)}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Debug("failed to parse %s: %v", rawURL, err)
		return page
	}

	page.Title, page.Artist = metadata(doc, rawURL, page.Site)

	if rule, ok := siteRules[page.Site]; ok {
		page.Lyrics = cleanLyrics(rule(doc))
	}
	if page.Lyrics == "" {
		page.Lyrics = genericLyrics(doc)
		if page.Lyrics != "" && page.Site != SiteUnknown {
			logger.Debug("site rule for %s found nothing, used generic heuristic", page.Site)
		}
	}
	return page
}
