package extract

import (
	"encoding/json"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	titleSiteSuffix  = regexp.MustCompile(`\s*\|.*$`)
	titleLyricsParen = regexp.MustCompile(`(?i)\s*\([^)]*lyrics[^)]*\)\s*$`)
	titleLyricsWord  = regexp.MustCompile(`(?i)\s*\blyrics\s*$`)
	titleLyricsBy    = regexp.MustCompile(`(?i)^(.+?)\s+lyrics\s+by\s+(.+)$`)
	titleQuotedBy    = regexp.MustCompile(`^["“](.+?)["”]\s+by\s+(.+)$`)
	titleSeparator   = regexp.MustCompile(`\s+[-–—]\s+|:\s+`)
	featuring        = regexp.MustCompile(`(?i)\b(feat\.|ft\.|featuring|with)\s`)
	mentionsLyrics   = regexp.MustCompile(`(?i)lyrics`)
)

// metadata recovers song title and artist: document title first, then
// structured metadata, then the URL path. Each field is filled by the first
// source that has it.
func metadata(doc *goquery.Document, rawURL string, site Site) (title, artist string) {
	fill := func(t, a string) {
		if title == "" {
			title = t
		}
		if artist == "" {
			artist = a
		}
	}

	fill(ParseTitle(doc.Find("title").First().Text()))
	if title != "" && artist != "" {
		return title, artist
	}

	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		fill(ParseTitle(og))
	}
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		fill(jsonLDRecording(s.Text()))
		return title == "" || artist == ""
	})
	if title != "" && artist != "" {
		return title, artist
	}

	fill(pathMetadata(rawURL, site))
	return title, artist
}

// ParseTitle splits page or search-result titles such as "Artist - Song Lyrics | Site",
// "Song Lyrics by Artist" or `"Song" by Artist`.
func ParseTitle(raw string) (title, artist string) {
	t := strings.Join(strings.Fields(raw), " ")
	t = titleSiteSuffix.ReplaceAllString(t, "")
	if t == "" {
		return "", ""
	}

	if m := titleLyricsBy.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if m := titleQuotedBy.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}

	t = titleLyricsParen.ReplaceAllString(t, "")
	t = titleLyricsWord.ReplaceAllString(t, "")
	t = strings.TrimSpace(t)

	var parts []string
	for _, p := range titleSeparator.Split(t, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return t, ""
	}

	left, right := parts[0], parts[1]
	if featuring.MatchString(right) {
		return left, ""
	}
	if mentionsLyrics.MatchString(left) {
		return left, right
	}
	return right, left
}

// jsonLDRecording finds a MusicRecording or MusicComposition in a JSON-LD blob.
func jsonLDRecording(blob string) (title, artist string) {
	var data any
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return "", ""
	}
	var walk func(v any) bool
	walk = func(v any) bool {
		switch node := v.(type) {
		case []any:
			for _, item := range node {
				if walk(item) {
					return true
				}
			}
		case map[string]any:
			if isRecording(node["@type"]) {
				title, _ = node["name"].(string)
				artist = artistName(node["byArtist"])
				if artist == "" {
					artist = artistName(node["composer"])
				}
				return true
			}
			if graph, ok := node["@graph"]; ok {
				return walk(graph)
			}
		}
		return false
	}
	walk(data)
	return strings.TrimSpace(title), strings.TrimSpace(artist)
}

func isRecording(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "MusicRecording" || v == "MusicComposition"
	case []any:
		for _, item := range v {
			if isRecording(item) {
				return true
			}
		}
	}
	return false
}

func artistName(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case map[string]any:
		name, _ := a["name"].(string)
		return name
	case []any:
		var names []string
		for _, item := range a {
			if n := artistName(item); n != "" {
				names = append(names, n)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// pathMetadata reads title and artist from well-known URL layouts.
func pathMetadata(rawURL string, site Site) (title, artist string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	var segs []string
	for _, s := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return "", ""
	}

	switch site {
	case SiteAZLyrics:
		// /lyrics/<artist>/<song>.html
		if len(segs) >= 3 && segs[0] == "lyrics" {
			return slugText(strings.TrimSuffix(segs[2], ".html")), slugText(segs[1])
		}
	case SiteLyricsCom:
		// /lyric/<id>/<Artist>/<Song>
		if len(segs) >= 4 && segs[0] == "lyric" {
			return slugText(segs[3]), slugText(segs[2])
		}
	case SiteMusixmatch:
		// /lyrics/<Artist>/<Song>
		if len(segs) >= 3 && segs[0] == "lyrics" {
			return slugText(segs[2]), slugText(segs[1])
		}
	case SiteGenius:
		// /<Artist-song-lyrics>, the artist/song boundary is not recoverable
		return slugText(strings.TrimSuffix(segs[len(segs)-1], "-lyrics")), ""
	}
	last := path.Ext(segs[len(segs)-1])
	return slugText(strings.TrimSuffix(segs[len(segs)-1], last)), ""
}

func slugText(seg string) string {
	if s, err := url.PathUnescape(seg); err == nil {
		seg = s
	}
	seg = strings.NewReplacer("+", " ", "-", " ", "_", " ").Replace(seg)
	return strings.Join(strings.Fields(seg), " ")
}
