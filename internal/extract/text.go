package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "main": true, "header": true, "footer": true,
	"nav": true, "aside": true, "blockquote": true, "pre": true, "form": true,
	"table": true, "tr": true, "td": true, "th": true, "dd": true, "dt": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"iframe": true, "svg": true, "button": true, "#comment": true,
}

var (
	bracketMarker = regexp.MustCompile(`^\[[^\]]*\]$`)
	labelMarker   = regexp.MustCompile(`(?i)^(?:pre-chorus|chorus|verse|bridge|intro|outro|hook|refrain)(?:\s*\d+)?\s*:?\s*`)
)

// blockText renders sel as text, turning <br> and block boundaries into line
// breaks. Source newlines only count inside <pre>.
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		renderText(s, &b, goquery.NodeName(s) == "pre")
	})
	return b.String()
}

// preText renders sel keeping source newlines, for containers styled as pre-line.
func preText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		renderText(s, &b, true)
		endLine(&b)
	})
	return b.String()
}

var newlineToSpace = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func renderText(sel *goquery.Selection, b *strings.Builder, pre bool) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch {
		case name == "#text":
			if pre {
				b.WriteString(s.Text())
			} else {
				b.WriteString(newlineToSpace.Replace(s.Text()))
			}
		case name == "br":
			b.WriteByte('\n')
		case skipTags[name]:
		case blockTags[name]:
			endLine(b)
			renderText(s, b, pre || name == "pre")
			endLine(b)
		default:
			renderText(s, b, pre)
		}
	})
}

func endLine(b *strings.Builder) {
	if n := b.Len(); n > 0 && b.String()[n-1] != '\n' {
		b.WriteByte('\n')
	}
}

// cleanLyrics collapses whitespace inside lines, drops section markers and
// keeps at most one blank line between stanzas.
func cleanLyrics(text string) string {
	var out []string
	blank := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if bracketMarker.MatchString(line) {
			continue
		}
		if loc := labelMarker.FindStringIndex(line); loc != nil {
			rest := strings.TrimSpace(line[loc[1]:])
			// "Chorus" alone is a marker, "Chorus: la la" keeps the lyric
			if rest == "" || strings.Contains(line[:loc[1]], ":") || isDigitLabel(line[:loc[1]]) {
				line = rest
				if line == "" {
					continue
				}
			}
		}
		if line == "" {
			blank++
			if blank > 1 || len(out) == 0 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isDigitLabel(label string) bool {
	return strings.ContainsAny(label, "0123456789")
}
