package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DuckDuckGoProvider scrapes the DuckDuckGo HTML endpoint. The JSON instant-answer
// API only returns encyclopedic topics, never lyrics pages.
type DuckDuckGoProvider struct {
	httpSource
}

func NewDuckDuckGoProvider(cfg ProviderConfig) *DuckDuckGoProvider {
	return &DuckDuckGoProvider{httpSource: newHTTPSource("duckduckgo", "https://html.duckduckgo.com", cfg)}
}

func (p *DuckDuckGoProvider) Name() string {
	return p.name
}

func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, limit int) (Response, error) {
	query, limit, err := checkQuery(query, limit)
	if err != nil {
		return Response{}, err
	}

	resp, err := p.get(ctx, "/html/", url.Values{"q": {query}, "kl": {"wt-wt"}}, "text/html")
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	// 202 is what DuckDuckGo answers with its bot-challenge page
	if resp.StatusCode == http.StatusAccepted {
		return Response{}, &StatusError{Provider: p.name, Code: http.StatusTooManyRequests}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}
	results, err := parseResults(doc, limit, p.name)
	if err != nil {
		return Response{}, err
	}
	return Response{Query: query, Provider: p.name, Results: results}, nil
}

var errNoResultMarkup = errors.New("duckduckgo page has no result markup")

// parseResults reads organic results in page order, skipping ads and
// repeated links. A page without any result container and without the
// "no results" notice means the markup changed, which is reported as an error.
func parseResults(doc *goquery.Document, limit int, source string) ([]Result, error) {
	containers := doc.Find("div.result")
	if containers.Length() == 0 && doc.Find(".no-results").Length() == 0 {
		return nil, errNoResultMarkup
	}

	results := make([]Result, 0, limit)
	seen := make(map[string]bool)
	containers.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}
		if s.HasClass("result--ad") {
			return true
		}
		anchor := s.Find("a.result__a").First()
		href, _ := anchor.Attr("href")
		link := resolveRedirect(href)
		if link == "" || seen[link] {
			return true
		}
		seen[link] = true
		results = append(results, Result{
			Title:   strings.TrimSpace(anchor.Text()),
			URL:     link,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").Text()),
			Source:  source,
		})
		return true
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's //duckduckgo.com/l/?uddg=<target> links.
func resolveRedirect(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
