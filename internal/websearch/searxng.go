package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hession/lyricsleuth/internal/logger"
)

// maxSearXNGPages bounds how many result pages one Search may request.
const maxSearXNGPages = 3

// SearXNGProvider queries a SearXNG instance through its JSON API. SearXNG
// ignores any count parameter and returns one merged page per request, so
// Search pages forward until it has limit distinct links.
type SearXNGProvider struct {
	httpSource
	apiKey string
}

func NewSearXNGProvider(cfg ProviderConfig) *SearXNGProvider {
	return &SearXNGProvider{
		httpSource: newHTTPSource("searxng", "http://localhost:8080", cfg),
		apiKey:     strings.TrimSpace(cfg.APIKey),
	}
}

func (p *SearXNGProvider) Name() string {
	return p.name
}

type searxngPage struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
	Unresponsive [][]string `json:"unresponsive_engines"`
}

func (p *SearXNGProvider) Search(ctx context.Context, query string, limit int) (Response, error) {
	query, limit, err := checkQuery(query, limit)
	if err != nil {
		return Response{}, err
	}

	results := make([]Result, 0, limit)
	seen := make(map[string]bool)
	for pageNo := 1; pageNo <= maxSearXNGPages && len(results) < limit; pageNo++ {
		page, err := p.page(ctx, query, pageNo)
		if err != nil {
			// Later pages are a bonus; only the first one must succeed.
			if pageNo == 1 {
				return Response{}, err
			}
			logger.Debug("searxng page %d for %q failed: %v", pageNo, query, err)
			break
		}
		if len(page.Unresponsive) > 0 {
			logger.Debug("searxng unresponsive engines for %q: %v", query, page.Unresponsive)
		}

		added := 0
		for _, r := range page.Results {
			link := strings.TrimSpace(r.URL)
			if link == "" || seen[link] {
				continue
			}
			seen[link] = true
			added++
			results = append(results, Result{
				Title:   strings.TrimSpace(r.Title),
				URL:     link,
				Snippet: strings.TrimSpace(r.Content),
				Source:  p.name,
			})
			if len(results) == limit {
				break
			}
		}
		if added == 0 {
			break
		}
	}

	return Response{Query: query, Provider: p.name, Results: results}, nil
}

func (p *SearXNGProvider) page(ctx context.Context, query string, pageNo int) (*searxngPage, error) {
	params := url.Values{
		"q":          {query},
		"format":     {"json"},
		"categories": {"general"},
		"safesearch": {"1"},
		"pageno":     {strconv.Itoa(pageNo)},
	}
	if p.apiKey != "" {
		params.Set("apikey", p.apiKey)
	}

	resp, err := p.get(ctx, "/search", params, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page searxngPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &page, nil
}
