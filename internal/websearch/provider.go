package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrRateLimited is matched by provider errors caused by an explicit rate-limit response.
	ErrRateLimited = errors.New("search provider rate limited")

	// ErrSearchUnavailable means the provider could not be reached after the retry policy ran out.
	ErrSearchUnavailable = errors.New("search unavailable")
)

// Result is a single search result entry.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Response is a normalized search response.
type Response struct {
	Query    string   `json:"query"`
	Provider string   `json:"provider"`
	Results  []Result `json:"results"`
}

// Provider performs web searches.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) (Response, error)
}

// StatusError is returned by providers for non-2xx responses.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s search request failed with status %d", e.Provider, e.Code)
}

// Is reports rate-limit statuses as ErrRateLimited.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == http.StatusTooManyRequests
}

// Temporary reports server-side failures worth one retry.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Name      string
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

const (
	defaultUserAgent = "LyricSleuth/0.1"
	defaultTimeout   = 15 * time.Second
	defaultLimit     = 5
)

// NewProvider builds the provider named in cfg; unknown names fall back to DuckDuckGo.
func NewProvider(cfg ProviderConfig) Provider {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "searxng":
		return NewSearXNGProvider(cfg)
	default:
		return NewDuckDuckGoProvider(cfg)
	}
}

// httpSource is the request plumbing shared by the HTML and JSON providers.
type httpSource struct {
	name      string
	baseURL   *url.URL
	userAgent string
	client    *http.Client
}

func newHTTPSource(name, fallbackURL string, cfg ProviderConfig) httpSource {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		raw = fallbackURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		base, _ = url.Parse(fallbackURL)
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return httpSource{name: name, baseURL: base, userAgent: ua, client: &http.Client{Timeout: timeout}}
}

// get issues GET base+path?params. Non-2xx replies become a *StatusError and
// the body is closed; otherwise the caller closes it.
func (h httpSource) get(ctx context.Context, path string, params url.Values, accept string) (*http.Response, error) {
	endpoint := *h.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &StatusError{Provider: h.name, Code: resp.StatusCode}
	}
	return resp, nil
}

func checkQuery(query string, limit int) (string, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", 0, errors.New("query cannot be empty")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return query, limit, nil
}
