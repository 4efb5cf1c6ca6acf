// Package fetch retrieves lyrics pages politely: bounded time, bounded size,
// and a minimum delay between hits on the same site.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrFetchFailed wraps every failure to retrieve a page.
var ErrFetchFailed = errors.New("fetch failed")

const (
	defaultTimeout   = 10 * time.Second
	defaultMaxBytes  = int64(2 << 20)
	defaultUserAgent = "LyricSleuth/0.1 (+https://github.com/hession/lyricsleuth)"
)

// Config configures a Fetcher.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
}

// Fetcher retrieves raw HTML.
type Fetcher struct {
	userAgent string
	timeout   time.Duration
	maxBytes  int64
	throttle  *Throttle
	client    *http.Client
}

// New creates a fetcher. throttle may be shared by many fetchers; nil disables pacing.
func New(cfg Config, throttle *Throttle) *Fetcher {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	return &Fetcher{
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		maxBytes:  cfg.MaxBytes,
		throttle:  throttle,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Fetch returns the body of rawURL. All errors wrap ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: invalid url %q", ErrFetchFailed, rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported url scheme %q", ErrFetchFailed, parsed.Scheme)
	}

	if err := f.throttle.Wait(ctx, parsed.Host); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrFetchFailed, parsed.Host, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s returned status %d", ErrFetchFailed, parsed.String(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrFetchFailed, err)
	}
	return string(body), nil
}
