package websearch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hession/lyricsleuth/internal/logger"
)

// DefaultAllowedDomains are the lyrics sites searched when no allow-list is configured.
var DefaultAllowedDomains = []string{"genius.com", "azlyrics.com", "lyrics.com", "musixmatch.com"}

const defaultRetryDelay = time.Second

// Hit is one search result that passed the domain allow-list.
type Hit struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Rank    int    `json:"rank"` // position among the provider's results, from 0
	Query   string `json:"query"`
}

// Adapter runs provider searches with the retry policy and turns responses into hits.
type Adapter struct {
	provider   Provider
	retryDelay time.Duration
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithRetryDelay sets the pause before the single retry of a transient failure.
func WithRetryDelay(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.retryDelay = d
	}
}

// NewAdapter wraps provider.
func NewAdapter(provider Provider, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		provider:   provider,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the wrapped provider.
func (a *Adapter) Provider() Provider {
	return a.provider
}

// Hits issues one search for query and returns the results on allowed domains,
// at most limit of them, in provider order. The sequence can be ranged once;
// ranging it again yields nothing. Failures wrap ErrSearchUnavailable.
func (a *Adapter) Hits(ctx context.Context, query string, limit int, allowed []string) (iter.Seq[Hit], error) {
	if limit <= 0 {
		limit = 8
	}
	if len(allowed) == 0 {
		allowed = DefaultAllowedDomains
	}

	// Ask for more than needed since most results are off the allow-list
	resp, err := a.search(ctx, query, limit*2)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSearchUnavailable, a.provider.Name(), err)
	}

	var consumed atomic.Bool
	return func(yield func(Hit) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		emitted := 0
		for i, res := range resp.Results {
			if emitted >= limit {
				return
			}
			if !DomainAllowed(res.URL, allowed) {
				continue
			}
			emitted++
			if !yield(Hit{URL: res.URL, Title: res.Title, Snippet: res.Snippet, Rank: i, Query: query}) {
				return
			}
		}
	}, nil
}

// search calls the provider, retrying once on transient failures. Rate-limit
// responses are not retried.
func (a *Adapter) search(ctx context.Context, query string, limit int) (Response, error) {
	resp, err := a.provider.Search(ctx, query, limit)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, ErrRateLimited) || !isTransient(err) || ctx.Err() != nil {
		return Response{}, err
	}

	logger.Warn("search %q via %s failed, retrying once: %v", query, a.provider.Name(), err)
	select {
	case <-ctx.Done():
		return Response{}, err
	case <-time.After(a.retryDelay):
	}
	return a.provider.Search(ctx, query, limit)
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Temporary()
}

// DomainAllowed reports whether rawURL's host is one of allowed or a subdomain of one.
func DomainAllowed(rawURL string, allowed []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range allowed {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
