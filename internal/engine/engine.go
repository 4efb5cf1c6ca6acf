// Package engine identifies a song from a lyrics snippet: it searches the web
// for lyrics pages, extracts and scores them, and ranks the candidates.
package engine

import (
	"cmp"
	"context"
	"iter"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/arunsworld/nursery"

	"github.com/hession/lyricsleuth/internal/extract"
	"github.com/hession/lyricsleuth/internal/logger"
	"github.com/hession/lyricsleuth/internal/similarity"
	"github.com/hession/lyricsleuth/internal/websearch"
)

// matchThreshold is the minimum line score reported as Candidate.Match.
const matchThreshold = 0.5

// HitSearcher finds lyrics pages for a query.
type HitSearcher interface {
	Hits(ctx context.Context, query string, limit int, allowed []string) (iter.Seq[websearch.Hit], error)
}

// PageFetcher retrieves raw HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Engine runs searches. It holds no per-search state and is safe for concurrent use.
type Engine struct {
	searcher HitSearcher
	fetcher  PageFetcher
	observer func(State)
}

// Option configures an Engine.
type Option func(*Engine)

// WithStateObserver registers fn to see every state transition of every search.
func WithStateObserver(fn func(State)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// New creates an engine.
func New(searcher HitSearcher, fetcher PageFetcher, opts ...Option) *Engine {
	e := &Engine{
		searcher: searcher,
		fetcher:  fetcher,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search identifies the song snippet most likely comes from. Only
// ErrInvalidSnippet is returned as an error: search, fetch and extraction
// failures shrink the candidate list instead. When ctx is cancelled midway
// the candidates scored so far are returned with Partial set.
func (e *Engine) Search(ctx context.Context, snippet string, opts Options) (*MatchResult, error) {
	opts = opts.withDefaults()
	start := time.Now()

	e.enter(StateBuildQueries)
	text, err := prepareSnippet(snippet)
	if err != nil {
		e.enter(StateFailed)
		return nil, err
	}
	queries, err := BuildQueries(text)
	if err != nil {
		e.enter(StateFailed)
		return nil, err
	}
	result := &MatchResult{Queries: queries, Alternatives: []Candidate{}}

	e.enter(StateSearch)
	hits := e.collectHits(ctx, queries, opts)

	e.enter(StateFetchExtract)
	pages := e.fetchAll(ctx, hits, opts)

	e.enter(StateScore)
	candidates := scorePages(text, hits, pages)

	e.enter(StateAggregate)
	ranked := rank(candidates)
	if len(ranked) > 0 {
		best := ranked[0]
		result.Best = &best
		alts := ranked[1:]
		if len(alts) > opts.MaxAlternatives {
			alts = alts[:opts.MaxAlternatives]
		}
		result.Alternatives = append(result.Alternatives, alts...)
	}
	result.Partial = ctx.Err() != nil

	e.enter(StateDone)
	logger.Info("search finished in %v: %d hits, %d candidates, partial=%v",
		time.Since(start).Round(time.Millisecond), len(hits), len(ranked), result.Partial)
	return result, nil
}

func (e *Engine) enter(s State) {
	logger.Debug("engine state %s", s)
	if e.observer != nil {
		e.observer(s)
	}
}

// collectHits runs the queries in order until the page budget is met.
// Hits are unique by normalized URL.
func (e *Engine) collectHits(ctx context.Context, queries []string, opts Options) []websearch.Hit {
	seen := make(map[string]bool)
	var hits []websearch.Hit

	for _, q := range queries {
		if ctx.Err() != nil || len(hits) >= opts.MaxPages {
			break
		}
		seq, err := e.searcher.Hits(ctx, q, opts.MaxPages, opts.AllowedDomains)
		if err != nil {
			logger.Warn("search for %q failed, continuing without its hits: %v", q, err)
			continue
		}
		for hit := range seq {
			key := NormalizeURL(hit.URL)
			if seen[key] {
				continue
			}
			seen[key] = true
			hits = append(hits, hit)
			if len(hits) >= opts.MaxPages {
				break
			}
		}
	}
	return hits
}

// fetchAll fetches and extracts every hit with a bounded worker pool. Each
// page lands in its hit's slot, so the outcome does not depend on which
// fetch finishes first. Slots stay nil for failed or empty pages.
func (e *Engine) fetchAll(ctx context.Context, hits []websearch.Hit, opts Options) []*extract.Page {
	pages := make([]*extract.Page, len(hits))
	if len(hits) == 0 {
		return pages
	}

	work := make(chan int)
	jobs := []nursery.ConcurrentJob{
		func(ctx context.Context, _ chan error) {
			defer close(work)
			for i := range hits {
				select {
				case work <- i:
				case <-ctx.Done():
					return
				}
			}
		},
	}
	for w := 0; w < min(opts.Concurrency, len(hits)); w++ {
		jobs = append(jobs, func(ctx context.Context, _ chan error) {
			for i := range work {
				pages[i] = e.fetchPage(ctx, hits[i], opts.FetchTimeout)
			}
		})
	}

	if err := nursery.RunConcurrentlyWithContext(ctx, jobs...); err != nil {
		logger.Warn("fetch workers stopped: %v", err)
	}
	return pages
}

func (e *Engine) fetchPage(ctx context.Context, hit websearch.Hit, timeout time.Duration) *extract.Page {
	if ctx.Err() != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	html, err := e.fetcher.Fetch(ctx, hit.URL)
	if err != nil {
		logger.Warn("skipping %s: %v", hit.URL, err)
		return nil
	}
	page := extract.Extract(hit.URL, html)
	if page.Lyrics == "" {
		logger.Debug("no lyrics found on %s", hit.URL)
		return nil
	}
	return &page
}

func scorePages(snippet string, hits []websearch.Hit, pages []*extract.Page) []Candidate {
	var candidates []Candidate
	for i, page := range pages {
		if page == nil {
			continue
		}
		score, ok := similarity.Score(snippet, page.Lyrics)
		if !ok {
			continue
		}

		c := Candidate{
			Title:  page.Title,
			Artist: page.Artist,
			URL:    hits[i].URL,
			Score:  score,
			Site:   string(page.Site),
			Rank:   i,
		}
		// The search result title often names the song when the page does not
		if c.Title == "" || c.Artist == "" {
			title, artist := extract.ParseTitle(hits[i].Title)
			if c.Title == "" {
				c.Title = title
			}
			if c.Artist == "" {
				c.Artist = artist
			}
		}
		if line, s := similarity.BestLine(snippet, page.Lyrics); s >= matchThreshold {
			c.Match = line
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// rank removes duplicates by URL and then by song, keeping the better
// candidate, and sorts by score with search rank breaking ties.
func rank(candidates []Candidate) []Candidate {
	candidates = dedupeBy(candidates, func(c Candidate) string {
		return NormalizeURL(c.URL)
	})
	candidates = dedupeBy(candidates, func(c Candidate) string {
		title := similarity.Normalize(c.Title)
		if title == "" {
			return ""
		}
		return title + "\x00" + similarity.Normalize(c.Artist)
	})

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Rank, b.Rank)
	})
	return candidates
}

// dedupeBy keeps the better of any candidates sharing a non-empty key,
// at the position of the first one seen.
func dedupeBy(candidates []Candidate, key func(Candidate) string) []Candidate {
	index := make(map[string]int)
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		k := key(c)
		if k == "" {
			out = append(out, c)
			continue
		}
		if i, ok := index[k]; ok {
			if better(c, out[i]) {
				out[i] = c
			}
			continue
		}
		index[k] = len(out)
		out = append(out, c)
	}
	return out
}

func better(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Rank < b.Rank
}

// NormalizeURL returns the identity of a page URL: scheme, a leading "www.",
// fragment and trailing slash do not matter.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	key := host + strings.TrimRight(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}
