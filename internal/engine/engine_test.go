package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/hession/lyricsleuth/internal/fetch"
	"github.com/hession/lyricsleuth/internal/websearch"
)

type fakeSearcher struct {
	mu      sync.Mutex
	hits    map[string][]websearch.Hit
	errs    map[string]error
	queries []string
}

func (f *fakeSearcher) Hits(_ context.Context, query string, limit int, _ []string) (iter.Seq[websearch.Hit], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	hits := f.hits[query]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return slices.Values(hits), nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	calls   map[string]int
	onFetch func(url string)
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[url]++
	html, ok := f.pages[url]
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s returned status 404", fetch.ErrFetchFailed, url)
	}
	return html, nil
}

func lyricsPage(title string, lines ...string) string {
	return `<html><head><title>` + title + `</title></head><body>` +
		`<div data-lyrics-container="true">` + strings.Join(lines, "<br>") + `</div></body></html>`
}

func hit(url string, rank int) websearch.Hit {
	return websearch.Hit{URL: url, Rank: rank}
}

const wonderfulSnippet = "and I think to myself what a wonderful world"

var (
	wonderfulPage = lyricsPage("Louis Armstrong – What a Wonderful World Lyrics | Genius Lyrics",
		"I see trees of green, red roses too",
		"I see them bloom for me and you",
		"And I think to myself, what a wonderful world")
	yesterdayPage = lyricsPage("The Beatles – Yesterday Lyrics | Genius Lyrics",
		"Yesterday, all my troubles seemed so far away",
		"Now it looks as though they're here to stay",
		"Oh, I believe in yesterday")
	coverPage = lyricsPage("Joey Ramone – What a Wonderful World Lyrics | Genius Lyrics",
		"I see trees so green, red roses too",
		"And I think to myself oh what a wonderful world")
)

func queriesFor(t *testing.T, snippet string) []string {
	t.Helper()
	queries, err := BuildQueries(snippet)
	if err != nil {
		t.Fatalf("BuildQueries failed: %v", err)
	}
	return queries
}

func TestSearch_VerbatimPhraseIsBest(t *testing.T) {
	q := queriesFor(t, wonderfulSnippet)
	searcher := &fakeSearcher{hits: map[string][]websearch.Hit{
		q[0]: {hit("https://genius.com/the-beatles-yesterday-lyrics", 0), hit("https://genius.com/louis-armstrong-what-a-wonderful-world-lyrics", 1)},
	}}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://genius.com/the-beatles-yesterday-lyrics":             yesterdayPage,
		"https://genius.com/louis-armstrong-what-a-wonderful-world-lyrics": wonderfulPage,
	}}

	result, err := New(searcher, fetcher).Search(context.Background(), wonderfulSnippet, Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Best == nil {
		t.Fatal("Expected a best candidate")
	}
	if result.Best.URL != "https://genius.com/louis-armstrong-what-a-wonderful-world-lyrics" {
		t.Errorf("Unexpected best %+v", result.Best)
	}
	if result.Best.Score < 0.95 {
		t.Errorf("Expected score >= 0.95, got %f", result.Best.Score)
	}
	if result.Best.Title != "What a Wonderful World" || result.Best.Artist != "Louis Armstrong" {
		t.Errorf("Unexpected metadata %+v", result.Best)
	}
	if result.Best.Match != "And I think to myself, what a wonderful world" {
		t.Errorf("Unexpected match line %q", result.Best.Match)
	}
	if len(result.Alternatives) != 1 || result.Alternatives[0].Score >= result.Best.Score {
		t.Errorf("Unexpected alternatives %+v", result.Alternatives)
	}
	if result.Partial {
		t.Error("Result should not be partial")
	}
}

func TestSearch_AllFetchesFail(t *testing.T) {
	q := queriesFor(t, wonderfulSnippet)
	searcher := &fakeSearcher{hits: map[string][]websearch.Hit{
		q[0]: {hit("https://genius.com/a", 0), hit("https://azlyrics.com/b", 1)},
	}}
	fetcher := &fakeFetcher{}

	result, err := New(searcher, fetcher).Search(context.Background(), wonderfulSnippet, Options{})
	if err != nil {
		t.Fatalf("Search should not fail: %v", err)
	}
	if result == nil {
		t.Fatal("Result must not be nil")
	}
	if result.Best != nil || len(result.Alternatives) != 0 {
		t.Errorf("Expected no candidates, got %+v", result)
	}
	if result.Alternatives == nil {
		t.Error("Alternatives should be an empty list, not nil")
	}
}

func TestSearch_InvalidSnippet(t *testing.T) {
	var states []State
	e := New(&fakeSearcher{}, &fakeFetcher{}, WithStateObserver(func(s State) {
		states = append(states, s)
	}))

	for _, snippet := range []string{"   ", "", "1234 5678", "?!"} {
		result, err := e.Search(context.Background(), snippet, Options{})
		if !errors.Is(err, ErrInvalidSnippet) {
			t.Errorf("Search(%q) error = %v, want ErrInvalidSnippet", snippet, err)
		}
		if result != nil {
			t.Errorf("Search(%q) should not return a result", snippet)
		}
	}
	if states[len(states)-1] != StateFailed {
		t.Errorf("Expected final state FAILED, got %v", states)
	}
}

func TestSearch_StateSequence(t *testing.T) {
	var states []State
	e := New(&fakeSearcher{}, &fakeFetcher{}, WithStateObserver(func(s State) {
		states = append(states, s)
	}))

	if _, err := e.Search(context.Background(), wonderfulSnippet, Options{}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	want := []State{StateBuildQueries, StateSearch, StateFetchExtract, StateScore, StateAggregate, StateDone}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("States = %v, want %v", states, want)
	}
}

func TestSearch_SameURLFromTwoQueries(t *testing.T) {
	q := queriesFor(t, wonderfulSnippet)
	url := "https://genius.com/louis-armstrong-what-a-wonderful-world-lyrics"
	searcher := &fakeSearcher{hits: map[string][]websearch.Hit{
		q[0]: {hit(url, 0)},
		q[1]: {hit("https://www.genius.com/louis-armstrong-what-a-wonderful-world-lyrics/", 0), hit("https://genius.com/the-beatles-yesterday-lyrics", 1)},
	}}
	fetcher := &fakeFetcher{pages: map[string]string{
		url: wonderfulPage,
		"https://genius.com/the-beatles-yesterday-lyrics": yesterdayPage,
	}}

	result, err := New(searcher, fetcher).Search(context.Background(), wonderfulSnippet, Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	seen := make(map[string]int)
	for _, c := range result.Candidates() {
		seen[NormalizeURL(c.URL)]++
	}
	for u, n := range seen {
		if n > 1 {
			t.Errorf("URL %s appears %d times", u, n)
		}
	}
	if fetcher.calls["https://www.genius.com/louis-armstrong-what-a-wonderful-world-lyrics/"] != 0 {
		t.Error("Duplicate URL should not be fetched twice")
	}
	if result.Best == nil || result.Best.URL != url || result.Best.Score < 0.95 {
		t.Errorf("Unexpected best %+v", result.Best)
	}
}

func TestSearch_EmptyLyricsExcluded(t *testing.T) {
	q := queriesFor(t, wonderfulSnippet)
	searcher := &fakeSearcher{hits: map[string][]websearch.Hit{
		q[0]: {hit("https://genius.com/empty", 0), hit("https://genius.com/louis-armstrong-what-a-wonderful-world-lyrics", 1)},
	}}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://genius.com/empty": "<html><head><title>What a Wonderful World</title></head><body><p>Sorry, no lyrics</p></body></html>",
		"https://genius.com/louis-armstrong-what-a-wonderful-world-lyrics": wonderfulPage,
	}}

	result, err := New(searcher, fetcher).Search(context.Background(), wonderfulSnippet, Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, c := range result.Candidates() {
		if c.URL == "https://genius.com/empty" {
			t.Error("Page without lyrics must not become a candidate")
		}
	}
	if len(result.Candidates()) != 1 {
		t.Errorf("Expected 1 candidate, got %d", len(result.Candidates()))
	}
}

func rankingFixture(t *testing.T) (*fakeSearcher, *fakeFetcher) {
	q := queriesFor(t, wonderfulSnippet)
	var hits []websearch.Hit
	pages := make(map[string]string)
	bodies := []string{yesterdayPage, coverPage, wonderfulPage}
	for i := 0; i < 6; i++ {
		url := fmt.Sprintf("https://genius.com/page-%d", i)
		hits = append(hits, hit(url, i))
		// Distinct titles so nothing collapses as the same song
		pages[url] = strings.Replace(bodies[i%3], "<title>", fmt.Sprintf("<title>Artist %d - ", i), 1)
	}
	return &fakeSearcher{hits: map[string][]websearch.Hit{q[0]: hits}}, &fakeFetcher{pages: pages}
}

func TestSearch_MonotonicRanking(t *testing.T) {
	searcher, fetcher := rankingFixture(t)

	result, err := New(searcher, fetcher).Search(context.Background(), wonderfulSnippet, Options{MaxAlternatives: 3})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	candidates := result.Candidates()
	if len(candidates) != 4 {
		t.Fatalf("Expected best plus 3 alternatives, got %d", len(candidates))
	}
	for i := 1; i < len(candidates); i++ {
		prev, cur := candidates[i-1], candidates[i]
		if prev.Score < cur.Score {
			t.Errorf("Candidate %d score %f above candidate %d score %f", i, cur.Score, i-1, prev.Score)
		}
		if prev.Score == cur.Score && prev.Rank > cur.Rank {
			t.Errorf("Equal scores should keep search order, got ranks %d then %d", prev.Rank, cur.Rank)
		}
	}
	for _, c := range candidates {
		if c.Score < 0 || c.Score > 1 {
			t.Errorf("Score out of range: %f", c.Score)
		}
	}
}

func TestSearch_Deterministic(t *testing.T) {
	searcher, fetcher := rankingFixture(t)
	e := New(searcher, fetcher)

	first, err := e.Search(context.Background(), wonderfulSnippet, Options{Concurrency: 3})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := e.Search(context.Background(), wonderfulSnippet, Options{Concurrency: 3})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Results differ between runs:\n%+v\n%+v", first, again)
		}
	}
}

func TestSearch_SearchUnavailableIsRecoverable(t *testing.T) {
	q := queriesFor(t, wonderfulSnippet)
	searcher := &fakeSearcher{
		errs: map[string]error{q[0]: fmt.Errorf("%w: fake: connection refused", websearch.ErrSearchUnavailable)},
		hits: map[string][]websearch.Hit{q[1]: {hit("https://genius.com/louis-armstrong-what-a-wonderful-world-lyrics", 0)}},
	}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://genius.com/louis-armstrong-what-a-wonderful-world-lyrics": wonderfulPage,
	}}

	result, err := New(searcher, fetcher).Search(context.Background(), wonderfulSnippet, Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Best == nil {
		t.Error("Expected the second query's hit to be used")
	}
	if len(searcher.queries) != len(q) {
		t.Errorf("Expected every query to be tried, got %v", searcher.queries)
	}
}

func TestSearch_PageBudget(t *testing.T) {
	q := queriesFor(t, wonderfulSnippet)
	searcher := &fakeSearcher{hits: map[string][]websearch.Hit{
		q[0]: {hit("https://genius.com/a", 0), hit("https://genius.com/b", 1), hit("https://genius.com/c", 2)},
		q[1]: {hit("https://genius.com/d", 0)},
	}}
	fetcher := &fakeFetcher{}

	if _, err := New(searcher, fetcher).Search(context.Background(), wonderfulSnippet, Options{MaxPages: 2}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(fetcher.calls) != 2 {
		t.Errorf("Expected 2 fetches, got %v", fetcher.calls)
	}
	if len(searcher.queries) != 1 {
		t.Errorf("Budget was met by the first query, got queries %v", searcher.queries)
	}
}

func TestSearch_CancelKeepsScoredCandidates(t *testing.T) {
	q := queriesFor(t, wonderfulSnippet)
	first := "https://genius.com/louis-armstrong-what-a-wonderful-world-lyrics"
	searcher := &fakeSearcher{hits: map[string][]websearch.Hit{
		q[0]: {hit(first, 0), hit("https://genius.com/b", 1), hit("https://genius.com/c", 2)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &fakeFetcher{
		pages: map[string]string{first: wonderfulPage},
		onFetch: func(url string) {
			if url == first {
				cancel()
			}
		},
	}

	result, err := New(searcher, fetcher).Search(ctx, wonderfulSnippet, Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Cancelled search should not fail: %v", err)
	}
	if !result.Partial {
		t.Error("Expected partial result")
	}
	if result.Best == nil || result.Best.URL != first {
		t.Errorf("Expected the page scored before cancellation, got %+v", result.Best)
	}
	if fetcher.calls["https://genius.com/c"] != 0 {
		t.Error("Fetches after cancellation should be skipped")
	}
}

func TestRank_DedupesSongKeepingHigherScore(t *testing.T) {
	ranked := rank([]Candidate{
		{URL: "https://genius.com/a", Title: "Yesterday", Artist: "The Beatles", Score: 0.6, Rank: 0},
		{URL: "https://azlyrics.com/b", Title: "yesterday", Artist: "the beatles!", Score: 0.9, Rank: 1},
		{URL: "https://lyrics.com/c", Title: "", Score: 0.5, Rank: 2},
		{URL: "https://lyrics.com/d", Title: "", Score: 0.5, Rank: 3},
	})

	if len(ranked) != 3 {
		t.Fatalf("Expected 3 candidates, got %+v", ranked)
	}
	if ranked[0].URL != "https://azlyrics.com/b" {
		t.Errorf("Expected the higher scoring duplicate to win, got %+v", ranked[0])
	}
	// Untitled pages are never merged with each other
	if ranked[1].URL != "https://lyrics.com/c" || ranked[2].URL != "https://lyrics.com/d" {
		t.Errorf("Unexpected order %+v", ranked)
	}
}

func TestRank_TieBreakBySearchRank(t *testing.T) {
	ranked := rank([]Candidate{
		{URL: "https://genius.com/late", Title: "B", Score: 0.8, Rank: 5},
		{URL: "https://genius.com/early", Title: "A", Score: 0.8, Rank: 1},
	})
	if ranked[0].URL != "https://genius.com/early" {
		t.Errorf("Expected earlier search rank first, got %+v", ranked)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.MaxPages != DefaultMaxPages || o.FetchTimeout != DefaultFetchTimeout ||
		o.MaxAlternatives != DefaultMaxAlternatives || o.Concurrency != DefaultConcurrency {
		t.Errorf("Unexpected defaults %+v", o)
	}
	if !reflect.DeepEqual(o.AllowedDomains, websearch.DefaultAllowedDomains) {
		t.Errorf("Unexpected default domains %v", o.AllowedDomains)
	}

	o = Options{MaxAlternatives: -1, Concurrency: 50}.withDefaults()
	if o.MaxAlternatives != 0 || o.Concurrency != MaxConcurrency {
		t.Errorf("Unexpected clamping %+v", o)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"https://genius.com/a", "http://www.genius.com/a/", true},
		{"https://genius.com/a#verse", "https://GENIUS.com/a", true},
		{"https://genius.com/a?x=1", "https://genius.com/a", false},
		{"https://genius.com/a", "https://genius.com/b", false},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.a) == NormalizeURL(tt.b); got != tt.same {
			t.Errorf("NormalizeURL(%q) == NormalizeURL(%q) is %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
}
