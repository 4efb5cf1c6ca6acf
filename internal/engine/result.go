package engine

import (
	"time"

	"github.com/hession/lyricsleuth/internal/websearch"
)

// Candidate is a scored lyrics page proposed as the song.
type Candidate struct {
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	URL    string  `json:"url"`
	Score  float64 `json:"score"`
	Site   string  `json:"site"`
	Match  string  `json:"match,omitempty"` // lyrics line closest to the snippet
	Rank   int     `json:"rank"`            // position among all search hits, from 0
}

// MatchResult is the outcome of one search. Best is nil when nothing matched,
// which is not an error.
type MatchResult struct {
	Best         *Candidate  `json:"best"`
	Alternatives []Candidate `json:"alternatives"`
	Queries      []string    `json:"queries"`
	Partial      bool        `json:"partial,omitempty"`
}

// Candidates returns best followed by the alternatives.
func (r *MatchResult) Candidates() []Candidate {
	if r == nil || r.Best == nil {
		return nil
	}
	return append([]Candidate{*r.Best}, r.Alternatives...)
}

const (
	DefaultMaxPages        = 8
	DefaultFetchTimeout    = 10 * time.Second
	DefaultMaxAlternatives = 4
	DefaultConcurrency     = 4
	MaxConcurrency         = 8
)

// Options tunes one search. Zero values take the defaults; a negative
// MaxAlternatives means none.
type Options struct {
	MaxPages        int
	AllowedDomains  []string
	FetchTimeout    time.Duration
	MaxAlternatives int
	Concurrency     int
}

// DefaultOptions returns the options used for zero values.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if len(o.AllowedDomains) == 0 {
		o.AllowedDomains = websearch.DefaultAllowedDomains
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	switch {
	case o.MaxAlternatives == 0:
		o.MaxAlternatives = DefaultMaxAlternatives
	case o.MaxAlternatives < 0:
		o.MaxAlternatives = 0
	}
	switch {
	case o.Concurrency <= 0:
		o.Concurrency = DefaultConcurrency
	case o.Concurrency > MaxConcurrency:
		o.Concurrency = MaxConcurrency
	}
	return o
}

// State is a step of the search pipeline.
type State string

const (
	StateBuildQueries State = "BUILD_QUERIES"
	StateSearch       State = "SEARCH"
	StateFetchExtract State = "FETCH_EXTRACT"
	StateScore        State = "SCORE"
	StateAggregate    State = "AGGREGATE"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)
