package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hession/lyricsleuth/internal/engine"
)

// LyricsSearchToolName is the function name models call.
const LyricsSearchToolName = "search_song_by_lyrics"

// MaxPagesLimit caps the max_pages a caller may request.
const MaxPagesLimit = 20

// SongSearcher is satisfied by *engine.Engine.
type SongSearcher interface {
	Search(ctx context.Context, snippet string, opts engine.Options) (*engine.MatchResult, error)
}

// LyricsSearchTool identifies a song from a lyrics snippet.
type LyricsSearchTool struct {
	searcher SongSearcher
	base     engine.Options
}

// NewLyricsSearchTool creates the tool. base supplies every option the
// caller does not override.
func NewLyricsSearchTool(searcher SongSearcher, base engine.Options) *LyricsSearchTool {
	return &LyricsSearchTool{
		searcher: searcher,
		base:     base,
	}
}

func (t *LyricsSearchTool) Name() string {
	return LyricsSearchToolName
}

func (t *LyricsSearchTool) Description() string {
	return "Identify a song from a fragment of its lyrics. Searches lyrics sites, " +
		"compares the fragment with each page and returns the best matching song " +
		"(title, artist, url, score between 0 and 1) plus ranked alternatives."
}

func (t *LyricsSearchTool) Parameters() []ParameterDef {
	return []ParameterDef{
		{
			Name:        "snippet",
			Type:        "string",
			Description: "Lyrics fragment, as heard or remembered",
			Required:    true,
		},
		{
			Name:        "max_pages",
			Type:        "integer",
			Description: fmt.Sprintf("Maximum lyrics pages to inspect (1-%d)", MaxPagesLimit),
			Minimum:     bound(1),
			Maximum:     bound(MaxPagesLimit),
		},
	}
}

// Execute returns the MatchResult as JSON.
func (t *LyricsSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	snippet, maxPages, err := ParseArgs(args)
	if err != nil {
		return "", err
	}

	result, err := t.Run(ctx, snippet, maxPages)
	if err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(payload), nil
}

// Run searches with the tool's defaults; maxPages <= 0 keeps the default.
func (t *LyricsSearchTool) Run(ctx context.Context, snippet string, maxPages int) (*engine.MatchResult, error) {
	opts := t.base
	if maxPages > 0 {
		opts.MaxPages = min(maxPages, MaxPagesLimit)
	}
	return t.searcher.Search(ctx, snippet, opts)
}

// ParseArgs validates function-call arguments. JSON numbers arrive as float64.
func ParseArgs(args map[string]any) (snippet string, maxPages int, err error) {
	snippet, ok := args["snippet"].(string)
	if !ok || strings.TrimSpace(snippet) == "" {
		return "", 0, fmt.Errorf("missing required parameter: snippet")
	}

	switch v := args["max_pages"].(type) {
	case nil:
	case float64:
		maxPages = int(v)
	case int:
		maxPages = v
	case json.Number:
		n, convErr := v.Int64()
		if convErr != nil {
			return "", 0, fmt.Errorf("invalid max_pages %q: %w", v, convErr)
		}
		maxPages = int(n)
	default:
		return "", 0, fmt.Errorf("invalid max_pages: expected a number, got %T", v)
	}
	if maxPages < 0 {
		return "", 0, fmt.Errorf("invalid max_pages %d: must be positive", maxPages)
	}
	return snippet, maxPages, nil
}
