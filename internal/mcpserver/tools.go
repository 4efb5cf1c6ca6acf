package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hession/lyricsleuth/internal/agent"
	"github.com/hession/lyricsleuth/internal/engine"
	"github.com/hession/lyricsleuth/internal/history"
	"github.com/hession/lyricsleuth/internal/logger"
	"github.com/hession/lyricsleuth/internal/tools"
)

// SearchInput is the input schema for search_song_by_lyrics.
type SearchInput struct {
	Snippet  string `json:"snippet" jsonschema:"lyrics fragment, as heard or remembered"`
	MaxPages int    `json:"max_pages,omitempty" jsonschema:"maximum lyrics pages to inspect (default 8, at most 20)"`
}

// SearchOutput is the output schema for search_song_by_lyrics. Best is
// only meaningful when Found is set.
type SearchOutput struct {
	Found        bool              `json:"found"`
	Best         CandidateOutput   `json:"best"`
	Alternatives []CandidateOutput `json:"alternatives"`
	Queries      []string          `json:"queries"`
	Partial      bool              `json:"partial"`
}

// CandidateOutput is one proposed song.
type CandidateOutput struct {
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	URL    string  `json:"url"`
	Score  float64 `json:"score"`
	Site   string  `json:"site"`
	Match  string  `json:"match,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: tools.LyricsSearchToolName,
		Description: "Identify a song from a fragment of its lyrics. Returns the best matching " +
			"song with a similarity score between 0 and 1, plus ranked alternatives.",
	}, s.handleSearch)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	result, err := s.ports.Searcher.Run(ctx, input.Snippet, input.MaxPages)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	s.record(input.Snippet, result)
	return nil, toOutput(result), nil
}

func (s *Server) record(snippet string, result *engine.MatchResult) {
	if s.ports.History == nil {
		return
	}
	rec, err := history.NewRecord("mcp", snippet, &agent.Outcome{Backend: agent.BackendDirect, Result: result})
	if err == nil {
		err = s.ports.History.Save(rec)
	}
	if err != nil {
		logger.Warn("mcp: failed to record search in history: %v", err)
	}
}

func toOutput(r *engine.MatchResult) SearchOutput {
	out := SearchOutput{
		Alternatives: make([]CandidateOutput, 0, len(r.Alternatives)),
		Queries:      append([]string{}, r.Queries...),
		Partial:      r.Partial,
	}
	if r.Best != nil {
		out.Found = true
		out.Best = toCandidate(*r.Best)
	}
	for _, c := range r.Alternatives {
		out.Alternatives = append(out.Alternatives, toCandidate(c))
	}
	return out
}

func toCandidate(c engine.Candidate) CandidateOutput {
	return CandidateOutput{
		Title:  c.Title,
		Artist: c.Artist,
		URL:    c.URL,
		Score:  c.Score,
		Site:   c.Site,
		Match:  c.Match,
	}
}
