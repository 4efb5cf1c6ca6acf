package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	historyURI   = "lyricsleuth://history"
	historyLimit = 50
)

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         historyURI,
		Name:        "history",
		Description: "Recently identified snippets, newest first",
		MIMEType:    "application/json",
	}, s.handleHistoryResource)
}

type historyEntry struct {
	ID      string  `json:"id"`
	When    string  `json:"when"`
	Source  string  `json:"source"`
	Snippet string  `json:"snippet"`
	Title   string  `json:"title,omitempty"`
	Artist  string  `json:"artist,omitempty"`
	URL     string  `json:"url,omitempty"`
	Score   float64 `json:"score"`
}

func (s *Server) handleHistoryResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	entries := []historyEntry{}
	if s.ports.History != nil {
		recs, err := s.ports.History.List(historyLimit)
		if err != nil {
			return nil, fmt.Errorf("listing history: %w", err)
		}
		for _, r := range recs {
			entries = append(entries, historyEntry{
				ID:      r.ID,
				When:    r.CreatedAt.Format("2006-01-02 15:04:05"),
				Source:  r.Source,
				Snippet: r.Snippet,
				Title:   r.BestTitle,
				Artist:  r.BestArtist,
				URL:     r.BestURL,
				Score:   r.BestScore,
			})
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
