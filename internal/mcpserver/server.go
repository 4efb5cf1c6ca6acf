// Package mcpserver exposes song identification to Model Context Protocol
// clients.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hession/lyricsleuth/internal/engine"
	"github.com/hession/lyricsleuth/internal/history"
)

// Version is the MCP server version.
const Version = "0.1.0"

// ErrMissingSearcher is returned when no searcher is provided.
var ErrMissingSearcher = errors.New("mcpserver: searcher is required")

// Searcher is satisfied by *tools.LyricsSearchTool.
type Searcher interface {
	Run(ctx context.Context, snippet string, maxPages int) (*engine.MatchResult, error)
}

// HistoryStore is the part of history.Store the server uses.
type HistoryStore interface {
	Save(rec *history.Record) error
	List(limit int) ([]*history.Record, error)
}

// Ports are the services behind the server. History is optional.
type Ports struct {
	Searcher Searcher
	History  HistoryStore
}

// Validate checks required ports.
func (p *Ports) Validate() error {
	if p == nil || p.Searcher == nil {
		return ErrMissingSearcher
	}
	return nil
}

// Server is the MCP server.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// New creates a server with the tool and resources registered.
func New(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports: ports,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "lyricsleuth",
			Version: Version,
		}, nil),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
