// Package history keeps an optional local record of identified snippets.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hession/lyricsleuth/internal/agent"
)

// Store history storage interface
type Store interface {
	Save(rec *Record) error
	Get(id string) (*Record, error)
	List(limit int) ([]*Record, error)
	Search(keyword string, limit int) ([]*Record, error)
	Delete(id string) error
	Clear() error

	// Close connection
	Close() error
}

// Record is one identified snippet.
type Record struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source"` // "cli", "shell", "mcp" or "batch:<file>"
	Snippet    string    `json:"snippet"`
	Backend    string    `json:"backend"`
	BestTitle  string    `json:"best_title,omitempty"`
	BestArtist string    `json:"best_artist,omitempty"`
	BestURL    string    `json:"best_url,omitempty"`
	BestScore  float64   `json:"best_score"`
	ResultJSON string    `json:"result_json"`
}

// HasMatch reports whether the run found a song.
func (r *Record) HasMatch() bool {
	return r.BestURL != ""
}

// Outcome decodes the stored outcome.
func (r *Record) Outcome() (*agent.Outcome, error) {
	var out agent.Outcome
	if err := json.Unmarshal([]byte(r.ResultJSON), &out); err != nil {
		return nil, fmt.Errorf("failed to decode stored result %s: %w", r.ID, err)
	}
	return &out, nil
}

// NewRecord flattens an outcome into a record; ID and time are set on Save.
func NewRecord(source, snippet string, out *agent.Outcome) (*Record, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	rec := &Record{
		Source:     source,
		Snippet:    snippet,
		Backend:    out.Backend,
		ResultJSON: string(data),
	}
	if out.Result != nil && out.Result.Best != nil {
		best := out.Result.Best
		rec.BestTitle = best.Title
		rec.BestArtist = best.Artist
		rec.BestURL = best.URL
		rec.BestScore = best.Score
	}
	return rec, nil
}

// ErrNotFound is returned by Find when no run matches.
var ErrNotFound = errors.New("run not found")

// findScanLimit bounds how far back Find looks for a prefix match.
const findScanLimit = 500

// Find resolves a full ID or the short prefix shown in listings.
func Find(store Store, idOrPrefix string) (*Record, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rec, err := store.Get(idOrPrefix)
	if err != nil || rec != nil {
		return rec, err
	}

	recs, err := store.List(findScanLimit)
	if err != nil {
		return nil, err
	}
	var found *Record
	for _, r := range recs {
		if !strings.HasPrefix(r.ID, idOrPrefix) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("ambiguous id prefix %q", idOrPrefix)
		}
		found = r
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	}
	return found, nil
}
