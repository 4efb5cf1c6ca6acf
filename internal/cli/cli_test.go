package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/c-bata/go-prompt"

	"github.com/hession/lyricsleuth/internal/agent"
	"github.com/hession/lyricsleuth/internal/batch"
	"github.com/hession/lyricsleuth/internal/config"
	"github.com/hession/lyricsleuth/internal/engine"
	"github.com/hession/lyricsleuth/internal/history"
)

type fakeRunner struct {
	snippets []string
}

func (f *fakeRunner) Backend() string { return agent.BackendDirect }

func (f *fakeRunner) Run(_ context.Context, snippet string) (*agent.Outcome, error) {
	f.snippets = append(f.snippets, snippet)
	if _, err := engine.BuildQueries(snippet); err != nil {
		return nil, err
	}
	return &agent.Outcome{Backend: agent.BackendDirect, Result: armstrong()}, nil
}

type memStore struct {
	recs []*history.Record
}

func (m *memStore) Save(rec *history.Record) error {
	rec.ID = "0123456789abcdef"
	rec.CreatedAt = time.Now()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) Get(id string) (*history.Record, error) {
	for _, r := range m.recs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memStore) List(limit int) ([]*history.Record, error) { return m.recs, nil }

func (m *memStore) Search(keyword string, limit int) ([]*history.Record, error) {
	var out []*history.Record
	for _, r := range m.recs {
		if strings.Contains(r.Snippet, keyword) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Delete(id string) error { return nil }
func (m *memStore) Clear() error           { m.recs = nil; return nil }
func (m *memStore) Close() error           { return nil }

func armstrong() *engine.MatchResult {
	return &engine.MatchResult{
		Best: &engine.Candidate{Title: "What a Wonderful World", Artist: "Louis Armstrong", URL: "https://genius.com/x", Score: 0.97, Match: "I see trees of green"},
		Alternatives: []engine.Candidate{
			{Title: "Wonderful World", URL: "https://azlyrics.com/y", Score: 0.41},
		},
		Queries: []string{`"trees of green" lyrics`},
	}
}

func TestVersion(t *testing.T) {
	if Version != "0.1.0" {
		t.Errorf("Expected Version to be '0.1.0', got '%s'", Version)
	}
}

func TestTruncateForDisplay(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{
			name:     "short text",
			text:     "Hello",
			maxLen:   10,
			expected: "Hello",
		},
		{
			name:     "truncate",
			text:     "Hello World",
			maxLen:   5,
			expected: "Hello...",
		},
		{
			name:     "with carriage return",
			text:     "Hello\r\nWorld",
			maxLen:   20,
			expected: "Hello World",
		},
		{
			name:     "multibyte",
			text:     "月亮代表我的心",
			maxLen:   4,
			expected: "月亮代表...",
		},
		{
			name:     "empty string",
			text:     "",
			maxLen:   10,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateForDisplay(tt.text, tt.maxLen)
			if got != tt.expected {
				t.Errorf("truncateForDisplay(%q, %d) = %q, want %q", tt.text, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{48 * time.Hour, "2d"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.duration); got != tt.expected {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
		}
	}
}

func TestCommandSuggestions(t *testing.T) {
	found := make(map[string]bool)
	for _, s := range CommandSuggestions() {
		found[s.Text] = true
		if s.Description == "" {
			t.Errorf("Suggestion '%s' has empty description", s.Text)
		}
	}
	for _, cmd := range []string{"/help", "/history", "/show", "/exit"} {
		if !found[cmd] {
			t.Errorf("Expected command '%s' in suggestions", cmd)
		}
	}
}

func TestComplete(t *testing.T) {
	s := NewShell(nil, &fakeRunner{}, nil, &bytes.Buffer{})

	buf := prompt.NewBuffer()
	buf.InsertText("/hi", false, true)
	got := s.complete(*buf.Document())
	if len(got) != 3 {
		t.Errorf("Expected the three /history suggestions, got %+v", got)
	}

	buf = prompt.NewBuffer()
	buf.InsertText("trees of", false, true)
	if got := s.complete(*buf.Document()); got != nil {
		t.Errorf("Lyrics should not be completed, got %+v", got)
	}
}

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	PrintOutcome(&buf, &agent.Outcome{Backend: agent.BackendDirect, Result: armstrong()})
	out := buf.String()

	for _, want := range []string{
		"→ Best match: What a Wonderful World — Louis Armstrong | score=0.97 | https://genius.com/x",
		"2. Wonderful World — unknown artist | score=0.41",
		`"trees of green" lyrics`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	PrintOutcome(&buf, &agent.Outcome{
		Backend: agent.BackendDirect,
		Result:  &engine.MatchResult{Partial: true},
		Error:   "model unreachable",
	})
	out = buf.String()
	for _, want := range []string{"No match found", "partial result", "model unreachable"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintBatchEntry(t *testing.T) {
	var buf bytes.Buffer
	PrintBatchEntry(&buf, batch.Progress{Index: 1, Total: 2, Entry: batch.Entry{
		File:         "armstrong.txt",
		QuerySnippet: strings.Repeat("x", 200),
		Result:       &agent.Outcome{Result: armstrong()},
	}})
	out := buf.String()
	if !strings.Contains(out, "[1/2] Searching for armstrong.txt (first 120 chars): "+strings.Repeat("x", 120)+"...") {
		t.Errorf("Unexpected progress line:\n%s", out)
	}
	if !strings.Contains(out, "Louis Armstrong") {
		t.Errorf("Best match not printed:\n%s", out)
	}

	buf.Reset()
	PrintBatchEntry(&buf, batch.Progress{Index: 2, Total: 2, Entry: batch.Entry{File: "noise.txt", Error: "invalid snippet"}})
	if !strings.Contains(buf.String(), "invalid snippet") {
		t.Errorf("Error not printed:\n%s", buf.String())
	}
}

func TestShell_SearchAndHistory(t *testing.T) {
	var out bytes.Buffer
	runner := &fakeRunner{}
	store := &memStore{}
	s := NewShell(config.DefaultConfig(), runner, store, &out)

	s.execute("  I see trees of green  ")
	if len(runner.snippets) != 1 || runner.snippets[0] != "I see trees of green" {
		t.Fatalf("Unexpected snippets %v", runner.snippets)
	}
	if !strings.Contains(out.String(), "Louis Armstrong") {
		t.Errorf("Result not printed:\n%s", out.String())
	}
	if len(store.recs) != 1 || store.recs[0].Source != "shell" {
		t.Fatalf("Search not recorded: %+v", store.recs)
	}

	out.Reset()
	s.execute("/history")
	if !strings.Contains(out.String(), "01234567") || !strings.Contains(out.String(), "What a Wonderful World") {
		t.Errorf("History not listed:\n%s", out.String())
	}

	out.Reset()
	s.execute("/show 0123")
	if !strings.Contains(out.String(), "0123456789abcdef") || !strings.Contains(out.String(), "Best match") {
		t.Errorf("Record not shown:\n%s", out.String())
	}

	out.Reset()
	s.execute("/history clear")
	if len(store.recs) != 0 || !strings.Contains(out.String(), "History cleared") {
		t.Errorf("History not cleared:\n%s", out.String())
	}
}

func TestShell_InvalidSnippet(t *testing.T) {
	var out bytes.Buffer
	store := &memStore{}
	s := NewShell(nil, &fakeRunner{}, store, &out)

	s.execute("1234 5678")
	if !strings.Contains(out.String(), "Error") {
		t.Errorf("Expected an error line:\n%s", out.String())
	}
	if len(store.recs) != 0 {
		t.Error("Failed searches should not be recorded")
	}
}

func TestShell_MultiLine(t *testing.T) {
	runner := &fakeRunner{}
	s := NewShell(nil, runner, nil, &bytes.Buffer{})

	s.execute(`is this the real life \`)
	s.execute("is this just fantasy")
	if len(runner.snippets) != 0 {
		t.Fatal("Multi-line input should wait for an empty line")
	}
	if prefix, ok := s.livePrefix(); !ok || prefix == "" {
		t.Error("Expected continuation prefix")
	}
	s.execute("")
	if len(runner.snippets) != 1 || runner.snippets[0] != "is this the real life \nis this just fantasy" {
		t.Errorf("Unexpected snippet %q", runner.snippets)
	}
	if _, ok := s.livePrefix(); ok {
		t.Error("Multi-line mode should end")
	}
}

func TestShell_Commands(t *testing.T) {
	var out bytes.Buffer
	s := NewShell(nil, &fakeRunner{}, nil, &out)

	s.execute("/history")
	if !strings.Contains(out.String(), "History is disabled") {
		t.Errorf("Expected disabled notice:\n%s", out.String())
	}

	out.Reset()
	s.execute("/nope")
	if !strings.Contains(out.String(), "Unknown command") {
		t.Errorf("Expected unknown command notice:\n%s", out.String())
	}

	if s.exiting {
		t.Fatal("Shell should not be exiting yet")
	}
	s.execute("/exit")
	if !s.exiting {
		t.Error("/exit should stop the shell")
	}
}
