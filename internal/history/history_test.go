package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hession/lyricsleuth/internal/agent"
	"github.com/hession/lyricsleuth/internal/engine"
)

func setupTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func matched(title, artist, url string, score float64) *agent.Outcome {
	return &agent.Outcome{
		Backend: agent.BackendDirect,
		Result: &engine.MatchResult{
			Best:         &engine.Candidate{Title: title, Artist: artist, URL: url, Score: score, Site: "genius"},
			Alternatives: []engine.Candidate{},
			Queries:      []string{"q"},
		},
	}
}

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord("cli", "trees of green", matched("What a Wonderful World", "Louis Armstrong", "https://genius.com/x", 0.97))
	if err != nil {
		t.Fatal(err)
	}
	if rec.BestTitle != "What a Wonderful World" || rec.BestArtist != "Louis Armstrong" || rec.BestScore != 0.97 {
		t.Errorf("Best match not flattened: %+v", rec)
	}
	if !rec.HasMatch() {
		t.Error("Record should report a match")
	}

	out, err := rec.Outcome()
	if err != nil {
		t.Fatal(err)
	}
	if out.Result.Best.URL != "https://genius.com/x" {
		t.Errorf("Outcome not preserved: %+v", out.Result.Best)
	}

	empty, err := NewRecord("cli", "nothing", &agent.Outcome{Backend: agent.BackendDirect, Result: &engine.MatchResult{}})
	if err != nil {
		t.Fatal(err)
	}
	if empty.HasMatch() || empty.BestScore != 0 {
		t.Errorf("Empty result should have no best fields: %+v", empty)
	}
}

func TestSaveGetList(t *testing.T) {
	store := setupTestDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"First", "Second", "Third"} {
		rec, err := NewRecord("cli", "snippet "+title, matched(title, "Artist", "https://genius.com/"+title, 0.8))
		if err != nil {
			t.Fatal(err)
		}
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Save(rec); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		if rec.ID == "" {
			t.Fatal("Save should assign an ID")
		}
	}

	recs, err := store.List(2)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].BestTitle != "Third" || recs[1].BestTitle != "Second" {
		t.Errorf("Expected newest first, got %s, %s", recs[0].BestTitle, recs[1].BestTitle)
	}

	got, err := store.Get(recs[1].ID)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got == nil || got.Snippet != "snippet Second" || got.Source != "cli" {
		t.Errorf("Unexpected record %+v", got)
	}

	missing, err := store.Get("not-exist")
	if err != nil {
		t.Fatalf("Getting missing record should not fail: %v", err)
	}
	if missing != nil {
		t.Error("Missing record should be nil")
	}
}

func TestSearch(t *testing.T) {
	store := setupTestDB(t)

	for _, o := range []struct{ snippet, title, artist string }{
		{"i see trees of green", "What a Wonderful World", "Louis Armstrong"},
		{"is this the real life", "Bohemian Rhapsody", "Queen"},
	} {
		rec, err := NewRecord("batch:"+o.title+".txt", o.snippet, matched(o.title, o.artist, "https://x/"+o.title, 0.9))
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Save(rec); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		keyword string
		want    int
	}{
		{"Queen", 1},
		{"trees", 1},
		{"Wonderful", 1},
		{"e", 2},
		{"Beatles", 0},
	}
	for _, tt := range tests {
		got, err := store.Search(tt.keyword, 10)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", tt.keyword, err)
		}
		if len(got) != tt.want {
			t.Errorf("Search(%q): expected %d, got %d", tt.keyword, tt.want, len(got))
		}
	}
}

func TestDeleteAndClear(t *testing.T) {
	store := setupTestDB(t)

	var ids []string
	for _, s := range []string{"one", "two"} {
		rec, err := NewRecord("cli", s, &agent.Outcome{Backend: agent.BackendDirect, Result: &engine.MatchResult{}})
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Save(rec); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}

	if err := store.Delete(ids[0]); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if err := store.Delete(ids[0]); err == nil {
		t.Error("Deleting twice should fail")
	}

	recs, _ := store.List(10)
	if len(recs) != 1 || recs[0].ID != ids[1] {
		t.Fatalf("Unexpected records after delete: %+v", recs)
	}
	if recs[0].BestTitle != "" {
		t.Errorf("NULL-safe scan expected empty title, got %q", recs[0].BestTitle)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	recs, _ = store.List(10)
	if len(recs) != 0 {
		t.Errorf("Expected empty history, got %d", len(recs))
	}
}

func TestFind(t *testing.T) {
	store := setupTestDB(t)

	rec, err := NewRecord("cli", "trees of green", matched("What a Wonderful World", "Louis Armstrong", "https://genius.com/x", 0.97))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(rec); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{rec.ID, rec.ID[:8], " " + rec.ID[:8] + " "} {
		got, err := Find(store, id)
		if err != nil {
			t.Fatalf("Find(%q) failed: %v", id, err)
		}
		if got.ID != rec.ID {
			t.Errorf("Find(%q) returned %s", id, got.ID)
		}
	}

	for _, id := range []string{"", "zzzzzzzz"} {
		if _, err := Find(store, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Find(%q): expected ErrNotFound, got %v", id, err)
		}
	}
	if err := store.Delete("zzzzzzzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete of unknown id: expected ErrNotFound, got %v", err)
	}
}
