package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hession/lyricsleuth/internal/agent"
	"github.com/hession/lyricsleuth/internal/engine"
	"github.com/hession/lyricsleuth/internal/history"
	"github.com/hession/lyricsleuth/internal/transcribe"
)

type stubIdentifier struct {
	snippets []string
	cancel   context.CancelFunc // called after the first search when set
}

func (s *stubIdentifier) Run(_ context.Context, snippet string) (*agent.Outcome, error) {
	s.snippets = append(s.snippets, snippet)
	if s.cancel != nil {
		s.cancel()
	}
	if _, err := engine.BuildQueries(snippet); err != nil {
		return nil, err
	}
	result := &engine.MatchResult{Alternatives: []engine.Candidate{}}
	if strings.Contains(snippet, "trees of green") {
		result.Best = &engine.Candidate{Title: "What a Wonderful World", Artist: "Louis Armstrong", URL: "https://genius.com/x?a=1&b=2", Score: 0.96}
	}
	return &agent.Outcome{Backend: agent.BackendDirect, Result: result}, nil
}

type fileTranscriber struct {
	texts map[string]string // audio base name -> transcript
}

func (f *fileTranscriber) Transcribe(_ context.Context, audioPath, outDir string) (string, error) {
	text, ok := f.texts[filepath.Base(audioPath)]
	if !ok {
		return "", errors.New("unsupported codec")
	}
	path := transcribe.TranscriptPath(audioPath, outDir)
	return path, os.WriteFile(path, []byte(text), 0o644)
}

type memRecorder struct {
	recs []*history.Record
}

func (m *memRecorder) Save(rec *history.Record) error {
	m.recs = append(m.recs, rec)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRun_TranscribeAndSearch(t *testing.T) {
	audioDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, audioDir, "armstrong.mp3", "")
	writeFile(t, audioDir, "noise.mp3", "")
	writeFile(t, audioDir, "broken.mp3", "")

	tr := &fileTranscriber{texts: map[string]string{
		"armstrong.mp3": "I see trees of green, red roses too",
		"noise.mp3":     "12345 67890",
	}}
	id := &stubIdentifier{}
	rec := &memRecorder{}

	var transcribed, searched []string
	r := New(id, tr,
		WithRecorder(rec),
		WithTranscribeProgress(func(file string, err error) { transcribed = append(transcribed, file) }),
		WithProgress(func(p Progress) {
			if p.Total != 2 {
				t.Errorf("Expected total 2, got %d", p.Total)
			}
			searched = append(searched, p.Entry.File)
		}),
	)

	report, err := r.Run(context.Background(), Request{AudioDir: audioDir, OutDir: outDir})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.RunID == "" {
		t.Error("Run ID should be set")
	}
	if report.Transcribed != 2 || len(transcribed) != 3 {
		t.Errorf("Expected 2 of 3 transcribed, got %d (%v)", report.Transcribed, transcribed)
	}
	if len(report.Entries) != 2 || strings.Join(searched, ",") != "armstrong.txt,noise.txt" {
		t.Fatalf("Unexpected entries %+v", report.Entries)
	}
	if report.Matched() != 1 {
		t.Errorf("Expected 1 match, got %d", report.Matched())
	}

	noise := report.Entries[1]
	if noise.Result != nil || !strings.Contains(noise.Error, "invalid snippet") {
		t.Errorf("Digits-only transcript should record the error: %+v", noise)
	}
	if len(rec.recs) != 1 || rec.recs[0].Source != "batch:armstrong.txt" {
		t.Errorf("Only searchable transcripts go to history: %+v", rec.recs)
	}

	if report.OutputPath != filepath.Join(outDir, ResultsFile) {
		t.Errorf("Unexpected output path %s", report.OutputPath)
	}
	raw, _ := os.ReadFile(report.OutputPath)
	if !strings.Contains(string(raw), `"query_snippet"`) || !strings.Contains(string(raw), "a=1&b=2") {
		t.Errorf("Unexpected results file:\n%s", raw)
	}

	entries, err := ReadResults(report.OutputPath)
	if err != nil {
		t.Fatalf("ReadResults failed: %v", err)
	}
	if entries[0].Result.Result.Best.Artist != "Louis Armstrong" {
		t.Errorf("Results file lost the best match: %+v", entries[0])
	}
}

func TestRun_SnippetIsTranscriptHead(t *testing.T) {
	outDir := t.TempDir()
	long := strings.Repeat("la ", 200)
	writeFile(t, outDir, "long.txt", long)

	id := &stubIdentifier{}
	if _, err := New(id, nil).Run(context.Background(), Request{OutDir: outDir}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(id.snippets) != 1 || utf8.RuneCountInString(id.snippets[0]) != DefaultSnippetChars {
		t.Errorf("Expected a %d-character snippet, got %v", DefaultSnippetChars, id.snippets)
	}

	id = &stubIdentifier{}
	if _, err := New(id, nil, WithSnippetChars(10)).Run(context.Background(), Request{OutDir: outDir}); err != nil {
		t.Fatal(err)
	}
	if id.snippets[0] != "la la la l" {
		t.Errorf("Expected 10 characters, got %q", id.snippets[0])
	}
}

func TestRun_NoTranscripts(t *testing.T) {
	outDir := t.TempDir()
	report, err := New(&stubIdentifier{}, nil).Run(context.Background(), Request{OutDir: outDir})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Entries) != 0 || report.OutputPath != "" {
		t.Errorf("Expected empty report, got %+v", report)
	}
	if _, err := os.Stat(filepath.Join(outDir, ResultsFile)); !os.IsNotExist(err) {
		t.Error("No results file should be written")
	}
}

func TestRun_Errors(t *testing.T) {
	if _, err := New(&stubIdentifier{}, nil).Run(context.Background(), Request{}); err == nil {
		t.Error("Missing output dir should fail")
	}
	if _, err := New(&stubIdentifier{}, nil).Run(context.Background(), Request{AudioDir: t.TempDir(), OutDir: t.TempDir()}); err == nil {
		t.Error("Audio dir without transcriber should fail")
	}

	_, err := New(&stubIdentifier{}, &fileTranscriber{}).Run(context.Background(), Request{AudioDir: t.TempDir(), OutDir: t.TempDir()})
	if !errors.Is(err, transcribe.ErrNoAudio) {
		t.Errorf("Expected ErrNoAudio, got %v", err)
	}
}

func TestRun_CancelWritesPartialResults(t *testing.T) {
	outDir := t.TempDir()
	writeFile(t, outDir, "a.txt", "I see trees of green")
	writeFile(t, outDir, "b.txt", "red roses too")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	id := &stubIdentifier{cancel: cancel}

	report, err := New(id, nil).Run(ctx, Request{OutDir: outDir})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Entries) != 1 {
		t.Fatalf("Expected 1 entry before cancel, got %d", len(report.Entries))
	}
	entries, err := ReadResults(report.OutputPath)
	if err != nil || len(entries) != 1 {
		t.Errorf("Partial results not written: %v %v", entries, err)
	}
}
