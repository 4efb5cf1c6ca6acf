// Package batch identifies every recording in a folder: transcribe, search
// each transcript, and write the collected outcomes as JSON.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hession/lyricsleuth/internal/agent"
	"github.com/hession/lyricsleuth/internal/history"
	"github.com/hession/lyricsleuth/internal/logger"
	"github.com/hession/lyricsleuth/internal/transcribe"
)

const (
	// ResultsFile is written into the output directory.
	ResultsFile = "search_results.json"

	// DefaultSnippetChars keeps the query short and distinctive.
	DefaultSnippetChars = 350
)

// Identifier is satisfied by *agent.Runner.
type Identifier interface {
	Run(ctx context.Context, snippet string) (*agent.Outcome, error)
}

// Recorder is the part of history.Store a batch writes to.
type Recorder interface {
	Save(rec *history.Record) error
}

// Entry is one element of search_results.json.
type Entry struct {
	File         string         `json:"file"`
	QuerySnippet string         `json:"query_snippet"`
	Result       *agent.Outcome `json:"result"`
	Error        string         `json:"error,omitempty"`
}

// Progress reports one finished transcript.
type Progress struct {
	Index int // from 1
	Total int
	Entry Entry
}

// Request describes one batch run.
type Request struct {
	AudioDir   string   // empty skips transcription and uses OutDir as is
	OutDir     string   // transcripts and search_results.json
	Extensions []string // audio extensions, defaults when empty
}

// Report summarizes a run.
type Report struct {
	RunID       string
	Transcribed int
	Entries     []Entry
	OutputPath  string
}

// Matched counts entries with a best candidate.
func (r *Report) Matched() int {
	n := 0
	for _, e := range r.Entries {
		if e.Result != nil && e.Result.Result != nil && e.Result.Result.Best != nil {
			n++
		}
	}
	return n
}

// Runner runs batches.
type Runner struct {
	identifier   Identifier
	transcriber  transcribe.Transcriber
	recorder     Recorder
	snippetChars int
	onProgress   func(Progress)
	onTranscribe func(file string, err error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder stores every outcome in history.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithSnippetChars sets how much of each transcript is searched.
func WithSnippetChars(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.snippetChars = n
		}
	}
}

// WithProgress is called after each transcript is searched.
func WithProgress(fn func(Progress)) Option {
	return func(r *Runner) {
		r.onProgress = fn
	}
}

// WithTranscribeProgress is called after each audio file is transcribed.
func WithTranscribeProgress(fn func(file string, err error)) Option {
	return func(r *Runner) {
		r.onTranscribe = fn
	}
}

// New creates a batch runner. transcriber may be nil when requests never
// carry an AudioDir.
func New(identifier Identifier, transcriber transcribe.Transcriber, opts ...Option) *Runner {
	r := &Runner{
		identifier:   identifier,
		transcriber:  transcriber,
		snippetChars: DefaultSnippetChars,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run transcribes req.AudioDir (if set), searches every transcript in
// req.OutDir and writes search_results.json there. A cancelled ctx stops
// after the current transcript; the entries so far are still written.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	if req.OutDir == "" {
		return nil, fmt.Errorf("batch output directory is required")
	}
	report := &Report{RunID: uuid.New().String()}
	logger.Info("batch %s started: audio=%q out=%q", report.RunID, req.AudioDir, req.OutDir)

	if req.AudioDir != "" {
		if r.transcriber == nil {
			return nil, fmt.Errorf("no transcriber configured for %s", req.AudioDir)
		}
		written, err := transcribe.Folder(ctx, r.transcriber, req.AudioDir, req.OutDir, req.Extensions, r.onTranscribe)
		if err != nil {
			return nil, fmt.Errorf("transcription failed: %w", err)
		}
		report.Transcribed = len(written)
	}

	transcripts, err := transcribe.ReadTranscripts(req.OutDir)
	if err != nil {
		return nil, err
	}

	report.Entries = make([]Entry, 0, len(transcripts))
	for i, tr := range transcripts {
		if ctx.Err() != nil {
			logger.Warn("batch %s cancelled after %d of %d transcripts", report.RunID, i, len(transcripts))
			break
		}
		entry := r.searchOne(ctx, tr)
		report.Entries = append(report.Entries, entry)
		if r.onProgress != nil {
			r.onProgress(Progress{Index: i + 1, Total: len(transcripts), Entry: entry})
		}
	}

	if len(transcripts) == 0 {
		logger.Info("batch %s: no transcripts in %s", report.RunID, req.OutDir)
		return report, nil
	}

	report.OutputPath = filepath.Join(req.OutDir, ResultsFile)
	if err := writeResults(report.OutputPath, report.Entries); err != nil {
		return nil, err
	}
	logger.Info("batch %s finished: %d/%d matched, results in %s",
		report.RunID, report.Matched(), len(report.Entries), report.OutputPath)
	return report, nil
}

func (r *Runner) searchOne(ctx context.Context, tr transcribe.Transcript) Entry {
	entry := Entry{
		File:         tr.File,
		QuerySnippet: transcribe.Head(tr.Text, r.snippetChars),
	}

	out, err := r.identifier.Run(ctx, entry.QuerySnippet)
	if err != nil {
		logger.Warn("batch: %s not searchable: %v", tr.File, err)
		entry.Error = err.Error()
		return entry
	}
	entry.Result = out

	if r.recorder != nil {
		rec, err := history.NewRecord("batch:"+tr.File, entry.QuerySnippet, out)
		if err == nil {
			err = r.recorder.Save(rec)
		}
		if err != nil {
			logger.Warn("batch: failed to record %s in history: %v", tr.File, err)
		}
	}
	return entry
}

func writeResults(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false) // keep & in titles and URLs readable
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return f.Close()
}

// ReadResults loads a search_results.json file.
func ReadResults(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	return entries, nil
}
