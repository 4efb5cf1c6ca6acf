package transcribe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hession/lyricsleuth/internal/logger"
)

// Transcript is the text of one transcript file.
type Transcript struct {
	File string // base name
	Text string
}

// ReadTranscripts returns the non-empty .txt files in dir sorted by name.
// A missing directory yields no transcripts; unreadable files are skipped.
func ReadTranscripts(dir string) ([]Transcript, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []Transcript
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping unreadable transcript %s: %v", name, err)
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		out = append(out, Transcript{File: name, Text: text})
	}
	return out, nil
}

// Head returns the first n characters of text.
func Head(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
