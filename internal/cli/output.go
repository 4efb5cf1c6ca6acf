package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hession/lyricsleuth/internal/agent"
	"github.com/hession/lyricsleuth/internal/batch"
	"github.com/hession/lyricsleuth/internal/engine"
	"github.com/hession/lyricsleuth/internal/history"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// batchPreviewChars is how much of each transcript the batch log echoes.
const batchPreviewChars = 120

// PrintOutcome writes a human-readable identification result.
func PrintOutcome(w io.Writer, out *agent.Outcome) {
	if out == nil {
		return
	}
	fmt.Fprintf(w, "%sBackend: %s%s\n", colorGray, out.Backend, colorReset)
	if out.Error != "" {
		fmt.Fprintf(w, "%s⚠️  Model backend failed, searched directly: %s%s\n", colorYellow, out.Error, colorReset)
	}

	res := out.Result
	if res == nil || res.Best == nil {
		fmt.Fprintf(w, "%s❓ No match found%s\n", colorYellow, colorReset)
	} else {
		fmt.Fprintf(w, "%s→ Best match: %s%s\n", colorGreen, formatCandidate(*res.Best), colorReset)
		if res.Best.Match != "" {
			fmt.Fprintf(w, "%s   matched: %q%s\n", colorGray, truncateForDisplay(res.Best.Match, 100), colorReset)
		}
		if len(res.Alternatives) > 0 {
			fmt.Fprintf(w, "%sAlternatives:%s\n", colorCyan, colorReset)
			for i, c := range res.Alternatives {
				fmt.Fprintf(w, "  %d. %s\n", i+2, formatCandidate(c))
			}
		}
	}

	if res != nil {
		if len(res.Queries) > 0 {
			fmt.Fprintf(w, "%sQueries: %s%s\n", colorGray, strings.Join(res.Queries, " | "), colorReset)
		}
		if res.Partial {
			fmt.Fprintf(w, "%s(partial result: search was interrupted)%s\n", colorYellow, colorReset)
		}
	}
	if out.Summary != "" {
		fmt.Fprintf(w, "\n%s%s%s\n", colorBlue, out.Summary, colorReset)
	}
}

func formatCandidate(c engine.Candidate) string {
	artist := c.Artist
	if artist == "" {
		artist = "unknown artist"
	}
	return fmt.Sprintf("%s — %s | score=%.2f | %s", c.Title, artist, c.Score, c.URL)
}

// PrintBatchEntry logs one batch search the way the transcribe-and-search
// run reports progress.
func PrintBatchEntry(w io.Writer, p batch.Progress) {
	e := p.Entry
	fmt.Fprintf(w, "[%d/%d] Searching for %s (first %d chars): %s\n",
		p.Index, p.Total, e.File, batchPreviewChars, truncateForDisplay(e.QuerySnippet, batchPreviewChars))
	switch {
	case e.Error != "":
		fmt.Fprintf(w, "%s   ❌ %s%s\n", colorRed, e.Error, colorReset)
	case e.Result == nil || e.Result.Result == nil || e.Result.Result.Best == nil:
		fmt.Fprintf(w, "%s   No match%s\n", colorYellow, colorReset)
	default:
		fmt.Fprintf(w, "%s→ Best match: %s%s\n", colorGreen, formatCandidate(*e.Result.Result.Best), colorReset)
	}
}

// PrintTranscribed logs one transcription.
func PrintTranscribed(w io.Writer, file string, err error) {
	if err != nil {
		fmt.Fprintf(w, "%s🎙  %s: ❌ %v%s\n", colorRed, file, err, colorReset)
		return
	}
	fmt.Fprintf(w, "%s🎙  %s: transcribed%s\n", colorGray, file, colorReset)
}

// PrintRecords lists history rows, newest first.
func PrintRecords(w io.Writer, recs []*history.Record, now time.Time) {
	if len(recs) == 0 {
		fmt.Fprintf(w, "%sNo history yet%s\n", colorGray, colorReset)
		return
	}
	for _, r := range recs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		best := "no match"
		if r.HasMatch() {
			best = fmt.Sprintf("%s — %s (%.2f)", r.BestTitle, r.BestArtist, r.BestScore)
		}
		fmt.Fprintf(w, "%s%s%s  %-8s %s ago  %q\n      %s\n",
			colorCyan, id, colorReset, r.Source, FormatDuration(now.Sub(r.CreatedAt)),
			truncateForDisplay(r.Snippet, 50), best)
	}
}

// truncateForDisplay flattens text onto one line and cuts it to maxLen
// characters.
func truncateForDisplay(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	return string([]rune(text)[:maxLen]) + "..."
}

// FormatDuration renders an age in its largest whole unit.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// PrintToolCall reports a model tool call on stderr so stdout stays clean
// for --json output.
func PrintToolCall(name string, args map[string]any, result string, err error) {
	fmt.Fprintf(os.Stderr, "%s🔧 Calling tool: %s%s\n", colorYellow, name, colorReset)
	if len(args) > 0 {
		fmt.Fprintf(os.Stderr, "%s   Args: %v%s\n", colorGray, args, colorReset)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s   Status: ❌ Failed - %v%s\n", colorRed, err, colorReset)
	} else {
		fmt.Fprintf(os.Stderr, "%s   Status: ✅ Done%s\n", colorGreen, colorReset)
	}
}
