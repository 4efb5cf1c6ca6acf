// Package cli is the interactive lyrics shell and the result printers shared
// by the commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/c-bata/go-prompt"

	"github.com/hession/lyricsleuth/internal/agent"
	"github.com/hession/lyricsleuth/internal/config"
	"github.com/hession/lyricsleuth/internal/history"
	"github.com/hession/lyricsleuth/internal/logger"
)

const Version = "0.1.0"

// historySeed is how many past snippets are offered on the Up arrow.
const historySeed = 100

// Identifier is satisfied by *agent.Runner.
type Identifier interface {
	Run(ctx context.Context, snippet string) (*agent.Outcome, error)
	Backend() string
}

// Shell reads lyric snippets and prints the songs they belong to.
type Shell struct {
	cfg     *config.Config
	runner  Identifier
	store   history.Store // nil when history is disabled
	out     io.Writer
	ctx     context.Context
	exiting bool

	multiLine strings.Builder
	inMulti   bool
}

// NewShell creates a shell. store may be nil.
func NewShell(cfg *config.Config, runner Identifier, store history.Store, out io.Writer) *Shell {
	if out == nil {
		out = os.Stdout
	}
	return &Shell{
		cfg:    cfg,
		runner: runner,
		store:  store,
		out:    out,
		ctx:    context.Background(),
	}
}

// Run starts the prompt loop and returns after /exit or Ctrl+D.
func (s *Shell) Run(ctx context.Context) error {
	s.ctx = ctx
	s.printWelcome()

	p := prompt.New(
		s.execute,
		s.complete,
		prompt.OptionTitle("lyricsleuth"),
		prompt.OptionPrefix("Lyrics: "),
		prompt.OptionPrefixTextColor(prompt.Green),
		prompt.OptionLivePrefix(s.livePrefix),
		prompt.OptionHistory(s.pastSnippets()),
		prompt.OptionMaxSuggestion(8),
		prompt.OptionSetExitCheckerOnInput(func(_ string, breakline bool) bool {
			return breakline && s.exiting
		}),
	)
	p.Run()

	if !s.exiting {
		fmt.Fprintf(s.out, "%sGoodbye! 👋%s\n", colorCyan, colorReset)
	}
	return nil
}

func (s *Shell) printWelcome() {
	fmt.Fprintf(s.out, "\n%s🎵 LyricSleuth v%s%s - name that song from a line of lyrics\n", colorCyan, Version, colorReset)
	fmt.Fprintf(s.out, "%sBackend: %s. Type /help for help, /exit to quit%s\n", colorGray, s.runner.Backend(), colorReset)
	fmt.Fprintf(s.out, "%sEnd a line with \\ to paste several lines, then press Enter on an empty line%s\n\n", colorGray, colorReset)
}

func (s *Shell) livePrefix() (string, bool) {
	if s.inMulti {
		return "...     ", true
	}
	return "", false
}

// pastSnippets seeds the prompt history, oldest first.
func (s *Shell) pastSnippets() []string {
	if s.store == nil {
		return nil
	}
	recs, err := s.store.List(historySeed)
	if err != nil {
		logger.Warn("failed to load shell history: %v", err)
		return nil
	}
	snippets := make([]string, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		if !strings.Contains(recs[i].Snippet, "\n") {
			snippets = append(snippets, recs[i].Snippet)
		}
	}
	return snippets
}

func (s *Shell) complete(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	if s.inMulti || !strings.HasPrefix(text, "/") {
		return nil
	}
	suggests := make([]prompt.Suggest, 0, len(CommandSuggestions()))
	for _, c := range CommandSuggestions() {
		suggests = append(suggests, prompt.Suggest{Text: c.Text, Description: c.Description})
	}
	return prompt.FilterHasPrefix(suggests, text, true)
}

// execute handles one submitted line.
func (s *Shell) execute(line string) {
	if s.inMulti {
		if strings.TrimSpace(line) != "" {
			s.multiLine.WriteString(line)
			s.multiLine.WriteString("\n")
			return
		}
		s.inMulti = false
		input := strings.TrimSpace(s.multiLine.String())
		s.multiLine.Reset()
		if input != "" {
			s.search(input)
		}
		return
	}

	input := strings.TrimSpace(line)
	switch {
	case input == "":
		return
	case strings.HasSuffix(input, "\\"):
		s.inMulti = true
		s.multiLine.WriteString(strings.TrimSuffix(input, "\\"))
		s.multiLine.WriteString("\n")
		fmt.Fprintf(s.out, "%s(Multi-line mode: press Enter on an empty line to search)%s\n", colorGray, colorReset)
	case strings.HasPrefix(input, "/"):
		s.exiting = !s.handleCommand(input)
	default:
		s.search(input)
	}
}

// search runs one identification; Ctrl+C stops it and prints what was found.
func (s *Shell) search(snippet string) {
	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt)
	defer stop()

	fmt.Fprintf(s.out, "%s🔎 Searching...%s\n", colorGray, colorReset)
	out, err := s.runner.Run(ctx, snippet)
	if err != nil {
		fmt.Fprintf(s.out, "%s❌ Error: %v%s\n\n", colorRed, err, colorReset)
		return
	}
	PrintOutcome(s.out, out)
	fmt.Fprintln(s.out)

	if s.store == nil {
		return
	}
	rec, err := history.NewRecord("shell", snippet, out)
	if err == nil {
		err = s.store.Save(rec)
	}
	if err != nil {
		logger.Warn("failed to record search: %v", err)
	}
}
