package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hession/lyricsleuth/internal/history"
)

const defaultHistoryLimit = 10

// CommandSuggestion is a completion entry for a built-in command.
type CommandSuggestion struct {
	Text        string
	Description string
}

// CommandSuggestions lists the built-in commands for completion.
func CommandSuggestions() []CommandSuggestion {
	return []CommandSuggestion{
		{Text: "/help", Description: "Show help"},
		{Text: "/history", Description: "List recent searches"},
		{Text: "/history search", Description: "Find past searches by keyword"},
		{Text: "/history clear", Description: "Delete all past searches"},
		{Text: "/show", Description: "Show a past search by ID"},
		{Text: "/backend", Description: "Show the active backend"},
		{Text: "/config", Description: "Show current configuration"},
		{Text: "/exit", Description: "Exit program"},
	}
}

// handleCommand handles built-in commands, returns true to continue loop, false to exit
func (s *Shell) handleCommand(cmd string) bool {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true
	}

	switch strings.ToLower(parts[0]) {
	case "/help":
		s.printHelp()

	case "/exit", "/quit", "/q":
		fmt.Fprintf(s.out, "%sGoodbye! 👋%s\n", colorCyan, colorReset)
		return false

	case "/backend":
		fmt.Fprintf(s.out, "Backend: %s\n", s.runner.Backend())

	case "/config":
		if s.cfg == nil {
			fmt.Fprintf(s.out, "%s❌ No configuration loaded%s\n", colorRed, colorReset)
		} else {
			fmt.Fprintln(s.out, s.cfg.String())
		}

	case "/history":
		s.historyCommand(parts[1:])

	case "/show":
		if len(parts) < 2 {
			fmt.Fprintf(s.out, "%s❌ Usage: /show <id>%s\n", colorRed, colorReset)
			break
		}
		s.show(parts[1])

	default:
		fmt.Fprintf(s.out, "%s❓ Unknown command: %s%s\n", colorYellow, cmd, colorReset)
		fmt.Fprintln(s.out, "Type /help for available commands")
	}
	return true
}

func (s *Shell) historyCommand(args []string) {
	if s.store == nil {
		fmt.Fprintf(s.out, "%sHistory is disabled (history.enabled: false)%s\n", colorYellow, colorReset)
		return
	}

	var (
		recs []*history.Record
		err  error
	)
	switch {
	case len(args) == 0:
		recs, err = s.store.List(defaultHistoryLimit)
	case args[0] == "clear":
		if err := s.store.Clear(); err != nil {
			fmt.Fprintf(s.out, "%s❌ Failed to clear history: %v%s\n", colorRed, err, colorReset)
		} else {
			fmt.Fprintf(s.out, "%s✅ History cleared%s\n", colorGreen, colorReset)
		}
		return
	case args[0] == "search":
		if len(args) < 2 {
			fmt.Fprintf(s.out, "%s❌ Usage: /history search <keyword>%s\n", colorRed, colorReset)
			return
		}
		recs, err = s.store.Search(strings.Join(args[1:], " "), defaultHistoryLimit)
	default:
		n, convErr := strconv.Atoi(args[0])
		if convErr != nil || n <= 0 {
			fmt.Fprintf(s.out, "%s❌ Usage: /history [count | search <keyword> | clear]%s\n", colorRed, colorReset)
			return
		}
		recs, err = s.store.List(n)
	}
	if err != nil {
		fmt.Fprintf(s.out, "%s❌ Failed to read history: %v%s\n", colorRed, err, colorReset)
		return
	}
	PrintRecords(s.out, recs, time.Now())
}

func (s *Shell) show(id string) {
	if s.store == nil {
		fmt.Fprintf(s.out, "%sHistory is disabled (history.enabled: false)%s\n", colorYellow, colorReset)
		return
	}
	rec, err := history.Find(s.store, id)
	if err != nil {
		fmt.Fprintf(s.out, "%s❌ %v%s\n", colorRed, err, colorReset)
		return
	}
	out, err := rec.Outcome()
	if err != nil {
		fmt.Fprintf(s.out, "%s❌ %v%s\n", colorRed, err, colorReset)
		return
	}
	fmt.Fprintf(s.out, "%s%s%s  %s  %s\n%q\n", colorCyan, rec.ID, colorReset,
		rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Source, rec.Snippet)
	PrintOutcome(s.out, out)
}

func (s *Shell) printHelp() {
	fmt.Fprintf(s.out, `
%s📚 LyricSleuth Help%s

%sType or paste a line of lyrics to find the song.%s

%sBuilt-in Commands:%s
  /help                     - Show this help message
  /history [count]          - List recent searches
  /history search <keyword> - Find past searches by snippet, title or artist
  /history clear            - Delete all past searches
  /show <id>                - Show a past search (the 8-character ID is enough)
  /backend                  - Show whether searches go direct or through the model
  /config                   - Show current configuration
  /exit                     - Exit program

%sInput Tips:%s
  • Use Up/Down arrow keys to recall earlier snippets
  • Use Tab to complete commands
  • End line with \ for multi-line input, then press Enter on an empty line
  • Press Ctrl+C during a search to stop it and keep what was found
  • Press Ctrl+D on an empty line to quit

%sExamples:%s
  I see trees of green, red roses too
  is this the real life, is this just fantasy

`, colorCyan, colorReset, colorGray, colorReset, colorYellow, colorReset, colorYellow, colorReset, colorYellow, colorReset)
}
