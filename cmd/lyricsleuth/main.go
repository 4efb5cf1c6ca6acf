package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hession/lyricsleuth/internal/batch"
	"github.com/hession/lyricsleuth/internal/cli"
	"github.com/hession/lyricsleuth/internal/config"
	"github.com/hession/lyricsleuth/internal/history"
	"github.com/hession/lyricsleuth/internal/logger"
	"github.com/hession/lyricsleuth/internal/mcpserver"
	"github.com/hession/lyricsleuth/internal/tools"
	"github.com/hession/lyricsleuth/internal/transcribe"
)

var (
	version = cli.Version
)

func main() {
	defer logger.Close()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRootCmd() *cobra.Command {
	var (
		configDir string
		backend   string
	)

	rootCmd := &cobra.Command{
		Use:   "lyricsleuth",
		Short: "LyricSleuth - name a song from a line of its lyrics",
		Long: `LyricSleuth finds the song a lyrics snippet belongs to.

It searches the web for lyrics pages, extracts their lyrics and ranks
candidate songs by how well the snippet matches. It can:
  • Identify a snippet interactively or from the command line
  • Transcribe a folder of audio with whisper and identify every track
  • Serve the search as an MCP tool for other assistants`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir != "" {
				config.SetConfigDir(configDir)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(backend)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			return cli.NewShell(cfg, a.runner, a.store, cmd.OutOrStdout()).Run(context.Background())
		},
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ./config)")
	rootCmd.Flags().StringVar(&backend, "backend", "", "search backend: auto, direct or llm")

	rootCmd.AddCommand(
		newSearchCmd(),
		newBatchCmd(),
		newMCPCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newSearchCmd() *cobra.Command {
	var (
		asJSON   bool
		maxPages int
		backend  string
	)

	cmd := &cobra.Command{
		Use:   "search [snippet]",
		Short: "Identify the song a lyrics snippet comes from",
		Long:  "Identify the song a lyrics snippet comes from. Without arguments the snippet is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			snippet := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read snippet: %w", err)
				}
				snippet = string(data)
			}

			cfg, err := loadConfig(backend)
			if err != nil {
				return err
			}
			if maxPages > 0 {
				cfg.Search.MaxPages = min(maxPages, tools.MaxPagesLimit)
			}
			a, err := newApp(cfg, !asJSON)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			out, err := a.runner.Run(ctx, snippet)
			if err != nil {
				return err
			}
			a.record("cli", strings.TrimSpace(snippet), out)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			cli.PrintOutcome(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "lyrics pages to fetch (default from config, at most 20)")
	cmd.Flags().StringVar(&backend, "backend", "", "search backend: auto, direct or llm")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var (
		folder       string
		outDir       string
		model        string
		language     string
		maxPages     int
		snippetChars int
		backend      string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Transcribe audio files and identify every transcript",
		Long: `Transcribe every audio file in --folder with whisper, then identify the song
behind each transcript. Without --folder the transcripts already in --out-dir
are searched. Results are written to search_results.json in --out-dir.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(backend)
			if err != nil {
				return err
			}
			if maxPages > 0 {
				cfg.Search.MaxPages = min(maxPages, tools.MaxPagesLimit)
			}
			if model != "" {
				cfg.Transcribe.Model = model
			}
			if language != "" {
				cfg.Transcribe.Language = language
			}
			if snippetChars <= 0 {
				snippetChars = cfg.Transcribe.SnippetChars
			}

			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			var transcriber transcribe.Transcriber
			if folder != "" {
				w := transcribe.NewWhisperCLI(transcribe.Config{
					Command:  cfg.Transcribe.Command,
					Model:    cfg.Transcribe.Model,
					Language: cfg.Transcribe.Language,
					Timeout:  time.Duration(cfg.Transcribe.TimeoutMinutes) * time.Minute,
				})
				if !w.Available() {
					return fmt.Errorf("whisper command %q not found; install openai-whisper or set transcribe.command", cfg.Transcribe.Command)
				}
				transcriber = w
			}

			stdout := cmd.OutOrStdout()
			opts := []batch.Option{
				batch.WithSnippetChars(snippetChars),
				batch.WithProgress(func(p batch.Progress) { cli.PrintBatchEntry(stdout, p) }),
				batch.WithTranscribeProgress(func(file string, err error) { cli.PrintTranscribed(stdout, file, err) }),
			}
			if a.store != nil {
				opts = append(opts, batch.WithRecorder(a.store))
			}

			ctx, cancel := signalContext()
			defer cancel()

			report, err := batch.New(a.runner, transcriber, opts...).Run(ctx, batch.Request{
				AudioDir:   folder,
				OutDir:     outDir,
				Extensions: cfg.Transcribe.Extensions,
			})
			if err != nil {
				return err
			}
			if len(report.Entries) == 0 {
				fmt.Fprintf(stdout, "No transcripts found in %s\n", outDir)
				return nil
			}
			fmt.Fprintf(stdout, "\nMatched %d of %d transcripts. Results written to %s\n",
				report.Matched(), len(report.Entries), report.OutputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "folder of audio files to transcribe first")
	cmd.Flags().StringVar(&outDir, "out-dir", "transcriptions", "transcripts and results directory")
	cmd.Flags().StringVar(&model, "model", "", "whisper model (default from config)")
	cmd.Flags().StringVar(&language, "language", "", "spoken language, empty to let whisper detect it")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "lyrics pages to fetch per transcript")
	cmd.Flags().IntVar(&snippetChars, "snippet-chars", 0, "transcript characters used as the snippet")
	cmd.Flags().StringVar(&backend, "backend", "", "search backend: auto, direct or llm")
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve search_song_by_lyrics over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ports := &mcpserver.Ports{Searcher: a.tool}
			if a.store != nil {
				ports.History = a.store
			}
			server, err := mcpserver.New(ports)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			logger.Info("MCP server listening on stdio")
			if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		},
	}
}

// openHistory opens the store for the history subcommands.
func openHistory() (history.Store, error) {
	cfg, err := loadConfig("")
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errors.New("history is disabled; set history.enabled: true in config.yaml")
	}
	return history.NewSQLiteStore(cfg.History.DBPath)
}

func newHistoryCmd() *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List past searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.List(limit)
			if err != nil {
				return err
			}
			cli.PrintRecords(cmd.OutOrStdout(), recs, time.Now())
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of searches to list")

	searchCmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Find past searches by snippet, title or artist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			cli.PrintRecords(cmd.OutOrStdout(), recs, time.Now())
			return nil
		},
	}
	searchCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum results")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a past search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := history.Find(store, args[0])
			if err != nil {
				return err
			}
			out, err := rec.Outcome()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s  %s  %s\n%q\n", rec.ID, rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Source, rec.Snippet)
			cli.PrintOutcome(w, out)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a past search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := history.Find(store, args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(rec.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", rec.ID)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all past searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		},
	}

	historyCmd.AddCommand(searchCmd, showCmd, deleteCmd, clearCmd)
	return historyCmd
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())

			path, _ := config.ConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "\nConfig file path: %s\n", path)
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, path)
			if secrets, err := config.SecretsPath(); err == nil {
				fmt.Fprintln(w, secrets)
			}
			if prompts, err := config.PromptConfigPath(); err == nil {
				fmt.Fprintln(w, prompts)
			}
			return nil
		},
	}

	configCmd.AddCommand(pathCmd)
	return configCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "LyricSleuth v%s\n", version)
		},
	}
}
