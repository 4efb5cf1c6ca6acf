package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/hession/lyricsleuth/internal/agent"
	"github.com/hession/lyricsleuth/internal/cli"
	"github.com/hession/lyricsleuth/internal/config"
	"github.com/hession/lyricsleuth/internal/engine"
	"github.com/hession/lyricsleuth/internal/fetch"
	"github.com/hession/lyricsleuth/internal/history"
	"github.com/hession/lyricsleuth/internal/llm"
	"github.com/hession/lyricsleuth/internal/logger"
	"github.com/hession/lyricsleuth/internal/tools"
	"github.com/hession/lyricsleuth/internal/websearch"
)

// app holds the services one command needs.
type app struct {
	cfg    *config.Config
	tool   *tools.LyricsSearchTool
	runner *agent.Runner
	store  history.Store // nil when history is disabled
}

// loadConfig loads the configuration, applies the backend override and
// starts the file logger.
func loadConfig(backend string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if backend = strings.TrimSpace(backend); backend != "" {
		cfg.Model.Backend = backend
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if err := logger.Init(logger.Config{
		LogDir:     config.LogDir(),
		Level:      logger.ParseLevel(cfg.Log.Level),
		MaxDays:    cfg.Log.MaxDays,
		ConsoleOut: cfg.Log.Console,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logConfigInfo(cfg)
	return cfg, nil
}

// logConfigInfo records the effective configuration without secrets.
func logConfigInfo(cfg *config.Config) {
	logger.Info("search: provider=%s max_pages=%d concurrency=%d domains=%v",
		cfg.Search.Provider, cfg.Search.MaxPages, cfg.Search.Concurrency, cfg.Search.AllowedDomains)
	logger.Info("model: backend=%s use_llm=%v model=%s base_url=%s api_key=%s",
		cfg.Model.Backend, cfg.UseLLM(), cfg.Model.Model, cfg.Model.BaseURL, maskKey(cfg.Model.APIKey))
	logger.Info("history: enabled=%v db=%s", cfg.History.Enabled, cfg.History.DBPath)
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return "***"
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}

// searchOptions maps configuration onto engine options.
func searchOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		MaxPages:        cfg.Search.MaxPages,
		AllowedDomains:  cfg.Search.AllowedDomains,
		FetchTimeout:    time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxAlternatives: cfg.Search.MaxAlternatives,
		Concurrency:     cfg.Search.Concurrency,
	}
}

// newEngine builds the search engine from configuration.
func newEngine(cfg *config.Config) *engine.Engine {
	provider := websearch.NewProvider(websearch.ProviderConfig{
		Name:      cfg.Search.Provider,
		BaseURL:   cfg.Search.BaseURL,
		APIKey:    cfg.Search.APIKey,
		UserAgent: cfg.Search.UserAgent,
		Timeout:   time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
	})
	throttle := fetch.NewThrottle(time.Duration(cfg.Fetch.MinDelayMS) * time.Millisecond)
	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxBytes:  cfg.Fetch.MaxBytes,
	}, throttle)

	return engine.New(websearch.NewAdapter(provider), fetcher)
}

// newApp wires the engine, the search tool, the backend selector and the
// optional history store.
func newApp(cfg *config.Config, showToolCalls bool) (*app, error) {
	tool := tools.NewLyricsSearchTool(newEngine(cfg), searchOptions(cfg))

	opts := []agent.Option{agent.WithMaxSteps(cfg.Model.MaxSteps)}
	if cfg.UseLLM() {
		prompts, err := config.LoadPromptConfig()
		if err != nil {
			logger.Warn("failed to load prompt config, using defaults: %v", err)
			prompts = config.DefaultPromptConfig()
		}
		client := llm.New(llm.Settings{
			APIKey:      cfg.Model.APIKey,
			BaseURL:     cfg.Model.BaseURL,
			Model:       cfg.Model.Model,
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
		})
		opts = append(opts, agent.WithLLM(client, prompts))
	}
	if showToolCalls {
		opts = append(opts, agent.WithToolCallHandler(cli.PrintToolCall))
	}

	a := &app{
		cfg:    cfg,
		tool:   tool,
		runner: agent.New(tool, opts...),
	}

	if cfg.History.Enabled {
		store, err := history.NewSQLiteStore(cfg.History.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history store: %w", err)
		}
		a.store = store
	}
	return a, nil
}

// record saves an outcome when history is enabled; failures are only logged.
func (a *app) record(source, snippet string, out *agent.Outcome) {
	if a.store == nil || out == nil {
		return
	}
	rec, err := history.NewRecord(source, snippet, out)
	if err == nil {
		err = a.store.Save(rec)
	}
	if err != nil {
		logger.Warn("failed to record search: %v", err)
	}
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}
