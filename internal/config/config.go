package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ./config in current directory
func GetConfigDir() string {
	if !configDirInit {
		cwd, err := os.Getwd()
		if err == nil {
			configDir = filepath.Join(cwd, "config")
		}
		configDirInit = true
	}
	return configDir
}

// Backend names accepted by model.backend.
const (
	BackendAuto   = "auto"
	BackendDirect = "direct"
	BackendLLM    = "llm"
)

// Config application configuration structure
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Model      ModelConfig      `yaml:"model"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	History    HistoryConfig    `yaml:"history"`
	Log        LogConfig        `yaml:"log"`
}

// SearchConfig web search and ranking configuration
type SearchConfig struct {
	Provider        string   `yaml:"provider"`
	BaseURL         string   `yaml:"base_url"`
	APIKey          string   `yaml:"api_key"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	UserAgent       string   `yaml:"user_agent"`
	MaxPages        int      `yaml:"max_pages"`
	MaxAlternatives int      `yaml:"max_alternatives"`
	Concurrency     int      `yaml:"concurrency"`
	AllowedDomains  []string `yaml:"allowed_domains"`
}

// FetchConfig page fetching configuration
type FetchConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	MaxBytes       int64  `yaml:"max_bytes"`
	MinDelayMS     int    `yaml:"min_delay_ms"` // per domain
}

// ModelConfig LLM model configuration
type ModelConfig struct {
	Backend     string  `yaml:"backend"` // auto | direct | llm
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	MaxSteps    int     `yaml:"max_steps"`
}

// TranscribeConfig audio transcription configuration
type TranscribeConfig struct {
	Command        string   `yaml:"command"`
	Model          string   `yaml:"model"`
	Language       string   `yaml:"language"`
	Extensions     []string `yaml:"extensions"`
	TimeoutMinutes int      `yaml:"timeout_minutes"`
	SnippetChars   int      `yaml:"snippet_chars"`
}

// HistoryConfig history storage configuration
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// LogConfig logging configuration
type LogConfig struct {
	Level   string `yaml:"level"`
	MaxDays int    `yaml:"max_days"`
	Console bool   `yaml:"console"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Search: SearchConfig{
			Provider:        "duckduckgo",
			BaseURL:         "https://html.duckduckgo.com/html/",
			TimeoutSeconds:  15,
			UserAgent:       "LyricSleuth/0.1",
			MaxPages:        8,
			MaxAlternatives: 4,
			Concurrency:     4,
			AllowedDomains:  []string{"genius.com", "azlyrics.com", "lyrics.com", "musixmatch.com"},
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 10,
			UserAgent:      "LyricSleuth/0.1 (+https://github.com/hession/lyricsleuth)",
			MaxBytes:       2 << 20,
			MinDelayMS:     800,
		},
		Model: ModelConfig{
			Backend:     BackendAuto,
			BaseURL:     "https://api.deepseek.com",
			Model:       "deepseek-chat",
			Temperature: 0.2,
			MaxTokens:   1024,
			MaxSteps:    3,
		},
		Transcribe: TranscribeConfig{
			Command:        "whisper",
			Model:          "base",
			Extensions:     []string{".mp3", ".wav", ".m4a", ".flac", ".ogg"},
			TimeoutMinutes: 10,
			SnippetChars:   350,
		},
		History: HistoryConfig{
			Enabled: false,
			DBPath:  filepath.Join(homeDir, ".lyricsleuth", "history.db"),
		},
		Log: LogConfig{
			Level:   "info",
			MaxDays: 7,
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the log directory path
func LogDir() string {
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from file and merges with secrets
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// First run: write the defaults so there is a file to edit
		cfg := DefaultConfig()
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		cfg.mergeSecrets()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig() // Use default values as base
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.mergeSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeSecrets fills API keys the config file leaves empty.
func (c *Config) mergeSecrets() {
	secrets, _ := LoadSecrets()
	if secrets == nil {
		return
	}
	if c.Model.APIKey == "" {
		c.Model.APIKey = secrets.GetLLMAPIKey()
	}
	if c.Search.APIKey == "" {
		c.Search.APIKey = secrets.GetWebSearchAPIKey()
	}
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	content := "# LyricSleuth Configuration File\n# API keys belong in .secrets next to this file\n\n" + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	provider := strings.ToLower(strings.TrimSpace(c.Search.Provider))
	switch provider {
	case "", "duckduckgo", "ddg":
	case "searxng":
		if strings.TrimSpace(c.Search.BaseURL) == "" {
			return fmt.Errorf("config error: search.base_url cannot be empty for searxng provider")
		}
	default:
		return fmt.Errorf("config error: unknown search.provider %q", c.Search.Provider)
	}
	if c.Search.TimeoutSeconds <= 0 {
		return fmt.Errorf("config error: search.timeout_seconds must be greater than 0")
	}
	if c.Search.MaxPages < 0 {
		return fmt.Errorf("config error: search.max_pages cannot be negative")
	}
	if c.Search.Concurrency < 0 || c.Search.Concurrency > 8 {
		return fmt.Errorf("config error: search.concurrency must be between 0 and 8")
	}

	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("config error: fetch.timeout_seconds must be greater than 0")
	}
	if c.Fetch.MinDelayMS < 0 {
		return fmt.Errorf("config error: fetch.min_delay_ms cannot be negative")
	}

	switch c.Model.Backend {
	case "", BackendAuto, BackendDirect, BackendLLM:
	default:
		return fmt.Errorf("config error: model.backend must be auto, direct or llm")
	}
	if c.Model.Backend == BackendLLM && c.Model.APIKey == "" {
		return fmt.Errorf("config error: model.backend is llm but no API key is configured")
	}
	if c.Model.BaseURL == "" {
		return fmt.Errorf("config error: model.base_url cannot be empty")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("config error: model.model cannot be empty")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("config error: model.temperature must be between 0 and 2")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("config error: model.max_tokens must be greater than 0")
	}
	if c.Model.MaxSteps <= 0 {
		return fmt.Errorf("config error: model.max_steps must be greater than 0")
	}

	if c.Transcribe.SnippetChars <= 0 {
		return fmt.Errorf("config error: transcribe.snippet_chars must be greater than 0")
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("config error: history.db_path cannot be empty when history is enabled")
	}

	return nil
}

// IsAPIKeyConfigured checks if API key is configured
func (c *Config) IsAPIKeyConfigured() bool {
	return c.Model.APIKey != ""
}

// UseLLM reports whether searches should go through the model.
func (c *Config) UseLLM() bool {
	switch c.Model.Backend {
	case BackendDirect:
		return false
	case BackendLLM:
		return true
	default:
		return c.IsAPIKeyConfigured()
	}
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`LyricSleuth Configuration:
  Search:
    Provider: %s
    Base URL: %s
    API Key: %s
    Timeout Seconds: %d
    Max Pages: %d
    Max Alternatives: %d
    Concurrency: %d
    Allowed Domains: %s
  Fetch:
    Timeout Seconds: %d
    User Agent: %s
    Max Bytes: %d
    Min Delay: %dms
  Model:
    Backend: %s
    API Key: %s
    Base URL: %s
    Model: %s
    Temperature: %.1f
    Max Steps: %d
  Transcribe:
    Command: %s
    Model: %s
    Snippet Chars: %d
  History:
    Enabled: %v
    DB Path: %s
  Log:
    Level: %s
    Max Days: %d`,
		c.Search.Provider,
		c.Search.BaseURL,
		redactAPIKey(c.Search.APIKey),
		c.Search.TimeoutSeconds,
		c.Search.MaxPages,
		c.Search.MaxAlternatives,
		c.Search.Concurrency,
		strings.Join(c.Search.AllowedDomains, ", "),
		c.Fetch.TimeoutSeconds,
		c.Fetch.UserAgent,
		c.Fetch.MaxBytes,
		c.Fetch.MinDelayMS,
		c.Model.Backend,
		redactAPIKey(c.Model.APIKey),
		c.Model.BaseURL,
		c.Model.Model,
		c.Model.Temperature,
		c.Model.MaxSteps,
		c.Transcribe.Command,
		c.Transcribe.Model,
		c.Transcribe.SnippetChars,
		c.History.Enabled,
		c.History.DBPath,
		c.Log.Level,
		c.Log.MaxDays,
	)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
