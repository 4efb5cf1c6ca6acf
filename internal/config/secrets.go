package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Keys read from .secrets or the environment.
const (
	KeyLLMAPIKey       = "LLM_API_KEY"
	KeyDeepSeekAPIKey  = "DEEPSEEK_API_KEY" // older name, still honoured
	KeyWebSearchAPIKey = "WEB_SEARCH_API_KEY"
)

const secretsFileName = ".secrets"

// Secrets holds API keys kept out of config.yaml. Environment variables of
// the same name win over the file when the secrets come from LoadSecrets.
type Secrets struct {
	values map[string]string
	env    func(string) (string, bool)
}

// NewSecrets creates an empty set that ignores the environment.
func NewSecrets() *Secrets {
	return &Secrets{values: make(map[string]string)}
}

// SecretsPath returns the secrets file path
func SecretsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, secretsFileName), nil
}

// LoadSecrets reads the .secrets file next to config.yaml. A missing file is
// not an error.
func LoadSecrets() (*Secrets, error) {
	secrets := NewSecrets()
	secrets.env = os.LookupEnv

	path, err := SecretsPath()
	if err != nil {
		return secrets, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return secrets, nil
	}
	if err != nil {
		return secrets, fmt.Errorf("failed to open secrets file: %w", err)
	}
	defer f.Close()

	if err := secrets.parse(f); err != nil {
		return secrets, fmt.Errorf("failed to read secrets file: %w", err)
	}
	return secrets, nil
}

// parse reads KEY=VALUE lines. Comments, blank lines, an optional "export "
// prefix and surrounding quotes are accepted so the file can be sourced by a
// shell too.
func (s *Secrets) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		s.values[strings.TrimSpace(key)] = value
	}
	return scanner.Err()
}

// Get returns the value for key, "" when unset.
func (s *Secrets) Get(key string) string {
	v, _ := s.lookup(key)
	return v
}

// Has reports whether key is set to a non-empty value.
func (s *Secrets) Has(key string) bool {
	_, ok := s.lookup(key)
	return ok
}

func (s *Secrets) lookup(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	if s.env != nil {
		if v, ok := s.env(key); ok && v != "" {
			return v, true
		}
	}
	v := s.values[key]
	return v, v != ""
}

// GetLLMAPIKey returns the model API key; LLM_API_KEY wins over DEEPSEEK_API_KEY.
func (s *Secrets) GetLLMAPIKey() string {
	if v, ok := s.lookup(KeyLLMAPIKey); ok {
		return v
	}
	return s.Get(KeyDeepSeekAPIKey)
}

// GetWebSearchAPIKey returns the SearXNG API key.
func (s *Secrets) GetWebSearchAPIKey() string {
	return s.Get(KeyWebSearchAPIKey)
}
