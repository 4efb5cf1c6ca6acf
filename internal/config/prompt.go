package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

const (
	promptFileName  = "prompt.yaml"
	fallbackLang    = "en"
	snippetVariable = "{{.Snippet}}"
)

// PromptConfig holds the model prompts per language, selected by Language.
// prompt.yaml only needs the fields it changes; the rest keep their defaults.
type PromptConfig struct {
	Language string                     `yaml:"language"`
	Prompts  map[string]LanguagePrompts `yaml:"prompts"`

	request *template.Template
}

// LanguagePrompts is the prompt set for one language. Request is a
// text/template rendered with the snippet as {{.Snippet}}.
type LanguagePrompts struct {
	System      string `yaml:"system"`
	Request     string `yaml:"request"`
	ErrorPrefix string `yaml:"error_prefix"`
}

func defaultPrompts() map[string]LanguagePrompts {
	return map[string]LanguagePrompts{
		"en": {
			System: `You are LyricSleuth, a music assistant that identifies songs from fragments of their lyrics.
Always call the search_song_by_lyrics tool with the user's snippet before answering.
Base your answer only on the tool result: name the most likely song and artist, mention the source URL,
and say plainly when nothing matched. Keep the answer to two or three sentences.`,
			Request:     "Which song contains these lyrics?\n\n" + snippetVariable,
			ErrorPrefix: "Error",
		},
		"zh": {
			System: `你是 LyricSleuth，一个根据歌词片段识别歌曲的音乐助手。
回答之前请务必用用户提供的片段调用 search_song_by_lyrics 工具。
只根据工具结果作答：给出最可能的歌曲名和歌手，附上来源链接；如果没有匹配结果请直接说明。回答控制在两三句话以内。`,
			Request:     "这段歌词出自哪首歌？\n\n" + snippetVariable,
			ErrorPrefix: "错误",
		},
	}
}

// DefaultPromptConfig returns the built-in English and Chinese prompts.
func DefaultPromptConfig() *PromptConfig {
	p := &PromptConfig{Language: fallbackLang, Prompts: defaultPrompts()}
	if err := p.compile(); err != nil {
		panic(err)
	}
	return p
}

// PromptConfigPath returns the path of prompt.yaml in the config directory.
func PromptConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, promptFileName), nil
}

// LoadPromptConfig reads prompt.yaml over the defaults. A missing file
// yields the defaults.
func LoadPromptConfig() (*PromptConfig, error) {
	path, err := PromptConfigPath()
	if err != nil {
		return DefaultPromptConfig(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultPromptConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config: %w", err)
	}
	return ParsePromptConfig(data)
}

// ParsePromptConfig overlays YAML data on the default prompts, field by
// field, and checks the request template of the selected language.
func ParsePromptConfig(data []byte) (*PromptConfig, error) {
	var file PromptConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse prompt config: %w", err)
	}

	p := DefaultPromptConfig()
	if lang := strings.TrimSpace(file.Language); lang != "" {
		p.Language = lang
	}
	for lang, override := range file.Prompts {
		base := p.Prompts[lang]
		if override.System != "" {
			base.System = override.System
		}
		if override.Request != "" {
			base.Request = override.Request
		}
		if override.ErrorPrefix != "" {
			base.ErrorPrefix = override.ErrorPrefix
		}
		p.Prompts[lang] = base
	}

	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PromptConfig) compile() error {
	src := p.GetPrompts().Request
	if src == "" {
		p.request = nil
		return nil
	}
	if !strings.Contains(src, ".Snippet") {
		return fmt.Errorf("prompt config: request template for %q must reference %s", p.Language, snippetVariable)
	}
	tmpl, err := template.New("request").Option("missingkey=error").Parse(src)
	if err != nil {
		return fmt.Errorf("prompt config: bad request template: %w", err)
	}
	p.request = tmpl
	return nil
}

// GetPrompts returns the prompt set for Language, falling back to English.
func (p *PromptConfig) GetPrompts() LanguagePrompts {
	if prompts, ok := p.Prompts[p.Language]; ok {
		return prompts
	}
	return p.Prompts[fallbackLang]
}

func (p *PromptConfig) GetSystemPrompt() string {
	return p.GetPrompts().System
}

// FormatRequest builds the user message asking about snippet. Without a
// usable template the snippet is sent as is.
func (p *PromptConfig) FormatRequest(snippet string) string {
	if p.request == nil {
		return snippet
	}
	var b strings.Builder
	if err := p.request.Execute(&b, struct{ Snippet string }{snippet}); err != nil {
		return snippet
	}
	return b.String()
}

// GetErrorPrefix is prepended to tool errors reported back to the model.
func (p *PromptConfig) GetErrorPrefix() string {
	return p.GetPrompts().ErrorPrefix
}
