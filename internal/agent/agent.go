// Package agent picks how a snippet is identified: by calling the engine
// directly, or by letting a tool-calling model drive it.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hession/lyricsleuth/internal/config"
	"github.com/hession/lyricsleuth/internal/engine"
	"github.com/hession/lyricsleuth/internal/llm"
	"github.com/hession/lyricsleuth/internal/logger"
	"github.com/hession/lyricsleuth/internal/tools"
)

const (
	BackendDirect = "direct"
	BackendLLM    = "llm"

	// DefaultMaxSteps bounds model round trips per snippet.
	DefaultMaxSteps = 3

	chatRetries = 2
)

// errNoToolCall is reported when the model answered without searching.
var errNoToolCall = errors.New("model did not call " + tools.LyricsSearchToolName)

// ChatClient is satisfied by *llm.Client.
type ChatClient interface {
	ChatWithRetry(ctx context.Context, messages []llm.Message, tools []llm.Tool, maxRetries int) (*llm.ChatResponse, error)
}

// Outcome is what a Runner reports for one snippet.
type Outcome struct {
	Backend string              `json:"backend"`
	Result  *engine.MatchResult `json:"result"`
	Summary string              `json:"summary,omitempty"`
	Error   string              `json:"error,omitempty"` // why the model path was abandoned
}

// Runner identifies snippets with the configured backend.
type Runner struct {
	tool            *tools.LyricsSearchTool
	registry        *tools.Registry
	llm             ChatClient
	prompts         *config.PromptConfig
	maxSteps        int
	toolCallHandler func(name string, args map[string]any, result string, err error)
}

// Option runner configuration option
type Option func(*Runner)

// WithLLM routes searches through a tool-calling model. A nil client keeps
// the direct backend.
func WithLLM(client ChatClient, prompts *config.PromptConfig) Option {
	return func(r *Runner) {
		r.llm = client
		if prompts != nil {
			r.prompts = prompts
		}
	}
}

// WithMaxSteps sets the model round-trip budget.
func WithMaxSteps(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

// WithToolCallHandler sets the tool call handler
func WithToolCallHandler(handler func(name string, args map[string]any, result string, err error)) Option {
	return func(r *Runner) {
		r.toolCallHandler = handler
	}
}

// New creates a runner around the lyrics search tool.
func New(tool *tools.LyricsSearchTool, opts ...Option) *Runner {
	r := &Runner{
		tool:     tool,
		registry: tools.NewRegistry(),
		prompts:  config.DefaultPromptConfig(),
		maxSteps: DefaultMaxSteps,
	}
	_ = r.registry.Register(tool) // empty registry, no conflict
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backend names the backend Run will try first.
func (r *Runner) Backend() string {
	if r.llm != nil {
		return BackendLLM
	}
	return BackendDirect
}

// Run identifies snippet. Only engine.ErrInvalidSnippet is returned as an
// error; a failing model falls back to the direct backend.
func (r *Runner) Run(ctx context.Context, snippet string) (*Outcome, error) {
	if _, err := engine.BuildQueries(snippet); err != nil {
		return nil, err
	}
	if r.llm == nil {
		return r.direct(ctx, snippet, "")
	}

	outcome, err := r.viaModel(ctx, snippet)
	if err != nil {
		logger.Warn("model backend failed, searching directly: %v", err)
		return r.direct(ctx, snippet, err.Error())
	}
	return outcome, nil
}

func (r *Runner) direct(ctx context.Context, snippet, reason string) (*Outcome, error) {
	result, err := r.tool.Run(ctx, snippet, 0)
	if err != nil {
		return nil, err
	}
	return &Outcome{Backend: BackendDirect, Result: result, Error: reason}, nil
}

// viaModel runs the tool-calling loop. The structured result comes from the
// last successful search the model asked for, never from its prose.
func (r *Runner) viaModel(ctx context.Context, snippet string) (*Outcome, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: r.prompts.GetSystemPrompt()},
		{Role: llm.RoleUser, Content: r.prompts.FormatRequest(snippet)},
	}
	llmTools := r.llmTools()

	var captured *engine.MatchResult
	var summary string
	for step := 0; step < r.maxSteps; step++ {
		resp, err := r.llm.ChatWithRetry(ctx, messages, llmTools, chatRetries)
		if err != nil {
			return nil, fmt.Errorf("failed to call LLM: %w", err)
		}
		logger.Debug("llm step %d: finish=%s tool_calls=%d tokens=%d", step+1, resp.FinishReason, len(resp.ToolCalls), resp.Usage.TotalTokens)

		if len(resp.ToolCalls) == 0 {
			summary = resp.Content
			break
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, toolCall := range resp.ToolCalls {
			result, toolErr := r.executeTool(ctx, toolCall)

			if r.toolCallHandler != nil {
				var args map[string]any
				_ = json.Unmarshal([]byte(toolCall.Function.Arguments), &args)
				r.toolCallHandler(toolCall.Function.Name, args, result, toolErr)
			}

			content := result
			if toolErr != nil {
				content = fmt.Sprintf("%s: %v", r.prompts.GetErrorPrefix(), toolErr)
			} else if toolCall.Function.Name == tools.LyricsSearchToolName {
				var mr engine.MatchResult
				if err := json.Unmarshal([]byte(result), &mr); err == nil {
					captured = &mr
				}
			}

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    content,
				ToolCallID: toolCall.ID,
			})
		}
	}

	if captured == nil {
		return nil, errNoToolCall
	}
	return &Outcome{Backend: BackendLLM, Result: captured, Summary: summary}, nil
}

func (r *Runner) llmTools() []llm.Tool {
	schemas := r.registry.GetSchemas()
	llmTools := make([]llm.Tool, len(schemas))
	for i, schema := range schemas {
		llmTools[i] = llm.Tool{
			Type: schema.Type,
			Function: llm.ToolFunction{
				Name:        schema.Function.Name,
				Description: schema.Function.Description,
				Parameters:  schema.Function.Parameters,
			},
		}
	}
	return llmTools
}

func (r *Runner) executeTool(ctx context.Context, toolCall llm.ToolCall) (string, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	return r.registry.Execute(ctx, toolCall.Function.Name, args)
}
