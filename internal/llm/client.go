// Package llm is a small client for OpenAI-compatible chat completion
// endpoints (DeepSeek by default) with function calling.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout    = 120 * time.Second
	defaultRetryDelay = time.Second
	// Retry-After values beyond this are treated as "give up".
	maxRetryAfter     = time.Minute
	errorBodyLimit    = 4096
)

// Settings selects the endpoint and sampling parameters.
type Settings struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client talks to one chat completions endpoint.
type Client struct {
	settings   Settings
	endpoint   string
	retryDelay time.Duration
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (120s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryDelay sets the base backoff step used by ChatWithRetry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// New creates a client. BaseURL may be given with or without the /v1 suffix.
func New(s Settings, opts ...Option) *Client {
	c := &Client{
		settings:   s,
		endpoint:   completionsURL(s.BaseURL),
		retryDelay: defaultRetryDelay,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func completionsURL(base string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/chat/completions"
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.settings.Model
}

// APIError is a non-200 reply from the endpoint.
type APIError struct {
	Status     int
	Body       string
	RetryAfter time.Duration // from the Retry-After header, zero when absent
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned error (status %d): %s", e.Status, e.Body)
}

// Temporary reports whether the request is worth repeating.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Chat sends one completion request. Tools are offered with tool_choice
// "auto" so the model may answer without calling them.
func (c *Client) Chat(ctx context.Context, messages []Message, tools []Tool) (*ChatResponse, error) {
	body := chatRequest{
		Model:       c.settings.Model,
		Messages:    messages,
		Temperature: c.settings.Temperature,
		MaxTokens:   c.settings.MaxTokens,
	}
	if len(tools) > 0 {
		body.Tools = tools
		body.ToolChoice = "auto"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.settings.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.settings.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &APIError{
			Status:     resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return decodeResponse(resp.Body)
}

func decodeResponse(r io.Reader) (*ChatResponse, error) {
	var resp chatResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("API returned empty response")
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Content:      choice.Message.Content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
		Usage:        resp.Usage,
	}, nil
}

// parseRetryAfter understands the delay-seconds form only.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// ChatWithRetry calls Chat up to attempts times. Permanent API errors (4xx
// other than 429) return at once. The wait grows linearly with the attempt
// number unless the server sent a Retry-After, and ends early when ctx is done.
func (c *Client) ChatWithRetry(ctx context.Context, messages []Message, tools []Tool, attempts int) (*ChatResponse, error) {
	attempts = max(attempts, 1)
	var lastErr error
	for i := range attempts {
		resp, err := c.Chat(ctx, messages, tools)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		wait := time.Duration(i+1) * c.retryDelay
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if !apiErr.Temporary() || apiErr.RetryAfter > maxRetryAfter {
				return nil, err
			}
			if apiErr.RetryAfter > 0 {
				wait = apiErr.RetryAfter
			}
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("failed after %d retries: %w", attempts, lastErr)
}
