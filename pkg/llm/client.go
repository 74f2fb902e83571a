// Package llm wraps the Anthropic messages API behind the single capability
// the pipeline needs: submit a prompt, receive text. One client is shared
// across a run; every call is stateless.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/graphmcp/decomm/pkg/config"
)

// Completer is the capability surface consumed by the agentic processor.
// *Client is the production implementation; tests substitute fakes.
type Completer interface {
	CompleteJSON(ctx context.Context, system, prompt string) (string, error)
}

// Client is a thin wrapper around the Anthropic SDK.
type Client struct {
	api       anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *slog.Logger
}

var _ Completer = (*Client)(nil)

// NewClient creates an LLM client from settings. The API key is read from
// the environment variable named in the settings.
func NewClient(settings config.LLMSettings) (*Client, error) {
	key := os.Getenv(settings.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("LLM API key not set: %s", settings.APIKeyEnv)
	}

	return &Client{
		api:       anthropic.NewClient(option.WithAPIKey(key)),
		model:     anthropic.Model(settings.Model),
		maxTokens: int64(settings.MaxTokens),
		logger:    slog.Default().With("component", "llm-client"),
	}, nil
}

// NewClientWithBaseURL creates a client that targets a custom API URL.
// Useful for testing with a mock server.
func NewClientWithBaseURL(settings config.LLMSettings, key, baseURL string) *Client {
	return &Client{
		api:       anthropic.NewClient(option.WithAPIKey(key), option.WithBaseURL(baseURL)),
		model:     anthropic.Model(settings.Model),
		maxTokens: int64(settings.MaxTokens),
		logger:    slog.Default().With("component", "llm-client"),
	}
}

// CompleteJSON sends one prompt and returns the model's text output with any
// Markdown code fencing stripped, so callers can parse it as JSON directly.
func (c *Client) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	message, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("messages API call failed: %w", err)
	}

	var parts []string
	for _, block := range message.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.Join(parts, "\n")
	c.logger.Debug("LLM completion received",
		"model", string(c.model), "output_chars", len(text))

	return StripCodeFence(text), nil
}

// StripCodeFence removes a surrounding Markdown code fence, with or without
// a language tag. Models wrap JSON responses this way often enough that
// every caller would otherwise repeat this.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
