package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-3-5-sonnet-latest"

// defaultAnthropicMaxTokens bounds a generated patch.
const defaultAnthropicMaxTokens = 4096

// AnthropicClient implements Generator on the Anthropic Messages API.
// Anthropic has no embedding endpoint, so it cannot back the fix memory.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicClient constructs a client; opts are passed to the SDK after the API key.
func NewAnthropicClient(apiKey, model string, opts ...anthropicopt.RequestOption) *AnthropicClient {
	if model == "" {
		model = DefaultAnthropicModel
	}
	cl := anthropic.NewClient(append([]anthropicopt.RequestOption{anthropicopt.WithAPIKey(apiKey)}, opts...)...)
	return &AnthropicClient{
		client:    &cl,
		model:     model,
		maxTokens: defaultAnthropicMaxTokens,
	}
}

// Generate performs a single-turn completion and returns the concatenated text blocks.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create message: %w", err)
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text returned: %w", ErrEmptyResponse)
	}
	return b.String(), nil
}

var _ Generator = (*AnthropicClient)(nil)
