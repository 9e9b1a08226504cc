package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Default Gemini models.
const (
	DefaultGeminiEmbeddingModel = "text-embedding-004"
	DefaultGeminiChatModel      = "gemini-2.0-flash"
)

// GeminiClient wraps the Google GenAI client and provides embedding and generation.
type GeminiClient struct {
	client         *genai.Client
	embeddingModel string
	chatModel      string
}

// NewGeminiClient creates a new Gemini client with the given API key.
// Empty model names fall back to the defaults.
func NewGeminiClient(ctx context.Context, apiKey, embeddingModel, chatModel string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	if embeddingModel == "" {
		embeddingModel = DefaultGeminiEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultGeminiChatModel
	}

	return &GeminiClient{
		client:         client,
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}, nil
}

// Embed generates an embedding vector for the given text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}

	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned: %w", ErrEmptyResponse)
	}

	return resp.Embeddings[0].Values, nil
}

// Generate sends prompt as a single user turn and returns the text of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates returned: %w", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text returned: %w", ErrEmptyResponse)
	}
	return sb.String(), nil
}

// ChatModel returns the configured chat model name.
func (c *GeminiClient) ChatModel() string {
	return c.chatModel
}

// Ensure GeminiClient implements both capabilities
var (
	_ Embedder  = (*GeminiClient)(nil)
	_ Generator = (*GeminiClient)(nil)
)
