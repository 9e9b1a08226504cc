package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Default OpenAI models.
const (
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	DefaultOpenAIChatModel      = "gpt-4o-mini"
)

// OpenAIClient implements Embedder and Generator on the OpenAI API.
type OpenAIClient struct {
	client         *openai.Client
	embeddingModel string
	chatModel      string
}

// NewOpenAIClient creates a client for the OpenAI API.
// baseURL may be empty; it is set for OpenAI-compatible gateways.
func NewOpenAIClient(apiKey, baseURL, embeddingModel, chatModel string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if embeddingModel == "" {
		embeddingModel = DefaultOpenAIEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultOpenAIChatModel
	}
	return &OpenAIClient{
		client:         openai.NewClientWithConfig(cfg),
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}
}

// Embed generates an embedding vector for the given text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned: %w", ErrEmptyResponse)
	}
	return resp.Data[0].Embedding, nil
}

// Generate sends prompt as a single user message.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no choices returned: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

var (
	_ Embedder  = (*OpenAIClient)(nil)
	_ Generator = (*OpenAIClient)(nil)
)
