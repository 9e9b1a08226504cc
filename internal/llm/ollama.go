package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

// Defaults for a local Ollama server.
const (
	DefaultOllamaHost           = "http://localhost:11434"
	DefaultOllamaEmbeddingModel = "nomic-embed-text"
	DefaultOllamaChatModel      = "codellama"
)

// OllamaClient implements Embedder and Generator against an Ollama server.
type OllamaClient struct {
	client         *ollama.Client
	embeddingModel string
	chatModel      string
}

// NewOllamaClient creates a client for the Ollama server at host.
// No request timeout is set: local generation of a patch can take minutes,
// so callers bound requests through their context.
func NewOllamaClient(host, embeddingModel, chatModel string) (*OllamaClient, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if embeddingModel == "" {
		embeddingModel = DefaultOllamaEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultOllamaChatModel
	}
	return &OllamaClient{
		client:         ollama.NewClient(u, &http.Client{}),
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}, nil
}

// Embed generates an embedding vector for the given text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := c.client.Embed(ctx, &ollama.EmbedRequest{
		Model: c.embeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned: %w", ErrEmptyResponse)
	}
	return res.Embeddings[0], nil
}

// Generate streams a completion for prompt and returns the accumulated text.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	var text strings.Builder

	req := &ollama.GenerateRequest{
		Model:  c.chatModel,
		Prompt: prompt,
	}

	if err := c.client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	}); err != nil {
		return "", fmt.Errorf("failed to generate: %w", err)
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("no text returned: %w", ErrEmptyResponse)
	}
	return text.String(), nil
}

var (
	_ Embedder  = (*OllamaClient)(nil)
	_ Generator = (*OllamaClient)(nil)
)
