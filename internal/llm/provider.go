package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider names accepted by NewEmbedder and NewGenerator.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Settings selects and configures the model providers.
type Settings struct {
	EmbedProvider string
	EmbedModel    string
	LLMProvider   string
	LLMModel      string
	GoogleAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	AnthropicKey  string
	OllamaHost    string
}

// NewEmbedder returns the embedding provider named by s.EmbedProvider.
func NewEmbedder(ctx context.Context, s Settings) (Embedder, error) {
	switch strings.ToLower(s.EmbedProvider) {
	case "", ProviderGemini:
		if s.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is required for the %s embedder", ProviderGemini)
		}
		return NewGeminiClient(ctx, s.GoogleAPIKey, s.EmbedModel, "")
	case ProviderOpenAI:
		if s.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the %s embedder", ProviderOpenAI)
		}
		return NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIBaseURL, s.EmbedModel, ""), nil
	case ProviderOllama:
		return NewOllamaClient(s.OllamaHost, s.EmbedModel, "")
	case ProviderAnthropic:
		return nil, fmt.Errorf("provider %q does not offer embeddings", s.EmbedProvider)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", s.EmbedProvider)
	}
}

// NewGenerator returns the generation provider named by s.LLMProvider.
func NewGenerator(ctx context.Context, s Settings) (Generator, error) {
	switch strings.ToLower(s.LLMProvider) {
	case "", ProviderGemini:
		if s.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is required for the %s generator", ProviderGemini)
		}
		return NewGeminiClient(ctx, s.GoogleAPIKey, "", s.LLMModel)
	case ProviderOpenAI:
		if s.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the %s generator", ProviderOpenAI)
		}
		return NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIBaseURL, "", s.LLMModel), nil
	case ProviderAnthropic:
		if s.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the %s generator", ProviderAnthropic)
		}
		return NewAnthropicClient(s.AnthropicKey, s.LLMModel), nil
	case ProviderOllama:
		return NewOllamaClient(s.OllamaHost, "", s.LLMModel)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", s.LLMProvider)
	}
}
