// Package llm provides the embedding and text generation capabilities used by
// the fix memory and the recall policy, with one implementation per provider.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any content.
var ErrEmptyResponse = errors.New("empty response from model")

// Embedder provides text embedding capability.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator provides single-turn text completion.
type Generator interface {
	// Generate returns the model's completion for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}
