package memory

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned by Add when the embedding computed for new
// text does not have the dimensionality of the entries already stored.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store defines the contract for fix memory operations.
type Store interface {
	// Add embeds text and persists the new entry before returning.
	Add(ctx context.Context, text string, solution map[string]string) error

	// Search returns at most topK entries ordered by descending similarity to text.
	// Entries with equal similarity keep their insertion order.
	Search(ctx context.Context, text string, topK int) ([]Entry, error)

	// Rank is Search with the similarity score of each entry.
	Rank(ctx context.Context, text string, topK int) ([]Match, error)

	// Close releases any resources held by the store.
	Close() error
}
