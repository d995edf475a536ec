// Package vector holds the optional embedding index used for semantic search.
package vector

import "context"

// Match is a single nearest-neighbour hit
type Match struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Store is an embedding index keyed by note id
type Store interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	UpsertEmbedding(ctx context.Context, id string, vector []float32, payload map[string]any) error
	DeleteEmbedding(ctx context.Context, id string) error
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)
	Clear(ctx context.Context) error
	Close() error
}

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CollectionName returns the per-vault collection name
func CollectionName(vaultID string) string {
	return "vault_" + vaultID
}
