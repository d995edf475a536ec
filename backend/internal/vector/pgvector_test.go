package vector

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPgVectorStore requires Postgres with the pgvector extension.
// Set PGVECTOR_DSN to run it.
func TestPgVectorStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	dsn := os.Getenv("PGVECTOR_DSN")
	if dsn == "" {
		t.Skip("PGVECTOR_DSN not set")
	}

	ctx := context.Background()
	store := NewPgVectorStore(dsn, CollectionName("test"), 3, nil)
	require.NoError(t, store.Connect(ctx))
	defer store.Close()
	defer func() { _ = store.Clear(ctx) }()

	require.NoError(t, store.UpsertEmbedding(ctx, "a", []float32{1, 0, 0}, map[string]any{"title": "A"}))
	require.NoError(t, store.UpsertEmbedding(ctx, "b", []float32{0, 1, 0}, nil))
	require.NoError(t, store.UpsertEmbedding(ctx, "a", []float32{1, 0.1, 0}, map[string]any{"title": "A2"}))

	matches, err := store.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "A2", matches[0].Payload["title"])

	require.NoError(t, store.DeleteEmbedding(ctx, "a"))
	matches, err = store.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestPgVectorStore_NotConnected(t *testing.T) {
	store := NewPgVectorStore("", "c", 3, nil)
	assert.False(t, store.IsConnected())
	assert.Error(t, store.DeleteEmbedding(context.Background(), "a"))
}
