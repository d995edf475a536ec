package graph

import (
	"context"

	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/vector"
	apperrors "vault-graph-sync/backend/pkg/errors"
)

// Embeddings pairs an embedder with a vector index.
// Failures here never fail a note sync; callers log and move on.
type Embeddings struct {
	embedder vector.Embedder
	index    vector.Store
	logger   *zap.Logger
}

// NewEmbeddings creates the semantic search capability
func NewEmbeddings(embedder vector.Embedder, index vector.Store, log *zap.Logger) *Embeddings {
	if log == nil {
		log = zap.NewNop()
	}
	return &Embeddings{embedder: embedder, index: index, logger: log}
}

// Index returns the underlying vector store
func (e *Embeddings) Index() vector.Store {
	return e.index
}

// IndexNote embeds title and content and upserts the vector under the note id
func (e *Embeddings) IndexNote(ctx context.Context, note Note) error {
	if e.embedder == nil || e.index == nil {
		return apperrors.ErrEmbeddingNotConfigured
	}
	if !e.index.IsConnected() {
		return apperrors.NewEmbeddingUnavailable("vector store not connected", apperrors.NewStoreUnavailable("vector"))
	}

	vec, err := e.embedder.Embed(ctx, note.Title+"\n\n"+note.Content)
	if err != nil {
		return apperrors.NewEmbeddingUnavailable("embed "+note.Path, err)
	}

	payload := map[string]any{
		"vault_id": note.VaultID,
		"path":     note.Path,
		"title":    note.Title,
		"modified": note.Modified.Unix(),
	}
	if err := e.index.UpsertEmbedding(ctx, note.ID, vec, payload); err != nil {
		return apperrors.NewEmbeddingUnavailable("index "+note.Path, err)
	}

	e.logger.Debug("Note embedded", zap.String("note_id", note.ID), zap.Int("dims", len(vec)))
	return nil
}

// RemoveNote deletes the vector for a note id
func (e *Embeddings) RemoveNote(ctx context.Context, id string) error {
	if e.index == nil || !e.index.IsConnected() {
		return apperrors.NewStoreUnavailable("vector")
	}
	return e.index.DeleteEmbedding(ctx, id)
}

// Search embeds the query and returns the k nearest notes
func (e *Embeddings) Search(ctx context.Context, query string, k int) ([]vector.Match, error) {
	if e.embedder == nil || e.index == nil {
		return nil, apperrors.ErrEmbeddingNotConfigured
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperrors.NewEmbeddingUnavailable("embed query", err)
	}
	return e.index.Search(ctx, vec, k)
}

// Clear empties the vector index
func (e *Embeddings) Clear(ctx context.Context) error {
	if e.index == nil {
		return nil
	}
	return e.index.Clear(ctx)
}
