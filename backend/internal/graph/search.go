package graph

import (
	"context"

	"go.uber.org/zap"
)

// SearchHit is a note returned by SearchSimilar
type SearchHit struct {
	Note   Note    `json:"note"`
	Score  float64 `json:"score"`
	Method string  `json:"method"` // "semantic" or "fulltext"
}

// SearchSimilar prefers vector search and falls back to the graph fulltext index
// when the store has no embedding capability or the vector path fails.
func SearchSimilar(ctx context.Context, store Store, vaultID, query string, k int, log *zap.Logger) ([]SearchHit, error) {
	if k < 1 {
		k = 10
	}
	if emb := store.Embeddings(); emb != nil {
		hits, err := semanticSearch(ctx, store, emb, query, k)
		if err == nil {
			return hits, nil
		}
		if log != nil {
			log.Warn("Semantic search unavailable, using fulltext", zap.Error(err))
		}
	}

	notes, err := store.SearchNotes(ctx, vaultID, query, k)
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, 0, len(notes))
	for _, n := range notes {
		hits = append(hits, SearchHit{Note: n, Score: 1.0, Method: "fulltext"})
	}
	return hits, nil
}

func semanticSearch(ctx context.Context, store Store, emb *Embeddings, query string, k int) ([]SearchHit, error) {
	matches, err := emb.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, 0, len(matches))
	for _, m := range matches {
		note, err := store.GetNote(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		// stale vector for a deleted note
		if note == nil {
			continue
		}
		hits = append(hits, SearchHit{Note: *note, Score: m.Score, Method: "semantic"})
	}
	return hits, nil
}
