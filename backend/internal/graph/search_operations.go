package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Search Operations
// ============================================================================

const maxRelatedDepth = 5

// GetRelatedNotes walks up to depth hops from a note, optionally over one edge type
func (r *Repository) GetRelatedNotes(ctx context.Context, id string, relType RelType, depth int) ([]Note, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > maxRelatedDepth {
		depth = maxRelatedDepth
	}

	pattern := fmt.Sprintf("*1..%d", depth)
	if relType != "" {
		if !relType.Valid() {
			return nil, fmt.Errorf("invalid relationship type %q", relType)
		}
		pattern = fmt.Sprintf(":%s*1..%d", relType, depth)
	}

	query := fmt.Sprintf(`
		MATCH (n:Note {id: $id})-[%s]-(m:Note)
		WHERE m.id <> $id
		RETURN DISTINCT %s
	`, pattern, noteReturn("m"))

	records, err := r.run(ctx, neo4j.AccessModeRead, "related notes", query, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	notes := make([]Note, 0, len(records))
	for _, rec := range records {
		notes = append(notes, noteFromRecord(rec))
	}
	return notes, nil
}

// ListNotes returns every note of a vault ordered by path
func (r *Repository) ListNotes(ctx context.Context, vaultID string) ([]Note, error) {
	records, err := r.run(ctx, neo4j.AccessModeRead, "list notes", `
		MATCH (n:Note {vault_id: $vault_id})
		RETURN `+noteReturn("n")+`
		ORDER BY n.path
	`, map[string]any{"vault_id": vaultID})
	if err != nil {
		return nil, err
	}

	notes := make([]Note, 0, len(records))
	for _, rec := range records {
		notes = append(notes, noteFromRecord(rec))
	}
	return notes, nil
}

// SearchNotes runs a fulltext query over note titles and content
func (r *Repository) SearchNotes(ctx context.Context, vaultID, query string, limit int) ([]Note, error) {
	if limit < 1 {
		limit = 10
	}

	records, err := r.run(ctx, neo4j.AccessModeRead, "fulltext search", `
		CALL db.index.fulltext.queryNodes('note_content', $query) YIELD node, score
		WHERE node.vault_id = $vault_id
		RETURN `+noteReturn("node")+`
		ORDER BY score DESC
		LIMIT $limit
	`, map[string]any{
		"query":    query,
		"vault_id": vaultID,
		"limit":    int64(limit),
	})
	if err != nil {
		return nil, err
	}

	notes := make([]Note, 0, len(records))
	for _, rec := range records {
		notes = append(notes, noteFromRecord(rec))
	}
	return notes, nil
}
