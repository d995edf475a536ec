package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "vault-graph-sync/backend/pkg/errors"
)

// ============================================================================
// Relationship Operations
// ============================================================================

// CreateRelationship merges an edge between two notes.
// On conflict confidence and similarity only ever grow; other properties are refreshed.
func (r *Repository) CreateRelationship(ctx context.Context, rel Relationship) (string, error) {
	if !rel.Type.Valid() {
		return "", apperrors.NewUpstreamError("neo4j", "create relationship", fmt.Errorf("invalid relationship type %q", rel.Type))
	}

	extra := make(map[string]any, len(rel.Properties))
	for k, v := range rel.Properties {
		if k == PropConfidence || k == PropSimilarity {
			continue
		}
		extra[k] = v
	}

	query := fmt.Sprintf(`
		MATCH (from:Note {id: $from})
		MATCH (to:Note {id: $to})
		MERGE (from)-[r:%s]->(to)
		ON CREATE SET
			r += $extra,
			r.confidence = $confidence,
			r.similarity = $similarity,
			r.created_at = datetime(),
			r.updated_at = datetime()
		ON MATCH SET
			r += $extra,
			r.confidence = CASE WHEN coalesce(r.confidence, 0.0) < $confidence THEN $confidence ELSE r.confidence END,
			r.similarity = CASE WHEN coalesce(r.similarity, 0.0) < $similarity THEN $similarity ELSE r.similarity END,
			r.updated_at = datetime()
		RETURN elementId(r) AS id
	`, rel.Type)

	records, err := r.run(ctx, neo4j.AccessModeWrite, "create relationship", query, map[string]any{
		"from":       rel.FromID,
		"to":         rel.ToID,
		"extra":      extra,
		"confidence": rel.Confidence(),
		"similarity": rel.Similarity(),
	})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", ErrNoteNotFound{ID: rel.FromID + " or " + rel.ToID}
	}

	r.logger.Debug("Relationship merged",
		zap.String("from", rel.FromID),
		zap.String("to", rel.ToID),
		zap.String("type", string(rel.Type)),
	)
	return getStringFromRecord(records[0], "id"), nil
}

// RelationshipExists checks for a directed edge of the given type
func (r *Repository) RelationshipExists(ctx context.Context, fromID, toID string, relType RelType) (bool, error) {
	if !relType.Valid() {
		return false, fmt.Errorf("invalid relationship type %q", relType)
	}
	query := fmt.Sprintf(`
		MATCH (:Note {id: $from})-[r:%s]->(:Note {id: $to})
		RETURN count(r) > 0 AS found
	`, relType)

	records, err := r.run(ctx, neo4j.AccessModeRead, "relationship exists", query, map[string]any{
		"from": fromID,
		"to":   toID,
	})
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}
	return getBoolFromRecord(records[0], "found"), nil
}

// TagNote merges the vault-scoped Tag node and a TAGGED_WITH edge to it
func (r *Repository) TagNote(ctx context.Context, vaultID, noteID, tag string) error {
	query := `
		MATCH (n:Note {id: $note_id})
		MERGE (t:Tag {id: $tag_id})
		ON CREATE SET t.name = $name, t.vault_id = $vault_id
		MERGE (n)-[r:TAGGED_WITH]->(t)
		ON CREATE SET r.created_at = datetime()
		RETURN t.id AS id
	`
	records, err := r.run(ctx, neo4j.AccessModeWrite, "tag note", query, map[string]any{
		"note_id":  noteID,
		"tag_id":   TagID(vaultID, tag),
		"name":     tag,
		"vault_id": vaultID,
	})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrNoteNotFound{ID: noteID}
	}
	return nil
}
