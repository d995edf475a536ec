package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "vault-graph-sync/backend/pkg/errors"
)

// TestRepository requires a running Neo4j instance
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables
func connectTestRepository(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	uri := getEnvOrDefault("NEO4J_URI", "bolt://localhost:7687")
	user := getEnvOrDefault("NEO4J_USER", "neo4j")
	password := getEnvOrDefault("NEO4J_PASSWORD", "password")

	repo := NewRepository(zap.NewNop())
	repo.SetConnectTimeout(3 * time.Second)
	if err := repo.Connect(context.Background(), uri, user, password); err != nil {
		t.Skipf("Neo4j not reachable: %v", err)
	}
	t.Cleanup(func() { _ = repo.Disconnect(context.Background()) })
	return repo
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func TestRepository_NoteLifecycle(t *testing.T) {
	repo := connectTestRepository(t)
	ctx := context.Background()
	vaultID := "test-vault-" + time.Now().Format("20060102150405")
	defer func() { _ = repo.ClearVault(ctx, vaultID) }()

	require.NoError(t, repo.EnsureSchema(ctx))
	// second run hits "already exists"
	require.NoError(t, repo.EnsureSchema(ctx))

	note := Note{
		ID: vaultID + "-a", VaultID: vaultID, Path: "a.md", Title: "a", Content: "alpha",
		Created: time.Unix(1700000000, 0).UTC(), Modified: time.Unix(1700000100, 0).UTC(),
	}
	id, err := repo.UpsertNote(ctx, note)
	require.NoError(t, err)
	assert.Equal(t, note.ID, id)
	_, err = repo.UpsertNote(ctx, note)
	require.NoError(t, err)

	counts, err := repo.Counts(ctx, vaultID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Notes)

	got, err := repo.GetNote(ctx, note.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, note, *got)

	note.Content = "beta"
	require.NoError(t, repo.UpdateNote(ctx, note))

	missing := note
	missing.ID = vaultID + "-missing"
	assert.ErrorAs(t, repo.UpdateNote(ctx, missing), &ErrNoteNotFound{})

	require.NoError(t, repo.DeleteNote(ctx, note.ID))
	got, err = repo.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_RelationshipMerge(t *testing.T) {
	repo := connectTestRepository(t)
	ctx := context.Background()
	vaultID := "test-vault-rel-" + time.Now().Format("20060102150405")
	defer func() { _ = repo.ClearVault(ctx, vaultID) }()

	for _, id := range []string{"a", "b"} {
		_, err := repo.UpsertNote(ctx, Note{ID: vaultID + id, VaultID: vaultID, Path: id + ".md", Title: id})
		require.NoError(t, err)
	}

	rel := Relationship{FromID: vaultID + "a", ToID: vaultID + "b", Type: RelHighlyRelated, Properties: map[string]any{
		PropConfidence: 0.9, PropSimilarity: 0.95, PropMethod: "semantic_analysis",
		PropKeywordsOverlap: []string{"graph", "sync"},
	}}
	_, err := repo.CreateRelationship(ctx, rel)
	require.NoError(t, err)
	rel.Properties[PropConfidence] = 0.5
	_, err = repo.CreateRelationship(ctx, rel)
	require.NoError(t, err)

	rows, err := repo.ExecuteQuery(ctx,
		`MATCH (:Note {id: $from})-[r:HIGHLY_RELATED]->(:Note {id: $to}) RETURN count(r) AS n, max(r.confidence) AS c`,
		map[string]any{"from": rel.FromID, "to": rel.ToID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["n"])
	assert.InDelta(t, 0.9, rows[0]["c"], 1e-9)

	exists, err := repo.RelationshipExists(ctx, rel.FromID, rel.ToID, RelHighlyRelated)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.TagNote(ctx, vaultID, vaultID+"a", "project-x"))
	related, err := repo.GetRelatedNotes(ctx, vaultID+"a", RelHighlyRelated, 1)
	require.NoError(t, err)
	assert.Len(t, related, 1)
}

func TestRepository_NotConnected(t *testing.T) {
	repo := NewRepository(nil)
	assert.False(t, repo.IsConnected())

	_, err := repo.UpsertNote(context.Background(), Note{ID: "x"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeStore))
}
