package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/identity"
	"vault-graph-sync/backend/internal/status"
)

type harness struct {
	store *graph.MemoryStore
	vault string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("VAULT_ID", "")
	t.Setenv("LEDGER_PATH", filepath.Join(t.TempDir(), "sync.db"))
	return harness{store: graph.NewMemoryStore(), vault: t.TempDir()}
}

func (h harness) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(h.vault, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (h harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{store: h.store}
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--vault", h.vault))
	err := cmd.Execute()
	a.close(context.Background())
	return out.String(), err
}

func TestNoteID(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "note-id", "daily/today.md")
	require.NoError(t, err)
	want := identity.NoteID(identity.VaultID(h.vault), "daily/today.md")
	assert.Equal(t, want, strings.TrimSpace(out))
	assert.Empty(t, h.store.Notes())
}

func TestNoteID_OutsideVault(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "note-id", "../elsewhere.md")
	assert.Error(t, err)
}

func TestSyncAndStatus(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "alpha #team")
	h.write(t, "b.md", "bravo #team")

	out, err := h.run(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced 2 notes")
	assert.Contains(t, out, "1 tag")

	out, err = h.run(t, "status", "--json")
	require.NoError(t, err)
	var snap status.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.True(t, snap.Connected)
	assert.Equal(t, int64(2), snap.Counts.Notes)
	assert.Equal(t, int64(1), snap.Counts.Tags)
}

func TestSyncSingleFile(t *testing.T) {
	h := newHarness(t)
	h.write(t, "one.md", "only me")

	out, err := h.run(t, "sync", "one.md")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced one.md")
	require.Len(t, h.store.Notes(), 1)
	assert.Equal(t, "one", h.store.Notes()[0].Title)
}

func TestRelated(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "alpha #team")
	h.write(t, "b.md", "bravo #team")
	_, err := h.run(t, "sync")
	require.NoError(t, err)

	out, err := h.run(t, "related", "a.md", "--type", "shares_tag")
	require.NoError(t, err)
	assert.Contains(t, out, "b.md")

	_, err = h.run(t, "related", "a.md", "--type", "bogus")
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	h := newHarness(t)
	h.write(t, "kafka.md", "consumer lag on kafka")
	h.write(t, "garden.md", "tomatoes")
	_, err := h.run(t, "sync")
	require.NoError(t, err)

	out, err := h.run(t, "search", "kafka")
	require.NoError(t, err)
	assert.Contains(t, out, "[fulltext")
	assert.Contains(t, out, "kafka.md")
	assert.NotContains(t, out, "garden.md")

	out, err = h.run(t, "search", "nothing-matches")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found")
}

func TestQuery(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "query", "MATCH (n) RETURN n LIMIT 1")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
	assert.Equal(t, []string{"MATCH (n) RETURN n LIMIT 1"}, h.store.Queries())
}

func TestClear(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "alpha")
	_, err := h.run(t, "sync")
	require.NoError(t, err)

	_, err = h.run(t, "clear")
	assert.Error(t, err)
	assert.Len(t, h.store.Notes(), 1)

	out, err := h.run(t, "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")
	assert.Empty(t, h.store.Notes())
}
