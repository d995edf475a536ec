package vaultsync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-graph-sync/backend/internal/identity"
	"vault-graph-sync/backend/internal/vault"
	apperrors "vault-graph-sync/backend/pkg/errors"
)

func newVault(t *testing.T) (*vault.Store, string) {
	t.Helper()
	root := t.TempDir()
	v, err := vault.NewStore(root)
	require.NoError(t, err)
	return v, v.Root()
}

func writeNote(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtract(t *testing.T) {
	v, root := newVault(t)
	path := writeNote(t, root, "projects/Roadmap.md", "# Roadmap\nship it")
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, modified, modified))

	note, meta, err := NewExtractor(v, "v1").Extract(path, "# Roadmap\nship it")
	require.NoError(t, err)

	assert.Equal(t, identity.NoteID("v1", "projects/Roadmap.md"), note.ID)
	assert.Equal(t, "v1", note.VaultID)
	assert.Equal(t, "projects/Roadmap.md", note.Path)
	assert.Equal(t, "Roadmap", note.Title)
	assert.Equal(t, "# Roadmap\nship it", note.Content)
	assert.True(t, note.Modified.Equal(modified))
	assert.Equal(t, meta.Modified, note.Modified)
	assert.Equal(t, int64(len("# Roadmap\nship it")), meta.Size)
}

func TestExtract_RelativePathIsStable(t *testing.T) {
	v, root := newVault(t)
	abs := writeNote(t, root, "a.md", "x")
	e := NewExtractor(v, "v1")

	fromAbs, _, err := e.Extract(abs, "x")
	require.NoError(t, err)
	fromRel, _, err := e.Extract("a.md", "x")
	require.NoError(t, err)
	assert.Equal(t, fromAbs.ID, fromRel.ID)

	id, err := e.NoteID("a.md")
	require.NoError(t, err)
	assert.Equal(t, fromAbs.ID, id)
}

func TestExtract_OutsideVault(t *testing.T) {
	v, _ := newVault(t)
	outside := writeNote(t, t.TempDir(), "elsewhere.md", "x")

	_, _, err := NewExtractor(v, "v1").Extract(outside, "x")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypePath))

	_, err = NewExtractor(v, "v1").NoteID(outside)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypePath))
}

func TestExtract_MissingFileFallsBackToNow(t *testing.T) {
	v, _ := newVault(t)
	before := time.Now().UTC().Add(-time.Second)

	note, meta, err := NewExtractor(v, "v1").Extract("ghost.md", "boo")
	require.NoError(t, err)
	assert.False(t, meta.Exact)
	assert.True(t, note.Modified.After(before))
	assert.Equal(t, note.Created, note.Modified)
}

func TestTitle(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"notes/Meeting Notes.md", "Meeting Notes"},
		{"a.b.md", "a.b"},
		{"plain.md", "plain"},
		{".md", "Untitled"},
		{"dir/.md", "Untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.path))
		})
	}
}
