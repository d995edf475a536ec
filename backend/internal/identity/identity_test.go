package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoteID_Deterministic(t *testing.T) {
	a := NoteID("vault-1", "notes/a.md")
	b := NoteID("vault-1", "notes/a.md")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.Regexp(t, "^[0-9a-f]+$", a)
}

func TestNoteID_KnownValue(t *testing.T) {
	// sha256("abc")
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		NoteID("a", "bc"))
}

func TestNoteID_ScopedByVaultAndPath(t *testing.T) {
	assert.NotEqual(t, NoteID("vault-1", "a.md"), NoteID("vault-2", "a.md"))
	assert.NotEqual(t, NoteID("vault-1", "a.md"), NoteID("vault-1", "b.md"))
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, ContentHash([]byte("hello")), ContentHash([]byte("hello")))
	assert.NotEqual(t, ContentHash([]byte("hello")), ContentHash([]byte("hello!")))
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		ContentHash(nil))
}

func TestVaultID(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, VaultID(dir), VaultID(dir+"/"))
	assert.Len(t, VaultID(dir), 16)
	assert.NotEqual(t, VaultID(dir), VaultID(dir+"/other"))
}
