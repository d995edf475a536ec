package vaultsync

import (
	"path/filepath"
	"strings"
	"time"

	"vault-graph-sync/backend/internal/constants"
	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/identity"
	"vault-graph-sync/backend/internal/vault"
)

// Extractor turns a markdown file into a Note.
// Callers filter to .md files before calling Extract.
type Extractor struct {
	vault   *vault.Store
	vaultID string
}

// NewExtractor creates an extractor for one vault
func NewExtractor(v *vault.Store, vaultID string) *Extractor {
	return &Extractor{vault: v, vaultID: vaultID}
}

// Extract builds the note for path with the given content.
// It fails with a path error when path is outside the vault root. When the
// filesystem cannot report timestamps, created and modified fall back to the
// current time; Exact on the metadata tells the two cases apart.
func (e *Extractor) Extract(path, content string) (graph.Note, vault.Metadata, error) {
	abs, err := e.vault.Resolve(path)
	if err != nil {
		return graph.Note{}, vault.Metadata{}, err
	}
	rel, err := e.vault.Relative(abs)
	if err != nil {
		return graph.Note{}, vault.Metadata{}, err
	}

	meta, err := e.vault.FileMetadata(abs)
	if err != nil {
		now := time.Now().UTC().Truncate(time.Second)
		meta = vault.Metadata{Created: now, Modified: now, Size: int64(len(content))}
	}

	return graph.Note{
		ID:       identity.NoteID(e.vaultID, rel),
		VaultID:  e.vaultID,
		Path:     rel,
		Title:    Title(rel),
		Content:  content,
		Created:  meta.Created,
		Modified: meta.Modified,
	}, meta, nil
}

// NoteID derives the id for a vault path without touching the filesystem
func (e *Extractor) NoteID(path string) (string, error) {
	abs, err := e.vault.Resolve(path)
	if err != nil {
		return "", err
	}
	rel, err := e.vault.Relative(abs)
	if err != nil {
		return "", err
	}
	return identity.NoteID(e.vaultID, rel), nil
}

// Title returns the file stem, or "Untitled" when there is none
func Title(path string) string {
	base := filepath.Base(filepath.FromSlash(path))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return constants.UntitledNote
	}
	return stem
}
