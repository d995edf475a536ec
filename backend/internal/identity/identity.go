// Package identity derives stable note and vault identifiers.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// NoteID returns the hex SHA-256 of vaultID followed by the vault-relative path.
// The same pair always yields the same id; content changes never affect it.
func NoteID(vaultID, relativePath string) string {
	sum := sha256.Sum256([]byte(vaultID + relativePath))
	return hex.EncodeToString(sum[:])
}

// ContentHash returns the hex SHA-256 of the raw content bytes.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// VaultID derives a short id from the cleaned absolute vault path.
func VaultID(vaultPath string) string {
	abs, err := filepath.Abs(vaultPath)
	if err != nil {
		abs = vaultPath
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return hex.EncodeToString(sum[:])[:16]
}

// RelativePath converts path to the slash-separated form used for ids,
// so ids agree across platforms.
func RelativePath(rel string) string {
	return filepath.ToSlash(rel)
}
