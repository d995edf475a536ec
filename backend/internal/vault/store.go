// Package vault reads and writes the markdown files of a vault on disk.
package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vault-graph-sync/backend/internal/constants"
	apperrors "vault-graph-sync/backend/pkg/errors"
)

// Metadata holds filesystem timestamps for a file.
// Exact is false when the platform could not report a creation time
// and Created is the time of the call instead.
type Metadata struct {
	Created  time.Time
	Modified time.Time
	Size     int64
	Exact    bool
}

// Store is the file-system view of one vault
type Store struct {
	root     string
	resolved string // root with symlinks evaluated, used for walking
	maxDepth int
}

// NewStore creates a store rooted at the absolute form of root
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault path %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat vault %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path %s is not a directory", abs)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved = abs
	}
	return &Store{
		root:     filepath.Clean(abs),
		resolved: filepath.Clean(resolved),
		maxDepth: constants.MaxWalkDepth,
	}, nil
}

// SetMaxDepth overrides the recursion bound used by ListMarkdownFiles
func (s *Store) SetMaxDepth(depth int) {
	if depth > 0 {
		s.maxDepth = depth
	}
}

// Root returns the absolute vault root
func (s *Store) Root() string {
	return s.root
}

// MaxDepth returns the recursion bound
func (s *Store) MaxDepth() int {
	return s.maxDepth
}

// IsMarkdown reports whether path has the .md extension
func IsMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), constants.MarkdownExt)
}

// Ignored reports whether a directory name is skipped during scans
func Ignored(name string) bool {
	return name == constants.StateDir || (strings.HasPrefix(name, ".") && name != ".")
}

// ListMarkdownFiles returns absolute paths of every .md file under the root,
// at most maxDepth directories deep. Symlinks are never followed.
func (s *Store) ListMarkdownFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtree, skip it rather than fail the scan
			if d != nil && d.IsDir() && path != s.resolved {
				return filepath.SkipDir
			}
			return err
		}
		if path == s.resolved {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			if Ignored(d.Name()) || s.depth(path) > s.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if IsMarkdown(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk vault %s: %w", s.root, err)
	}
	sort.Strings(files)
	return files, nil
}

func (s *Store) depth(path string) int {
	rel, err := filepath.Rel(s.resolved, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

// Resolve turns a vault-relative or absolute path into an absolute path under the root
func (s *Store) Resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	path = filepath.Clean(path)
	if _, err := s.Relative(path); err != nil {
		return "", err
	}
	return path, nil
}

// Relative returns the slash-separated path of abs relative to the root
func (s *Store) Relative(abs string) (string, error) {
	abs = filepath.Clean(abs)
	for _, root := range []string{s.root, s.resolved} {
		if rel, ok := within(root, abs); ok {
			return filepath.ToSlash(rel), nil
		}
	}
	return "", apperrors.NewPathError(abs, s.root)
}

func within(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// ReadFile reads a file by vault-relative or absolute path
func (s *Store) ReadFile(path string) (string, error) {
	abs, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile writes content, creating parent directories as needed
func (s *Store) WriteFile(path, content string) (string, error) {
	abs, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return "", err
	}
	return abs, nil
}

// FileMetadata reports created/modified times in UTC at second resolution
func (s *Store) FileMetadata(path string) (Metadata, error) {
	abs, err := s.Resolve(path)
	if err != nil {
		return Metadata{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Metadata{}, err
	}
	return metadataFromInfo(abs, info), nil
}

// metadataFromInfo falls back to "now" for the creation time when the
// platform cannot report it; Exact is false in that case.
func metadataFromInfo(path string, info fs.FileInfo) Metadata {
	now := time.Now().UTC().Truncate(time.Second)
	modified := info.ModTime().UTC().Truncate(time.Second)
	if info.ModTime().IsZero() {
		modified = now
	}
	created, exact := birthTime(path, info)
	if !exact {
		created = now
	}
	return Metadata{
		Created:  created.UTC().Truncate(time.Second),
		Modified: modified,
		Size:     info.Size(),
		Exact:    exact,
	}
}
