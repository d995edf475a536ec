package vaultsync

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/vault"
)

// Watch subscribes to file changes under the vault and feeds them into the
// sync pipeline on a background goroutine. It returns once the subscription is
// in place. Calling Watch while already watching is a no-op.
func (s *Service) Watch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	root, err := filepath.EvalSymlinks(s.vault.Root())
	if err != nil {
		root = s.vault.Root()
	}
	if err := s.addTree(w, root); err != nil {
		_ = w.Close()
		return err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done
	s.state = StateWatching

	go s.watchLoop(ctx, w, stop, done)
	s.logger.Info("Watching vault", zap.String("vault", s.vault.Root()))
	return nil
}

// Stop cancels the watch and blocks until the watch goroutine has exited,
// so no write from the watcher happens after Stop returns.
func (s *Service) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	close(stop)
	<-done

	s.setState(StateStopped)
	s.logger.Info("Vault watch stopped")
}

// Done is closed when the current watch goroutine exits; nil when not watching
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Service) watchLoop(ctx context.Context, w *fsnotify.Watcher, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer w.Close()

	for {
		// shutdown wins over pending events
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			s.handleEvent(ctx, w, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, w *fsnotify.Watcher, ev fsnotify.Event) {
	if s.ignoredPath(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if vault.IsMarkdown(ev.Name) {
			// a recreate right after the delete must not be debounced away
			if q := s.attachedQueue(); q != nil {
				q.Forget(ev.Name)
			}
			if err := s.DeleteFile(ctx, ev.Name); err != nil {
				s.logger.Warn("Failed to delete note", zap.String("path", ev.Name), zap.Error(err))
			}
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		if ev.Has(fsnotify.Create) && isDir(ev.Name) {
			// a new directory may arrive with files already in it
			if err := s.addTree(w, ev.Name); err != nil {
				s.logger.Warn("Failed to watch directory", zap.String("path", ev.Name), zap.Error(err))
			}
			s.scheduleTree(ctx, ev.Name)
			return
		}
		s.scheduleFile(ctx, ev.Name)
	}
}

func (s *Service) scheduleFile(ctx context.Context, path string) {
	if !vault.IsMarkdown(path) {
		return
	}
	content, err := s.vault.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to read changed file", zap.String("path", path), zap.Error(err))
		}
		return
	}
	s.schedule(ctx, path, content)
}

func (s *Service) scheduleTree(ctx context.Context, dir string) {
	_ = s.walkTree(dir, func(path string, d fs.DirEntry) {
		if !d.IsDir() {
			s.scheduleFile(ctx, path)
		}
	})
}

// addTree watches dir and its sub-directories within the depth bound
func (s *Service) addTree(w *fsnotify.Watcher, dir string) error {
	return s.walkTree(dir, func(path string, d fs.DirEntry) {
		if !d.IsDir() {
			return
		}
		if err := w.Add(path); err != nil {
			s.logger.Warn("Failed to watch directory", zap.String("path", path), zap.Error(err))
		}
	})
}

// walkTree visits dir and everything under it the way vault scans do:
// no symlinks, no ignored directories, no deeper than the vault's depth bound.
func (s *Service) walkTree(dir string, visit func(path string, d fs.DirEntry)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return err
		}
		if path != dir && d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() && path != dir {
			if vault.Ignored(d.Name()) || s.depth(path) > s.vault.MaxDepth() {
				return filepath.SkipDir
			}
		}
		visit(path, d)
		return nil
	})
}

func (s *Service) depth(path string) int {
	rel, err := s.vault.Relative(path)
	if err != nil {
		return 0
	}
	return len(strings.Split(rel, "/"))
}

// ignoredPath reports whether any directory between the root and path is skipped by scans
func (s *Service) ignoredPath(path string) bool {
	rel, err := s.vault.Relative(path)
	if err != nil {
		return true
	}
	parts := strings.Split(rel, "/")
	for _, p := range parts[:len(parts)-1] {
		if vault.Ignored(p) {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}
