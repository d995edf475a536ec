// Package vaultsync mirrors a vault of markdown files into the graph store.
package vaultsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/identity"
	"vault-graph-sync/backend/internal/ledger"
	"vault-graph-sync/backend/internal/semantic"
	"vault-graph-sync/backend/internal/vault"
	"vault-graph-sync/backend/pkg/logger"
)

// State is the lifecycle of a Service
type State int32

const (
	StateIdle State = iota
	StateSyncing
	StateWatching
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateSyncing:
		return "syncing"
	case StateWatching:
		return "watching"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Queue is the update queue the service feeds file changes into
type Queue interface {
	AddUpdate(ctx context.Context, path, vaultPath, content string) bool
	Forget(path string)
	Clear()
}

// Report summarises an initial sync
type Report struct {
	RunID                 string        `json:"run_id"`
	Files                 int           `json:"files"`
	Notes                 int           `json:"notes"`
	Unreadable            int           `json:"unreadable"`
	TagRelationships      int           `json:"tag_relationships"`
	SemanticRelationships int           `json:"semantic_relationships"`
	Elapsed               time.Duration `json:"elapsed"`
}

// Service owns the sync of one vault: initial sync, single-file sync and the file watch
type Service struct {
	store     graph.Store
	vault     *vault.Store
	vaultID   string
	extractor *Extractor
	builder   *semantic.Builder
	ledger    ledger.Ledger
	logger    *zap.Logger

	queueMu sync.RWMutex
	queue   Queue

	mu    sync.Mutex // guards state, stop and done
	state State
	stop  chan struct{}
	done  chan struct{}
}

// NewService wires a service for the vault. A nil ledger means every sync writes.
func NewService(store graph.Store, v *vault.Store, vaultID string, builder *semantic.Builder, l ledger.Ledger, log *zap.Logger) *Service {
	log = logger.OrNop(log)
	if l == nil {
		l = ledger.NewMemory()
	}
	return &Service{
		store:     store,
		vault:     v,
		vaultID:   vaultID,
		extractor: NewExtractor(v, vaultID),
		builder:   builder,
		ledger:    l,
		logger:    log.With(zap.String("vault_id", vaultID)),
	}
}

// AttachQueue routes watched changes and saves through q instead of syncing inline
func (s *Service) AttachQueue(q Queue) {
	s.queueMu.Lock()
	s.queue = q
	s.queueMu.Unlock()
}

func (s *Service) attachedQueue() Queue {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()
	return s.queue
}

// VaultID returns the id all notes of this vault are scoped by
func (s *Service) VaultID() string {
	return s.vaultID
}

// Vault returns the vault file store
func (s *Service) Vault() *vault.Store {
	return s.vault
}

// Store returns the graph store
func (s *Service) Store() graph.Store {
	return s.store
}

// State returns the current lifecycle state
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) setState(st State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = st
	return prev
}

// restoreState puts prev back unless the state moved on during the sync
func (s *Service) restoreState(prev State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSyncing {
		s.state = prev
	}
}

// InitialSync upserts every markdown file, then runs the tag and semantic passes
// over the whole vault. Upserts are sequential; the first failing upsert aborts
// the run with an error naming the file. Notes already written stay in the store.
func (s *Service) InitialSync(ctx context.Context) (Report, error) {
	prev := s.setState(StateSyncing)
	defer s.restoreState(prev)

	report := Report{RunID: uuid.New().String()}
	start := time.Now()

	log, closeLog := logger.NewSyncLog(s.logger, s.vault.Root())
	defer func() { _ = closeLog() }()
	log = log.With(zap.String("run_id", report.RunID))

	files, err := s.vault.ListMarkdownFiles()
	if err != nil {
		return report, err
	}
	report.Files = len(files)
	log.Info("Starting initial sync",
		zap.String("vault", s.vault.Root()),
		zap.Int("files", len(files)),
	)

	notes := make([]graph.Note, 0, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		content, err := s.vault.ReadFile(path)
		if err != nil {
			report.Unreadable++
			log.Warn("Failed to read file", zap.String("path", path), zap.Error(err))
			continue
		}

		note, _, err := s.extractor.Extract(path, content)
		if err != nil {
			return report, fmt.Errorf("sync %s: %w", path, err)
		}
		if _, err := s.store.UpsertNote(ctx, note); err != nil {
			return report, fmt.Errorf("sync %s: %w", note.Path, err)
		}
		log.Debug("Note upserted",
			zap.Int("index", i+1),
			zap.Int("total", len(files)),
			zap.String("path", note.Path),
		)

		s.afterWrite(ctx, log, note, content)
		notes = append(notes, note)
	}
	report.Notes = len(notes)

	if len(notes) == 0 {
		log.Warn("No notes found to analyze for relationships")
		report.Elapsed = time.Since(start)
		return report, nil
	}

	if s.builder != nil {
		b := s.builder.WithLogger(log)
		if report.TagRelationships, err = b.RelateByTags(ctx, notes); err != nil {
			return report, err
		}
		if report.SemanticRelationships, err = b.AnalyzeAndRelate(ctx, notes); err != nil {
			return report, err
		}
	}

	report.Elapsed = time.Since(start)
	log.Info("Initial sync complete",
		zap.Int("notes", report.Notes),
		zap.Int("unreadable", report.Unreadable),
		zap.Int("tag_relationships", report.TagRelationships),
		zap.Int("semantic_relationships", report.SemanticRelationships),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// afterWrite tags the note, indexes its embedding and then records its hash.
// None of these failures fail the sync.
func (s *Service) afterWrite(ctx context.Context, log *zap.Logger, note graph.Note, content string) {
	for _, tag := range semantic.ExtractTags(content) {
		if err := s.store.TagNote(ctx, s.vaultID, note.ID, tag); err != nil {
			log.Warn("Failed to tag note",
				zap.String("path", note.Path),
				zap.String("tag", tag),
				zap.Error(err),
			)
		}
	}

	if emb := s.store.Embeddings(); emb != nil {
		if err := emb.IndexNote(ctx, note); err != nil {
			// no hash recorded, so the next save of the same content retries
			log.Warn("Embedding skipped", zap.String("path", note.Path), zap.Error(err))
			return
		}
	}

	if err := s.ledger.Put(ctx, note.ID, identity.ContentHash([]byte(content))); err != nil {
		log.Warn("Failed to record content hash", zap.String("path", note.Path), zap.Error(err))
	}
}

// SyncSingleFile reads one file and creates or updates its note. Non-markdown
// files are ignored. A file that no longer exists has its note deleted.
// No relationship inference happens here.
func (s *Service) SyncSingleFile(ctx context.Context, path string) error {
	if !vault.IsMarkdown(path) {
		return nil
	}

	content, err := s.vault.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.DeleteFile(ctx, path)
	}
	if err != nil {
		return err
	}

	note, _, err := s.extractor.Extract(path, content)
	if err != nil {
		return err
	}

	existing, err := s.store.GetNote(ctx, note.ID)
	if err != nil {
		return err
	}

	hash := identity.ContentHash([]byte(content))
	if existing != nil {
		if last, ok, _ := s.ledger.Get(ctx, note.ID); ok && last == hash {
			s.logger.Debug("Note unchanged, skipping", zap.String("path", note.Path))
			return nil
		}
		if err := s.store.UpdateNote(ctx, note); err != nil {
			return err
		}
	} else {
		if _, err := s.store.UpsertNote(ctx, note); err != nil {
			return err
		}
	}

	s.afterWrite(ctx, s.logger, note, content)
	s.logger.Debug("Note synced", zap.String("path", note.Path), zap.Bool("created", existing == nil))
	return nil
}

// DeleteFile removes the note derived from path, along with its hash and embedding
func (s *Service) DeleteFile(ctx context.Context, path string) error {
	if !vault.IsMarkdown(path) {
		return nil
	}
	id, err := s.extractor.NoteID(path)
	if err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, id); err != nil {
		return err
	}
	if err := s.ledger.Delete(ctx, id); err != nil {
		s.logger.Warn("Failed to drop content hash", zap.String("path", path), zap.Error(err))
	}
	if emb := s.store.Embeddings(); emb != nil {
		if err := emb.RemoveNote(ctx, id); err != nil {
			s.logger.Warn("Failed to drop embedding", zap.String("path", path), zap.Error(err))
		}
	}
	s.logger.Debug("Note deleted", zap.String("path", path))
	return nil
}

// SaveFile writes content to disk and then schedules the graph sync.
// Only the disk write can fail the call; sync problems are logged.
func (s *Service) SaveFile(ctx context.Context, path, content string) (string, error) {
	abs, err := s.vault.WriteFile(path, content)
	if err != nil {
		return "", err
	}
	s.schedule(ctx, abs, content)
	return abs, nil
}

// schedule hands a change to the queue, or syncs inline when no queue is attached
func (s *Service) schedule(ctx context.Context, abs, content string) {
	if !vault.IsMarkdown(abs) {
		return
	}
	if q := s.attachedQueue(); q != nil {
		q.AddUpdate(ctx, abs, s.vault.Root(), content)
		return
	}
	if err := s.SyncSingleFile(ctx, abs); err != nil {
		s.logger.Warn("Graph sync failed", zap.String("path", abs), zap.Error(err))
	}
}

// IsUnchanged reports whether hash matches what was last synced for path
func (s *Service) IsUnchanged(ctx context.Context, path, hash string) bool {
	id, err := s.extractor.NoteID(path)
	if err != nil {
		return false
	}
	last, ok, err := s.ledger.Get(ctx, id)
	return err == nil && ok && last == hash
}

// RelateChanged runs the tag and semantic passes for the given files against the
// rest of the vault. It is meant to follow a queue batch.
func (s *Service) RelateChanged(ctx context.Context, paths []string) (int, error) {
	if s.builder == nil || len(paths) == 0 {
		return 0, nil
	}

	var changed []graph.Note
	for _, p := range paths {
		id, err := s.extractor.NoteID(p)
		if err != nil {
			continue
		}
		note, err := s.store.GetNote(ctx, id)
		if err != nil {
			return 0, err
		}
		if note != nil {
			changed = append(changed, *note)
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}

	corpus, err := s.store.ListNotes(ctx, s.vaultID)
	if err != nil {
		return 0, err
	}

	tagged, err := s.builder.RelateTagsAgainst(ctx, changed, corpus)
	if err != nil {
		return tagged, err
	}
	related, err := s.builder.AnalyzeAgainst(ctx, changed, corpus)
	return tagged + related, err
}

// ClearVault removes the vault's graph data, vectors, hashes and queued updates
func (s *Service) ClearVault(ctx context.Context) error {
	if q := s.attachedQueue(); q != nil {
		q.Clear()
	}
	if err := s.store.ClearVault(ctx, s.vaultID); err != nil {
		return err
	}
	if emb := s.store.Embeddings(); emb != nil {
		if err := emb.Clear(ctx); err != nil {
			s.logger.Warn("Failed to clear vector index", zap.Error(err))
		}
	}
	if err := s.ledger.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("Vault data cleared")
	return nil
}
