// Package services starts and stops the collaborators of the sync pipeline.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/adapter"
	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/identity"
	"vault-graph-sync/backend/internal/ledger"
	"vault-graph-sync/backend/internal/metrics"
	"vault-graph-sync/backend/internal/queue"
	"vault-graph-sync/backend/internal/semantic"
	"vault-graph-sync/backend/internal/status"
	"vault-graph-sync/backend/internal/vault"
	"vault-graph-sync/backend/internal/vaultsync"
	"vault-graph-sync/backend/internal/vector"
	"vault-graph-sync/backend/pkg/config"
	"vault-graph-sync/backend/pkg/logger"
)

const stopTimeout = 5 * time.Second

// Option customises a ServiceManager
type Option func(*ServiceManager)

// WithGraphStore uses store instead of connecting to Neo4j
func WithGraphStore(store graph.Store) Option {
	return func(sm *ServiceManager) { sm.store = store }
}

// WithoutQueue syncs saves inline instead of through the update queue
func WithoutQueue() Option {
	return func(sm *ServiceManager) { sm.noQueue = true }
}

// WithoutEmbeddings skips the vector index even when one is configured
func WithoutEmbeddings() Option {
	return func(sm *ServiceManager) { sm.noEmbeddings = true }
}

// ServiceManager owns the graph connection, vector index, ledger, sync service and queue
type ServiceManager struct {
	cfg    *config.Config
	logger *zap.Logger

	noQueue      bool
	noEmbeddings bool

	mu        sync.Mutex
	started   bool
	store     graph.Store
	ownsGraph bool
	index     vector.Store
	ledger    ledger.Ledger
	vault     *vault.Store
	service   *vaultsync.Service
	queue     *queue.UpdateQueue
	tracker   *metrics.Tracker
	hub       *status.Hub
}

// NewServiceManager creates a manager for cfg; nothing is connected until StartAll
func NewServiceManager(cfg *config.Config, log *zap.Logger, opts ...Option) *ServiceManager {
	sm := &ServiceManager{
		cfg:     cfg,
		logger:  logger.OrNop(log),
		tracker: metrics.NewTracker(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// StartAll connects the stores and wires the pipeline. The graph store is required;
// a failing vector index or ledger only degrades the pipeline.
func (sm *ServiceManager) StartAll(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.started {
		return fmt.Errorf("services already started")
	}

	v, err := vault.NewStore(sm.cfg.VaultPath)
	if err != nil {
		return err
	}
	v.SetMaxDepth(sm.cfg.WatchMaxDepth)
	sm.vault = v

	vaultID := sm.cfg.VaultID
	if vaultID == "" {
		vaultID = identity.VaultID(v.Root())
	}

	if err := sm.startGraph(ctx); err != nil {
		return err
	}
	sm.startEmbeddings(ctx, vaultID)
	sm.startLedger()

	builder := semantic.NewBuilder(sm.store, sm.cfg.Relationships, sm.logger.Named("semantic"))
	sm.service = vaultsync.NewService(sm.store, v, vaultID, builder, sm.ledger, sm.logger.Named("sync"))

	sm.hub = status.NewHub(status.Sources{
		Store:   sm.store,
		VaultID: vaultID,
		State:   func() string { return sm.service.State().String() },
		Pending: sm.pending,
		Metrics: sm.tracker.Snapshot,
	}, sm.logger.Named("status"))

	if !sm.noQueue {
		sm.queue = queue.New(sm.service, sm.tracker, queue.Options{
			MaxBatchSize:  sm.cfg.QueueMaxBatchSize,
			BatchInterval: sm.cfg.QueueBatchInterval,
			Unchanged:     sm.service.IsUnchanged,
			OnBatch:       sm.afterBatch,
		}, sm.logger.Named("queue"))
		sm.service.AttachQueue(sm.queue)
	}

	sm.started = true
	sm.logger.Info("Services started",
		zap.String("vault", v.Root()),
		zap.String("vault_id", vaultID),
		zap.Bool("embeddings", sm.store.Embeddings() != nil),
		zap.Bool("queue", sm.queue != nil),
	)
	return nil
}

func (sm *ServiceManager) startGraph(ctx context.Context) error {
	if sm.store != nil {
		return nil
	}
	repo := graph.NewRepository(sm.logger.Named("graph"))
	repo.SetConnectTimeout(sm.cfg.Neo4jConnectTimeout)
	if err := repo.Connect(ctx, sm.cfg.Neo4jURI, sm.cfg.Neo4jUser, sm.cfg.Neo4jPassword); err != nil {
		return fmt.Errorf("failed to connect to Neo4j: %w", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = repo.Disconnect(context.Background())
		return fmt.Errorf("failed to set up graph schema: %w", err)
	}
	sm.store = repo
	sm.ownsGraph = true
	return nil
}

type embeddingsAttacher interface {
	AttachEmbeddings(*graph.Embeddings)
}

func (sm *ServiceManager) startEmbeddings(ctx context.Context, vaultID string) {
	if sm.noEmbeddings || !sm.cfg.EmbeddingsEnabled() {
		return
	}
	attacher, ok := sm.store.(embeddingsAttacher)
	if !ok {
		return
	}

	log := sm.logger.Named("vector")
	collection := vector.CollectionName(vaultID)
	var index vector.Store
	switch sm.cfg.VectorBackend {
	case config.VectorBackendPgVector:
		index = vector.NewPgVectorStore(sm.cfg.PgVectorDSN, collection, sm.cfg.EmbeddingDimension, log)
	default:
		index = vector.NewQdrantStore(vector.QdrantConfig{
			URL:        sm.cfg.QdrantURL,
			APIKey:     sm.cfg.QdrantAPIKey,
			Collection: collection,
			Dimension:  sm.cfg.EmbeddingDimension,
		}, log)
	}
	if err := index.Connect(ctx); err != nil {
		log.Warn("Vector index unavailable, semantic search disabled",
			zap.String("backend", sm.cfg.VectorBackend),
			zap.Error(err),
		)
		return
	}

	embedder := adapter.NewEmbeddingAdapter(sm.cfg.EmbeddingBaseURL, sm.cfg.EmbeddingAPIKey, sm.cfg.EmbeddingModel, sm.cfg.EmbeddingRateLimit, log)
	attacher.AttachEmbeddings(graph.NewEmbeddings(embedder, index, log))
	sm.index = index
}

func (sm *ServiceManager) startLedger() {
	path := sm.cfg.LedgerPath
	if path == "" {
		path = ledger.DefaultPath(sm.vault.Root())
	}
	l, err := ledger.OpenSQLite(path)
	if err != nil {
		sm.logger.Warn("Hash ledger unavailable, keeping hashes in memory", zap.String("path", path), zap.Error(err))
		sm.ledger = ledger.NewMemory()
		return
	}
	sm.ledger = l
}

// afterBatch relates the notes a batch synced and publishes the outcome
func (sm *ServiceManager) afterBatch(ctx context.Context, b queue.Batch) {
	synced := b.Synced()
	if n, err := sm.service.RelateChanged(ctx, synced); err != nil {
		sm.logger.Warn("Incremental relationship pass failed", zap.Error(err))
	} else if n > 0 {
		sm.logger.Debug("Incremental relationships written", zap.Int("relationships", n))
	}

	if failed := b.Failed(); failed > 0 {
		sm.hub.SyncFailed(fmt.Errorf("%d of %d updates failed", failed, len(b.Results)))
	} else {
		sm.hub.SyncCompleted(fmt.Sprintf("synced %d files", len(synced)))
	}
	sm.hub.Publish(ctx)
}

func (sm *ServiceManager) pending() int {
	if sm.queue == nil {
		return 0
	}
	return sm.queue.QueueSize()
}

// StopAll stops the watch, drains nothing further, and closes every store.
// It waits at most a few seconds for the queue worker.
func (sm *ServiceManager) StopAll(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.started {
		return
	}
	sm.started = false

	sm.service.Stop()

	if sm.queue != nil {
		done := make(chan struct{})
		go func() {
			sm.queue.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(stopTimeout):
			sm.logger.Warn("Update queue did not stop in time")
		}
	}

	if err := sm.ledger.Close(); err != nil {
		sm.logger.Warn("Failed to close hash ledger", zap.Error(err))
	}
	if sm.index != nil {
		if err := sm.index.Close(); err != nil {
			sm.logger.Warn("Failed to close vector index", zap.Error(err))
		}
	}
	if sm.ownsGraph {
		if err := sm.store.Disconnect(ctx); err != nil {
			sm.logger.Warn("Failed to disconnect from Neo4j", zap.Error(err))
		}
	}
	sm.logger.Info("All services stopped")
}

// Service returns the sync service; nil before StartAll
func (sm *ServiceManager) Service() *vaultsync.Service {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.service
}

// Queue returns the update queue, or nil when running without one
func (sm *ServiceManager) Queue() *queue.UpdateQueue {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.queue
}

// Hub returns the status hub; nil before StartAll
func (sm *ServiceManager) Hub() *status.Hub {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.hub
}

// Tracker returns the metrics tracker shared by the queue and the status hub
func (sm *ServiceManager) Tracker() *metrics.Tracker {
	return sm.tracker
}

// IsRunning reports whether StartAll has completed and StopAll has not
func (sm *ServiceManager) IsRunning() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.started
}
