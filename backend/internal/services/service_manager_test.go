package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/identity"
	"vault-graph-sync/backend/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:                "development",
		VaultPath:          t.TempDir(),
		WatchMaxDepth:      10,
		VectorBackend:      config.VectorBackendNone,
		QueueMaxBatchSize:  10,
		QueueBatchInterval: time.Hour,
		Relationships:      config.DefaultRelationships(),
	}
}

func TestStartAll_SaveFlushRelate(t *testing.T) {
	cfg := testConfig(t)
	store := graph.NewMemoryStore()
	sm := NewServiceManager(cfg, nil, WithGraphStore(store))
	ctx := context.Background()

	require.NoError(t, sm.StartAll(ctx))
	defer sm.StopAll(ctx)
	assert.True(t, sm.IsRunning())
	require.NotNil(t, sm.Queue())

	svc := sm.Service()
	_, err := svc.SaveFile(ctx, "a.md", "alpha #project")
	require.NoError(t, err)
	_, err = svc.SaveFile(ctx, "b.md", "bravo #project")
	require.NoError(t, err)
	assert.Equal(t, 2, sm.Queue().QueueSize())
	assert.Empty(t, store.Notes())

	require.NoError(t, sm.Queue().Flush(ctx))
	assert.Len(t, store.Notes(), 2)

	vaultID := svc.VaultID()
	ok, err := store.RelationshipExists(ctx,
		identity.NoteID(vaultID, "a.md"), identity.NoteID(vaultID, "b.md"), graph.RelSharesTag)
	require.NoError(t, err)
	assert.True(t, ok)

	snap := sm.Hub().Snapshot(ctx)
	assert.Equal(t, "synced 2 files", snap.LastSyncResult)
	assert.Zero(t, snap.PendingUpdates)
	assert.Equal(t, uint64(2), sm.Tracker().Snapshot().TotalSyncs)

	// the same content again is dropped by the hash ledger
	_, err = svc.SaveFile(ctx, "a.md", "alpha #project")
	require.NoError(t, err)
	assert.Zero(t, sm.Queue().QueueSize())
}

func TestStartAll_DefaultsAndTwice(t *testing.T) {
	cfg := testConfig(t)
	sm := NewServiceManager(cfg, nil, WithGraphStore(graph.NewMemoryStore()), WithoutQueue())
	ctx := context.Background()

	require.NoError(t, sm.StartAll(ctx))
	assert.Nil(t, sm.Queue())
	assert.Equal(t, identity.VaultID(cfg.VaultPath), sm.Service().VaultID())
	assert.FileExists(t, filepath.Join(sm.Service().Vault().Root(), ".vault-graph", "sync.db"))

	assert.Error(t, sm.StartAll(ctx))

	sm.StopAll(ctx)
	assert.False(t, sm.IsRunning())
	sm.StopAll(ctx)
}

func TestStartAll_VaultIDOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.VaultID = "custom"
	cfg.LedgerPath = filepath.Join(t.TempDir(), "ledger.db")
	sm := NewServiceManager(cfg, nil, WithGraphStore(graph.NewMemoryStore()))

	require.NoError(t, sm.StartAll(context.Background()))
	defer sm.StopAll(context.Background())
	assert.Equal(t, "custom", sm.Service().VaultID())
	assert.FileExists(t, cfg.LedgerPath)
}

func TestStartAll_MissingVault(t *testing.T) {
	cfg := testConfig(t)
	cfg.VaultPath = filepath.Join(t.TempDir(), "nope")
	sm := NewServiceManager(cfg, nil, WithGraphStore(graph.NewMemoryStore()))

	assert.Error(t, sm.StartAll(context.Background()))
	assert.False(t, sm.IsRunning())
}
