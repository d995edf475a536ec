package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/identity"
	"vault-graph-sync/backend/internal/ledger"
	"vault-graph-sync/backend/internal/semantic"
	"vault-graph-sync/backend/internal/status"
	"vault-graph-sync/backend/internal/vault"
	"vault-graph-sync/backend/internal/vaultsync"
	"vault-graph-sync/backend/pkg/config"
)

func TestRun_FailsWithoutVault(t *testing.T) {
	cfg := &config.Config{
		Env:                "development",
		VaultPath:          "/definitely/not/a/vault",
		VectorBackend:      config.VectorBackendNone,
		QueueMaxBatchSize:  10,
		QueueBatchInterval: time.Second,
		Relationships:      config.DefaultRelationships(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault")
}

func TestStartSync_SeesEditsMadeDuringInitialSync(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("before"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.md"), []byte("other"), 0o644))

	v, err := vault.NewStore(root)
	require.NoError(t, err)
	store := graph.NewMemoryStore()
	builder := semantic.NewBuilder(store, config.DefaultRelationships(), nil)
	svc := vaultsync.NewService(store, v, "v1", builder, ledger.NewMemory(), nil)
	hub := status.NewHub(status.Sources{Store: store, VaultID: "v1"}, nil)

	// a.md has already been read and written when b.md is upserted
	var once sync.Once
	store.FailUpsert = func(note graph.Note) error {
		if note.Path == "b.md" {
			once.Do(func() {
				require.NoError(t, os.WriteFile(filepath.Join(v.Root(), "a.md"), []byte("after"), 0o644))
			})
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, startSync(ctx, svc, hub, nil))
	defer svc.Stop()

	assert.Equal(t, vaultsync.StateWatching, svc.State())
	assert.Equal(t, "synced 2 notes", hub.Snapshot(ctx).LastSyncResult)
	assert.Eventually(t, func() bool {
		note, err := store.GetNote(ctx, identity.NoteID("v1", "a.md"))
		return err == nil && note != nil && note.Content == "after"
	}, 3*time.Second, 20*time.Millisecond)
}
