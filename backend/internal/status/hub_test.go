package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/metrics"
)

func seededStore(t *testing.T) *graph.MemoryStore {
	t.Helper()
	store := graph.NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := store.UpsertNote(ctx, graph.Note{ID: id, VaultID: "v1", Path: id + ".md", Title: id})
		require.NoError(t, err)
	}
	_, err := store.CreateRelationship(ctx, graph.Relationship{FromID: "a", ToID: "b", Type: graph.RelRelatedTo})
	require.NoError(t, err)
	return store
}

func TestSnapshot(t *testing.T) {
	tracker := metrics.NewTracker()
	tracker.RecordSync(20 * time.Millisecond)
	tracker.RecordSync(40 * time.Millisecond)
	tracker.RecordError()

	hub := NewHub(Sources{
		Store:   seededStore(t),
		VaultID: "v1",
		State:   func() string { return "watching" },
		Pending: func() int { return 4 },
		Metrics: tracker.Snapshot,
	}, nil)

	snap := hub.Snapshot(context.Background())
	assert.True(t, snap.Connected)
	assert.Equal(t, "v1", snap.VaultID)
	assert.Equal(t, "watching", snap.State)
	assert.Equal(t, 4, snap.PendingUpdates)
	assert.Equal(t, uint64(1), snap.Errors)
	assert.Equal(t, 30*time.Millisecond, snap.AvgSyncTime)
	assert.InDelta(t, 30.0, snap.AvgSyncTimeMs, 0.001)
	assert.Equal(t, int64(2), snap.Counts.Notes)
	assert.Equal(t, int64(1), snap.Counts.Relationships)
	assert.Nil(t, snap.LastSyncTime)
	assert.Equal(t, "never synced", snap.LastSyncResult)
}

func TestSnapshot_Disconnected(t *testing.T) {
	store := seededStore(t)
	require.NoError(t, store.Disconnect(context.Background()))

	snap := NewHub(Sources{Store: store, VaultID: "v1"}, nil).Snapshot(context.Background())
	assert.False(t, snap.Connected)
	assert.Zero(t, snap.Counts.Notes)
}

func TestSyncOutcomes(t *testing.T) {
	hub := NewHub(Sources{}, nil)
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return fixed }

	hub.SyncCompleted("synced 3 notes")
	snap := hub.Snapshot(context.Background())
	require.NotNil(t, snap.LastSyncTime)
	assert.Equal(t, fixed, *snap.LastSyncTime)
	assert.Equal(t, "synced 3 notes", snap.LastSyncResult)

	hub.SyncFailed(errors.New("neo4j down"))
	assert.Equal(t, "failed: neo4j down", hub.Snapshot(context.Background()).LastSyncResult)
}

func TestPublish_DeliversLatest(t *testing.T) {
	pending := 0
	hub := NewHub(Sources{Pending: func() int { return pending }}, nil)
	ch, cancel := hub.Subscribe()
	defer cancel()

	pending = 1
	hub.Publish(context.Background())
	pending = 2
	hub.Publish(context.Background())

	select {
	case snap := <-ch:
		assert.Equal(t, 2, snap.PendingUpdates)
	default:
		t.Fatal("expected a snapshot")
	}
}

func TestSubscribe_Cancel(t *testing.T) {
	hub := NewHub(Sources{}, nil)
	ch, cancel := hub.Subscribe()
	assert.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()
	assert.Zero(t, hub.Subscribers())
	_, open := <-ch
	assert.False(t, open)

	hub.Publish(context.Background())
}
