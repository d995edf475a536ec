// Package status assembles the operator-facing view of the sync pipeline and
// fans it out to subscribers.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/metrics"
	"vault-graph-sync/backend/pkg/logger"
)

// Snapshot is what the status surface shows
type Snapshot struct {
	VaultID        string        `json:"vault_id"`
	Connected      bool          `json:"connected"`
	State          string        `json:"state"`
	PendingUpdates int           `json:"pending_updates"`
	LastSyncTime   *time.Time    `json:"last_sync_time,omitempty"`
	LastSyncResult string        `json:"last_sync_result"`
	Errors         uint64        `json:"errors"`
	AvgSyncTime    time.Duration `json:"avg_sync_time"`
	AvgSyncTimeMs  float64       `json:"avg_sync_time_ms"`
	Counts         graph.Counts  `json:"counts"`
}

// Sources are the readers a snapshot is built from. Any of them may be nil.
type Sources struct {
	Store   graph.Store
	VaultID string
	State   func() string
	Pending func() int
	Metrics func() metrics.Snapshot
}

// Hub records sync outcomes and publishes snapshots to subscribers
type Hub struct {
	src    Sources
	logger *zap.Logger

	mu         sync.Mutex
	lastSync   time.Time
	lastResult string
	subs       map[int]chan Snapshot
	nextID     int
	now        func() time.Time
}

// NewHub creates a hub over src
func NewHub(src Sources, log *zap.Logger) *Hub {
	return &Hub{
		src:        src,
		logger:     logger.OrNop(log),
		lastResult: "never synced",
		subs:       make(map[int]chan Snapshot),
		now:        time.Now,
	}
}

// SyncCompleted records a successful sync with a short summary
func (h *Hub) SyncCompleted(summary string) {
	h.record(summary)
}

// SyncFailed records a failed sync
func (h *Hub) SyncFailed(err error) {
	h.record(fmt.Sprintf("failed: %v", err))
}

func (h *Hub) record(result string) {
	h.mu.Lock()
	h.lastSync = h.now().UTC()
	h.lastResult = result
	h.mu.Unlock()
}

// Snapshot builds the current status. Graph counts are skipped while the store is down.
func (h *Hub) Snapshot(ctx context.Context) Snapshot {
	h.mu.Lock()
	snap := Snapshot{
		VaultID:        h.src.VaultID,
		LastSyncResult: h.lastResult,
	}
	if !h.lastSync.IsZero() {
		t := h.lastSync
		snap.LastSyncTime = &t
	}
	h.mu.Unlock()

	if h.src.State != nil {
		snap.State = h.src.State()
	}
	if h.src.Pending != nil {
		snap.PendingUpdates = h.src.Pending()
	}
	if h.src.Metrics != nil {
		m := h.src.Metrics()
		snap.Errors = m.TotalErrors
		snap.AvgSyncTime = m.AvgSyncTime
		snap.AvgSyncTimeMs = float64(m.AvgSyncTime) / float64(time.Millisecond)
	}

	if h.src.Store != nil && h.src.Store.IsConnected() {
		snap.Connected = true
		counts, err := h.src.Store.Counts(ctx, h.src.VaultID)
		if err != nil {
			h.logger.Debug("Failed to count graph", zap.Error(err))
		} else {
			snap.Counts = counts
		}
	}
	return snap
}

// Subscribe returns a channel receiving published snapshots and a cancel func.
// A slow subscriber only ever sees the latest snapshot.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish builds a snapshot and delivers it to every subscriber without blocking
func (h *Hub) Publish(ctx context.Context) Snapshot {
	snap := h.Snapshot(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
	return snap
}
