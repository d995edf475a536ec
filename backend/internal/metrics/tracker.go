// Package metrics keeps rolling performance counters for the sync pipeline.
package metrics

import (
	"sync"
	"time"

	"vault-graph-sync/backend/internal/constants"
)

// Snapshot is a point-in-time copy of the tracker state
type Snapshot struct {
	AvgSyncTime      time.Duration `json:"avg_sync_time"`
	TotalSyncs       uint64        `json:"total_syncs"`
	TotalErrors      uint64        `json:"total_errors"`
	LastSyncTime     time.Time     `json:"last_sync_time"`
	AvgQueueWait     time.Duration `json:"avg_queue_wait"`
	MaxQueueSize     int           `json:"max_queue_size"`
	CurrentQueueSize int           `json:"current_queue_size"`
}

// window is a fixed-capacity ring of durations with a running sum
type window struct {
	samples []time.Duration
	next    int
	full    bool
	sum     time.Duration
}

func newWindow(size int) window {
	return window{samples: make([]time.Duration, size)}
}

func (w *window) add(d time.Duration) {
	if w.full {
		w.sum -= w.samples[w.next]
	}
	w.samples[w.next] = d
	w.sum += d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.samples)
	}
	return w.next
}

func (w *window) mean() time.Duration {
	n := w.len()
	if n == 0 {
		return 0
	}
	return w.sum / time.Duration(n)
}

// Tracker is safe for concurrent use by the drain loop and status readers
type Tracker struct {
	mu sync.Mutex

	syncTimes  window
	queueWaits window

	totalSyncs   uint64
	totalErrors  uint64
	lastSyncTime time.Time
	maxQueue     int
	currentQueue int

	windowSize int
	now        func() time.Time
}

// NewTracker creates a tracker with the default window of 100 samples
func NewTracker() *Tracker {
	return NewTrackerWithWindow(constants.MetricsWindowSize)
}

// NewTrackerWithWindow creates a tracker with a custom window size
func NewTrackerWithWindow(size int) *Tracker {
	if size <= 0 {
		size = constants.MetricsWindowSize
	}
	return &Tracker{
		syncTimes:  newWindow(size),
		queueWaits: newWindow(size),
		windowSize: size,
		now:        time.Now,
	}
}

// RecordSync records one successful sync and its duration
func (t *Tracker) RecordSync(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.syncTimes.add(d)
	t.totalSyncs++
	t.lastSyncTime = t.now().UTC()
}

// RecordError counts one failed sync
func (t *Tracker) RecordError() {
	t.mu.Lock()
	t.totalErrors++
	t.mu.Unlock()
}

// RecordQueueWait records how long an update sat in the queue
func (t *Tracker) RecordQueueWait(d time.Duration) {
	t.mu.Lock()
	t.queueWaits.add(d)
	t.mu.Unlock()
}

// UpdateQueueSize sets the current depth and tracks the running max
func (t *Tracker) UpdateQueueSize(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentQueue = n
	if n > t.maxQueue {
		t.maxQueue = n
	}
}

// Snapshot returns the current metrics
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		AvgSyncTime:      t.syncTimes.mean(),
		TotalSyncs:       t.totalSyncs,
		TotalErrors:      t.totalErrors,
		LastSyncTime:     t.lastSyncTime,
		AvgQueueWait:     t.queueWaits.mean(),
		MaxQueueSize:     t.maxQueue,
		CurrentQueueSize: t.currentQueue,
	}
}

// Reset clears every counter and window atomically
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.syncTimes = newWindow(t.windowSize)
	t.queueWaits = newWindow(t.windowSize)
	t.totalSyncs = 0
	t.totalErrors = 0
	t.lastSyncTime = time.Time{}
	t.maxQueue = 0
	t.currentQueue = 0
}
