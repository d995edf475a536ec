// Package queue turns bursts of file saves into a throttled stream of graph syncs.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/constants"
	"vault-graph-sync/backend/internal/identity"
	"vault-graph-sync/backend/internal/metrics"
)

// Syncer applies one file to the graph
type Syncer interface {
	SyncSingleFile(ctx context.Context, path string) error
}

// PendingUpdate is one queued file change
type PendingUpdate struct {
	FilePath    string    `json:"file_path"`
	VaultPath   string    `json:"vault_path"`
	ContentHash string    `json:"content_hash"`
	FileSize    int       `json:"file_size"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Result is the outcome of syncing one update
type Result struct {
	Path     string
	Err      error
	Duration time.Duration
}

// Batch summarises one drained batch
type Batch struct {
	Results []Result
	Elapsed time.Duration
}

// Synced returns the paths that synced without error
func (b Batch) Synced() []string {
	var paths []string
	for _, r := range b.Results {
		if r.Err == nil {
			paths = append(paths, r.Path)
		}
	}
	return paths
}

// Failed returns the number of failed syncs
func (b Batch) Failed() int {
	n := 0
	for _, r := range b.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Options tunes a queue. Zero values take the package defaults.
type Options struct {
	MaxBatchSize  int
	BatchInterval time.Duration

	// Debounce maps a file size to its debounce window
	Debounce func(size int) time.Duration
	// Now is the clock used for debounce and enqueue times
	Now func() time.Time

	// Unchanged reports whether hash is already what the graph holds for path
	Unchanged func(ctx context.Context, path, hash string) bool
	// OnBatch runs on the worker after every drained batch
	OnBatch func(ctx context.Context, b Batch)
}

// DebounceFor is the default size-based debounce window
func DebounceFor(size int) time.Duration {
	switch {
	case size < constants.SmallFileLimit:
		return constants.SmallFileDebounce
	case size < constants.MediumFileLimit:
		return constants.MediumFileDebounce
	default:
		return constants.LargeFileDebounce
	}
}

// workerState is the lifecycle of the drain worker
type workerState int32

const (
	stateIdle workerState = iota
	stateDraining
)

// UpdateQueue debounces and coalesces updates per path and drains them in batches.
// A single worker is spawned lazily on the first accepted update and exits when
// it finds the queue empty.
type UpdateQueue struct {
	syncer  Syncer
	opts    Options
	metrics *metrics.Tracker
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex // guards pending
	pending []PendingUpdate

	debounceMu   sync.Mutex // guards lastAccepted; never held together with mu
	lastAccepted map[string]time.Time

	state   atomic.Int32
	wake    chan struct{}
	drainMu sync.Mutex // one batch in flight at a time
	wg      sync.WaitGroup
}

// New creates a queue feeding syncer. tracker may be shared with status readers.
func New(syncer Syncer, tracker *metrics.Tracker, opts Options, log *zap.Logger) *UpdateQueue {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = constants.DefaultMaxBatchSize
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = constants.DefaultBatchInterval
	}
	if opts.Debounce == nil {
		opts.Debounce = DebounceFor
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if tracker == nil {
		tracker = metrics.NewTracker()
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &UpdateQueue{
		syncer:       syncer,
		opts:         opts,
		metrics:      tracker,
		logger:       log,
		ctx:          ctx,
		cancel:       cancel,
		lastAccepted: make(map[string]time.Time),
		wake:         make(chan struct{}, 1),
	}
}

// Metrics returns the tracker the queue records into
func (q *UpdateQueue) Metrics() *metrics.Tracker {
	return q.metrics
}

// AddUpdate offers a file change. It returns false when the update was dropped,
// either because the path is inside its debounce window or because the content
// is what the graph already holds.
func (q *UpdateQueue) AddUpdate(ctx context.Context, path, vaultPath, content string) bool {
	if q.ctx.Err() != nil {
		return false
	}

	size := len(content)
	hash := identity.ContentHash([]byte(content))

	if q.opts.Unchanged != nil && q.opts.Unchanged(ctx, path, hash) {
		q.logger.Debug("Update skipped, content unchanged", zap.String("path", path))
		return false
	}

	now := q.opts.Now()
	window := q.opts.Debounce(size)

	q.debounceMu.Lock()
	if last, ok := q.lastAccepted[path]; ok && now.Sub(last) < window {
		q.debounceMu.Unlock()
		q.logger.Debug("Update debounced",
			zap.String("path", path),
			zap.Duration("window", window),
		)
		return false
	}
	q.lastAccepted[path] = now
	q.debounceMu.Unlock()

	update := PendingUpdate{
		FilePath:    path,
		VaultPath:   vaultPath,
		ContentHash: hash,
		FileSize:    size,
		EnqueuedAt:  now,
	}

	q.mu.Lock()
	q.removeLocked(path)
	q.pending = append(q.pending, update)
	depth := len(q.pending)
	q.mu.Unlock()

	q.metrics.UpdateQueueSize(depth)
	q.ensureWorker()

	if depth >= q.opts.MaxBatchSize {
		q.signal()
	}
	return true
}

// removeLocked drops any queued entry for path; q.mu must be held
func (q *UpdateQueue) removeLocked(path string) {
	kept := q.pending[:0]
	for _, u := range q.pending {
		if u.FilePath != path {
			kept = append(kept, u)
		}
	}
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = PendingUpdate{}
	}
	q.pending = kept
}

// ensureWorker starts the drain worker unless one is already running
func (q *UpdateQueue) ensureWorker() {
	if !q.state.CompareAndSwap(int32(stateIdle), int32(stateDraining)) {
		return
	}
	q.wg.Add(1)
	go q.run()
	q.logger.Debug("Queue worker started")
}

func (q *UpdateQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *UpdateQueue) run() {
	defer q.wg.Done()

	timer := time.NewTimer(q.opts.BatchInterval)
	defer timer.Stop()

	for {
		select {
		case <-q.ctx.Done():
			q.state.Store(int32(stateIdle))
			return
		case <-timer.C:
		case <-q.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if q.retireIfEmpty() {
			q.logger.Debug("Queue worker stopped, queue empty")
			return
		}
		q.drainOnce()
		timer.Reset(q.opts.BatchInterval)
	}
}

// retireIfEmpty flips the worker back to idle when there is nothing to do.
// It holds mu so an AddUpdate cannot slip in between the check and the flip.
func (q *UpdateQueue) retireIfEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) > 0 {
		return false
	}
	q.state.Store(int32(stateIdle))
	return true
}

func (q *UpdateQueue) pop(n int) []PendingUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.pending) {
		n = len(q.pending)
	}
	batch := make([]PendingUpdate, n)
	copy(batch, q.pending[:n])
	q.pending = append(q.pending[:0], q.pending[n:]...)
	return batch
}

// drainOnce syncs up to MaxBatchSize updates and returns how many were taken
func (q *UpdateQueue) drainOnce() int {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	batch := q.pop(q.opts.MaxBatchSize)
	if len(batch) == 0 {
		return 0
	}
	q.metrics.UpdateQueueSize(q.QueueSize())

	start := time.Now()
	results := make([]Result, 0, len(batch))
	for _, u := range batch {
		if q.ctx.Err() != nil {
			break
		}
		q.metrics.RecordQueueWait(q.opts.Now().Sub(u.EnqueuedAt))

		began := time.Now()
		err := q.syncer.SyncSingleFile(q.ctx, u.FilePath)
		took := time.Since(began)
		if err != nil {
			q.metrics.RecordError()
			q.logger.Warn("Graph sync failed", zap.String("path", u.FilePath), zap.Error(err))
		} else {
			q.metrics.RecordSync(took)
		}
		results = append(results, Result{Path: u.FilePath, Err: err, Duration: took})
	}

	b := Batch{Results: results, Elapsed: time.Since(start)}
	q.logger.Info("Graph sync batch processed",
		zap.Int("files", len(results)),
		zap.Int("ok", len(results)-b.Failed()),
		zap.Int("failed", b.Failed()),
		zap.Duration("elapsed", b.Elapsed),
	)

	if q.opts.OnBatch != nil {
		q.opts.OnBatch(q.ctx, b)
	}
	return len(batch)
}

// Flush drains the queue synchronously until it is empty or ctx is done
func (q *UpdateQueue) Flush(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if q.drainOnce() == 0 {
			return nil
		}
	}
}

// QueueSize returns the number of pending updates
func (q *UpdateQueue) QueueSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Pending returns a copy of the queued updates in drain order
func (q *UpdateQueue) Pending() []PendingUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]PendingUpdate(nil), q.pending...)
}

// Draining reports whether the worker is running
func (q *UpdateQueue) Draining() bool {
	return workerState(q.state.Load()) == stateDraining
}

// Clear empties the queue and the debounce map and resets the metrics
func (q *UpdateQueue) Clear() {
	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()

	q.debounceMu.Lock()
	q.lastAccepted = make(map[string]time.Time)
	q.debounceMu.Unlock()

	q.metrics.Reset()
	q.logger.Info("Update queue cleared")
}

// Forget drops any queued update and the debounce entry for path, so the
// next change to it is accepted at once. Used when the file is removed.
func (q *UpdateQueue) Forget(path string) {
	q.mu.Lock()
	q.removeLocked(path)
	depth := len(q.pending)
	q.mu.Unlock()

	q.debounceMu.Lock()
	delete(q.lastAccepted, path)
	q.debounceMu.Unlock()

	q.metrics.UpdateQueueSize(depth)
}

// Close stops the worker and waits for it. Pending updates are dropped.
func (q *UpdateQueue) Close() {
	q.cancel()
	q.wg.Wait()
}
