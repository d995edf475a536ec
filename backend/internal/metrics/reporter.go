package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Report periodically logs a snapshot and hands it to publish until ctx is done
func Report(ctx context.Context, tracker *Tracker, interval time.Duration, log *zap.Logger, publish func(Snapshot)) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := tracker.Snapshot()
			if log != nil {
				log.Info("Sync metrics",
					zap.Uint64("total_syncs", snap.TotalSyncs),
					zap.Uint64("total_errors", snap.TotalErrors),
					zap.Duration("avg_sync_time", snap.AvgSyncTime),
					zap.Duration("avg_queue_wait", snap.AvgQueueWait),
					zap.Int("queue_size", snap.CurrentQueueSize),
					zap.Int("max_queue_size", snap.MaxQueueSize),
				)
			}
			if publish != nil {
				publish(snap)
			}
		}
	}
}
