package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Broadcaster pushes the current queue stats to connected staff.
type Broadcaster interface {
	BroadcastQueueStats(ctx context.Context) error
}

// StartQueueBroadcaster runs b on every tick until ctx is done. Wait times grow
// even when nothing changes, so dashboards need a periodic refresh.
func StartQueueBroadcaster(ctx context.Context, b Broadcaster, interval time.Duration, logger *zap.Logger) {
	if b == nil || interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := b.BroadcastQueueStats(ctx); err != nil {
					logger.Warn("queue stats broadcast failed", zap.Error(err))
				}
			}
		}
	}()
}
