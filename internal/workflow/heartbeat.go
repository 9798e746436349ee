package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/logging"
	"inkwell/internal/runs"
)

// HeartbeatMonitor keeps running rows alive while a stage executes and fails
// rows whose worker stopped reporting.
type HeartbeatMonitor struct {
	store    *runs.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *runs.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &HeartbeatMonitor{
		store:    store,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// ReclaimStale fails running rows whose heartbeat expired and returns their
// IDs so the caller can announce the terminal transitions.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) ([]string, error) {
	if h.timeout <= 0 {
		return nil, nil
	}
	cutoff := time.Now().Add(-h.timeout)
	ids, err := h.store.FailStaleRunning(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		h.logger.Info("failed stale runs",
			logging.Int("count", len(ids)),
			logging.String("reason", runs.StaleHeartbeatReason),
			logging.String(logging.FieldEventType, "heartbeat_reclaim"),
		)
	}
	return ids, nil
}

// StartLoop refreshes the run's heartbeat until context cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, runID string) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, runID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat update cancelled by shutdown")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}
