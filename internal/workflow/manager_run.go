package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"inkwell/internal/events"
	"inkwell/internal/logging"
	"inkwell/internal/runs"
	"inkwell/internal/services"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.workerCount()
	m.wg.Add(workers)
	m.mu.Unlock()

	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}

	m.logger.Info("workflow started",
		logging.Int("workers", workers),
		logging.String(logging.FieldEventType, "workflow_start"),
	)
	return nil
}

// Stop terminates background processing and waits for workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// runWorker claims pending runs until shutdown. Worker zero doubles as the
// stale-heartbeat reclaimer.
func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if id == 0 {
			m.reclaimStale(ctx, logger)
		}

		run, err := m.store.ClaimNextPending(ctx)
		if err != nil {
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if run == nil {
			m.waitForRunOrShutdown(ctx)
			continue
		}

		if err := m.processRun(ctx, logger, run); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// processRun registers the run for cancellation and hands it to the
// coordinator. The cancel-cause registration happens before execution so a
// cancel request arriving at any point during the run finds its target.
func (m *Manager) processRun(ctx context.Context, logger *slog.Logger, run *runs.Run) error {
	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)
	m.registerActive(run.ID, cancelRun)
	defer m.unregisterActive(run.ID)

	m.setLastRun(run)
	err := m.coordinator.Execute(runCtx, run)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logging.WithContext(services.WithRunID(ctx, run.ID), logger).Debug("run interrupted by shutdown")
			return err
		}
		m.setLastError(err)
		return err
	}
	m.setLastRun(run)
	return nil
}

func (m *Manager) reclaimStale(ctx context.Context, logger *slog.Logger) {
	ids, err := m.heartbeat.ReclaimStale(ctx)
	if err != nil {
		logger.Warn("reclaim stale runs failed; stuck runs may remain",
			logging.Error(err),
			logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
			logging.String(logging.FieldErrorHint, "check run database access"),
		)
		return
	}
	AnnounceTerminals(ctx, m.store, m.bus, ids, runs.StatusFailed, runs.StaleHeartbeatReason)
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	logger.Error("failed to claim next run",
		logging.Error(err),
		logging.String(logging.FieldEventType, "run_claim_failed"),
		logging.String(logging.FieldErrorHint, "check run database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForRunOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

// AnnounceTerminals publishes run-terminal events for runs brought to a
// terminal status outside a live coordinator, such as the startup interrupted
// sweep, stale heartbeat reclamation, and pending-run cancellation.
func AnnounceTerminals(ctx context.Context, store *runs.Store, bus *events.Bus, ids []string, status runs.Status, reason string) {
	if bus == nil {
		return
	}
	for _, id := range ids {
		templateName := ""
		if run, err := store.GetByID(ctx, id); err == nil && run != nil {
			templateName = run.Template
		}
		bus.Publish(events.RunTerminal(id, templateName, string(status), reason))
	}
}
