package workflow

import (
	"context"
	"fmt"
	"time"

	"inkwell/internal/logging"
	"inkwell/internal/runs"
	"inkwell/internal/services"
)

const (
	cancelRetryWindow   = 2 * time.Second
	cancelRetryInterval = 10 * time.Millisecond
)

// Cancel requests cancellation of a run. Pending runs are cancelled directly
// in the store; running runs are cancelled through their execution context
// and reach terminal status at the next stage boundary. The retry loop covers
// the window between a worker claiming a run and registering its cancel
// function.
func (m *Manager) Cancel(ctx context.Context, runID string) error {
	deadline := time.Now().Add(cancelRetryWindow)
	for {
		cancelled, err := m.store.CancelPending(ctx, runID, runs.CancelRequestedReason)
		if err != nil {
			return err
		}
		if cancelled {
			m.logger.Info("run cancelled while pending",
				logging.String(logging.FieldRunID, runID),
				logging.String(logging.FieldEventType, "run_cancelled"),
			)
			AnnounceTerminals(ctx, m.store, m.bus, []string{runID}, runs.StatusCancelled, runs.CancelRequestedReason)
			return nil
		}

		if cancelRun := m.activeCancel(runID); cancelRun != nil {
			cancelRun(services.ErrCancelled)
			m.logger.Info("run cancellation requested",
				logging.String(logging.FieldRunID, runID),
				logging.String(logging.FieldEventType, "run_cancel_requested"),
			)
			return nil
		}

		run, err := m.store.GetByID(ctx, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return services.Wrap(services.ErrNotFound, "workflow", "cancel", fmt.Sprintf("run %q not found", runID), nil)
		}
		if run.IsTerminal() {
			return nil
		}

		if time.Now().After(deadline) {
			return services.Wrap(services.ErrTransient, "workflow", "cancel",
				fmt.Sprintf("run %q is claimed but not yet cancellable", runID), nil)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cancelRetryInterval):
		}
	}
}
