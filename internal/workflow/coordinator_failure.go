package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/events"
	"inkwell/internal/logging"
	"inkwell/internal/runs"
	"inkwell/internal/services"
	"inkwell/internal/stage"
	"inkwell/internal/template"
)

// resultContractError validates the capability's return value against the
// stage contract: a result must be present, usable, and, on success, carry
// every declared output key.
func resultContractError(desc template.Descriptor, result *stage.Result) error {
	if result == nil {
		return services.Wrap(services.ErrStageExecution, desc.ID, "execute", "capability returned no result", nil)
	}
	if !result.Status.Usable() {
		message := strings.TrimSpace(result.Message)
		if message == "" {
			message = "stage reported error status"
		}
		return services.Wrap(services.ErrStageExecution, desc.ID, "execute", message, nil)
	}
	if result.Status == stage.StatusSuccess {
		var missing []string
		for _, key := range desc.OutputKeys {
			if _, ok := result.Output[key]; !ok {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return services.Wrap(services.ErrStageExecution, desc.ID, "execute",
				fmt.Sprintf("stage output missing declared keys: %s", strings.Join(missing, ", ")), nil)
		}
	}
	return nil
}

// classifyStageError tags raw capability errors. A deadline hit inside the
// stage window becomes a timeout failure; timeouts never trigger a
// regeneration rewind even at the checkpoint stage.
func classifyStageError(stageID string, execErr error, timeout time.Duration) error {
	if errors.Is(execErr, context.DeadlineExceeded) && !errors.Is(execErr, services.ErrTimeout) {
		return services.Wrap(services.ErrTimeout, stageID, "execute",
			fmt.Sprintf("stage timed out after %s", timeout), execErr)
	}
	if services.Details(execErr).Kind != services.KindUnknown {
		return execErr
	}
	return services.Wrap(services.ErrStageExecution, stageID, "execute", "", execErr)
}

func failureMessage(stageID string, stageErr error) string {
	if stageErr == nil {
		return fmt.Sprintf("%s failed without error detail", stageID)
	}
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	}
	if message == "" {
		message = fmt.Sprintf("%s failed", stageID)
	}
	return message
}

// recordStageError persists an error result row for the stage and logs the
// structured failure detail.
func (c *Coordinator) recordStageError(ctx context.Context, logger *slog.Logger, run *runs.Run, stageID string, cycle int, duration time.Duration, stageErr error) {
	details := services.Details(stageErr)
	row := &runs.StageResult{
		RunID:        run.ID,
		Stage:        stageID,
		Attempt:      cycle,
		Status:       string(stage.StatusError),
		ErrorMessage: strings.TrimSpace(details.Message),
		Duration:     duration,
	}
	if err := c.store.SaveStageResult(context.WithoutCancel(ctx), row); err != nil {
		logger.Error("failed to persist stage error", logging.Error(err))
	}
	c.publish(events.StageCompleted(run.ID, run.Template, stageID, cycle, string(stage.StatusError), 0, duration))

	attrs := []logging.Attr{
		logging.String("error_message", strings.TrimSpace(details.Message)),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorOperation, details.Operation),
		logging.String(logging.FieldErrorCode, details.Code),
		logging.String(logging.FieldErrorHint, details.Hint),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(stageErr))
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, "stage_failure"))
	logger.Error("stage failed", logging.Args(attrs...)...)
}
