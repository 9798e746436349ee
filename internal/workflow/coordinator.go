package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/config"
	"inkwell/internal/events"
	"inkwell/internal/gate"
	"inkwell/internal/logging"
	"inkwell/internal/runs"
	"inkwell/internal/services"
	"inkwell/internal/stage"
	"inkwell/internal/template"
)

// Coordinator drives a single claimed run through its template's stage
// sequence to a terminal status.
type Coordinator struct {
	cfg       *config.Config
	store     *runs.Store
	stages    *stage.Registry
	templates *template.Registry
	bus       *events.Bus
	logger    *slog.Logger
	heartbeat *HeartbeatMonitor
}

// NewCoordinator constructs a coordinator. The bus may be nil; progress events
// are then dropped.
func NewCoordinator(cfg *config.Config, store *runs.Store, stages *stage.Registry, templates *template.Registry, bus *events.Bus, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		cfg:       cfg,
		store:     store,
		stages:    stages,
		templates: templates,
		bus:       bus,
		logger:    logger,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// Execute advances the run until it reaches a terminal status. Expected
// outcomes, including stage failures, gate exhaustion, and cancellation, are
// persisted on the run and yield a nil error. A non-nil error means the run
// could not be brought to a terminal state: the daemon is shutting down (the
// row stays running for the startup interrupted sweep) or persistence failed.
func (c *Coordinator) Execute(ctx context.Context, run *runs.Run) error {
	ctx = services.WithRunID(ctx, run.ID)
	ctx = services.WithTemplate(ctx, run.Template)
	logger := logging.WithContext(ctx, c.logger)

	tpl, err := c.templates.Resolve(run.Template)
	if err != nil {
		return c.finishFailed(ctx, logger, run, fmt.Sprintf("template %q is not registered", run.Template))
	}

	initial, err := decodeInput(run.InputJSON)
	if err != nil {
		return c.finishFailed(ctx, logger, run, "invalid input payload: "+err.Error())
	}

	// The threshold snapshot is fixed here; config reloads or registry changes
	// never affect a run already executing.
	thresholds := tpl.Thresholds
	thresholds.TargetWords = targetWordsFromInput(initial)

	checkpointIdx := tpl.CheckpointIndex()
	regenStart := tpl.RegenerationStartIndex()

	produced := make(map[string]map[string]any, len(tpl.Stages))
	cycle := run.Attempt + 1
	if cycle < 1 {
		cycle = 1
	}
	feedback := ""

	for i := run.StageIndex; i < len(tpl.Stages); {
		select {
		case <-ctx.Done():
			return c.handleInterrupt(ctx, logger, run)
		default:
		}

		desc := tpl.Stages[i]
		stageCtx := services.WithStage(ctx, desc.ID)
		stageCtx = services.WithRequestID(stageCtx, uuid.NewString())
		stageLogger := logging.WithContext(stageCtx, logging.ForStage(c.logger, c.cfg, desc.ID))

		capability, err := c.stages.Resolve(desc.ID)
		if err != nil {
			return c.finishFailed(stageCtx, stageLogger, run, fmt.Sprintf("stage %s has no registered capability", desc.ID))
		}

		if err := c.markStageRunning(stageCtx, run, tpl, i, cycle); err != nil {
			if ctx.Err() != nil {
				return c.handleInterrupt(ctx, logger, run)
			}
			stageLogger.Error("failed to persist stage transition", logging.Error(err))
			return err
		}

		input := buildStageInput(run, tpl, i, cycle, initial, produced, feedback)
		c.publish(events.StageStarted(run.ID, run.Template, desc.ID, cycle))
		stageLogger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.Int(logging.FieldAttempt, cycle),
		)

		stageStart := time.Now()
		result, execErr := c.invokeStage(stageCtx, capability, input)
		duration := time.Since(stageStart)

		if execErr == nil {
			execErr = resultContractError(desc, result)
		}
		if execErr != nil {
			if ctx.Err() != nil {
				return c.handleInterrupt(ctx, logger, run)
			}
			execErr = classifyStageError(desc.ID, execErr, c.cfg.StageTimeoutFor(desc.ID))
			c.recordStageError(stageCtx, stageLogger, run, desc.ID, cycle, duration, execErr)
			return c.finishFailed(stageCtx, stageLogger, run, failureMessage(desc.ID, execErr))
		}

		row := &runs.StageResult{
			RunID:      run.ID,
			Stage:      desc.ID,
			Attempt:    cycle,
			Status:     string(result.Status),
			Quality:    result.Quality,
			OutputJSON: encodeOutput(result.Output),
			Duration:   duration,
		}
		if result.Status == stage.StatusWarning {
			row.ErrorMessage = strings.TrimSpace(result.Message)
		}
		// Completed work is never discarded: a cancel request arriving during
		// the stage must not lose the result the stage already produced.
		if err := c.store.SaveStageResult(context.WithoutCancel(stageCtx), row); err != nil {
			stageLogger.Error("failed to persist stage result", logging.Error(err))
			return fmt.Errorf("persist stage result: %w", err)
		}
		produced[desc.ID] = result.Output

		c.publish(events.StageCompleted(run.ID, run.Template, desc.ID, cycle, string(result.Status), result.Quality, duration))
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("status", string(result.Status)),
			logging.Float64(logging.FieldQualityScore, result.Quality),
			logging.Duration("stage_duration", duration),
		)

		if i == checkpointIdx {
			run.Attempt = cycle
			decision := gate.Evaluate(result, cycle, thresholds)
			c.publish(events.GateDecision(run.ID, run.Template, desc.ID, cycle, string(decision.Verdict), decision.Reason, result.Quality))
			stageLogger.Info("gate evaluated",
				logging.String(logging.FieldEventType, "gate_decision"),
				logging.String(logging.FieldGateDecision, string(decision.Verdict)),
				logging.Float64(logging.FieldQualityScore, result.Quality),
				logging.Int(logging.FieldAttempt, cycle),
				logging.Int("max_attempts", thresholds.MaxAttempts),
				logging.String("quality_reason", decision.Reason),
			)
			switch decision.Verdict {
			case gate.VerdictRegenerate:
				cycle++
				feedback = decision.Reason
				i = regenStart
				continue
			case gate.VerdictFail:
				return c.finishFailed(stageCtx, stageLogger, run, decision.Reason)
			default:
				feedback = ""
			}
		}
		i++
	}

	output := ""
	if len(tpl.Stages) > 0 {
		output = encodeOutput(produced[tpl.Stages[len(tpl.Stages)-1].ID])
	}
	return c.finishCompleted(ctx, logger, run, output)
}

// invokeStage runs the capability under the per-stage timeout while a
// heartbeat loop keeps the run's liveness column fresh.
func (c *Coordinator) invokeStage(ctx context.Context, capability stage.Capability, input stage.Input) (*stage.Result, error) {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go c.heartbeat.StartLoop(hbCtx, &hbWG, input.RunID)

	execCtx := ctx
	cancelTimeout := func() {}
	if timeout := c.cfg.StageTimeoutFor(input.Stage); timeout > 0 {
		execCtx, cancelTimeout = context.WithTimeout(ctx, timeout)
	}
	result, err := capability.Execute(execCtx, input)
	cancelTimeout()
	hbCancel()
	hbWG.Wait()
	return result, err
}

func (c *Coordinator) markStageRunning(ctx context.Context, run *runs.Run, tpl template.Template, index, cycle int) error {
	run.StageIndex = index
	run.CurrentStage = tpl.Stages[index].ID
	label := stageLabel(run.CurrentStage)
	message := label + " started"
	if cycle > 1 {
		message = fmt.Sprintf("%s started (attempt %d)", label, cycle)
	}
	run.SetProgress(label, message, progressPercent(index, len(tpl.Stages)))
	if err := c.store.Update(ctx, run); err != nil {
		return fmt.Errorf("persist stage transition: %w", err)
	}
	return nil
}

// handleInterrupt distinguishes a cancel request for this run from a daemon
// shutdown. Cancellation is a terminal outcome; shutdown leaves the row
// running so the startup sweep can fail it with an explicit reason.
func (c *Coordinator) handleInterrupt(ctx context.Context, logger *slog.Logger, run *runs.Run) error {
	if errors.Is(context.Cause(ctx), services.ErrCancelled) {
		return c.finishCancelled(ctx, logger, run, runs.CancelRequestedReason)
	}
	logger.Debug("run interrupted by shutdown", logging.String(logging.FieldEventType, "run_interrupted"))
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}

func (c *Coordinator) finishCompleted(ctx context.Context, logger *slog.Logger, run *runs.Run, outputJSON string) error {
	run.SetCompleted(outputJSON, time.Now().UTC())
	if err := c.store.Update(ctx, run); err != nil {
		logger.Error("failed to persist run completion", logging.Error(err))
		return fmt.Errorf("persist run completion: %w", err)
	}
	c.publish(events.RunTerminal(run.ID, run.Template, string(runs.StatusCompleted), ""))
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int(logging.FieldAttempt, run.Attempt),
	)
	return nil
}

func (c *Coordinator) finishFailed(ctx context.Context, logger *slog.Logger, run *runs.Run, reason string) error {
	run.SetFailed(reason, time.Now().UTC())
	if err := c.store.Update(ctx, run); err != nil {
		logger.Error("failed to persist run failure", logging.Error(err))
		return fmt.Errorf("persist run failure: %w", err)
	}
	c.publish(events.RunTerminal(run.ID, run.Template, string(runs.StatusFailed), reason))
	logger.Warn("run failed",
		logging.String(logging.FieldEventType, "run_failed"),
		logging.String("reason", reason),
		logging.Int(logging.FieldAttempt, run.Attempt),
	)
	return nil
}

// finishCancelled persists through a detached context; the run's own context
// is already done when a cancel request lands.
func (c *Coordinator) finishCancelled(ctx context.Context, logger *slog.Logger, run *runs.Run, reason string) error {
	run.SetCancelled(reason, time.Now().UTC())
	if err := c.store.Update(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to persist run cancellation", logging.Error(err))
		return fmt.Errorf("persist run cancellation: %w", err)
	}
	c.publish(events.RunTerminal(run.ID, run.Template, string(runs.StatusCancelled), reason))
	logger.Info("run cancelled",
		logging.String(logging.FieldEventType, "run_cancelled"),
		logging.String("reason", reason),
	)
	return nil
}

func (c *Coordinator) publish(evt events.Event) {
	if c.bus != nil {
		c.bus.Publish(evt)
	}
}

func progressPercent(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(index) / float64(total) * 100
}
