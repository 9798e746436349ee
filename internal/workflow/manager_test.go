package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/events"
	"inkwell/internal/logging"
	"inkwell/internal/runs"
	"inkwell/internal/services"
	"inkwell/internal/stage"
	"inkwell/internal/testsupport"
	"inkwell/internal/workflow"
)

func newManager(t *testing.T, cfg *config.Config, store *runs.Store, bus *events.Bus, capabilities ...stage.Capability) *workflow.Manager {
	t.Helper()
	return workflow.NewManager(
		cfg,
		store,
		newStageRegistry(t, capabilities...),
		newTemplateRegistry(t, cfg),
		bus,
		logging.NewNop(),
	)
}

func waitForStatus(t *testing.T, store *runs.Store, id string, want runs.Status) *runs.Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		run := mustGetRun(t, store, id)
		if run.Status == want {
			return run
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s never reached %s, last status %s (%s)", id, want, run.Status, run.ErrorMessage)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func findTerminalEvent(t *testing.T, bus *events.Bus, runID string) events.Event {
	t.Helper()
	recorded, _ := bus.Tail(0)
	for _, evt := range recorded {
		if evt.Type == events.TypeRunTerminal && evt.RunID == runID {
			return evt
		}
	}
	t.Fatalf("no run-terminal event recorded for %s", runID)
	return events.Event{}
}

func TestManagerProcessesRunToCompletion(t *testing.T) {
	research, write, humanize := quickPostStubs(75)
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	store := openStore(t, cfg)
	bus := events.NewBus(cfg.Events.BufferSize)
	manager := newManager(t, cfg, store, bus, research, write, humanize)

	ctx := context.Background()
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	testsupport.NewRun(t, store, "run-pool", "quick_post", `{"topic":"worker pool"}`)
	final := waitForStatus(t, store, "run-pool", runs.StatusCompleted)
	if final.Attempt != 1 {
		t.Fatalf("expected a single checkpoint attempt, got %d", final.Attempt)
	}

	status := manager.Status(ctx)
	if !status.Running || status.Workers != 2 {
		t.Fatalf("unexpected status: %#v", status)
	}
	if len(status.StageHealth) != 3 {
		t.Fatalf("expected health for three stages, got %d", len(status.StageHealth))
	}
	if status.RunStats[runs.StatusCompleted] != 1 {
		t.Fatalf("unexpected run stats: %#v", status.RunStats)
	}

	manager.Stop()
	if manager.Status(ctx).Running {
		t.Fatal("manager should report stopped after Stop")
	}
}

func TestManagerStartWhileRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := openStore(t, cfg)
	manager := newManager(t, cfg, store, nil)

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("expected an error from a second Start")
	}
}

func TestManagerCancelPendingRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := openStore(t, cfg)
	bus := events.NewBus(cfg.Events.BufferSize)
	manager := newManager(t, cfg, store, bus)

	testsupport.NewRun(t, store, "run-pending", "quick_post", "")
	if err := manager.Cancel(context.Background(), "run-pending"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	run := mustGetRun(t, store, "run-pending")
	if run.Status != runs.StatusCancelled || run.ErrorMessage != runs.CancelRequestedReason {
		t.Fatalf("unexpected run state: %#v", run)
	}
	terminal := findTerminalEvent(t, bus, "run-pending")
	if terminal.Status != string(runs.StatusCancelled) {
		t.Fatalf("unexpected terminal event: %#v", terminal)
	}
}

func TestManagerCancelRunningRun(t *testing.T) {
	research, write, humanize := quickPostStubs(75)
	started := make(chan struct{})
	var once sync.Once
	write.execute = func(ctx context.Context, _ int, _ stage.Input) (*stage.Result, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}

	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := openStore(t, cfg)
	bus := events.NewBus(cfg.Events.BufferSize)
	manager := newManager(t, cfg, store, bus, research, write, humanize)

	ctx := context.Background()
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	testsupport.NewRun(t, store, "run-live", "quick_post", `{"topic":"cancel me"}`)
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("write stage never started")
	}

	if err := manager.Cancel(ctx, "run-live"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	final := waitForStatus(t, store, "run-live", runs.StatusCancelled)
	if final.ErrorMessage != runs.CancelRequestedReason {
		t.Fatalf("unexpected cancel reason: %q", final.ErrorMessage)
	}
	if humanize.callCount() != 0 {
		t.Fatalf("humanize must not run after cancellation, got %d calls", humanize.callCount())
	}
}

func TestManagerCancelUnknownRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := openStore(t, cfg)
	manager := newManager(t, cfg, store, nil)

	err := manager.Cancel(context.Background(), "ghost")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestManagerReclaimsStaleRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.HeartbeatTimeout = 1
	store := openStore(t, cfg)
	bus := events.NewBus(cfg.Events.BufferSize)

	ctx := context.Background()
	run := testsupport.NewRun(t, store, "run-stale", "quick_post", "")
	past := time.Now().UTC().Add(-10 * time.Minute)
	run.Status = runs.StatusRunning
	run.LastHeartbeat = &past
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update: %v", err)
	}

	manager := newManager(t, cfg, store, bus)
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	final := waitForStatus(t, store, "run-stale", runs.StatusFailed)
	if final.ErrorMessage != runs.StaleHeartbeatReason {
		t.Fatalf("unexpected failure reason: %q", final.ErrorMessage)
	}
	terminal := findTerminalEvent(t, bus, "run-stale")
	if terminal.Status != string(runs.StatusFailed) || terminal.Reason != runs.StaleHeartbeatReason {
		t.Fatalf("unexpected terminal event: %#v", terminal)
	}
}
