package runs_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"inkwell/internal/runs"
	"inkwell/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	run, err := store.NewRun(ctx, "run-1", "quick_post", `{"topic":"go"}`)
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	if run.Status != runs.StatusPending {
		t.Fatalf("expected pending status, got %s", run.Status)
	}
	if run.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp")
	}

	fetched, err := store.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Template != "quick_post" {
		t.Fatalf("unexpected fetched run: %#v", fetched)
	}
	if fetched.InputJSON != `{"topic":"go"}` {
		t.Fatalf("expected input preserved, got %q", fetched.InputJSON)
	}
}

func TestGetByIDMissingRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	run, err := store.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil for missing run, got %#v", run)
	}
}

func TestNewRunRequiresIDAndTemplate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewRun(ctx, "", "quick_post", ""); err == nil {
		t.Fatal("expected error for empty id")
	}
	if _, err := store.NewRun(ctx, "run-x", "", ""); err == nil {
		t.Fatal("expected error for empty template")
	}
}

func TestUpdatePersistsLifecycleFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	run := testsupport.NewRun(t, store, "run-2", "quick_post", "")

	now := time.Now().UTC()
	run.SetRunning(now)
	run.StageIndex = 1
	run.CurrentStage = "write"
	run.Attempt = 2
	run.SetProgress("write", "drafting", 33)
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != runs.StatusRunning || fetched.StageIndex != 1 || fetched.Attempt != 2 {
		t.Fatalf("unexpected run state: %#v", fetched)
	}
	if fetched.StartedAt == nil || fetched.LastHeartbeat == nil {
		t.Fatal("expected started and heartbeat timestamps")
	}

	run.SetCompleted(`{"content":"done"}`, time.Now().UTC())
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	fetched, err = store.GetByID(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != runs.StatusCompleted {
		t.Fatalf("expected completed, got %s", fetched.Status)
	}
	if fetched.FinishedAt == nil {
		t.Fatal("expected finished timestamp")
	}
	if fetched.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on completion")
	}
	if fetched.OutputJSON != `{"content":"done"}` {
		t.Fatalf("expected output persisted, got %q", fetched.OutputJSON)
	}
}

func TestClaimNextPendingClaimsOldestOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewRun(t, store, "run-a", "quick_post", "")
	testsupport.NewRun(t, store, "run-b", "quick_post", "")

	claimed, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest run claimed, got %#v", claimed)
	}
	if claimed.Status != runs.StatusRunning {
		t.Fatalf("expected running after claim, got %s", claimed.Status)
	}

	second, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if second == nil || second.ID != "run-b" {
		t.Fatalf("expected second run claimed, got %#v", second)
	}

	third, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if third != nil {
		t.Fatalf("expected no pending runs, got %#v", third)
	}
}

func TestStageResultsAndLatest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewRun(t, store, "run-3", "quick_post", "")

	for attempt := 1; attempt <= 2; attempt++ {
		result := &runs.StageResult{
			RunID:      "run-3",
			Stage:      "humanize",
			Attempt:    attempt,
			Status:     "success",
			Quality:    float64(40 * attempt),
			OutputJSON: fmt.Sprintf(`{"attempt":%d}`, attempt),
			Duration:   150 * time.Millisecond,
		}
		if err := store.SaveStageResult(ctx, result); err != nil {
			t.Fatalf("SaveStageResult failed: %v", err)
		}
		if result.ID == 0 {
			t.Fatal("expected result ID assigned")
		}
	}
	if err := store.SaveStageResult(ctx, &runs.StageResult{
		RunID: "run-3", Stage: "research", Attempt: 1, Status: "success", Quality: 90,
	}); err != nil {
		t.Fatalf("SaveStageResult failed: %v", err)
	}

	all, err := store.ResultsForRun(ctx, "run-3")
	if err != nil {
		t.Fatalf("ResultsForRun failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 results, got %d", len(all))
	}

	latest, err := store.LatestResults(ctx, "run-3")
	if err != nil {
		t.Fatalf("LatestResults failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 latest results, got %d", len(latest))
	}
	for _, result := range latest {
		if result.Stage == "humanize" {
			if result.Attempt != 2 || result.Quality != 80 {
				t.Fatalf("expected latest humanize attempt, got %#v", result)
			}
		}
	}
}

func TestSnapshotConsistentView(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	run := testsupport.NewRun(t, store, "run-4", "quick_post", "")
	run.SetRunning(time.Now().UTC())
	run.CurrentStage = "research"
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := store.SaveStageResult(ctx, &runs.StageResult{
		RunID: "run-4", Stage: "research", Attempt: 1, Status: "success", Quality: 88,
	}); err != nil {
		t.Fatalf("SaveStageResult failed: %v", err)
	}

	snapshot, err := store.Snapshot(ctx, "run-4")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot == nil {
		t.Fatal("expected snapshot")
	}
	if snapshot.Run.Status != runs.StatusRunning {
		t.Fatalf("unexpected status: %s", snapshot.Run.Status)
	}
	if len(snapshot.Results) != 1 || snapshot.Results[0].Stage != "research" {
		t.Fatalf("unexpected results: %#v", snapshot.Results)
	}

	missing, err := store.Snapshot(ctx, "absent")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil snapshot for missing run, got %#v", missing)
	}
}

func TestFailInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	run := testsupport.NewRun(t, store, "run-5", "quick_post", "")
	run.SetRunning(time.Now().UTC())
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	testsupport.NewRun(t, store, "run-6", "quick_post", "")

	ids, err := store.FailInterrupted(ctx)
	if err != nil {
		t.Fatalf("FailInterrupted failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "run-5" {
		t.Fatalf("expected [run-5] interrupted, got %v", ids)
	}

	failed, err := store.GetByID(ctx, "run-5")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.Status != runs.StatusFailed || failed.ErrorMessage != runs.InterruptedReason {
		t.Fatalf("unexpected interrupted run: %#v", failed)
	}

	pending, err := store.GetByID(ctx, "run-6")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if pending.Status != runs.StatusPending {
		t.Fatalf("pending run should be untouched, got %s", pending.Status)
	}
}

func TestFailStaleRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	run := testsupport.NewRun(t, store, "run-7", "quick_post", "")
	past := time.Now().UTC().Add(-10 * time.Minute)
	run.Status = runs.StatusRunning
	run.LastHeartbeat = &past
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh := testsupport.NewRun(t, store, "run-8", "quick_post", "")
	fresh.SetRunning(time.Now().UTC())
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	ids, err := store.FailStaleRunning(ctx, time.Now().UTC().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("FailStaleRunning failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "run-7" {
		t.Fatalf("expected [run-7] failed, got %v", ids)
	}

	stale, err := store.GetByID(ctx, "run-7")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stale.Status != runs.StatusFailed || stale.ErrorMessage != runs.StaleHeartbeatReason {
		t.Fatalf("unexpected stale run state: %#v", stale)
	}

	kept, err := store.GetByID(ctx, "run-8")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if kept.Status != runs.StatusRunning {
		t.Fatalf("fresh run should stay running, got %s", kept.Status)
	}
}

func TestCancelPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewRun(t, store, "run-cancel", "quick_post", "")

	cancelled, err := store.CancelPending(ctx, "run-cancel", runs.CancelRequestedReason)
	if err != nil {
		t.Fatalf("CancelPending failed: %v", err)
	}
	if !cancelled {
		t.Fatal("expected pending run to be cancelled")
	}

	got, err := store.GetByID(ctx, "run-cancel")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != runs.StatusCancelled || got.ErrorMessage != runs.CancelRequestedReason {
		t.Fatalf("unexpected cancelled run: %#v", got)
	}
	if got.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}

	claimed := testsupport.NewRun(t, store, "run-claimed", "quick_post", "")
	claimed.SetRunning(time.Now().UTC())
	if err := store.Update(ctx, claimed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	cancelled, err = store.CancelPending(ctx, "run-claimed", runs.CancelRequestedReason)
	if err != nil {
		t.Fatalf("CancelPending failed: %v", err)
	}
	if cancelled {
		t.Fatal("running run must not be cancelled by the pending path")
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewRun(t, store, "run-9", "quick_post", "")
	done := testsupport.NewRun(t, store, "run-10", "quick_post", "")
	done.SetCompleted("{}", time.Now().UTC())
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[runs.StatusPending] != 1 || stats[runs.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Completed != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}

	dbHealth, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !dbHealth.DatabaseExists || !dbHealth.DatabaseReadable || !dbHealth.TableExists {
		t.Fatalf("unexpected db health: %#v", dbHealth)
	}
	if len(dbHealth.MissingColumns) != 0 {
		t.Fatalf("expected no missing columns, got %v", dbHealth.MissingColumns)
	}
	if !dbHealth.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
}

func TestRemoveAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewRun(t, store, "run-11", "quick_post", "")
	removed, err := store.Remove(ctx, "run-11")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected removal")
	}
	removed, err = store.Remove(ctx, "run-11")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed {
		t.Fatal("expected no-op removal for missing run")
	}

	failedRun := testsupport.NewRun(t, store, "run-12", "quick_post", "")
	failedRun.SetFailed("boom", time.Now().UTC())
	if err := store.Update(ctx, failedRun); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	testsupport.NewRun(t, store, "run-13", "quick_post", "")

	cleared, err := store.ClearFailed(ctx)
	if err != nil {
		t.Fatalf("ClearFailed failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared, got %d", cleared)
	}

	cleared, err = store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 remaining cleared, got %d", cleared)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewRun(t, store, "run-14", "quick_post", "")
	done := testsupport.NewRun(t, store, "run-15", "quick_post", "")
	done.SetCompleted("{}", time.Now().UTC())
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(all))
	}

	completed, err := store.List(ctx, runs.StatusCompleted)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != "run-15" {
		t.Fatalf("unexpected filtered list: %#v", completed)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := runs.ParseStatus(" Running "); !ok || status != runs.StatusRunning {
		t.Fatalf("expected running, got %q ok=%v", status, ok)
	}
	if _, ok := runs.ParseStatus("bogus"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if !runs.IsTerminal(runs.StatusCancelled) {
		t.Fatal("cancelled should be terminal")
	}
	if runs.IsTerminal(runs.StatusRunning) {
		t.Fatal("running should not be terminal")
	}
}
