package api_test

import (
	"testing"
	"time"

	"inkwell/internal/api"
	"inkwell/internal/runs"
	"inkwell/internal/stage"
	"inkwell/internal/workflow"
)

func TestFromRunFormatsTimestampsAndPassthrough(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	run := &runs.Run{
		ID:              "run-1",
		Template:        "quick_post",
		Status:          runs.StatusRunning,
		InputJSON:       `{"topic":"go"}`,
		StageIndex:      1,
		CurrentStage:    "write",
		Attempt:         2,
		ProgressStage:   "Write",
		ProgressPercent: 33.4,
		ProgressMessage: "Write started",
		CreatedAt:       started,
		UpdatedAt:       started,
		StartedAt:       &started,
	}

	dto := api.FromRun(run)
	if dto.StartedAt != "2026-03-14T09:26:53.589Z" {
		t.Fatalf("unexpected started timestamp %q", dto.StartedAt)
	}
	if dto.FinishedAt != "" {
		t.Fatalf("expected empty finished timestamp, got %q", dto.FinishedAt)
	}
	if string(dto.Input) != `{"topic":"go"}` {
		t.Fatalf("expected raw input passthrough, got %s", dto.Input)
	}
	if dto.Output != nil {
		t.Fatalf("expected no output for unfinished run, got %s", dto.Output)
	}
	if dto.Progress.Stage != "Write" || dto.Progress.Percent != 33.4 {
		t.Fatalf("unexpected progress %+v", dto.Progress)
	}
}

func TestFromStatusSummary(t *testing.T) {
	lastRun := &runs.Run{ID: "run-9", Template: "quick_post", Status: runs.StatusCompleted}
	summary := workflow.StatusSummary{
		Running:    true,
		Workers:    4,
		ActiveRuns: []string{"run-1", "run-2"},
		LastError:  "claim next run: disk I/O error",
		LastRun:    lastRun,
		RunStats:   map[runs.Status]int{runs.StatusCompleted: 3, runs.StatusPending: 1},
		StageHealth: []stage.Health{
			{Name: "research", Ready: true},
			{Name: "write", Ready: false, Detail: "binary \"write-tool\" not found"},
		},
	}

	dto := api.FromStatusSummary(summary)
	if !dto.Running || dto.Workers != 4 {
		t.Fatalf("unexpected status %+v", dto)
	}
	if len(dto.ActiveRuns) != 2 || dto.ActiveRuns[0] != "run-1" {
		t.Fatalf("unexpected active runs %v", dto.ActiveRuns)
	}
	if dto.RunStats["completed"] != 3 || dto.RunStats["pending"] != 1 {
		t.Fatalf("unexpected run stats %v", dto.RunStats)
	}
	if dto.LastRun == nil || dto.LastRun.ID != "run-9" {
		t.Fatalf("expected last run conversion, got %+v", dto.LastRun)
	}
	if len(dto.StageHealth) != 2 || dto.StageHealth[1].Detail == "" {
		t.Fatalf("unexpected stage health %v", dto.StageHealth)
	}
}
