package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/api"
	"inkwell/internal/runs"
	"inkwell/internal/services"
	"inkwell/internal/template"
	"inkwell/internal/testsupport"
)

type cancelRecorder struct {
	ids []string
	err error
}

func (c *cancelRecorder) Cancel(_ context.Context, runID string) error {
	c.ids = append(c.ids, runID)
	return c.err
}

func newService(t *testing.T) (*api.RunService, *runs.Store, *cancelRecorder) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registry, err := template.FromConfig(cfg)
	if err != nil {
		t.Fatalf("template.FromConfig: %v", err)
	}
	recorder := &cancelRecorder{}
	return api.NewRunService(store, registry, recorder, nil), store, recorder
}

func TestSubmitCreatesPendingRun(t *testing.T) {
	service, store, _ := newService(t)
	ctx := context.Background()

	dto, err := service.Submit(ctx, "quick_post", map[string]any{"topic": "go testing"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if dto.Status != string(runs.StatusPending) {
		t.Fatalf("expected pending status, got %q", dto.Status)
	}
	if dto.Template != "quick_post" {
		t.Fatalf("unexpected template %q", dto.Template)
	}
	if _, err := uuid.Parse(dto.ID); err != nil {
		t.Fatalf("expected uuid run id, got %q: %v", dto.ID, err)
	}

	stored, err := store.GetByID(ctx, dto.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored == nil {
		t.Fatal("expected run row to exist")
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(stored.InputJSON), &input); err != nil {
		t.Fatalf("decode stored input: %v", err)
	}
	if input["topic"] != "go testing" {
		t.Fatalf("unexpected stored input %v", input)
	}
}

func TestSubmitUnknownTemplateLeavesNoTrace(t *testing.T) {
	service, store, _ := newService(t)
	ctx := context.Background()

	_, err := service.Submit(ctx, "mystery", map[string]any{"topic": "x"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no run rows after rejected submit, got %d", len(records))
	}
}

func TestSubmitRequiresTemplateName(t *testing.T) {
	service, _, _ := newService(t)

	_, err := service.Submit(context.Background(), "  ", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDescribeReturnsRunWithResults(t *testing.T) {
	service, store, _ := newService(t)
	ctx := context.Background()

	run := testsupport.NewRun(t, store, "run-detail", "quick_post", `{"topic":"x"}`)
	result := &runs.StageResult{
		RunID:      run.ID,
		Stage:      "research",
		Attempt:    1,
		Status:     "success",
		Quality:    88,
		OutputJSON: `{"research_data":"notes"}`,
		Duration:   1500 * time.Millisecond,
	}
	if err := store.SaveStageResult(ctx, result); err != nil {
		t.Fatalf("SaveStageResult: %v", err)
	}

	detail, err := service.Describe(ctx, run.ID)
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if detail.Run.ID != run.ID {
		t.Fatalf("unexpected run id %q", detail.Run.ID)
	}
	if len(detail.Results) != 1 {
		t.Fatalf("expected 1 stage result, got %d", len(detail.Results))
	}
	got := detail.Results[0]
	if got.Stage != "research" || got.Quality != 88 || got.DurationMS != 1500 {
		t.Fatalf("unexpected stage result %+v", got)
	}
}

func TestDescribeUnknownRun(t *testing.T) {
	service, _, _ := newService(t)

	_, err := service.Describe(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	service, store, _ := newService(t)
	ctx := context.Background()

	testsupport.NewRun(t, store, "run-a", "quick_post", "{}")
	failed := testsupport.NewRun(t, store, "run-b", "quick_post", "{}")
	failed.SetFailed("stage exploded", time.Now())
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := service.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(all))
	}

	failedOnly, err := service.List(ctx, runs.StatusFailed)
	if err != nil {
		t.Fatalf("List failed filter: %v", err)
	}
	if len(failedOnly) != 1 || failedOnly[0].ID != "run-b" {
		t.Fatalf("unexpected filtered list %+v", failedOnly)
	}
	if failedOnly[0].ErrorMessage != "stage exploded" {
		t.Fatalf("expected error message on DTO, got %q", failedOnly[0].ErrorMessage)
	}

	stats, err := service.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["pending"] != 1 || stats["failed"] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestCancelDelegatesToManager(t *testing.T) {
	service, _, recorder := newService(t)

	if err := service.Cancel(context.Background(), "run-x"); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if len(recorder.ids) != 1 || recorder.ids[0] != "run-x" {
		t.Fatalf("expected cancel delegation, got %v", recorder.ids)
	}
}

func TestCancelWithoutManager(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registry, err := template.FromConfig(cfg)
	if err != nil {
		t.Fatalf("template.FromConfig: %v", err)
	}
	service := api.NewRunService(store, registry, nil, nil)

	if err := service.Cancel(context.Background(), "run-x"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTemplatesListing(t *testing.T) {
	service, _, _ := newService(t)

	infos := service.Templates()
	byName := make(map[string]api.TemplateInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}

	quick, ok := byName["quick_post"]
	if !ok {
		t.Fatalf("expected quick_post in listing, got %v", byName)
	}
	if len(quick.Stages) != 3 || quick.Stages[0] != "research" || quick.Stages[2] != "humanize" {
		t.Fatalf("unexpected quick_post stages %v", quick.Stages)
	}
	if quick.Checkpoint != "humanize" || quick.RegenerationStart != "write" {
		t.Fatalf("unexpected quick_post gate placement %+v", quick)
	}
	if quick.MaxAttempts != 3 {
		t.Fatalf("expected max attempts 3, got %d", quick.MaxAttempts)
	}
	if _, ok := byName["full_content_creation"]; !ok {
		t.Fatal("expected full_content_creation in listing")
	}
}
