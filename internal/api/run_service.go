package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"inkwell/internal/logging"
	"inkwell/internal/runs"
	"inkwell/internal/services"
	"inkwell/internal/template"
)

// RunCanceller requests cancellation of a pending or in-flight run.
type RunCanceller interface {
	Cancel(ctx context.Context, runID string) error
}

// RunService implements run submission and queries on top of the run store.
// Submission validates against the template registry before touching storage,
// so a bad template name leaves no trace.
type RunService struct {
	store     *runs.Store
	templates *template.Registry
	canceller RunCanceller
	logger    *slog.Logger
}

// NewRunService constructs a RunService. The canceller is optional; without
// one Cancel reports the workflow manager as unavailable.
func NewRunService(store *runs.Store, templates *template.Registry, canceller RunCanceller, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RunService{
		store:     store,
		templates: templates,
		canceller: canceller,
		logger:    logging.NewComponentLogger(logger, "api"),
	}
}

// Submit validates the template name, persists a pending run with a fresh ID,
// and returns its API representation. Unknown templates fail before any row
// or event is produced.
func (s *RunService) Submit(ctx context.Context, templateName string, input map[string]any) (Run, error) {
	name := strings.TrimSpace(templateName)
	if name == "" {
		return Run{}, services.Wrap(services.ErrValidation, "api", "submit", "template name is required", nil)
	}
	if _, err := s.templates.Resolve(name); err != nil {
		return Run{}, err
	}

	if input == nil {
		input = map[string]any{}
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return Run{}, services.Wrap(services.ErrValidation, "api", "submit", "input payload is not serializable", err)
	}

	id := uuid.NewString()
	run, err := s.store.NewRun(ctx, id, name, string(encoded))
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	s.logger.Info(
		"run submitted",
		logging.String(logging.FieldRunID, run.ID),
		logging.String(logging.FieldTemplate, name),
		logging.String(logging.FieldEventType, "run_submitted"),
	)
	return FromRun(run), nil
}

// Describe returns a run with the latest result per stage.
func (s *RunService) Describe(ctx context.Context, runID string) (*RunDetail, error) {
	snapshot, err := s.store.Snapshot(ctx, runID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "describe",
			fmt.Sprintf("run %q not found", runID), nil)
	}
	detail := FromSnapshot(snapshot)
	return &detail, nil
}

// List returns runs filtered by optional statuses, newest first.
func (s *RunService) List(ctx context.Context, statuses ...runs.Status) ([]Run, error) {
	records, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromRuns(records), nil
}

// Stats returns run counts keyed by status string.
func (s *RunService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeRunStats(stats), nil
}

// Cancel requests cancellation through the workflow manager.
func (s *RunService) Cancel(ctx context.Context, runID string) error {
	if s.canceller == nil {
		return services.Wrap(services.ErrConfiguration, "api", "cancel", "workflow manager unavailable", nil)
	}
	return s.canceller.Cancel(ctx, runID)
}

// Templates lists the registered templates sorted by name.
func (s *RunService) Templates() []TemplateInfo {
	return FromTemplates(s.templates.All())
}
