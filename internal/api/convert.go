package api

import (
	"encoding/json"
	"time"

	"inkwell/internal/runs"
	"inkwell/internal/template"
	"inkwell/internal/workflow"
)

// FromRun converts a run record to its API representation.
func FromRun(run *runs.Run) Run {
	if run == nil {
		return Run{}
	}

	dto := Run{
		ID:       run.ID,
		Template: run.Template,
		Status:   string(run.Status),
		Progress: RunProgress{
			Stage:   run.ProgressStage,
			Percent: run.ProgressPercent,
			Message: run.ProgressMessage,
		},
		CurrentStage: run.CurrentStage,
		Attempt:      run.Attempt,
		ErrorMessage: run.ErrorMessage,
		CreatedAt:    formatTime(run.CreatedAt),
		UpdatedAt:    formatTime(run.UpdatedAt),
	}
	if run.StartedAt != nil {
		dto.StartedAt = formatTime(*run.StartedAt)
	}
	if run.FinishedAt != nil {
		dto.FinishedAt = formatTime(*run.FinishedAt)
	}
	if run.InputJSON != "" {
		dto.Input = json.RawMessage(run.InputJSON)
	}
	if run.OutputJSON != "" {
		dto.Output = json.RawMessage(run.OutputJSON)
	}
	return dto
}

// FromRuns converts a slice of run records into API DTOs.
func FromRuns(records []*runs.Run) []Run {
	if len(records) == 0 {
		return nil
	}
	out := make([]Run, 0, len(records))
	for _, record := range records {
		out = append(out, FromRun(record))
	}
	return out
}

// FromStageResult converts a stage result record to its API representation.
func FromStageResult(result runs.StageResult) StageResult {
	dto := StageResult{
		Stage:        result.Stage,
		Attempt:      result.Attempt,
		Status:       result.Status,
		Quality:      result.Quality,
		ErrorMessage: result.ErrorMessage,
		DurationMS:   result.Duration.Milliseconds(),
		CreatedAt:    formatTime(result.CreatedAt),
	}
	if result.OutputJSON != "" {
		dto.Output = json.RawMessage(result.OutputJSON)
	}
	return dto
}

// FromSnapshot converts a run snapshot into the detail payload.
func FromSnapshot(snapshot *runs.Snapshot) RunDetail {
	if snapshot == nil {
		return RunDetail{}
	}
	detail := RunDetail{Run: FromRun(&snapshot.Run)}
	for _, result := range snapshot.Results {
		detail.Results = append(detail.Results, FromStageResult(result))
	}
	return detail
}

// FromStatusSummary converts a workflow status summary to an API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	health := make([]StageHealth, 0, len(summary.StageHealth))
	for _, report := range summary.StageHealth {
		health = append(health, StageHealth{
			Name:   report.Name,
			Ready:  report.Ready,
			Detail: report.Detail,
		})
	}

	wf := WorkflowStatus{
		Running:     summary.Running,
		Workers:     summary.Workers,
		ActiveRuns:  append([]string(nil), summary.ActiveRuns...),
		RunStats:    MergeRunStats(summary.RunStats),
		LastError:   summary.LastError,
		StageHealth: health,
	}
	if summary.LastRun != nil {
		last := FromRun(summary.LastRun)
		wf.LastRun = &last
	}
	return wf
}

// FromTemplate converts a template into its listing representation.
func FromTemplate(tpl template.Template) TemplateInfo {
	return TemplateInfo{
		Name:              tpl.Name,
		Stages:            tpl.StageIDs(),
		Checkpoint:        tpl.Checkpoint,
		RegenerationStart: tpl.RegenerationStart,
		FeedbackKey:       tpl.FeedbackKey,
		MinQuality:        tpl.Thresholds.MinQuality,
		MaxAttempts:       tpl.Thresholds.MaxAttempts,
	}
}

// FromTemplates converts templates into listing DTOs, preserving order.
func FromTemplates(templates []template.Template) []TemplateInfo {
	if len(templates) == 0 {
		return nil
	}
	out := make([]TemplateInfo, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, FromTemplate(tpl))
	}
	return out
}

// MergeRunStats flattens run status counts onto string keys.
func MergeRunStats(stats map[runs.Status]int) map[string]int {
	merged := make(map[string]int, len(stats))
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}
