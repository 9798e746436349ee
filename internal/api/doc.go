// Package api defines wire-format types, converters, and the run submission
// service shared by the IPC layer and the CLI. It translates internal run
// models into transport-friendly DTOs so consumers render state without
// coupling to storage types.
//
// # Key Types
//
// Run: transport representation of a workflow run with progress, attempt
// count, and raw input/output documents.
//
// RunDetail: a run plus the latest result per stage.
//
// WorkflowStatus: worker pool state, run stats, stage health, and last run.
//
// TemplateInfo: a registered template's stage sequence and gate placement.
//
// # Converters
//
// FromRun: runs.Run -> Run with RFC3339 timestamps and raw JSON passthrough.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus.
//
// FromTemplate: template.Template -> TemplateInfo.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (runs.Status, stage.Status)
// are exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
// Input and output documents are passed through as json.RawMessage to avoid
// double-encoding.
//
// RunService.Submit validates the template before any persistence, so an
// unknown template name produces no run row and no events.
package api
