package ipc

import (
	"inkwell/internal/api"
	"inkwell/internal/events"
)

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// Run mirrors the API run DTO for IPC callers.
type Run = api.Run

// RunDetail mirrors the API run detail DTO for IPC callers.
type RunDetail = api.RunDetail

// StageHealth describes readiness of a workflow stage.
type StageHealth = api.StageHealth

// TemplateInfo describes a registered workflow template.
type TemplateInfo = api.TemplateInfo

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse = api.DaemonStatus

// Event is one entry from the daemon's ordered event stream.
type Event = events.Event

// RunSubmitRequest creates a new run for a template.
type RunSubmitRequest struct {
	Template string         `json:"template"`
	Input    map[string]any `json:"input"`
}

// RunSubmitResponse carries the created run.
type RunSubmitResponse struct {
	Run Run `json:"run"`
}

// RunListRequest filters run listing by status.
type RunListRequest struct {
	Statuses []string `json:"statuses"`
}

// RunListResponse contains run entries.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// RunDescribeRequest fetches a single run by id.
type RunDescribeRequest struct {
	ID string `json:"id"`
}

// RunDescribeResponse contains a run with its stage results.
type RunDescribeResponse struct {
	Detail RunDetail `json:"detail"`
}

// RunCancelRequest requests cancellation of a run.
type RunCancelRequest struct {
	ID string `json:"id"`
}

// RunCancelResponse indicates the cancellation was accepted.
type RunCancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// RunClearRequest removes all terminal runs.
type RunClearRequest struct{}

// RunClearResponse reports number of removed runs.
type RunClearResponse struct {
	Removed int64 `json:"removed"`
}

// RunClearCompletedRequest removes completed runs.
type RunClearCompletedRequest struct{}

// RunClearCompletedResponse reports number of removed runs.
type RunClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// RunClearFailedRequest removes failed runs.
type RunClearFailedRequest struct{}

// RunClearFailedResponse reports number of removed runs.
type RunClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// TemplatesRequest lists the registered templates.
type TemplatesRequest struct{}

// TemplatesResponse contains template descriptions.
type TemplatesResponse struct {
	Templates []TemplateInfo `json:"templates"`
}

// EventsRequest fetches events based on sequence cursor and follow semantics.
// A negative Since returns the most recent Limit events instead.
type EventsRequest struct {
	Since      int64 `json:"since"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// EventsResponse returns events and the cursor for the next call.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// RunHealthRequest fetches aggregate diagnostics.
type RunHealthRequest struct{}

// RunHealthResponse reports run health information.
type RunHealthResponse struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalRuns        int      `json:"total_runs"`
	Error            string   `json:"error"`
}
