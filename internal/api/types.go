package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Run describes a workflow run in a transport-friendly format.
type Run struct {
	ID           string          `json:"id"`
	Template     string          `json:"template"`
	Status       string          `json:"status"`
	Progress     RunProgress     `json:"progress"`
	CurrentStage string          `json:"currentStage,omitempty"`
	Attempt      int             `json:"attempt"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
	StartedAt    string          `json:"startedAt,omitempty"`
	FinishedAt   string          `json:"finishedAt,omitempty"`
}

// RunProgress captures stage progress information for a run.
type RunProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// StageResult describes one recorded stage execution.
type StageResult struct {
	Stage        string          `json:"stage"`
	Attempt      int             `json:"attempt"`
	Status       string          `json:"status"`
	Quality      float64         `json:"quality"`
	Output       json.RawMessage `json:"output,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	DurationMS   int64           `json:"durationMs"`
	CreatedAt    string          `json:"createdAt,omitempty"`
}

// RunDetail combines a run with the latest result per stage.
type RunDetail struct {
	Run     Run           `json:"run"`
	Results []StageResult `json:"results"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Workers     int            `json:"workers"`
	ActiveRuns  []string       `json:"activeRuns,omitempty"`
	RunStats    map[string]int `json:"runStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastRun     *Run           `json:"lastRun,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for stage capabilities.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// TemplateInfo describes a registered workflow template.
type TemplateInfo struct {
	Name              string   `json:"name"`
	Stages            []string `json:"stages"`
	Checkpoint        string   `json:"checkpoint,omitempty"`
	RegenerationStart string   `json:"regenerationStart,omitempty"`
	FeedbackKey       string   `json:"feedbackKey,omitempty"`
	MinQuality        float64  `json:"minQuality"`
	MaxAttempts       int      `json:"maxAttempts"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	RunDBPath    string         `json:"runDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
}
