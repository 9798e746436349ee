package events

import "time"

// Type names a progress event kind.
type Type string

const (
	// TypeStageStarted fires immediately before a capability executes.
	TypeStageStarted Type = "stage-started"
	// TypeStageCompleted fires after a capability returns, success or not.
	TypeStageCompleted Type = "stage-completed"
	// TypeGateDecision fires for every checkpoint evaluation.
	TypeGateDecision Type = "gate-decision"
	// TypeRunTerminal fires exactly once when a run reaches a terminal status.
	TypeRunTerminal Type = "run-terminal"
)

// Event is one entry in the per-process progress stream. Sequence numbers are
// assigned by the bus and increase monotonically.
type Event struct {
	Sequence   uint64    `json:"seq"`
	Timestamp  time.Time `json:"ts"`
	Type       Type      `json:"type"`
	RunID      string    `json:"run_id"`
	Template   string    `json:"template,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Attempt    int       `json:"attempt,omitempty"`
	Status     string    `json:"status,omitempty"`
	Quality    float64   `json:"quality,omitempty"`
	Verdict    string    `json:"verdict,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
}

// StageStarted builds the event published before a stage executes.
func StageStarted(runID, template, stageID string, attempt int) Event {
	return Event{
		Type:     TypeStageStarted,
		RunID:    runID,
		Template: template,
		Stage:    stageID,
		Attempt:  attempt,
	}
}

// StageCompleted builds the event published after a stage finishes.
func StageCompleted(runID, template, stageID string, attempt int, status string, quality float64, duration time.Duration) Event {
	return Event{
		Type:       TypeStageCompleted,
		RunID:      runID,
		Template:   template,
		Stage:      stageID,
		Attempt:    attempt,
		Status:     status,
		Quality:    quality,
		DurationMS: duration.Milliseconds(),
	}
}

// GateDecision builds the event published for a checkpoint evaluation.
func GateDecision(runID, template, stageID string, attempt int, verdict, reason string, quality float64) Event {
	return Event{
		Type:     TypeGateDecision,
		RunID:    runID,
		Template: template,
		Stage:    stageID,
		Attempt:  attempt,
		Verdict:  verdict,
		Reason:   reason,
		Quality:  quality,
	}
}

// RunTerminal builds the event published when a run reaches a terminal status.
func RunTerminal(runID, template, status, reason string) Event {
	return Event{
		Type:     TypeRunTerminal,
		RunID:    runID,
		Template: template,
		Status:   status,
		Reason:   reason,
	}
}
