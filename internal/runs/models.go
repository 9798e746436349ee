package runs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a workflow run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// InterruptedReason is the failure reason set when running rows are found at
// daemon startup. Stage side effects are not known to be idempotent, so the
// runs are failed rather than re-executed.
const InterruptedReason = "interrupted by daemon restart"

// CancelRequestedReason is the terminal reason recorded for user cancellation.
const CancelRequestedReason = "cancelled by request"

// StaleHeartbeatReason is the failure reason set when a running row's
// heartbeat expires, meaning its worker died without reporting back.
const StaleHeartbeatReason = "worker heartbeat expired"

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the run lifecycle.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// Run represents a workflow run persisted in SQLite.
type Run struct {
	ID              string
	Template        string
	Status          Status
	InputJSON       string
	OutputJSON      string
	StageIndex      int
	CurrentStage    string
	Attempt         int
	ErrorMessage    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
	LastHeartbeat   *time.Time
}

// IsTerminal reports whether the run has reached a terminal status.
func (r Run) IsTerminal() bool {
	return IsTerminal(r.Status)
}

// SetProgress updates all three progress fields together.
func (r *Run) SetProgress(stage, message string, percent float64) {
	r.ProgressStage = stage
	r.ProgressMessage = message
	r.ProgressPercent = percent
}

// SetRunning marks the run as claimed by a worker.
func (r *Run) SetRunning(now time.Time) {
	r.Status = StatusRunning
	if r.StartedAt == nil {
		started := now.UTC()
		r.StartedAt = &started
	}
	heartbeat := now.UTC()
	r.LastHeartbeat = &heartbeat
}

// SetCompleted marks the run as successfully finished with its final output.
func (r *Run) SetCompleted(outputJSON string, now time.Time) {
	r.Status = StatusCompleted
	r.OutputJSON = outputJSON
	r.ErrorMessage = ""
	r.LastHeartbeat = nil
	finished := now.UTC()
	r.FinishedAt = &finished
	r.SetProgress("Completed", "workflow finished", 100)
}

// SetFailed marks the run as failed with the given reason.
func (r *Run) SetFailed(reason string, now time.Time) {
	r.Status = StatusFailed
	r.ErrorMessage = reason
	r.LastHeartbeat = nil
	finished := now.UTC()
	r.FinishedAt = &finished
	r.SetProgress("Failed", reason, 0)
}

// SetCancelled marks the run as cancelled with the given reason.
func (r *Run) SetCancelled(reason string, now time.Time) {
	r.Status = StatusCancelled
	r.ErrorMessage = reason
	r.LastHeartbeat = nil
	finished := now.UTC()
	r.FinishedAt = &finished
	r.SetProgress("Cancelled", reason, 0)
}

// StageResult records the outcome of one stage execution within a run. A
// regeneration cycle appends a new row with a higher attempt; the latest row
// per stage supersedes earlier ones.
type StageResult struct {
	ID           int64
	RunID        string
	Stage        string
	Attempt      int
	Status       string
	Quality      float64
	OutputJSON   string
	ErrorMessage string
	Duration     time.Duration
	CreatedAt    time.Time
}

// Snapshot is a consistent read-only view of a run and the latest result per
// stage, loaded in a single transaction.
type Snapshot struct {
	Run     Run
	Results []StageResult
}

// HealthSummary describes aggregated run counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
}

// DatabaseHealth captures diagnostic information about the run database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalRuns        int
	Error            string
}
