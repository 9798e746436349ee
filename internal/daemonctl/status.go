package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/api"
	"inkwell/internal/config"
	"inkwell/internal/deps"
	"inkwell/internal/ipc"
	"inkwell/internal/preflight"
	"inkwell/internal/runs"
)

// StatusLine is one labeled entry in a rendered status section. Severity is
// one of ok, warn, error, or info.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// ToolSummary aggregates stage tool readiness.
type ToolSummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missing_required"`
	MissingOptional int    `json:"missing_optional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// StatusSnapshot combines daemon-reported state with locally resolvable
// checks so `inkwell status` renders a full picture whether or not the
// daemon is reachable.
type StatusSnapshot struct {
	Daemon       ipc.StatusResponse `json:"daemon"`
	RunStats     map[string]int     `json:"run_stats"`
	SystemChecks []StatusLine       `json:"system_checks"`
	StoragePaths []StatusLine       `json:"storage_paths"`
	Tools        []deps.Status      `json:"tools"`
	ToolSummary  ToolSummary        `json:"tool_summary"`
}

// BuildStatusSnapshot collects daemon status and applies offline fallbacks
// for run stats. Tool and directory checks always run locally; the daemon
// shares the CLI's config, so the local view matches what the daemon sees.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &StatusSnapshot{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snapshot.Daemon = *resp
		}
	}

	runStats := make(map[string]int, len(snapshot.Daemon.Workflow.RunStats))
	for k, v := range snapshot.Daemon.Workflow.RunStats {
		runStats[k] = v
	}

	if !snapshot.Daemon.Running {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		store, openErr := runs.Open(cfg)
		if openErr == nil {
			stats, statsErr := store.Stats(queryCtx)
			_ = store.Close()
			if statsErr == nil {
				runStats = api.MergeRunStats(stats)
			}
		}
	}

	snapshot.RunStats = runStats
	snapshot.SystemChecks = BuildSystemChecks(snapshot.Daemon)
	snapshot.StoragePaths = BuildStoragePathChecks(cfg)
	snapshot.Tools = preflight.CheckStageTools(cfg)
	snapshot.ToolSummary = BuildToolSummary(snapshot.Tools)
	return snapshot, nil
}

// BuildSystemChecks resolves status lines describing daemon and workflow state.
func BuildSystemChecks(status ipc.StatusResponse) []StatusLine {
	lines := make([]StatusLine, 0, 4)
	if !status.Running {
		lines = append(lines, StatusLine{Label: "Inkwell", Severity: "warn", Detail: "Not running (run `inkwell start`)"})
		return lines
	}

	lines = append(lines, StatusLine{Label: "Inkwell", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", status.PID)})
	if status.Workflow.Running {
		lines = append(lines, StatusLine{Label: "Workflow", Severity: "ok", Detail: fmt.Sprintf("%d workers", status.Workflow.Workers)})
	} else {
		lines = append(lines, StatusLine{Label: "Workflow", Severity: "warn", Detail: "Stopped"})
	}
	if active := len(status.Workflow.ActiveRuns); active > 0 {
		lines = append(lines, StatusLine{Label: "Active Runs", Severity: "ok", Detail: fmt.Sprintf("%d in flight", active)})
	}
	if lastErr := strings.TrimSpace(status.Workflow.LastError); lastErr != "" {
		lines = append(lines, StatusLine{Label: "Last Error", Severity: "warn", Detail: lastErr})
	}
	return lines
}

// BuildStoragePathChecks resolves configured state and log directory readiness.
func BuildStoragePathChecks(cfg *config.Config) []StatusLine {
	if cfg == nil {
		return nil
	}
	lines := make([]StatusLine, 0, 2)
	for _, dir := range []struct {
		label string
		path  string
	}{
		{label: "State directory", path: cfg.Paths.StateDir},
		{label: "Log directory", path: cfg.Paths.LogDir},
	} {
		result := preflight.CheckDirectoryAccess(dir.label, dir.path)
		severity := "error"
		if result.Passed {
			severity = "ok"
		}
		lines = append(lines, StatusLine{
			Label:    dir.label,
			Severity: severity,
			Detail:   result.Detail,
		})
	}
	return lines
}

// BuildToolSummary computes aggregate stage tool readiness.
func BuildToolSummary(tools []deps.Status) ToolSummary {
	if len(tools) == 0 {
		return ToolSummary{
			Severity: "info",
			Detail:   "No stage tools configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, tool := range tools {
		if tool.Available {
			continue
		}
		if tool.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(tools) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(tools), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(tools))
	}

	return ToolSummary{
		Total:           len(tools),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}
