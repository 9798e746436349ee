package daemonctl

import (
	"os"
	"strings"
	"testing"

	"inkwell/internal/api"
	"inkwell/internal/deps"
	"inkwell/internal/ipc"
)

func TestBuildSystemChecksNotRunning(t *testing.T) {
	lines := BuildSystemChecks(ipc.StatusResponse{})
	if len(lines) != 1 {
		t.Fatalf("expected single line for stopped daemon, got %d", len(lines))
	}
	if lines[0].Label != "Inkwell" || lines[0].Severity != "warn" {
		t.Fatalf("unexpected line: %+v", lines[0])
	}
	if !strings.Contains(lines[0].Detail, "inkwell start") {
		t.Fatalf("expected start hint, got %q", lines[0].Detail)
	}
}

func TestBuildSystemChecksRunning(t *testing.T) {
	status := ipc.StatusResponse{
		Running: true,
		PID:     4242,
		Workflow: api.WorkflowStatus{
			Running:    true,
			Workers:    3,
			ActiveRuns: []string{"run-a", "run-b"},
			LastError:  "stage write: boom",
		},
	}
	lines := BuildSystemChecks(status)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %+v", len(lines), lines)
	}
	if !strings.Contains(lines[0].Detail, "4242") {
		t.Fatalf("expected pid in first line, got %q", lines[0].Detail)
	}
	if lines[1].Label != "Workflow" || !strings.Contains(lines[1].Detail, "3 workers") {
		t.Fatalf("unexpected workflow line: %+v", lines[1])
	}
	if lines[2].Label != "Active Runs" || !strings.Contains(lines[2].Detail, "2 in flight") {
		t.Fatalf("unexpected active runs line: %+v", lines[2])
	}
	if lines[3].Label != "Last Error" || lines[3].Severity != "warn" {
		t.Fatalf("unexpected last error line: %+v", lines[3])
	}
}

func TestBuildToolSummary(t *testing.T) {
	summary := BuildToolSummary(nil)
	if summary.Severity != "info" {
		t.Fatalf("expected info severity for empty tools, got %q", summary.Severity)
	}

	summary = BuildToolSummary([]deps.Status{
		{Name: "research", Available: true},
		{Name: "write", Available: false},
		{Name: "seo", Available: false, Optional: true},
	})
	if summary.Total != 3 || summary.Available != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.MissingRequired != 1 || summary.MissingOptional != 1 {
		t.Fatalf("unexpected missing counts: %+v", summary)
	}
	if summary.Severity != "error" {
		t.Fatalf("expected error severity, got %q", summary.Severity)
	}
	if !strings.Contains(summary.Detail, "1/3 available") {
		t.Fatalf("unexpected detail: %q", summary.Detail)
	}

	summary = BuildToolSummary([]deps.Status{
		{Name: "research", Available: true},
		{Name: "write", Available: true},
	})
	if summary.Severity != "ok" || summary.Detail != "2/2 available" {
		t.Fatalf("unexpected all-available summary: %+v", summary)
	}
}

func TestDeriveLogDir(t *testing.T) {
	if got := deriveLogDir("/var/lib/inkwell/logs/inkwell.lock", "/fallback"); got != "/var/lib/inkwell/logs" {
		t.Fatalf("expected lock path dir, got %q", got)
	}
	if got := deriveLogDir("", "/fallback"); got != "/fallback" {
		t.Fatalf("expected fallback dir, got %q", got)
	}
	if got := deriveLogDir("", "  "); got != "" {
		t.Fatalf("expected empty dir, got %q", got)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	pidPath := dir + "/inkwell.pid"
	if err := os.WriteFile(pidPath, []byte("invalid"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	if _, err := ForceKillProcess(pidPath, "", os.Getpid()); err == nil || !strings.Contains(err.Error(), "refusing to kill current process") {
		t.Fatalf("expected self-kill refusal, got %v", err)
	}
}
