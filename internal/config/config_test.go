package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inkwell/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("expected default workers 4, got %d", cfg.Workflow.Workers)
	}
	if cfg.Gate.MinQuality != 60 || cfg.Gate.MaxAttempts != 3 {
		t.Fatalf("unexpected gate defaults: %+v", cfg.Gate)
	}
	if _, ok := cfg.Stages["humanize"]; !ok {
		t.Fatal("expected builtin stage entries to be seeded")
	}
}

func TestLoadParsesSections(t *testing.T) {
	base := t.TempDir()
	path := writeConfig(t, `
[paths]
state_dir = "`+filepath.Join(base, "state")+`"
log_dir = "`+filepath.Join(base, "logs")+`"

[workflow]
workers = 2
stage_timeout = 120

[gate]
min_quality = 75
max_attempts = 5

[stages.research]
command = "fake-research"
timeout = 30

[[templates]]
name = "research_only"
stages = ["research"]
checkpoint = "research"
regeneration_start = "research"
`)
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Workflow.Workers != 2 {
		t.Fatalf("expected workers 2, got %d", cfg.Workflow.Workers)
	}
	if cfg.Gate.MinQuality != 75 || cfg.Gate.MaxAttempts != 5 {
		t.Fatalf("unexpected gate: %+v", cfg.Gate)
	}
	research := cfg.Stages["research"]
	if research.Command != "fake-research" {
		t.Fatalf("expected research command, got %q", research.Command)
	}
	if got := cfg.StageTimeoutFor("research"); got != 30*time.Second {
		t.Fatalf("expected stage override timeout, got %v", got)
	}
	if got := cfg.StageTimeoutFor("write"); got != 120*time.Second {
		t.Fatalf("expected workflow fallback timeout, got %v", got)
	}
	if len(cfg.Templates) != 1 || cfg.Templates[0].Name != "research_only" {
		t.Fatalf("unexpected templates: %+v", cfg.Templates)
	}
}

func TestLoadRejectsUnknownTemplateStage(t *testing.T) {
	path := writeConfig(t, `
[[templates]]
name = "broken"
stages = ["research", "mystery"]
checkpoint = "research"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown stage reference")
	} else if !strings.Contains(err.Error(), "mystery") {
		t.Fatalf("expected stage name in error, got %v", err)
	}
}

func TestLoadRejectsCheckpointOutsideSequence(t *testing.T) {
	path := writeConfig(t, `
[[templates]]
name = "broken"
stages = ["research", "write"]
checkpoint = "humanize"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for checkpoint outside sequence")
	}
}

func TestLoadRejectsRegenerationAfterCheckpoint(t *testing.T) {
	path := writeConfig(t, `
[[templates]]
name = "broken"
stages = ["research", "write", "humanize"]
checkpoint = "write"
regeneration_start = "humanize"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for regeneration start after checkpoint")
	}
}

func TestLoadRejectsDuplicateTemplates(t *testing.T) {
	path := writeConfig(t, `
[[templates]]
name = "dup"
stages = ["research"]

[[templates]]
name = "dup"
stages = ["write"]
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for duplicate template names")
	}
}

func TestLoadRejectsDisabledStageReference(t *testing.T) {
	path := writeConfig(t, `
[stages.research]
enabled = false

[[templates]]
name = "needs_research"
stages = ["research"]
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for disabled stage reference")
	}
}

func TestLoadRejectsBadGate(t *testing.T) {
	path := writeConfig(t, `
[gate]
min_quality = 150
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for min_quality above 100")
	}
}

func TestHeartbeatTimeoutMustExceedInterval(t *testing.T) {
	path := writeConfig(t, `
[workflow]
heartbeat_interval = 30
heartbeat_timeout = 30
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for heartbeat timeout <= interval")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load of sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Gate.MaxAttempts != 3 {
		t.Fatalf("sample should keep defaults, got %+v", cfg.Gate)
	}
}

func TestSocketPathUnderLogDir(t *testing.T) {
	cfg := config.Default()
	if err := (&cfg).Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	base := t.TempDir()
	cfg.Paths.LogDir = base
	want := filepath.Join(base, "inkwell.sock")
	if got := cfg.SocketPath(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
