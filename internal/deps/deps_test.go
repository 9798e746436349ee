package deps

import (
	"os"
	"path/filepath"
	"testing"

	"inkwell/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestCheckBinariesUnconfiguredCommand(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "write", Optional: true}})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Available {
		t.Fatal("expected unconfigured command to be unavailable")
	}
	if results[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail: %s", results[0].Detail)
	}
	if !results[0].Optional {
		t.Fatal("expected optional flag to carry through")
	}
}

func TestFromStages(t *testing.T) {
	disabled := false
	stages := map[string]config.Stage{
		"write":    {Command: "write-tool"},
		"research": {},
		"edit":     {Command: "edit-tool", Enabled: &disabled},
	}

	reqs := FromStages(stages)
	if len(reqs) != 2 {
		t.Fatalf("expected disabled stage to be skipped, got %d requirements", len(reqs))
	}

	if reqs[0].Name != "research" || reqs[1].Name != "write" {
		t.Fatalf("expected sorted stage order, got %q then %q", reqs[0].Name, reqs[1].Name)
	}

	if !reqs[0].Optional {
		t.Fatal("expected stage without a command to be optional")
	}
	if reqs[1].Optional {
		t.Fatal("expected stage with a command to be required")
	}
	if reqs[1].Command != "write-tool" {
		t.Fatalf("unexpected command recorded: %s", reqs[1].Command)
	}
	if reqs[0].Description == "" {
		t.Fatal("expected a description for the requirement")
	}
}

func TestFromStagesFeedsCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "writer")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	stages := map[string]config.Stage{
		"write":   {Command: present},
		"seo":     {Command: "no-such-seo-tool"},
		"publish": {},
	}

	results := CheckBinaries(FromStages(stages))
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	byName := make(map[string]Status, len(results))
	for _, status := range results {
		byName[status.Name] = status
	}

	if !byName["write"].Available {
		t.Fatalf("expected write tool to be available: %s", byName["write"].Detail)
	}
	if byName["seo"].Available {
		t.Fatal("expected missing seo tool to be unavailable")
	}
	if byName["seo"].Optional {
		t.Fatal("expected configured seo tool to be required")
	}
	if !byName["publish"].Optional {
		t.Fatal("expected unconfigured publish tool to be optional")
	}
}
