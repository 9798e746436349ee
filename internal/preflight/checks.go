package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"inkwell/internal/config"
	"inkwell/internal/deps"
	"inkwell/internal/template"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckTemplates builds the template registry from configuration and verifies
// every stage a registered template references resolves to an enabled stage
// entry. Declared templates are covered by config validation already; this
// also catches built-ins that reference a stage the config disabled.
func CheckTemplates(cfg *config.Config) Result {
	const name = "Templates"

	registry, err := template.FromConfig(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	var unresolved []string
	for _, tpl := range registry.All() {
		for _, id := range tpl.StageIDs() {
			entry, ok := cfg.Stages[id]
			if !ok {
				unresolved = append(unresolved, fmt.Sprintf("%s (template %s)", id, tpl.Name))
				continue
			}
			if !entry.IsEnabled() {
				unresolved = append(unresolved, fmt.Sprintf("%s disabled (template %s)", id, tpl.Name))
			}
		}
	}
	if len(unresolved) > 0 {
		return Result{Name: name, Detail: "unresolved stages: " + strings.Join(unresolved, ", ")}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d templates registered", len(registry.Names()))}
}

// CheckStageTools reports tool availability for every enabled stage. Both the
// daemon startup log and the CLI status command use this to avoid duplicating
// the requirements list. A missing tool is not fatal at startup; runs that
// reach the stage fail there instead.
func CheckStageTools(cfg *config.Config) []deps.Status {
	if cfg == nil {
		return nil
	}
	return deps.CheckBinaries(deps.FromStages(cfg.Stages))
}
