package deps

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"inkwell/internal/config"
)

// Requirement defines an external tool binary a stage relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// FromStages derives binary requirements from the configured stage entries,
// sorted by stage identifier. Disabled stages are skipped. Stages without a
// command are reported as optional: they register so templates resolve, but
// only matter once work is routed through them.
func FromStages(stages map[string]config.Stage) []Requirement {
	ids := make([]string, 0, len(stages))
	for id := range stages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	requirements := make([]Requirement, 0, len(ids))
	for _, id := range ids {
		entry := stages[id]
		if !entry.IsEnabled() {
			continue
		}
		requirements = append(requirements, Requirement{
			Name:        id,
			Command:     entry.Command,
			Description: fmt.Sprintf("Tool for the %s stage", id),
			Optional:    strings.TrimSpace(entry.Command) == "",
		})
	}
	return requirements
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
