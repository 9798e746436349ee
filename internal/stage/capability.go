package stage

import (
	"context"
	"fmt"
	"strings"
)

// Status classifies a stage result.
type Status string

const (
	// StatusSuccess marks a result whose output is usable downstream.
	StatusSuccess Status = "success"
	// StatusWarning marks a usable result produced with recoverable degradation.
	StatusWarning Status = "warning"
	// StatusError marks a non-recoverable stage fault.
	StatusError Status = "error"
)

// ParseStatus normalizes a textual status as reported by external tools.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusSuccess:
		return StatusSuccess, nil
	case StatusWarning:
		return StatusWarning, nil
	case StatusError:
		return StatusError, nil
	default:
		return "", fmt.Errorf("unknown stage status %q", raw)
	}
}

// Usable reports whether downstream stages may consume the result.
func (s Status) Usable() bool {
	return s == StatusSuccess || s == StatusWarning
}

// Input is the wired payload handed to a capability for one execution.
type Input struct {
	RunID    string
	Template string
	Stage    string
	Attempt  int
	Payload  map[string]any
}

// Result is what a capability produced for one execution. Quality is a 0-100
// score; stages that do not self-assess leave it at zero and are only
// meaningful as checkpoints when they do.
type Result struct {
	Output  map[string]any
	Quality float64
	Status  Status
	Message string
}

// Capability executes one pipeline stage.
type Capability interface {
	// ID returns the stage identifier used in template sequences.
	ID() string
	// Execute produces the stage result for the wired input. A returned error
	// or an error-status result both terminate the run.
	Execute(ctx context.Context, input Input) (*Result, error)
	// HealthCheck reports whether the capability can execute right now.
	HealthCheck(ctx context.Context) Health
}
