// Package tool adapts external executables into pipeline stage capabilities.
//
// A tool receives the wired stage input as a JSON document on stdin and
// reports its result as a JSON document on stdout:
//
//	{"status":"success","quality":82.5,"output":{"content":"..."},"message":""}
//
// Stdout carries only the result document; anything a tool wants logged
// belongs on stderr, which is surfaced when the tool exits non-zero.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/services"
	"inkwell/internal/stage"
)

// waitDelay bounds how long Run waits for pipe teardown after the process
// exits or is killed, so a tool that leaves grandchildren holding stdout
// cannot stall the worker.
const waitDelay = 5 * time.Second

// Capability executes one configured external program per stage invocation.
type Capability struct {
	id         string
	command    string
	args       []string
	outputKeys []string
	logger     *slog.Logger
}

// New builds a capability for the given stage identifier from its config
// entry. A capability without a command still registers so templates resolve,
// but reports unhealthy and fails any execution attempt.
func New(id string, cfg config.Stage, logger *slog.Logger) *Capability {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Capability{
		id:         strings.TrimSpace(id),
		command:    strings.TrimSpace(cfg.Command),
		args:       append([]string(nil), cfg.Args...),
		outputKeys: append([]string(nil), cfg.OutputKeys...),
		logger:     logging.NewComponentLogger(logger, "tool"),
	}
}

// ID returns the stage identifier this capability serves.
func (c *Capability) ID() string {
	return c.id
}

type toolRequest struct {
	RunID    string         `json:"run_id"`
	Template string         `json:"template"`
	Stage    string         `json:"stage"`
	Attempt  int            `json:"attempt"`
	Payload  map[string]any `json:"payload"`
}

type toolResponse struct {
	Status  string         `json:"status"`
	Quality float64        `json:"quality"`
	Output  map[string]any `json:"output"`
	Message string         `json:"message"`
}

// Execute runs the configured program, feeding it the stage input on stdin
// and decoding the result it prints on stdout.
func (c *Capability) Execute(ctx context.Context, input stage.Input) (*stage.Result, error) {
	if c.command == "" {
		return nil, services.WithHint(
			services.Wrap(services.ErrConfiguration, c.id, "execute", "no tool command configured", nil),
			fmt.Sprintf("set command under [stages.%s] in the config file", c.id),
		)
	}

	encoded, err := json.Marshal(toolRequest{
		RunID:    input.RunID,
		Template: input.Template,
		Stage:    input.Stage,
		Attempt:  input.Attempt,
		Payload:  input.Payload,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrStageExecution, c.id, "encode", "marshal tool input", err)
	}

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Stdin = bytes.NewReader(encoded)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	started := time.Now()
	runErr := cmd.Run()
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, c.wrapRunFailure(runErr, &stdout, &stderr)
	}

	logging.WithContext(ctx, c.logger).Debug(
		"tool completed",
		logging.String("command", c.command),
		logging.Duration("tool_duration", time.Since(started)),
	)

	return c.decodeResult(stdout.Bytes())
}

func (c *Capability) wrapRunFailure(runErr error, stdout, stderr *bytes.Buffer) error {
	detail := firstLine(stderr.String())
	if detail == "" {
		detail = firstLine(stdout.String())
	}
	message := fmt.Sprintf("tool %s failed", c.command)
	if detail != "" {
		message = fmt.Sprintf("tool %s failed: %s", c.command, detail)
	}
	wrapped := services.Wrap(services.ErrStageExecution, c.id, "execute", message, runErr)
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		wrapped = services.WithCode(wrapped, strconv.Itoa(exitErr.ExitCode()))
	}
	return wrapped
}

func (c *Capability) decodeResult(raw []byte) (*stage.Result, error) {
	var resp toolResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, services.Wrap(services.ErrStageExecution, c.id, "decode", "tool emitted malformed result JSON", err)
	}

	status := stage.StatusSuccess
	if strings.TrimSpace(resp.Status) != "" {
		parsed, err := stage.ParseStatus(resp.Status)
		if err != nil {
			return nil, services.Wrap(services.ErrStageExecution, c.id, "decode", "", err)
		}
		status = parsed
	}

	if resp.Quality < 0 || resp.Quality > 100 {
		return nil, services.Wrap(services.ErrStageExecution, c.id, "decode",
			fmt.Sprintf("tool reported quality %.1f outside the 0-100 range", resp.Quality), nil)
	}

	if status == stage.StatusSuccess && len(c.outputKeys) > 0 {
		if missing := missingKeys(c.outputKeys, resp.Output); len(missing) > 0 {
			return nil, services.Wrap(services.ErrStageExecution, c.id, "decode",
				fmt.Sprintf("tool output missing declared keys: %s", strings.Join(missing, ", ")), nil)
		}
	}

	output := resp.Output
	if output == nil {
		output = map[string]any{}
	}

	return &stage.Result{
		Output:  output,
		Quality: resp.Quality,
		Status:  status,
		Message: strings.TrimSpace(resp.Message),
	}, nil
}

// HealthCheck reports whether the configured binary resolves. Commands with a
// path separator are checked directly; bare names consult PATH.
func (c *Capability) HealthCheck(_ context.Context) stage.Health {
	if c.command == "" {
		return stage.Unhealthy(c.id, "no tool command configured")
	}
	if _, err := exec.LookPath(c.command); err != nil {
		return stage.Unhealthy(c.id, fmt.Sprintf("binary %q not found", c.command))
	}
	return stage.Healthy(c.id)
}

func missingKeys(declared []string, output map[string]any) []string {
	var missing []string
	for _, key := range declared {
		if _, ok := output[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

func firstLine(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

var _ stage.Capability = (*Capability)(nil)
