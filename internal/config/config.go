package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Workflow contains configuration for daemon timing and concurrency.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	StageTimeout       int `toml:"stage_timeout"`
	Workers            int `toml:"workers"`
}

// Gate contains the default quality gate thresholds. Templates may override
// min_quality and max_attempts per workflow.
type Gate struct {
	MinQuality         float64 `toml:"min_quality"`
	MaxAttempts        int     `toml:"max_attempts"`
	SubScoreFloor      float64 `toml:"sub_score_floor"`
	LengthTolerancePct float64 `toml:"length_tolerance_pct"`
}

// Stage configures one stage capability. Stages without a command are
// registered but report not-ready health until a tool is configured.
type Stage struct {
	Command    string   `toml:"command"`
	Args       []string `toml:"args"`
	Timeout    int      `toml:"timeout"`
	Enabled    *bool    `toml:"enabled"`
	InputKeys  []string `toml:"input_keys"`
	OutputKeys []string `toml:"output_keys"`
}

// IsEnabled reports whether the stage is available for templates. Stages are
// enabled unless explicitly turned off.
func (s Stage) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Template declares a workflow template in configuration. Declared templates
// take precedence over the built-ins of the same name. Wiring maps
// "<stage>.<input key>" to a source of "input.<key>" or "<stage>.<key>";
// unwired input keys resolve from the most recent producer.
type Template struct {
	Name              string            `toml:"name"`
	Stages            []string          `toml:"stages"`
	Checkpoint        string            `toml:"checkpoint"`
	RegenerationStart string            `toml:"regeneration_start"`
	MinQuality        float64           `toml:"min_quality"`
	MaxAttempts       int               `toml:"max_attempts"`
	FeedbackKey       string            `toml:"feedback_key"`
	Wiring            map[string]string `toml:"wiring"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	RetentionDays  int               `toml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Events contains configuration for the progress event stream.
type Events struct {
	BufferSize int  `toml:"buffer_size"`
	Archive    bool `toml:"archive"`
}

// Config encapsulates all configuration values for inkwell.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - Workflow: worker pool size, polling intervals, timeouts
//   - Gate: default quality thresholds and the regeneration attempt bound
//   - Stages: per-stage tool commands, timeouts, and wiring keys
//   - Templates: declared workflow templates (in addition to built-ins)
//   - Logging: log format, level, retention, per-stage overrides
//   - Events: progress stream buffer and archive settings
type Config struct {
	Paths     Paths            `toml:"paths"`
	Workflow  Workflow         `toml:"workflow"`
	Gate      Gate             `toml:"gate"`
	Stages    map[string]Stage `toml:"stages"`
	Templates []Template       `toml:"templates"`
	Logging   Logging          `toml:"logging"`
	Events    Events           `toml:"events"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/inkwell/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/inkwell/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("inkwell.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the unix socket the daemon control plane listens on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "inkwell.sock")
}

// StageTimeoutFor returns the effective timeout for a stage, falling back to
// the workflow default when the stage does not override it.
func (c *Config) StageTimeoutFor(stageID string) time.Duration {
	if stage, ok := c.Stages[stageID]; ok && stage.Timeout > 0 {
		return time.Duration(stage.Timeout) * time.Second
	}
	return time.Duration(c.Workflow.StageTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
