package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeGate()
	c.normalizeStages()
	c.normalizeTemplates()
	c.normalizeLogging()
	c.normalizeEvents()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.PollInterval <= 0 {
		c.Workflow.PollInterval = defaultPollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.StageTimeout <= 0 {
		c.Workflow.StageTimeout = defaultStageTimeout
	}
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
}

func (c *Config) normalizeGate() {
	if c.Gate.MinQuality <= 0 {
		c.Gate.MinQuality = defaultMinQuality
	}
	if c.Gate.MaxAttempts <= 0 {
		c.Gate.MaxAttempts = defaultMaxAttempts
	}
	if c.Gate.SubScoreFloor < 0 {
		c.Gate.SubScoreFloor = 0
	}
	if c.Gate.LengthTolerancePct < 0 {
		c.Gate.LengthTolerancePct = 0
	}
}

func (c *Config) normalizeStages() {
	if c.Stages == nil {
		c.Stages = make(map[string]Stage)
	}
	normalized := make(map[string]Stage, len(c.Stages))
	for id, stage := range c.Stages {
		key := strings.ToLower(strings.TrimSpace(id))
		if key == "" {
			continue
		}
		stage.Command = strings.TrimSpace(stage.Command)
		normalized[key] = stage
	}
	for _, id := range BuiltinStageIDs {
		if _, ok := normalized[id]; !ok {
			normalized[id] = Stage{}
		}
	}
	c.Stages = normalized
}

func (c *Config) normalizeTemplates() {
	for i := range c.Templates {
		tmpl := &c.Templates[i]
		tmpl.Name = strings.ToLower(strings.TrimSpace(tmpl.Name))
		tmpl.Checkpoint = strings.ToLower(strings.TrimSpace(tmpl.Checkpoint))
		tmpl.RegenerationStart = strings.ToLower(strings.TrimSpace(tmpl.RegenerationStart))
		tmpl.FeedbackKey = strings.TrimSpace(tmpl.FeedbackKey)
		stages := make([]string, 0, len(tmpl.Stages))
		for _, stage := range tmpl.Stages {
			normalized := strings.ToLower(strings.TrimSpace(stage))
			if normalized != "" {
				stages = append(stages, normalized)
			}
		}
		tmpl.Stages = stages
		if len(tmpl.Wiring) > 0 {
			wiring := make(map[string]string, len(tmpl.Wiring))
			for target, source := range tmpl.Wiring {
				target = strings.ToLower(strings.TrimSpace(target))
				source = strings.ToLower(strings.TrimSpace(source))
				if target != "" && source != "" {
					wiring[target] = source
				}
			}
			tmpl.Wiring = wiring
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeEvents() {
	if c.Events.BufferSize <= 0 {
		c.Events.BufferSize = defaultEventBufferSize
	}
}
