package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateGate(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validateTemplates(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.stage_timeout":        c.Workflow.StageTimeout,
		"workflow.workers":              c.Workflow.Workers,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateGate() error {
	if c.Gate.MinQuality <= 0 || c.Gate.MinQuality > 100 {
		return errors.New("gate.min_quality must be between 1 and 100")
	}
	if c.Gate.MaxAttempts < 1 {
		return errors.New("gate.max_attempts must be at least 1")
	}
	if c.Gate.SubScoreFloor < 0 || c.Gate.SubScoreFloor > 100 {
		return errors.New("gate.sub_score_floor must be between 0 and 100")
	}
	if c.Gate.LengthTolerancePct < 0 || c.Gate.LengthTolerancePct > 100 {
		return errors.New("gate.length_tolerance_pct must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateStages() error {
	for id, stage := range c.Stages {
		if stage.Timeout < 0 {
			return fmt.Errorf("stages.%s.timeout must be >= 0", id)
		}
	}
	return nil
}

func (c *Config) validateTemplates() error {
	seen := make(map[string]struct{}, len(c.Templates))
	for _, tmpl := range c.Templates {
		if tmpl.Name == "" {
			return errors.New("templates entry is missing a name")
		}
		if _, dup := seen[tmpl.Name]; dup {
			return fmt.Errorf("templates.%s is declared more than once", tmpl.Name)
		}
		seen[tmpl.Name] = struct{}{}

		if len(tmpl.Stages) == 0 {
			return fmt.Errorf("templates.%s must list at least one stage", tmpl.Name)
		}
		members := make(map[string]int, len(tmpl.Stages))
		for i, stageID := range tmpl.Stages {
			if _, dup := members[stageID]; dup {
				return fmt.Errorf("templates.%s lists stage %q more than once", tmpl.Name, stageID)
			}
			members[stageID] = i
			stage, ok := c.Stages[stageID]
			if !ok {
				return fmt.Errorf("templates.%s references unknown stage %q", tmpl.Name, stageID)
			}
			if !stage.IsEnabled() {
				return fmt.Errorf("templates.%s references disabled stage %q", tmpl.Name, stageID)
			}
		}

		if tmpl.Checkpoint != "" {
			if _, ok := members[tmpl.Checkpoint]; !ok {
				return fmt.Errorf("templates.%s checkpoint %q is not in the stage list", tmpl.Name, tmpl.Checkpoint)
			}
		}
		if tmpl.RegenerationStart != "" {
			regenIdx, ok := members[tmpl.RegenerationStart]
			if !ok {
				return fmt.Errorf("templates.%s regeneration_start %q is not in the stage list", tmpl.Name, tmpl.RegenerationStart)
			}
			if tmpl.Checkpoint != "" && regenIdx > members[tmpl.Checkpoint] {
				return fmt.Errorf("templates.%s regeneration_start %q comes after checkpoint %q", tmpl.Name, tmpl.RegenerationStart, tmpl.Checkpoint)
			}
		}
		if tmpl.RegenerationStart != "" && tmpl.Checkpoint == "" {
			return fmt.Errorf("templates.%s sets regeneration_start without a checkpoint", tmpl.Name)
		}

		if tmpl.MinQuality < 0 || tmpl.MinQuality > 100 {
			return fmt.Errorf("templates.%s min_quality must be between 0 and 100", tmpl.Name)
		}
		if tmpl.MaxAttempts < 0 {
			return fmt.Errorf("templates.%s max_attempts must be >= 0", tmpl.Name)
		}

		for target, source := range tmpl.Wiring {
			if !wellFormedWiringRef(target) || !wellFormedWiringRef(source) {
				return fmt.Errorf("templates.%s wiring %q = %q must use <stage>.<key> form", tmpl.Name, target, source)
			}
		}
	}
	return nil
}

// wellFormedWiringRef checks the "<owner>.<key>" shape; membership and
// ordering are validated when the template registry is built.
func wellFormedWiringRef(ref string) bool {
	owner, key, ok := strings.Cut(ref, ".")
	return ok && owner != "" && key != ""
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
