package template

import (
	"sort"

	"inkwell/internal/config"
	"inkwell/internal/gate"
)

// ThresholdDefaults snapshots the gate config section into threshold values.
func ThresholdDefaults(cfg *config.Config) gate.Thresholds {
	if cfg == nil {
		return gate.Thresholds{}
	}
	return gate.Thresholds{
		MinQuality:         cfg.Gate.MinQuality,
		MaxAttempts:        cfg.Gate.MaxAttempts,
		SubScoreFloor:      cfg.Gate.SubScoreFloor,
		LengthTolerancePct: cfg.Gate.LengthTolerancePct,
	}
}

// FromConfig builds the sealed registry: configured templates first, then any
// built-in whose name the configuration did not claim.
func FromConfig(cfg *config.Config) (*Registry, error) {
	defaults := ThresholdDefaults(cfg)
	registry := NewRegistry()

	if cfg != nil {
		for _, declared := range cfg.Templates {
			tpl := fromConfigTemplate(cfg, declared, defaults)
			if err := registry.Register(tpl); err != nil {
				return nil, err
			}
		}
	}

	for _, builtin := range Builtins(cfg, defaults) {
		if registry.Has(builtin.Name) {
			continue
		}
		if err := registry.Register(builtin); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func fromConfigTemplate(cfg *config.Config, declared config.Template, defaults gate.Thresholds) Template {
	descriptors := make([]Descriptor, len(declared.Stages))
	for i, id := range declared.Stages {
		descriptors[i] = DescriptorFor(cfg, id)
	}

	thresholds := defaults
	if declared.MinQuality > 0 {
		thresholds.MinQuality = declared.MinQuality
	}
	if declared.MaxAttempts > 0 {
		thresholds.MaxAttempts = declared.MaxAttempts
	}

	return Template{
		Name:              declared.Name,
		Stages:            descriptors,
		Wiring:            wiringBindings(declared.Wiring),
		Checkpoint:        declared.Checkpoint,
		RegenerationStart: declared.RegenerationStart,
		Thresholds:        thresholds,
		FeedbackKey:       declared.FeedbackKey,
	}
}

// wiringBindings converts the config map into deterministic binding order so
// validation errors are stable run to run.
func wiringBindings(wiring map[string]string) []Binding {
	if len(wiring) == 0 {
		return nil
	}
	targets := make([]string, 0, len(wiring))
	for target := range wiring {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	bindings := make([]Binding, 0, len(targets))
	for _, target := range targets {
		stageID, key, ok := SplitRef(target)
		if !ok {
			// Malformed targets are rejected by config validation; an empty
			// stage here surfaces as an unknown-stage error from Validate.
			stageID, key = target, ""
		}
		bindings = append(bindings, Binding{Stage: stageID, Key: key, Source: wiring[target]})
	}
	return bindings
}
