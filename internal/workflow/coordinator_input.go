package workflow

import (
	"encoding/json"
	"maps"
	"strings"

	"inkwell/internal/runs"
	"inkwell/internal/stage"
	"inkwell/internal/template"
)

// TargetLengthKey is the run input key carrying the desired word count for
// the gate's length check.
const TargetLengthKey = "target_length"

// buildStageInput assembles the payload for one stage execution: the initial
// run input as the base, the stage's declared input keys resolved through
// explicit wiring or the most recent prior producer, and the gate feedback
// injected under the template's feedback key during regeneration cycles.
func buildStageInput(run *runs.Run, tpl template.Template, index, cycle int, initial map[string]any, produced map[string]map[string]any, feedback string) stage.Input {
	desc := tpl.Stages[index]
	payload := make(map[string]any, len(initial)+len(desc.InputKeys)+1)
	maps.Copy(payload, initial)

	explicit := tpl.BindingsFor(desc.ID)
	bindings := make(map[string]template.Binding, len(explicit))
	for _, binding := range explicit {
		bindings[binding.Key] = binding
	}

	for _, key := range desc.InputKeys {
		if binding, ok := bindings[key]; ok {
			if value, ok := resolveBinding(binding, initial, produced); ok {
				payload[key] = value
			}
			continue
		}
		if value, ok := latestProduced(tpl, index, key, produced); ok {
			payload[key] = value
		}
	}

	if feedback != "" && tpl.FeedbackKey != "" {
		payload[tpl.FeedbackKey] = feedback
	}

	return stage.Input{
		RunID:    run.ID,
		Template: tpl.Name,
		Stage:    desc.ID,
		Attempt:  cycle,
		Payload:  payload,
	}
}

func resolveBinding(binding template.Binding, initial map[string]any, produced map[string]map[string]any) (any, bool) {
	owner, key, ok := template.SplitRef(binding.Source)
	if !ok {
		return nil, false
	}
	if owner == template.InputSource {
		value, ok := initial[key]
		return value, ok
	}
	outputs, ok := produced[owner]
	if !ok {
		return nil, false
	}
	value, ok := outputs[key]
	return value, ok
}

// latestProduced scans backward from the consumer for the nearest earlier
// stage whose recorded output carries the key.
func latestProduced(tpl template.Template, index int, key string, produced map[string]map[string]any) (any, bool) {
	for j := index - 1; j >= 0; j-- {
		outputs, ok := produced[tpl.Stages[j].ID]
		if !ok {
			continue
		}
		if value, ok := outputs[key]; ok {
			return value, true
		}
	}
	return nil, false
}

func decodeInput(inputJSON string) (map[string]any, error) {
	trimmed := strings.TrimSpace(inputJSON)
	if trimmed == "" {
		return map[string]any{}, nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

func encodeOutput(output map[string]any) string {
	if len(output) == 0 {
		return ""
	}
	data, err := json.Marshal(output)
	if err != nil {
		return ""
	}
	return string(data)
}

func targetWordsFromInput(input map[string]any) int {
	switch v := input[TargetLengthKey].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func stageLabel(id string) string {
	if id == "" {
		return "Stage"
	}
	runes := []rune(id)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}
