package template

import (
	"fmt"
	"strings"

	"inkwell/internal/gate"
	"inkwell/internal/services"
)

// InputSource is the wiring owner that refers to the run's initial input.
const InputSource = "input"

// Binding routes one input key of a consumer stage from an explicit source
// instead of the default most-recent-producer resolution.
type Binding struct {
	Stage  string
	Key    string
	Source string
}

// SplitRef breaks a "<owner>.<key>" wiring reference into its parts.
func SplitRef(ref string) (owner, key string, ok bool) {
	owner, key, ok = strings.Cut(ref, ".")
	if !ok || owner == "" || key == "" {
		return "", "", false
	}
	return owner, key, true
}

// Template is an immutable ordered stage sequence with its gate placement and
// threshold snapshot source. Copies share backing slices; callers must not
// mutate them.
type Template struct {
	Name              string
	Stages            []Descriptor
	Wiring            []Binding
	Checkpoint        string
	RegenerationStart string
	Thresholds        gate.Thresholds
	FeedbackKey       string
}

// StageIndex returns the ordinal of the stage or -1 when absent.
func (t Template) StageIndex(id string) int {
	for i, descriptor := range t.Stages {
		if descriptor.ID == id {
			return i
		}
	}
	return -1
}

// StageIDs returns the ordered stage identifiers.
func (t Template) StageIDs() []string {
	ids := make([]string, len(t.Stages))
	for i, descriptor := range t.Stages {
		ids[i] = descriptor.ID
	}
	return ids
}

// CheckpointIndex returns the checkpoint ordinal or -1 when the template has
// no gate.
func (t Template) CheckpointIndex() int {
	if t.Checkpoint == "" {
		return -1
	}
	return t.StageIndex(t.Checkpoint)
}

// RegenerationStartIndex returns the rewind target ordinal. Templates with a
// checkpoint but no explicit regeneration start rewind to the checkpoint
// itself.
func (t Template) RegenerationStartIndex() int {
	if t.Checkpoint == "" {
		return -1
	}
	if t.RegenerationStart == "" {
		return t.StageIndex(t.Checkpoint)
	}
	return t.StageIndex(t.RegenerationStart)
}

// BindingsFor returns the explicit bindings declared for one consumer stage.
func (t Template) BindingsFor(stageID string) []Binding {
	var bindings []Binding
	for _, binding := range t.Wiring {
		if binding.Stage == stageID {
			bindings = append(bindings, binding)
		}
	}
	return bindings
}

// Validate checks structural coherence. It does not verify that capabilities
// exist; that belongs to config validation and preflight.
func (t Template) Validate() error {
	fail := func(format string, args ...any) error {
		return services.Wrap(services.ErrConfiguration, "template", "validate",
			fmt.Sprintf("template %q: ", t.Name)+fmt.Sprintf(format, args...), nil)
	}

	if strings.TrimSpace(t.Name) == "" {
		return services.Wrap(services.ErrConfiguration, "template", "validate", "template name must not be empty", nil)
	}
	if len(t.Stages) == 0 {
		return fail("stage sequence must not be empty")
	}

	ordinals := make(map[string]int, len(t.Stages))
	for i, descriptor := range t.Stages {
		if strings.TrimSpace(descriptor.ID) == "" {
			return fail("stage %d has an empty id", i)
		}
		if _, dup := ordinals[descriptor.ID]; dup {
			return fail("stage %q appears more than once", descriptor.ID)
		}
		ordinals[descriptor.ID] = i
	}

	if t.Checkpoint != "" {
		if _, ok := ordinals[t.Checkpoint]; !ok {
			return fail("checkpoint %q is not in the sequence", t.Checkpoint)
		}
	}
	if t.RegenerationStart != "" {
		if t.Checkpoint == "" {
			return fail("regeneration start %q requires a checkpoint", t.RegenerationStart)
		}
		regenIdx, ok := ordinals[t.RegenerationStart]
		if !ok {
			return fail("regeneration start %q is not in the sequence", t.RegenerationStart)
		}
		if regenIdx > ordinals[t.Checkpoint] {
			return fail("regeneration start %q comes after checkpoint %q", t.RegenerationStart, t.Checkpoint)
		}
	}

	for _, binding := range t.Wiring {
		consumerIdx, ok := ordinals[binding.Stage]
		if !ok {
			return fail("wiring targets unknown stage %q", binding.Stage)
		}
		if strings.TrimSpace(binding.Key) == "" {
			return fail("wiring for stage %q has an empty input key", binding.Stage)
		}
		owner, _, ok := SplitRef(binding.Source)
		if !ok {
			return fail("wiring source %q must use <owner>.<key> form", binding.Source)
		}
		if owner == InputSource {
			continue
		}
		producerIdx, ok := ordinals[owner]
		if !ok {
			return fail("wiring source %q references unknown stage %q", binding.Source, owner)
		}
		if producerIdx >= consumerIdx {
			return fail("wiring source %q must come before stage %q", binding.Source, binding.Stage)
		}
	}

	return nil
}
