package template

import (
	"strings"

	"inkwell/internal/config"
)

// Descriptor names one stage slot in a template: which capability runs and
// which payload keys it consumes and produces. OutputKeys are enforced on
// success; an empty list disables enforcement for that stage.
type Descriptor struct {
	ID         string
	InputKeys  []string
	OutputKeys []string
}

// builtinDescriptors carries the default key contracts for the stock stages.
// Config [stages.<id>] input_keys/output_keys override them.
var builtinDescriptors = map[string]Descriptor{
	"research": {ID: "research", OutputKeys: []string{"research_data"}},
	"write":    {ID: "write", InputKeys: []string{"topic", "research_data"}, OutputKeys: []string{"title", "content"}},
	"humanize": {ID: "humanize", InputKeys: []string{"title", "content"}, OutputKeys: []string{"title", "content"}},
	"edit":     {ID: "edit", InputKeys: []string{"title", "content"}, OutputKeys: []string{"title", "content"}},
	"seo":      {ID: "seo", InputKeys: []string{"title", "content"}, OutputKeys: []string{"seo_metadata"}},
	"publish":  {ID: "publish", InputKeys: []string{"title", "content", "seo_metadata"}, OutputKeys: []string{"publication"}},
}

// DescriptorFor resolves the descriptor for a stage ID, merging any key
// overrides from configuration over the built-in defaults. Unknown stages get
// an open contract (no declared keys).
func DescriptorFor(cfg *config.Config, id string) Descriptor {
	id = strings.ToLower(strings.TrimSpace(id))
	descriptor := Descriptor{ID: id}
	if builtin, ok := builtinDescriptors[id]; ok {
		descriptor.InputKeys = cloneKeys(builtin.InputKeys)
		descriptor.OutputKeys = cloneKeys(builtin.OutputKeys)
	}
	if cfg != nil {
		if stage, ok := cfg.Stages[id]; ok {
			if len(stage.InputKeys) > 0 {
				descriptor.InputKeys = cloneKeys(stage.InputKeys)
			}
			if len(stage.OutputKeys) > 0 {
				descriptor.OutputKeys = cloneKeys(stage.OutputKeys)
			}
		}
	}
	return descriptor
}

func cloneKeys(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}
