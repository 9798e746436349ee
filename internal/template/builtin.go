package template

import (
	"inkwell/internal/config"
	"inkwell/internal/gate"
)

// DefaultFeedbackKey is the payload key built-in templates use to pass gate
// violations back into regeneration cycles.
const DefaultFeedbackKey = "qa_feedback"

// Builtins returns the stock templates. Each one gates on the humanize stage;
// quality review exists to catch machine-sounding copy before it ships.
func Builtins(cfg *config.Config, defaults gate.Thresholds) []Template {
	builtin := func(name string, stageIDs []string, checkpoint, regenStart string) Template {
		descriptors := make([]Descriptor, len(stageIDs))
		for i, id := range stageIDs {
			descriptors[i] = DescriptorFor(cfg, id)
		}
		return Template{
			Name:              name,
			Stages:            descriptors,
			Checkpoint:        checkpoint,
			RegenerationStart: regenStart,
			Thresholds:        defaults,
			FeedbackKey:       DefaultFeedbackKey,
		}
	}

	return []Template{
		builtin("quick_post",
			[]string{"research", "write", "humanize"}, "humanize", "write"),
		builtin("full_content_creation",
			[]string{"research", "write", "humanize", "edit", "seo", "publish"}, "humanize", "write"),
		builtin("content_creation_only",
			[]string{"research", "write", "humanize", "edit"}, "humanize", "write"),
		builtin("humanize_existing",
			[]string{"humanize", "edit", "seo"}, "humanize", "humanize"),
	}
}
