package tool

import (
	"log/slog"
	"sort"

	"inkwell/internal/config"
	"inkwell/internal/stage"
)

// RegisterFromConfig builds a tool capability for every enabled stage entry
// in the config and adds it to the registry. Entries are registered in sorted
// order so startup logs and health listings stay stable.
func RegisterFromConfig(registry *stage.Registry, cfg *config.Config, logger *slog.Logger) error {
	ids := make([]string, 0, len(cfg.Stages))
	for id := range cfg.Stages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := cfg.Stages[id]
		if !entry.IsEnabled() {
			continue
		}
		if err := registry.Register(New(id, entry, logger)); err != nil {
			return err
		}
	}
	return nil
}
