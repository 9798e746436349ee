package logging

import "strings"

// FormatSubject builds the run/stage subject string used in console output.
// Run identifiers are UUIDs, so only the first segment is shown.
func FormatSubject(runID, stage string) string {
	runID = ShortRunID(runID)
	stage = strings.TrimSpace(stage)
	switch {
	case runID != "" && stage != "":
		return "Run " + runID + " (" + stage + ")"
	case runID != "":
		return "Run " + runID
	case stage != "":
		return stage
	default:
		return ""
	}
}

// ShortRunID trims a UUID run identifier to its leading segment for display.
func ShortRunID(runID string) string {
	runID = strings.TrimSpace(runID)
	if idx := strings.IndexByte(runID, '-'); idx > 0 {
		return runID[:idx]
	}
	return runID
}
