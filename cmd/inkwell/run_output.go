package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"inkwell/internal/api"
)

func printRunDetail(cmd *cobra.Command, detail api.RunDetail) {
	out := cmd.OutOrStdout()
	run := detail.Run

	fmt.Fprintf(out, "Run: %s\n", run.ID)
	fmt.Fprintf(out, "Template: %s\n", run.Template)
	fmt.Fprintf(out, "Status: %s\n", formatStatusLabel(run.Status))
	if run.CurrentStage != "" {
		fmt.Fprintf(out, "Current stage: %s\n", run.CurrentStage)
	}
	if run.Attempt > 0 {
		fmt.Fprintf(out, "Attempt: %d\n", run.Attempt)
	}
	if progress := formatProgress(run.Progress); progress != "-" {
		line := progress
		if message := strings.TrimSpace(run.Progress.Message); message != "" {
			line = fmt.Sprintf("%s (%s)", progress, message)
		}
		fmt.Fprintf(out, "Progress: %s\n", line)
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", run.ErrorMessage)
	}
	fmt.Fprintf(out, "Created: %s\n", formatDisplayTime(run.CreatedAt))
	if run.StartedAt != "" {
		fmt.Fprintf(out, "Started: %s\n", formatDisplayTime(run.StartedAt))
	}
	if run.FinishedAt != "" {
		fmt.Fprintf(out, "Finished: %s\n", formatDisplayTime(run.FinishedAt))
	}
	if keys := rawMessageKeys(run.Input); len(keys) > 0 {
		fmt.Fprintf(out, "Input keys: %s\n", strings.Join(keys, ", "))
	}
	if keys := rawMessageKeys(run.Output); len(keys) > 0 {
		fmt.Fprintf(out, "Output keys: %s\n", strings.Join(keys, ", "))
	}

	fmt.Fprintln(out)
	if len(detail.Results) == 0 {
		fmt.Fprintln(out, "No stage results recorded")
		return
	}

	rows := make([][]string, 0, len(detail.Results))
	for _, result := range detail.Results {
		rows = append(rows, []string{
			result.Stage,
			fmt.Sprintf("%d", result.Attempt),
			formatStatusLabel(result.Status),
			formatQuality(result.Quality),
			formatDurationMS(result.DurationMS),
			formatDisplayTime(result.CreatedAt),
		})
	}
	table := renderTable(
		[]string{"Stage", "Attempt", "Status", "Quality", "Duration", "Recorded"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
	)
	fmt.Fprint(out, table)
}

// rawMessageKeys lists the top-level keys of a JSON object payload in sorted
// order. Non-object payloads yield nothing.
func rawMessageKeys(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
