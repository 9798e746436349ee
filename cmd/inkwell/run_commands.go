package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inkwell/internal/api"
	"inkwell/internal/runaccess"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Submit and manage workflow runs",
	}

	runCmd.AddCommand(newRunSubmitCommand(ctx))
	runCmd.AddCommand(newRunListCommand(ctx))
	runCmd.AddCommand(newRunStatusCommand(ctx))
	runCmd.AddCommand(newRunShowCommand(ctx))
	runCmd.AddCommand(newRunCancelCommand(ctx))
	runCmd.AddCommand(newRunWatchCommand(ctx))
	runCmd.AddCommand(newRunClearCommand(ctx))
	runCmd.AddCommand(newRunHealthCommand(ctx))

	return runCmd
}

func newRunSubmitCommand(ctx *commandContext) *cobra.Command {
	var inputPairs []string
	var inputJSON string

	cmd := &cobra.Command{
		Use:   "submit <template>",
		Short: "Submit a new run for a workflow template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := parseRunInput(inputPairs, inputJSON)
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access runaccess.Access) error {
				created, err := access.Submit(cmd.Context(), args[0], input)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, created)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted run %s (template: %s)\n", created.ID, created.Template)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&inputPairs, "input", "i", nil, "Run input as key=value (repeatable)")
	cmd.Flags().StringVar(&inputJSON, "input-json", "", "Run input as a JSON object")
	return cmd
}

// parseRunInput merges --input-json with --input pairs; explicit pairs win on
// key collisions.
func parseRunInput(pairs []string, rawJSON string) (map[string]any, error) {
	input := make(map[string]any)
	if strings.TrimSpace(rawJSON) != "" {
		if err := json.Unmarshal([]byte(rawJSON), &input); err != nil {
			return nil, fmt.Errorf("parse --input-json: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q (expected key=value)", pair)
		}
		input[key] = value
	}
	return input, nil
}

func newRunListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access runaccess.Access) error {
				listed, err := access.List(cmd.Context(), listStatuses)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					if listed == nil {
						listed = make([]api.Run, 0)
					}
					return writeJSON(cmd, listed)
				}
				if len(listed) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs found")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Template", "Status", "Progress", "Created"},
					buildRunListRows(listed),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by run status (repeatable)")
	return cmd
}

func newRunStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show run counts grouped by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access runaccess.Access) error {
				stats, err := access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					if stats == nil {
						stats = map[string]int{}
					}
					return writeJSON(cmd, stats)
				}
				rows := buildRunStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newRunShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <runID>",
		Short: "Show a run with its recorded stage results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withAccess(func(access runaccess.Access) error {
				detail, err := access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if detail == nil {
					if ctx.jsonMode() {
						return writeJSON(cmd, map[string]string{"error": "not_found"})
					}
					return fmt.Errorf("run %q not found", id)
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, detail)
				}
				printRunDetail(cmd, *detail)
				return nil
			})
		},
	}
}

func newRunCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <runID>",
		Short: "Cancel a pending or running workflow run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withAccess(func(access runaccess.Access) error {
				if err := access.Cancel(cmd.Context(), id); err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]any{"id": id, "cancelled": true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for run %s\n", id)
				return nil
			})
		},
	}
}

func newRunClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withAccess(func(access runaccess.Access) error {
				var removed int64
				var err error
				label := "runs"
				switch {
				case clearCompleted:
					removed, err = access.ClearCompleted(cmd.Context())
					label = "completed runs"
				case clearFailed:
					removed, err = access.ClearFailed(cmd.Context())
					label = "failed runs"
				default:
					removed, err = access.ClearAll(cmd.Context())
				}
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]int64{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed runs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed runs")
	return cmd
}

func newRunHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show run counts across all statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access runaccess.Access) error {
				health, err := access.Health(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]int{
						"total":     health.Total,
						"pending":   health.Pending,
						"running":   health.Running,
						"completed": health.Completed,
						"failed":    health.Failed,
						"cancelled": health.Cancelled,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nPending: %d\nRunning: %d\nCompleted: %d\nFailed: %d\nCancelled: %d\n",
					health.Total,
					health.Pending,
					health.Running,
					health.Completed,
					health.Failed,
					health.Cancelled,
				)
				return nil
			})
		},
	}
}
