package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"inkwell/internal/api"
	"inkwell/internal/runaccess"
)

func newTemplatesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "templates [name]",
		Short: "List registered workflow templates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access runaccess.Access) error {
				templates, err := access.Templates(cmd.Context())
				if err != nil {
					return err
				}
				if len(args) == 1 {
					return showTemplate(cmd, ctx, templates, strings.TrimSpace(args[0]))
				}
				if ctx.jsonMode() {
					if templates == nil {
						templates = make([]api.TemplateInfo, 0)
					}
					return writeJSON(cmd, templates)
				}
				if len(templates) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No templates registered")
					return nil
				}
				rows := make([][]string, 0, len(templates))
				for _, tmpl := range templates {
					rows = append(rows, []string{
						tmpl.Name,
						strings.Join(tmpl.Stages, ", "),
						formatOptionalStage(tmpl.Checkpoint),
						strconv.FormatFloat(tmpl.MinQuality, 'f', 0, 64),
						strconv.Itoa(tmpl.MaxAttempts),
					})
				}
				table := renderTable(
					[]string{"Name", "Stages", "Checkpoint", "Min Quality", "Max Attempts"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func showTemplate(cmd *cobra.Command, ctx *commandContext, templates []api.TemplateInfo, name string) error {
	for _, tmpl := range templates {
		if tmpl.Name != name {
			continue
		}
		if ctx.jsonMode() {
			return writeJSON(cmd, tmpl)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Template: %s\n", tmpl.Name)
		fmt.Fprintf(out, "Stages: %s\n", strings.Join(tmpl.Stages, ", "))
		fmt.Fprintf(out, "Checkpoint: %s\n", formatOptionalStage(tmpl.Checkpoint))
		fmt.Fprintf(out, "Regeneration start: %s\n", formatOptionalStage(tmpl.RegenerationStart))
		if tmpl.FeedbackKey != "" {
			fmt.Fprintf(out, "Feedback key: %s\n", tmpl.FeedbackKey)
		}
		fmt.Fprintf(out, "Min quality: %s\n", strconv.FormatFloat(tmpl.MinQuality, 'f', 0, 64))
		fmt.Fprintf(out, "Max attempts: %d\n", tmpl.MaxAttempts)
		return nil
	}
	if ctx.jsonMode() {
		return writeJSON(cmd, map[string]string{"error": "not_found"})
	}
	return fmt.Errorf("template %q not found", name)
}

func formatOptionalStage(stage string) string {
	if stage == "" {
		return "-"
	}
	return stage
}
