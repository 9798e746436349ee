package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inkwell/internal/events"
	"inkwell/internal/ipc"
	"inkwell/internal/runs"
)

func newRunWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <runID>",
		Short: "Stream a run's events until it reaches a terminal status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunDescribe(id)
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("run describe response missing")
				}
				run := resp.Detail.Run
				if runs.IsTerminal(runs.Status(run.Status)) {
					if ctx.jsonMode() {
						return writeJSON(cmd, resp.Detail)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Run %s already finished: %s\n", id, formatStatusLabel(run.Status))
					return nil
				}
				if !ctx.jsonMode() {
					fmt.Fprintf(cmd.OutOrStdout(), "Watching run %s (template: %s, status: %s)\n", id, run.Template, formatStatusLabel(run.Status))
				}
				return followRunEvents(cmd, ctx, client, id)
			})
		},
	}
}

// followRunEvents replays the buffered events for one run and then streams new
// ones until the run's terminal event arrives. Cancelling the command context
// stops the stream without an error.
func followRunEvents(cmd *cobra.Command, ctx *commandContext, client *ipc.Client, runID string) error {
	out := cmd.OutOrStdout()
	req := ipc.EventsRequest{Since: 0, Limit: 0, Follow: true, WaitMillis: 1000}
	for {
		resp, err := client.Events(req)
		if err != nil {
			return fmt.Errorf("fetch events: %w", err)
		}
		if resp == nil {
			return errors.New("events response missing")
		}
		for _, event := range resp.Events {
			if event.RunID != runID {
				continue
			}
			if ctx.jsonMode() {
				if err := writeJSON(cmd, event); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, formatEventLine(event))
			}
			if event.Type == events.TypeRunTerminal {
				return nil
			}
		}
		req.Since = int64(resp.Next)

		select {
		case <-cmd.Context().Done():
			return nil
		default:
		}
	}
}
