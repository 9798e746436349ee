package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inkwell/internal/events"
	"inkwell/internal/ipc"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow    bool
		limit     int
		runFilter string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show workflow lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				cmdCtx := cmd.Context()
				req := ipc.EventsRequest{
					Since:      -1,
					Limit:      limit,
					Follow:     follow,
					WaitMillis: 1000,
				}
				out := cmd.OutOrStdout()
				var collected []events.Event
				printed := false

				for {
					resp, err := client.Events(req)
					if err != nil {
						return fmt.Errorf("fetch events: %w", err)
					}
					if resp == nil {
						return errors.New("events response missing")
					}
					for _, event := range resp.Events {
						if runFilter != "" && event.RunID != runFilter {
							continue
						}
						printed = true
						if ctx.jsonMode() {
							if follow {
								if err := writeJSON(cmd, event); err != nil {
									return err
								}
							} else {
								collected = append(collected, event)
							}
							continue
						}
						fmt.Fprintln(out, formatEventLine(event))
					}
					req.Since = int64(resp.Next)
					req.Limit = 0
					if !follow {
						if ctx.jsonMode() {
							if collected == nil {
								collected = make([]events.Event, 0)
							}
							return writeJSON(cmd, collected)
						}
						if !printed {
							fmt.Fprintln(out, "No events recorded")
						}
						return nil
					}
					select {
					case <-cmdCtx.Done():
						return nil
					default:
					}
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new events as they are published")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of recent events to show first (0 for all buffered)")
	cmd.Flags().StringVar(&runFilter, "run", "", "Only show events for the given run ID")
	return cmd
}

// formatEventLine renders one event as a single scannable line. Fields that
// are zero for the event type are omitted.
func formatEventLine(event events.Event) string {
	var b strings.Builder
	b.WriteString(event.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	b.WriteString(" ")
	b.WriteString(string(event.Type))
	b.WriteString(" run=")
	b.WriteString(formatRunID(event.RunID))
	if event.Stage != "" {
		b.WriteString(" stage=")
		b.WriteString(event.Stage)
	}
	if event.Attempt > 0 {
		fmt.Fprintf(&b, " attempt=%d", event.Attempt)
	}
	if event.Status != "" {
		b.WriteString(" status=")
		b.WriteString(event.Status)
	}
	if event.Verdict != "" {
		b.WriteString(" verdict=")
		b.WriteString(event.Verdict)
	}
	if event.Quality > 0 {
		fmt.Fprintf(&b, " quality=%.1f", event.Quality)
	}
	if event.DurationMS > 0 {
		fmt.Fprintf(&b, " (%dms)", event.DurationMS)
	}
	if event.Reason != "" {
		b.WriteString(" reason=")
		b.WriteString(event.Reason)
	}
	return b.String()
}
