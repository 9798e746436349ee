package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"inkwell/internal/ipc"
	"inkwell/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := lines
			if limit < 0 {
				limit = 0
			}
			client, err := ctx.dialClient()
			if err != nil {
				return tailLocalLogs(cmd, ctx, follow, limit)
			}
			defer client.Close()
			return tailDaemonLogs(cmd, client, follow, limit)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}

func tailDaemonLogs(cmd *cobra.Command, client *ipc.Client, follow bool, limit int) error {
	ctx := cmd.Context()
	offset := int64(-1)
	if limit == 0 {
		offset = 0
	}
	printed := false

	for {
		req := ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     follow,
			WaitMillis: 1000,
		}
		resp, err := client.LogTail(req)
		if err != nil {
			return fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			printed = true
		}
		offset = resp.Offset
		limit = 0
		if !follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// tailLocalLogs reads the current daemon log straight from disk so logs stay
// inspectable when no daemon is running.
func tailLocalLogs(cmd *cobra.Command, cmdCtx *commandContext, follow bool, limit int) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	path := filepath.Join(cfg.Paths.LogDir, "inkwell.log")
	offset := int64(-1)
	if limit == 0 {
		offset = 0
	}
	printed := false

	for {
		result, err := logs.Tail(ctx, path, logs.Options{
			Offset:   offset,
			MaxLines: limit,
			Follow:   follow,
			Wait:     time.Second,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range result.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			printed = true
		}
		offset = result.Offset
		limit = 0
		if !follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}
