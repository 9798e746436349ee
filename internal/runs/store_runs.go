package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewRun inserts a pending run for the given template and input payload.
func (s *Store) NewRun(ctx context.Context, id, template, inputJSON string) (*Run, error) {
	if id == "" {
		return nil, errors.New("run id is empty")
	}
	if template == "" {
		return nil, errors.New("template is empty")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO runs (
            id, template, status, input_json, stage_index, attempt,
            created_at, updated_at, progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, 0, 0, ?, ?, ?, 0, ?)`,
		id,
		template,
		StatusPending,
		nullableString(inputJSON),
		timestamp,
		timestamp,
		"Queued",
		"waiting for a worker",
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a run by identifier. Missing runs yield (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Update persists changes to an existing run.
func (s *Store) Update(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE runs
         SET template = ?, status = ?, input_json = ?, output_json = ?,
             stage_index = ?, current_stage = ?, attempt = ?, error_message = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?,
             updated_at = ?, started_at = ?, finished_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		run.Template,
		run.Status,
		nullableString(run.InputJSON),
		nullableString(run.OutputJSON),
		run.StageIndex,
		nullableString(run.CurrentStage),
		run.Attempt,
		nullableString(run.ErrorMessage),
		nullableString(run.ProgressStage),
		run.ProgressPercent,
		nullableString(run.ProgressMessage),
		run.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(run.StartedAt),
		nullableTime(run.FinishedAt),
		nullableTime(run.LastHeartbeat),
		run.ID,
	); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// List returns runs filtered by status set (or all runs when no status is
// provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Run, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + runColumns + ` FROM runs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var items []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, run)
	}
	return items, rows.Err()
}

// ClaimNextPending atomically claims the oldest pending run for a worker,
// marking it running. Returns (nil, nil) when nothing is pending.
func (s *Store) ClaimNextPending(ctx context.Context) (*Run, error) {
	ctx = ensureContext(ctx)
	var claimed *Run
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE status = ? ORDER BY created_at LIMIT 1`, StatusPending)
		run, err := scanRun(row)
		if errors.Is(err, sql.ErrNoRows) {
			claimed = nil
			return tx.Commit()
		}
		if err != nil {
			return fmt.Errorf("select pending run: %w", err)
		}

		now := time.Now().UTC()
		run.SetRunning(now)
		run.UpdatedAt = now
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE runs SET status = ?, started_at = ?, last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
			StatusRunning,
			nullableTime(run.StartedAt),
			nullableTime(run.LastHeartbeat),
			now.Format(time.RFC3339Nano),
			run.ID,
			StatusPending,
		); err != nil {
			return fmt.Errorf("claim run: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}
		claimed = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CancelPending cancels a run only if it is still pending, so a worker that
// claims it concurrently wins the race cleanly. Returns true when this call
// performed the cancellation.
func (s *Store) CancelPending(ctx context.Context, id, reason string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE runs
         SET status = ?, error_message = ?, progress_stage = 'Cancelled',
             progress_percent = 0, progress_message = ?, last_heartbeat = NULL,
             finished_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCancelled,
		reason,
		reason,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("cancel pending run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Remove deletes a run and its stage results.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed runs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM runs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed runs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM runs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all runs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}
