package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveStageResult appends a stage result row for a run. The row ID is written
// back to the result.
func (s *Store) SaveStageResult(ctx context.Context, result *StageResult) error {
	if result == nil {
		return errors.New("stage result is nil")
	}
	if result.RunID == "" || result.Stage == "" {
		return errors.New("stage result missing run or stage")
	}
	now := time.Now().UTC()
	result.CreatedAt = now

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO stage_results (
            run_id, stage, attempt, status, quality, output_json, error_message, duration_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.Stage,
		result.Attempt,
		result.Status,
		result.Quality,
		nullableString(result.OutputJSON),
		nullableString(result.ErrorMessage),
		result.Duration.Milliseconds(),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert stage result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	result.ID = id
	return nil
}

// ResultsForRun returns every stage result recorded for a run in insertion
// order, including superseded regeneration attempts.
func (s *Store) ResultsForRun(ctx context.Context, runID string) ([]*StageResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultColumns+` FROM stage_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stage results: %w", err)
	}
	defer rows.Close()

	var results []*StageResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// LatestResults returns the most recent result per stage for a run in
// insertion order.
func (s *Store) LatestResults(ctx context.Context, runID string) ([]*StageResult, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+resultColumns+` FROM stage_results
         WHERE id IN (SELECT MAX(id) FROM stage_results WHERE run_id = ? GROUP BY stage)
         ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest results: %w", err)
	}
	defer rows.Close()

	var results []*StageResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// Snapshot loads a run and its latest per-stage results in one transaction so
// observers never see a partially written update. Missing runs yield
// (nil, nil).
func (s *Store) Snapshot(ctx context.Context, runID string) (*Snapshot, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot run: %w", err)
	}

	rows, err := tx.QueryContext(
		ctx,
		`SELECT `+resultColumns+` FROM stage_results
         WHERE id IN (SELECT MAX(id) FROM stage_results WHERE run_id = ? GROUP BY stage)
         ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot results: %w", err)
	}
	defer rows.Close()

	snapshot := &Snapshot{Run: *run}
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		snapshot.Results = append(snapshot.Results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return snapshot, nil
}
