package runs

import (
	"database/sql"
	"errors"
	"time"
)

const runColumns = "id, template, status, input_json, output_json, stage_index, current_stage, attempt, error_message, progress_stage, progress_percent, progress_message, created_at, updated_at, started_at, finished_at, last_heartbeat"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id              string
		template        string
		statusStr       string
		inputJSON       sql.NullString
		outputJSON      sql.NullString
		stageIndex      sql.NullInt64
		currentStage    sql.NullString
		attempt         sql.NullInt64
		errorMessage    sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		startedRaw      sql.NullString
		finishedRaw     sql.NullString
		heartbeatRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&template,
		&statusStr,
		&inputJSON,
		&outputJSON,
		&stageIndex,
		&currentStage,
		&attempt,
		&errorMessage,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:              id,
		Template:        template,
		Status:          Status(statusStr),
		InputJSON:       inputJSON.String,
		OutputJSON:      outputJSON.String,
		StageIndex:      int(stageIndex.Int64),
		CurrentStage:    currentStage.String,
		Attempt:         int(attempt.Int64),
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			run.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			run.LastHeartbeat = &heartbeat
		}
	}
	return run, nil
}

const resultColumns = "id, run_id, stage, attempt, status, quality, output_json, error_message, duration_ms, created_at"

func scanResult(scanner interface{ Scan(dest ...any) error }) (*StageResult, error) {
	var (
		id           int64
		runID        string
		stage        string
		attempt      sql.NullInt64
		statusStr    string
		quality      sql.NullFloat64
		outputJSON   sql.NullString
		errorMessage sql.NullString
		durationMS   sql.NullInt64
		createdRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&runID,
		&stage,
		&attempt,
		&statusStr,
		&quality,
		&outputJSON,
		&errorMessage,
		&durationMS,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	result := &StageResult{
		ID:           id,
		RunID:        runID,
		Stage:        stage,
		Attempt:      int(attempt.Int64),
		Status:       statusStr,
		Quality:      quality.Float64,
		OutputJSON:   outputJSON.String,
		ErrorMessage: errorMessage.String,
		Duration:     time.Duration(durationMS.Int64) * time.Millisecond,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		result.CreatedAt = created
	}
	return result, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
