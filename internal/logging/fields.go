package logging

// Structured keys shared by the workflow manager, gate, and CLI so operators
// can filter logs the same way across components.
const (
	// FieldEventType tags log records that mirror workflow events.
	FieldEventType = "event_type"
	// FieldImpact summarizes the operator-visible consequence of a failure.
	FieldImpact = "impact"
	// FieldErrorKind carries the error taxonomy bucket from services.Details.
	FieldErrorKind = "error_kind"
	// FieldErrorOperation names the operation that produced a failure.
	FieldErrorOperation = "error_operation"
	// FieldErrorCode carries a stable machine-readable failure code.
	FieldErrorCode = "error_code"
	// FieldErrorHint carries remediation guidance for a failure.
	FieldErrorHint = "error_hint"
	// FieldQualityScore carries the gate score for a stage result.
	FieldQualityScore = "quality_score"
	// FieldGateDecision carries the gate verdict (pass, regenerate, fail).
	FieldGateDecision = "gate_decision"
	// FieldProgressStage names the stage a progress update describes.
	FieldProgressStage = "progress_stage"
	// FieldProgressPercent carries the 0-100 progress value for a run.
	FieldProgressPercent = "progress_percent"
	// FieldProgressMessage carries the operator-facing progress sentence.
	FieldProgressMessage = "progress_message"
)
