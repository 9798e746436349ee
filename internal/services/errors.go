package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/runs"
)

var (
	ErrConfiguration    = errors.New("configuration error")
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrStageExecution   = errors.New("stage execution error")
	ErrQualityThreshold = errors.New("quality threshold exceeded")
	ErrCancelled        = errors.New("cancelled")
	ErrTimeout          = errors.New("timeout")
	ErrTransient        = errors.New("transient failure")
)

// Kind names the classification of a wrapped error for logging.
type Kind string

const (
	KindConfiguration    Kind = "configuration"
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindStageExecution   Kind = "stage_execution"
	KindQualityThreshold Kind = "quality_threshold"
	KindCancelled        Kind = "cancelled"
	KindTimeout          Kind = "timeout"
	KindTransient        Kind = "transient"
	KindUnknown          Kind = "unknown"
)

// ErrorDetails carries the structured fields recovered from a wrapped error.
type ErrorDetails struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Hint      string
	Code      string
	Cause     error
}

type taggedError struct {
	marker    error
	stage     string
	operation string
	message   string
	hint      string
	code      string
	cause     error
}

func (e *taggedError) Error() string {
	detail := buildDetail(e.stage, e.operation, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.marker.Error(), detail, e.cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.marker.Error(), detail)
}

func (e *taggedError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later status classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &taggedError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		cause:     err,
	}
}

// WithHint attaches an operator-facing remediation hint to a wrapped error.
// Errors not produced by Wrap are tagged as transient first.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	tagged := asTagged(err)
	tagged.hint = strings.TrimSpace(hint)
	return tagged
}

// WithCode attaches a machine-readable code, typically an external tool exit
// status, to a wrapped error.
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	tagged := asTagged(err)
	tagged.code = strings.TrimSpace(code)
	return tagged
}

func asTagged(err error) *taggedError {
	var tagged *taggedError
	if errors.As(err, &tagged) {
		clone := *tagged
		return &clone
	}
	return &taggedError{marker: ErrTransient, cause: err}
}

// Details recovers the structured fields from a wrapped error. Plain errors
// yield an unknown kind with the error itself as cause.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	details := ErrorDetails{Kind: classify(err), Message: err.Error(), Cause: err}
	var tagged *taggedError
	if errors.As(err, &tagged) {
		details.Stage = tagged.stage
		details.Operation = tagged.operation
		details.Hint = tagged.hint
		details.Code = tagged.code
		if tagged.message != "" {
			details.Message = tagged.message
		}
		if tagged.cause != nil {
			details.Cause = tagged.cause
		}
	}
	return details
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrQualityThreshold):
		return KindQualityThreshold
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrStageExecution):
		return KindStageExecution
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// FailureStatus maps a terminal run error to the status the coordinator should
// persist after the run stops.
func FailureStatus(err error) runs.Status {
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return runs.StatusCancelled
	}
	return runs.StatusFailed
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
