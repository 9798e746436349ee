package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"inkwell/internal/runs"
	"inkwell/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := services.Wrap(services.ErrStageExecution, "humanize", "execute", "tool exited", cause)
	if !errors.Is(err, services.ErrStageExecution) {
		t.Fatalf("expected stage execution marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	want := "stage execution error: humanize: execute: tool exited: boom"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", errors.New("oops"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestDetailsRecoversFields(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "write", "prepare", "missing input key", nil)
	err = services.WithHint(err, "declare the key in the template wiring")
	err = services.WithCode(err, "wiring")

	details := services.Details(err)
	if details.Kind != services.KindValidation {
		t.Fatalf("expected validation kind, got %q", details.Kind)
	}
	if details.Stage != "write" || details.Operation != "prepare" {
		t.Fatalf("unexpected stage/operation: %+v", details)
	}
	if details.Message != "missing input key" {
		t.Fatalf("expected message preserved, got %q", details.Message)
	}
	if details.Hint != "declare the key in the template wiring" {
		t.Fatalf("expected hint preserved, got %q", details.Hint)
	}
	if details.Code != "wiring" {
		t.Fatalf("expected code preserved, got %q", details.Code)
	}
}

func TestDetailsPlainError(t *testing.T) {
	details := services.Details(errors.New("plain"))
	if details.Kind != services.KindUnknown {
		t.Fatalf("expected unknown kind, got %q", details.Kind)
	}
	if details.Message != "plain" {
		t.Fatalf("expected message fallback, got %q", details.Message)
	}
}

func TestWithHintPreservesMarker(t *testing.T) {
	err := services.WithHint(
		services.Wrap(services.ErrTimeout, "research", "execute", "deadline exceeded", nil),
		"raise the stage timeout",
	)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker after hint, got %v", err)
	}
	if services.Details(err).Hint == "" {
		t.Fatal("expected hint on wrapped error")
	}
}

func TestFailureStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want runs.Status
	}{
		{"cancelled marker", services.Wrap(services.ErrCancelled, "", "", "cancel requested", nil), runs.StatusCancelled},
		{"context canceled", context.Canceled, runs.StatusCancelled},
		{"stage execution", services.Wrap(services.ErrStageExecution, "write", "execute", "failed", nil), runs.StatusFailed},
		{"quality threshold", services.Wrap(services.ErrQualityThreshold, "humanize", "gate", "exhausted", nil), runs.StatusFailed},
		{"plain", errors.New("boom"), runs.StatusFailed},
	}
	for _, tc := range cases {
		if got := services.FailureStatus(tc.err); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
